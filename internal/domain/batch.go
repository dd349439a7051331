package domain

import "time"

// Batch is an ordered aggregate of frames accumulated between two flush
// ticks. A batch is never mutated once handed to the sender.
type Batch struct {
	// ID is a unique identifier for this batch (UUID).
	ID string

	// Seq is the strictly increasing sequence number assigned at flush time.
	Seq uint64

	// CreatedAt is the wall-clock time the batch was snapshotted.
	CreatedAt time.Time

	// Frames contains the frames in arrival order.
	Frames []Frame
}

// Size returns the number of frames in the batch.
func (b *Batch) Size() int {
	return len(b.Frames)
}

// Empty returns true if the batch has no frames.
func (b *Batch) Empty() bool {
	return len(b.Frames) == 0
}

// TotalBytes returns the sum of raw frame lengths.
func (b *Batch) TotalBytes() int {
	var total int
	for _, f := range b.Frames {
		total += len(f.Raw)
	}
	return total
}

// CountByFamily returns the number of text and binary frames, in that order.
func (b *Batch) CountByFamily() (text, binary int) {
	for _, f := range b.Frames {
		switch f.Family {
		case FamilyText:
			text++
		case FamilyBinary:
			binary++
		}
	}
	return text, binary
}

// LastFrame returns the last frame in the batch, or nil if empty.
func (b *Batch) LastFrame() *Frame {
	if len(b.Frames) == 0 {
		return nil
	}
	return &b.Frames[len(b.Frames)-1]
}
