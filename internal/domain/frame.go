package domain

import "time"

// Family identifies which of the two wire protocols a frame belongs to.
type Family int

const (
	// FamilyText is an NMEA 0183 sentence ("$...*hh").
	FamilyText Family = iota

	// FamilyBinary is a UBX message (0xB5 0x62 sync, binary header + payload).
	FamilyBinary
)

// String returns the short family name used in logs and file extensions.
func (f Family) String() string {
	switch f {
	case FamilyText:
		return "nmea"
	case FamilyBinary:
		return "ubx"
	default:
		return "unknown"
	}
}

// Frame is a single checksum-validated protocol message from the receiver.
// A Frame is only ever constructed from bytes whose checksum verified;
// invalid candidates are rejected by the demultiplexer and never reach
// this type.
type Frame struct {
	// Family distinguishes the text and binary variants.
	Family Family

	// Raw holds the exact source bytes. For text frames this is the sentence
	// without its line terminator; for binary frames it is the complete
	// message including sync bytes, header, payload and checksum.
	Raw []byte

	// Received is the wall-clock time the frame was demultiplexed.
	Received time.Time

	// Tag is the talker+sentence identifier of a text frame (e.g. "GNGGA").
	// Empty for binary frames.
	Tag string

	// Fields are the comma-separated values of a text frame, excluding the
	// tag and the checksum suffix. Nil for binary frames.
	Fields []string

	// Class and ID identify a binary message. Zero for text frames.
	Class byte
	ID    byte

	// PayloadLen is the declared payload length of a binary message.
	PayloadLen int
}

// NewSentence constructs a validated text frame.
func NewSentence(raw []byte, tag string, fields []string) Frame {
	return Frame{
		Family: FamilyText,
		Raw:    raw,
		Tag:    tag,
		Fields: fields,
	}
}

// NewBinaryMessage constructs a validated binary frame.
func NewBinaryMessage(raw []byte, class, id byte, payloadLen int) Frame {
	return Frame{
		Family:     FamilyBinary,
		Raw:        raw,
		Class:      class,
		ID:         id,
		PayloadLen: payloadLen,
	}
}

// Size returns the raw byte length of the frame.
func (f Frame) Size() int {
	return len(f.Raw)
}
