package demux

import (
	"github.com/bft-labs/gnsship/internal/domain"
)

// Default bounds, matching the receiver's largest configured messages with
// slack. A declared UBX length beyond the bound is treated as corruption,
// not as a frame to wait for.
const (
	DefaultMaxBinary   = 2048
	DefaultMaxSentence = 512

	// DefaultStuckThreshold is the number of consecutive oversize rejects
	// after which the parser reports itself stuck.
	DefaultStuckThreshold = 5
)

// RejectReason classifies why a candidate frame was discarded.
type RejectReason int

const (
	// RejectOversize: a binary header declared a length beyond the bound.
	// This is the desync signature the watchdog counts.
	RejectOversize RejectReason = iota

	// RejectChecksum: a complete binary candidate failed checksum validation.
	RejectChecksum

	// RejectSentenceChecksum: a terminated sentence had a missing or wrong
	// checksum suffix.
	RejectSentenceChecksum

	// RejectUnterminated: a sentence exceeded the length budget without a
	// terminator and was abandoned.
	RejectUnterminated

	// RejectParserStuck: too many consecutive oversize rejects; emitted as
	// an escalation marker alongside the normal rejects.
	RejectParserStuck
)

// String returns the diagnostic name for the reason.
func (r RejectReason) String() string {
	switch r {
	case RejectOversize:
		return "oversize"
	case RejectChecksum:
		return "checksum"
	case RejectSentenceChecksum:
		return "sentence-checksum"
	case RejectUnterminated:
		return "unterminated"
	case RejectParserStuck:
		return "parser-stuck"
	default:
		return "unknown"
	}
}

// Reject describes one discarded candidate. Every reject is non-fatal; the
// caller reports it as a structured diagnostic and continues.
type Reject struct {
	Reason    RejectReason
	Family    domain.Family
	Discarded int // bytes consumed from the stream by the rejection
	Declared  int // declared payload length (oversize only)
	Errors    int // consecutive oversize count (parser-stuck only)
}

// Options configure a Demuxer. Zero values select the defaults.
type Options struct {
	// MaxBinary bounds the total accepted UBX message size in bytes.
	MaxBinary int

	// MaxSentence bounds sentence length before abandonment.
	MaxSentence int

	// StuckThreshold is the consecutive-oversize count that triggers a
	// parser-stuck escalation.
	StuckThreshold int
}

// Demuxer incrementally extracts frames from a byte stream. Incomplete
// tail bytes are retained between Feed calls and prefixed to the next
// chunk, so frames split across reads are recovered intact.
//
// Not safe for concurrent use; the orchestrator owns it from one goroutine.
type Demuxer struct {
	buf []byte

	maxBinary      int
	maxSentence    int
	stuckThreshold int

	// consecutive oversize rejects since the last valid binary frame
	oversizeRun int
}

// New creates a Demuxer with the given options.
func New(opts Options) *Demuxer {
	if opts.MaxBinary <= 0 {
		opts.MaxBinary = DefaultMaxBinary
	}
	if opts.MaxSentence <= 0 {
		opts.MaxSentence = DefaultMaxSentence
	}
	if opts.StuckThreshold <= 0 {
		opts.StuckThreshold = DefaultStuckThreshold
	}
	return &Demuxer{
		maxBinary:      opts.MaxBinary,
		maxSentence:    opts.MaxSentence,
		stuckThreshold: opts.StuckThreshold,
	}
}

// Pending returns the number of buffered bytes awaiting completion.
func (d *Demuxer) Pending() int {
	return len(d.buf)
}

// Feed appends chunk to the carry-over buffer and extracts every complete
// frame in wire order. Bytes that belong to no recognizable candidate are
// skipped silently; malformed candidates are returned as Rejects.
func (d *Demuxer) Feed(chunk []byte) ([]domain.Frame, []Reject) {
	if len(chunk) > 0 {
		d.buf = append(d.buf, chunk...)
	}

	var frames []domain.Frame
	var rejects []Reject

	i := 0
	for i < len(d.buf) {
		switch d.buf[i] {
		case ubxSync1:
			if i+1 >= len(d.buf) {
				// Could be the first byte of a preamble; wait for more.
				goto done
			}
			if d.buf[i+1] != ubxSync2 {
				i++ // lone sync byte, noise
				continue
			}

			frame, consumed, rej, needMore := d.extractBinary(d.buf[i:])
			if needMore {
				goto done
			}
			if rej != nil {
				rejects = append(rejects, *rej)
				if rej.Reason == RejectOversize {
					d.oversizeRun++
					if d.oversizeRun >= d.stuckThreshold {
						rejects = append(rejects, Reject{
							Reason: RejectParserStuck,
							Family: domain.FamilyBinary,
							Errors: d.oversizeRun,
						})
						d.oversizeRun = 0
					}
				}
				i += consumed
				continue
			}
			d.oversizeRun = 0
			frames = append(frames, frame)
			i += consumed

		case sentenceStart:
			frame, consumed, rej, needMore := d.extractSentence(d.buf[i:])
			if needMore {
				goto done
			}
			if rej != nil {
				rejects = append(rejects, *rej)
				i += consumed
				continue
			}
			frames = append(frames, frame)
			i += consumed

		default:
			i++ // noise between frames
		}
	}

done:
	// Retain the unconsumed tail for the next read. Copy so the caller's
	// chunk buffer can be reused.
	if i > 0 {
		d.buf = append(d.buf[:0], d.buf[i:]...)
	}
	return frames, rejects
}

// Reset discards all buffered bytes and error counters.
func (d *Demuxer) Reset() {
	d.buf = d.buf[:0]
	d.oversizeRun = 0
}
