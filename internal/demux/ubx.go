package demux

import (
	"github.com/bft-labs/gnsship/internal/domain"
)

// UBX framing: sync(2) class(1) id(1) length(2, little-endian) payload(n)
// checksum(2, Fletcher over class..payload).
const (
	ubxSync1 byte = 0xB5
	ubxSync2 byte = 0x62

	// ubxOverhead is everything around the payload.
	ubxOverhead = 8
)

// extractBinary examines a buffer that begins with both sync bytes.
// It returns the validated frame and bytes consumed, or a reject with the
// number of bytes to skip, or needMore when the candidate is still
// incomplete.
func (d *Demuxer) extractBinary(b []byte) (domain.Frame, int, *Reject, bool) {
	if len(b) < 6 {
		return domain.Frame{}, 0, nil, true
	}

	declared := int(b[4]) | int(b[5])<<8
	total := ubxOverhead + declared

	// Untrusted length. A value past the bound means corruption (baud
	// mismatch, firmware glitch); discard the preamble and rescan from the
	// next byte rather than waiting for bytes that will never arrive.
	if total > d.maxBinary {
		return domain.Frame{}, 2, &Reject{
			Reason:    RejectOversize,
			Family:    domain.FamilyBinary,
			Discarded: 2,
			Declared:  declared,
		}, false
	}

	if len(b) < total {
		return domain.Frame{}, 0, nil, true
	}

	ckA, ckB := ubxChecksum(b[2 : total-2])
	if ckA != b[total-2] || ckB != b[total-1] {
		// Off-by-one in the header is the common corruption mode, so
		// resume one byte forward instead of skipping the whole candidate.
		return domain.Frame{}, 1, &Reject{
			Reason:    RejectChecksum,
			Family:    domain.FamilyBinary,
			Discarded: 1,
		}, false
	}

	raw := make([]byte, total)
	copy(raw, b[:total])
	return domain.NewBinaryMessage(raw, b[2], b[3], declared), total, nil, false
}

// ubxChecksum computes the 8-bit Fletcher checksum over body
// (class, id, length and payload bytes).
func ubxChecksum(body []byte) (ckA, ckB byte) {
	for _, c := range body {
		ckA += c
		ckB += ckA
	}
	return ckA, ckB
}
