package demux

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/bft-labs/gnsship/internal/domain"
)

const (
	sentenceStart byte = '$'
	sentenceEnd   byte = '\n'
)

// extractSentence examines a buffer that begins with '$'. A sentence must
// terminate within the length budget; one that does not is abandoned and
// scanning resumes after the start marker.
func (d *Demuxer) extractSentence(b []byte) (domain.Frame, int, *Reject, bool) {
	limit := len(b)
	if limit > d.maxSentence {
		limit = d.maxSentence
	}

	nl := bytes.IndexByte(b[:limit], sentenceEnd)
	if nl < 0 {
		if len(b) >= d.maxSentence {
			return domain.Frame{}, 1, &Reject{
				Reason:    RejectUnterminated,
				Family:    domain.FamilyText,
				Discarded: 1,
			}, false
		}
		return domain.Frame{}, 0, nil, true
	}

	consumed := nl + 1
	line := b[:nl]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}

	tag, fields, ok := parseSentence(line)
	if !ok {
		// The sentence was fully delimited, just invalid; the next frame
		// starts after its terminator.
		return domain.Frame{}, consumed, &Reject{
			Reason:    RejectSentenceChecksum,
			Family:    domain.FamilyText,
			Discarded: consumed,
		}, false
	}

	raw := make([]byte, len(line))
	copy(raw, line)
	return domain.NewSentence(raw, tag, fields), consumed, nil, false
}

// parseSentence validates the "$...*hh" checksum and splits the content
// into tag and fields. ok is false for a missing or mismatched checksum.
func parseSentence(line []byte) (tag string, fields []string, ok bool) {
	if len(line) < 2 || line[0] != sentenceStart {
		return "", nil, false
	}

	star := bytes.LastIndexByte(line, '*')
	if star < 1 || len(line)-star != 3 {
		return "", nil, false
	}

	want, err := strconv.ParseUint(string(line[star+1:]), 16, 8)
	if err != nil {
		return "", nil, false
	}

	var got byte
	for _, c := range line[1:star] {
		got ^= c
	}
	if got != byte(want) {
		return "", nil, false
	}

	content := string(line[1:star])
	if comma := strings.IndexByte(content, ','); comma >= 0 {
		return content[:comma], strings.Split(content[comma+1:], ","), true
	}
	return content, nil, true
}
