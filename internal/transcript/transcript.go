// Package transcript defines the canonical transcript model and the
// normalizer that converts raw provider output into it.
//
// Providers label speakers however they like (numeric indices, GUIDs, letters)
// and may return segments out of order. [Normalize] produces a deterministic
// view: segments sorted by start offset and speakers renamed to "Speaker 1",
// "Speaker 2", ... in order of first appearance. Two runs over the same raw
// input always yield the same canonical transcript.
package transcript

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrWong99/scrivano/pkg/provider/transcribe"
)

// Segment is one normalized phrase of the transcript. Start and End are
// offsets in seconds from the beginning of the audio.
type Segment struct {
	Speaker string  `json:"speaker_id"`
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
	Text    string  `json:"text"`
}

// Transcript is the canonical result of one completed transcription.
type Transcript struct {
	// Segments are the normalized phrases in chronological order.
	Segments []Segment `json:"segments"`

	// FullText is the complete transcript without speaker attribution.
	FullText string `json:"full_text"`

	// Duration is the audio duration in seconds.
	Duration float64 `json:"duration_seconds"`

	// Language is the short language code the audio was transcribed in.
	Language string `json:"language"`
}

// Turn is a run of consecutive segments by the same speaker, merged into one
// paragraph for the narrative view.
type Turn struct {
	Speaker string  `json:"speaker_id"`
	Start   float64 `json:"start_time"`
	End     float64 `json:"end_time"`
	Text    string  `json:"text"`
}

// New builds a Transcript from raw provider output. Segments are normalized
// via [Normalize]; when the provider reported no full text it is derived from
// the segments.
func New(res transcribe.Result, language string) (*Transcript, error) {
	segs, err := Normalize(res.Segments)
	if err != nil {
		return nil, err
	}

	full := strings.TrimSpace(res.FullText)
	if full == "" {
		parts := make([]string, 0, len(segs))
		for _, s := range segs {
			parts = append(parts, s.Text)
		}
		full = strings.Join(parts, " ")
	}

	duration := res.Duration
	if duration == 0 && len(segs) > 0 {
		duration = segs[len(segs)-1].End
	}

	return &Transcript{
		Segments: segs,
		FullText: full,
		Duration: duration,
		Language: language,
	}, nil
}

// Normalize converts raw provider segments into canonical form: empty-text
// segments are dropped, the rest are stable-sorted by start offset (overlaps
// keep their relative order), and raw speaker labels are remapped to
// "Speaker 1".."Speaker N" in order of first appearance after sorting.
// Segments with a missing label all map to the same unnamed speaker.
//
// Returns a wrapped [transcribe.ErrMalformedResponse] when a segment carries
// invalid timing (negative offsets or start after end).
func Normalize(raw []transcribe.RawSegment) ([]Segment, error) {
	kept := make([]transcribe.RawSegment, 0, len(raw))
	for i, r := range raw {
		if strings.TrimSpace(r.Text) == "" {
			continue
		}
		if r.Start < 0 || r.End < 0 || r.Start > r.End {
			return nil, fmt.Errorf("transcript: %w: segment %d has invalid timing [%v, %v]",
				transcribe.ErrMalformedResponse, i, r.Start, r.End)
		}
		kept = append(kept, r)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Start < kept[j].Start
	})

	labels := map[string]string{}
	segs := make([]Segment, 0, len(kept))
	for _, r := range kept {
		label, ok := labels[r.Speaker]
		if !ok {
			label = fmt.Sprintf("Speaker %d", len(labels)+1)
			labels[r.Speaker] = label
		}
		segs = append(segs, Segment{
			Speaker: label,
			Start:   r.Start,
			End:     r.End,
			Text:    strings.TrimSpace(r.Text),
		})
	}
	return segs, nil
}

// Turns merges consecutive same-speaker segments into paragraphs. The result
// is what exporters and the formatted JSON view render.
func (t *Transcript) Turns() []Turn {
	var turns []Turn
	for _, s := range t.Segments {
		if n := len(turns); n > 0 && turns[n-1].Speaker == s.Speaker {
			turns[n-1].Text += " " + s.Text
			turns[n-1].End = s.End
			continue
		}
		turns = append(turns, Turn(s))
	}
	return turns
}

// Formatted renders the transcript as plain text with one speaker turn per
// paragraph ("Speaker 1: ...").
func (t *Transcript) Formatted() string {
	turns := t.Turns()
	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(turn.Speaker)
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}
