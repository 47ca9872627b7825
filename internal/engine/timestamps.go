package engine

import (
	"strings"

	"github.com/scribehub/transcriber/internal/store/model"
)

const (
	// maxPlausibleSeconds bounds a single recording. Anything beyond it is
	// assumed to be reported in the wrong unit.
	maxPlausibleSeconds = 3600.0

	wordsPerSecond    = 2.5
	minSegmentSeconds = 1.0
	interSegmentPause = 0.5

	maxSegmentGap      = 1800.0
	maxSegmentDuration = 300.0
)

// unitFactors are tried in order when a timestamp exceeds the plausible
// range: milliseconds, microseconds, nanoseconds, and minutes reported as
// seconds.
var unitFactors = []float64{1000, 1e6, 1e9, 60}

// NormalizeTimestamp reinterprets an implausibly large timestamp using the
// unit heuristics. It returns 0 when no conversion lands in range, which
// later triggers estimation.
func NormalizeTimestamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v <= maxPlausibleSeconds {
		return v
	}

	for _, factor := range unitFactors {
		if converted := v / factor; converted >= 0 && converted <= maxPlausibleSeconds {
			return converted
		}
	}

	return 0
}

// SanitizeSegments applies the timestamp repair rules in order: estimate when
// the engine reported no timing at all, then regenerate when the sequence is
// internally inconsistent. Estimated segments carry Estimated=true so readers
// can tell repaired timing from engine-reported timing.
func SanitizeSegments(segments []model.Segment) []model.Segment {
	segments = estimateIfAllZero(segments)
	if timestampsInconsistent(segments) {
		segments = regenerateFromText(segments)
	}
	return segments
}

func estimateIfAllZero(segments []model.Segment) []model.Segment {
	if len(segments) == 0 {
		return segments
	}

	for _, seg := range segments {
		if seg.Start != 0 || seg.End != 0 {
			return segments
		}
	}

	return regenerateFromText(segments)
}

func timestampsInconsistent(segments []model.Segment) bool {
	for i := 1; i < len(segments); i++ {
		prev, curr := segments[i-1], segments[i]

		if curr.Start < prev.Start {
			return true
		}
		if curr.Start-prev.Start > maxSegmentGap {
			return true
		}
		if curr.End-curr.Start > maxSegmentDuration {
			return true
		}
	}
	return false
}

// regenerateFromText rebuilds all timing from word counts at an assumed
// speaking rate, with a fixed pause between segments.
func regenerateFromText(segments []model.Segment) []model.Segment {
	current := 0.0
	out := make([]model.Segment, len(segments))

	for i, seg := range segments {
		wordCount := len(strings.Fields(seg.Text))
		duration := float64(wordCount) / wordsPerSecond
		if duration < minSegmentSeconds {
			duration = minSegmentSeconds
		}

		out[i] = model.Segment{
			Start:      current,
			End:        current + duration,
			Text:       seg.Text,
			SpeakerTag: seg.SpeakerTag,
			Confidence: seg.Confidence,
			Estimated:  true,
		}
		current += duration + interSegmentPause
	}

	return out
}
