// Package emotion models an NPC's emotional state as a set of intensities
// that decay between turns and are reinforced by new stimuli.
package emotion

import (
	"sort"
	"strings"
)

const (
	DefaultDecayRate  = 0.9
	DefaultReactivity = 1.0

	// Fallback is substituted for any emotion outside the allowed set.
	Fallback = "calm"
)

// Allowed lists the emotions collaborators may report.
var Allowed = []string{"happy", "sad", "angry", "afraid", "calm", "excited", "disgusted"}

// IsAllowed reports whether name is one of the allowed emotions.
func IsAllowed(name string) bool {
	for _, e := range Allowed {
		if e == name {
			return true
		}
	}
	return false
}

// Normalize lower-cases name and falls back to calm when it is not allowed.
// The second return is false when the fallback was used.
func Normalize(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	if IsAllowed(n) {
		return n, true
	}
	return Fallback, false
}

// Record is one emotion row for an NPC.
type Record struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// State maps emotion name to intensity in [0,1] for a single NPC.
type State map[string]float64

// Decay multiplies every intensity by rate. Callers run it before applying
// any new stimulus in a turn.
func (s State) Decay(rate float64) {
	rate = clamp01(rate)
	for e, v := range s {
		s[e] = clamp01(v * rate)
	}
}

// SetDominant upserts emotion at min(1, raw*reactivity) and returns the
// stored intensity.
func (s State) SetDominant(emotion string, raw, reactivity float64) float64 {
	if reactivity < 0 {
		reactivity = 0
	}
	v := clamp01(raw * reactivity)
	s[emotion] = v
	return v
}

// Ranked returns every record ordered by intensity, highest first. Equal
// intensities are ordered by emotion name ascending, so the lexically
// smallest name wins a tie for dominant.
func (s State) Ranked() []Record {
	out := make([]Record, 0, len(s))
	for e, v := range s {
		out = append(out, Record{Emotion: e, Intensity: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Intensity != out[j].Intensity {
			return out[i].Intensity > out[j].Intensity
		}
		return out[i].Emotion < out[j].Emotion
	})
	return out
}

// Dominant returns the highest-intensity record, or false when empty.
func (s State) Dominant() (Record, bool) {
	ranked := s.Ranked()
	if len(ranked) == 0 {
		return Record{}, false
	}
	return ranked[0], true
}

// Secondary returns the runner-up record, or false when fewer than two exist.
func (s State) Secondary() (Record, bool) {
	ranked := s.Ranked()
	if len(ranked) < 2 {
		return Record{}, false
	}
	return ranked[1], true
}

// Clone returns an independent copy.
func (s State) Clone() State {
	out := make(State, len(s))
	for e, v := range s {
		out[e] = v
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
