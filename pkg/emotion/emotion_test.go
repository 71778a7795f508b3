package emotion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_Decay(t *testing.T) {
	s := State{"happy": 0.8, "afraid": 0.5}

	s.Decay(0.9)

	assert.InDelta(t, 0.72, s["happy"], 1e-9)
	assert.InDelta(t, 0.45, s["afraid"], 1e-9)
}

func TestState_DecayBeforeStimulus(t *testing.T) {
	s := State{"happy": 0.6}

	s.Decay(0.5)
	s.SetDominant("happy", 0.4, 1.0)

	// the new stimulus overwrites the decayed value, it is not decayed itself
	assert.InDelta(t, 0.4, s["happy"], 1e-9)
}

func TestState_SetDominant_ReactivityScaling(t *testing.T) {
	tests := []struct {
		name       string
		raw        float64
		reactivity float64
		want       float64
	}{
		{"neutral reactivity", 0.5, 1.0, 0.5},
		{"dampened", 0.8, 0.5, 0.4},
		{"amplified and capped", 0.7, 2.0, 1.0},
		{"negative reactivity treated as zero", 0.7, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := State{}
			got := s.SetDominant("angry", tt.raw, tt.reactivity)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.InDelta(t, tt.want, s["angry"], 1e-9)
		})
	}
}

func TestState_Dominant_TieBreak(t *testing.T) {
	s := State{"sad": 0.6, "angry": 0.6, "calm": 0.2}

	dom, ok := s.Dominant()
	require.True(t, ok)
	assert.Equal(t, "angry", dom.Emotion)

	sec, ok := s.Secondary()
	require.True(t, ok)
	assert.Equal(t, "sad", sec.Emotion)
}

func TestState_Dominant_Empty(t *testing.T) {
	_, ok := State{}.Dominant()
	assert.False(t, ok)
	_, ok = State{"calm": 0.1}.Secondary()
	assert.False(t, ok)
}

func TestNormalize(t *testing.T) {
	got, ok := Normalize("  Angry ")
	assert.True(t, ok)
	assert.Equal(t, "angry", got)

	got, ok = Normalize("melancholic")
	assert.False(t, ok)
	assert.Equal(t, Fallback, got)
}
