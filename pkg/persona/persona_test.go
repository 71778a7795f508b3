package persona

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/belief"
)

const smithYAML = `
name: Mags the Smith
description: Runs the forge at the edge of town.
decay_rate: 0.8
reactivity: 1.5
self_beliefs:
  - type: role
    value: Blacksmith
    confidence: 0.9
    stability: 0.95
  - type: fear
    value: fire spreading to the village
    confidence: 0.6
    stability: 0.5
`

func TestParse(t *testing.T) {
	p, err := Parse("mags", []byte(smithYAML))

	require.NoError(t, err)
	assert.Equal(t, "mags", p.ID)
	assert.Equal(t, "Mags the Smith", p.Name)
	assert.InDelta(t, 0.8, p.Decay(), 1e-9)
	assert.InDelta(t, 1.5, p.React(), 1e-9)
	assert.Len(t, p.SelfBeliefs, 2)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad yaml", "name: [unterminated"},
		{"decay above one", "decay_rate: 1.2"},
		{"negative reactivity", "reactivity: -1"},
		{"seed without value", "self_beliefs:\n  - type: role\n    confidence: 0.5"},
		{"seed out of range", "self_beliefs:\n  - type: role\n    value: smith\n    confidence: 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("x", []byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDefaults(t *testing.T) {
	p := Default("guard")
	assert.Equal(t, "guard", p.Name)
	assert.InDelta(t, 0.9, p.Decay(), 1e-9)
	assert.InDelta(t, 1.0, p.React(), 1e-9)

	var nilPersona *Persona
	assert.InDelta(t, 0.9, nilPersona.Decay(), 1e-9)
	assert.Equal(t, 0, nilPersona.Seed(&belief.SelfSet{}, time.Now()))
}

func TestSeed(t *testing.T) {
	p, err := Parse("mags", []byte(smithYAML))
	require.NoError(t, err)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	set := belief.SelfSet{{NPCID: "mags", Type: "role", Value: "blacksmith", Confidence: 0.4, Stability: 0.2}}

	added := p.Seed(&set, now)

	assert.Equal(t, 1, added)
	require.Len(t, set, 2)
	assert.InDelta(t, 0.4, set[0].Confidence, 1e-9, "held beliefs are not reseeded")
	assert.Equal(t, "fire spreading to the village", set[1].Value)
	assert.InDelta(t, 0.5, set[1].Stability, 1e-9)

	assert.Equal(t, 0, p.Seed(&set, now))
}
