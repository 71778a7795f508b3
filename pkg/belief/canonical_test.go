package belief

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Brave", "brave"},
		{"  very   BRAVE  ", "very brave"},
		{"The player is brave.", "brave"},
		{"They seem to be a liar!", "liar"},
		{"seems to be kind", "kind"},
		{"probably an elf", "elf"},
		{"STRASSE", "strasse"},
		{"is", "is"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.in))
		})
	}
}

func TestDedupe(t *testing.T) {
	batch := []Observation{
		{Type: TypePersonalityTrait, Value: "Brave", Confidence: 0.4},
		{Type: TypePersonalityTrait, Value: "the player is brave.", Confidence: 0.7, Evidence: "fought the wolf"},
		{Type: TypeLikes, Value: "brave", Confidence: 0.2},
		{Type: TypeGoal, Value: "   ", Confidence: 0.9},
		{Type: Type("hobby"), Value: "fishing", Confidence: 0.9},
		{Type: TypePersonalityTrait, Value: "BRAVE", Confidence: 0.5},
	}

	got := Dedupe(batch)

	require.Len(t, got, 2)
	assert.Equal(t, TypePersonalityTrait, got[0].Type)
	assert.Equal(t, "brave", got[0].Value)
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
	assert.Equal(t, "fought the wolf", got[0].Evidence)
	assert.Equal(t, TypeLikes, got[1].Type)
}

func TestDedupeSelf(t *testing.T) {
	got := DedupeSelf([]SelfObservation{
		{Type: "Core Value", Value: "Loyalty.", Confidence: 0.5},
		{Type: "core value", Value: "loyalty", Confidence: 0.8},
		{Type: "", Value: "nothing", Confidence: 0.8},
	})

	require.Len(t, got, 1)
	assert.Equal(t, "core_value", got[0].Type)
	assert.Equal(t, "loyalty", got[0].Value)
	assert.InDelta(t, 0.8, got[0].Confidence, 1e-9)
}

func TestSnapshot(t *testing.T) {
	s := Set{
		{Type: TypeLikes, Value: "music", Confidence: 0.7},
		{Type: TypeAge, Value: "young", Confidence: 0.9},
		{Type: TypeGoal, Value: "revenge", Confidence: 0.59},
		{Type: TypeAge, Value: "old", Confidence: 0.7},
		{Type: TypeLikes, Value: "ale", Confidence: 0.7},
	}

	got := s.Snapshot(DefaultSnapshotMin)

	require.Len(t, got, 4)
	assert.Equal(t, "young", got[0].Value)
	assert.Equal(t, []string{"old", "ale", "music"}, []string{got[1].Value, got[2].Value, got[3].Value})

	got[0].Confidence = 0
	assert.InDelta(t, 0.9, s[1].Confidence, 1e-9, "snapshot is a copy")
}

func TestSnapshot_CapsPerType(t *testing.T) {
	var s Set
	for i := range 15 {
		s = append(s, Belief{Type: TypeSecret, Value: string(rune('a' + i)), Confidence: 0.9})
	}
	s = append(s, Belief{Type: TypeGoal, Value: "escape", Confidence: 0.8})

	got := s.Snapshot(0.6)

	assert.Len(t, got, MaxPerType+1)
	assert.Equal(t, "escape", got[len(got)-1].Value)
}

func TestSelfSnapshot(t *testing.T) {
	s := SelfSet{
		{Type: "role", Value: "smith", Confidence: 0.6},
		{Type: "fear", Value: "fire", Confidence: 0.95},
		{Type: "value", Value: "gold", Confidence: 0.2},
	}

	got := s.Snapshot(0.6)

	require.Len(t, got, 2)
	assert.Equal(t, "fire", got[0].Value)
	assert.Equal(t, "smith", got[1].Value)
}
