package belief

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestType_Competitive(t *testing.T) {
	competitive := map[Type]bool{
		TypeCurrentEmotion: true,
		TypeMoralAlignment: true,
		TypeAge:            true,
		TypeGender:         true,
	}
	for _, typ := range Types {
		assert.Equal(t, competitive[typ], typ.Competitive(), typ)
	}
	assert.False(t, Type("unknown").Competitive())
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in   string
		want Type
		ok   bool
	}{
		{"age", TypeAge, true},
		{" Moral_Alignment ", TypeMoralAlignment, true},
		{"personality_traits", TypePersonalityTrait, true},
		{"secrets", TypeSecret, true},
		{"goals", TypeGoal, true},
		{"likes", TypeLikes, true},
		{"favourite_colour", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseType(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSet_ReinforceExisting(t *testing.T) {
	s := Set{{Type: TypePersonalityTrait, Value: "brave", Confidence: 0.6}}

	got := s.ReinforceOrInsert("npc", "user", Observation{
		Type: TypePersonalityTrait, Value: "brave", Confidence: 0.5,
	}, now)

	assert.InDelta(t, 0.8, got.Confidence, 1e-9)
	assert.InDelta(t, 0.8, s[0].Confidence, 1e-9)
	assert.Equal(t, now, s[0].UpdatedAt)
}

func TestSet_InsertAbsent(t *testing.T) {
	var s Set

	got := s.ReinforceOrInsert("npc", "user", Observation{
		Type: TypeGoal, Value: "find her brother", Confidence: 0.4, Evidence: "dialogue",
	}, now)

	require.Len(t, s, 1)
	assert.Equal(t, "npc", got.NPCID)
	assert.Equal(t, "user", got.UserID)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
	assert.Equal(t, SourceInference, got.Source)
	assert.Equal(t, "dialogue", got.Evidence)
}

func TestSet_ReinforceNeverDecreases(t *testing.T) {
	s := Set{{Type: TypeLikes, Value: "music", Confidence: 0.3}}

	prev := 0.3
	for _, in := range []float64{0, 0.1, 0.9, 0.5, 1, 0.2} {
		got := s.ReinforceOrInsert("npc", "user", Observation{Type: TypeLikes, Value: "music", Confidence: in}, now)
		assert.GreaterOrEqual(t, got.Confidence, prev)
		assert.LessOrEqual(t, got.Confidence, 1.0)
		prev = got.Confidence
	}
}

func TestSet_NonCompetitiveLeavesOthers(t *testing.T) {
	s := Set{
		{Type: TypePersonalityTrait, Value: "brave", Confidence: 0.7},
		{Type: TypePersonalityTrait, Value: "curious", Confidence: 0.5},
		{Type: TypeAge, Value: "young", Confidence: 0.6},
	}

	s.ReinforceOrInsert("npc", "user", Observation{Type: TypePersonalityTrait, Value: "stubborn", Confidence: 0.9}, now)

	assert.InDelta(t, 0.7, s[0].Confidence, 1e-9)
	assert.InDelta(t, 0.5, s[1].Confidence, 1e-9)
	assert.InDelta(t, 0.6, s[2].Confidence, 1e-9)
	assert.Len(t, s, 4)
}

func TestSet_CompetitivePenalty(t *testing.T) {
	s := Set{
		{Type: TypeMoralAlignment, Value: "good", Confidence: 0.5},
		{Type: TypeMoralAlignment, Value: "evil", Confidence: 0.3},
		{Type: TypeMoralAlignment, Value: "neutral", Confidence: 0.06},
		{Type: TypeMoralAlignment, Value: "chaotic", Confidence: 0.04},
		{Type: TypeAge, Value: "old", Confidence: 0.5},
	}

	s.ReinforceOrInsert("npc", "user", Observation{Type: TypeMoralAlignment, Value: "good", Confidence: 0.5}, now)

	assert.InDelta(t, 0.75, s[0].Confidence, 1e-9)
	assert.InDelta(t, 0.28, s[1].Confidence, 1e-9)
	assert.InDelta(t, PenaltyFloor, s[2].Confidence, 1e-9, "floored")
	assert.InDelta(t, 0.04, s[3].Confidence, 1e-9, "below floor is left alone")
	assert.InDelta(t, 0.5, s[4].Confidence, 1e-9, "other types untouched")
}

func TestSet_CompetitivePenaltyOnInsert(t *testing.T) {
	s := Set{{Type: TypeGender, Value: "male", Confidence: 0.4}}

	s.ReinforceOrInsert("npc", "user", Observation{Type: TypeGender, Value: "female", Confidence: 0.4}, now)

	v, ok := s.Get(TypeGender, "male")
	require.True(t, ok)
	assert.InDelta(t, 0.38, v.Confidence, 1e-9)
}

func TestSet_ClampsIncoming(t *testing.T) {
	var s Set
	got := s.ReinforceOrInsert("npc", "user", Observation{Type: TypeSecret, Value: "x", Confidence: 1.7}, now)
	assert.Equal(t, 1.0, got.Confidence)

	got = s.ReinforceOrInsert("npc", "user", Observation{Type: TypeSecret, Value: "y", Confidence: -3}, now)
	assert.Equal(t, 0.0, got.Confidence)
}

func TestSelfSet_Stability(t *testing.T) {
	tests := []struct {
		name      string
		old       float64
		stability float64
		incoming  float64
		want      float64
	}{
		{"stability one is a no-op", 0.8, 1, 0.1, 0.8},
		{"stability zero overwrites", 0.8, 0, 0.1, 0.1},
		{"half stability moves halfway", 0.2, 0.5, 0.6, 0.4},
		{"revision can lower confidence", 0.9, 0.25, 0.5, 0.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SelfSet{{Type: "role", Value: "blacksmith", Confidence: tt.old, Stability: tt.stability}}

			got := s.Reinforce("npc", SelfObservation{Type: "role", Value: "blacksmith", Confidence: tt.incoming}, now)

			assert.InDelta(t, tt.want, got.Confidence, 1e-9)
			assert.InDelta(t, tt.stability, got.Stability, 1e-9, "stability is not revised")
		})
	}
}

func TestSelfSet_InsertFresh(t *testing.T) {
	var s SelfSet

	got := s.Reinforce("npc", SelfObservation{Type: "value", Value: "loyalty", Confidence: 0.7, Stability: 0.9}, now)

	require.Len(t, s, 1)
	assert.Equal(t, "npc", got.NPCID)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.InDelta(t, 0.9, got.Stability, 1e-9)
}

func TestSelfSet_Seed(t *testing.T) {
	s := SelfSet{{Type: "role", Value: "blacksmith", Confidence: 0.5, Stability: 0.5}}

	assert.False(t, s.Seed("npc", SelfObservation{Type: "role", Value: "blacksmith", Confidence: 0.9, Stability: 0.9}, now))
	assert.InDelta(t, 0.5, s[0].Confidence, 1e-9)

	assert.True(t, s.Seed("npc", SelfObservation{Type: "fear", Value: "fire", Confidence: 0.6, Stability: 0.8}, now))
	assert.Len(t, s, 2)
}
