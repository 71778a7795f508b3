package cognition

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrustDelta(t *testing.T) {
	tests := []struct {
		name string
		c    Classification
		want int
	}{
		{"offensive at npc", Classification{Sentiment: SentimentHostile, Offensive: true, Target: TargetNPC, Intensity: 1}, -5},
		{"offensive at no one", Classification{Sentiment: SentimentNeutral, Offensive: true, Target: TargetNone}, 0},
		{"hostile at npc", Classification{Sentiment: SentimentHostile, Target: TargetNPC, Intensity: 0.8}, -3},
		{"hostile at environment", Classification{Sentiment: SentimentHostile, Target: TargetEnvironment}, 0},
		{"vulnerable", Classification{Sentiment: SentimentNegative, Target: TargetSelf, Intensity: 1}, 3},
		{"mildly vulnerable", Classification{Sentiment: SentimentNegative, Target: TargetSelf, Intensity: 0.4}, 1},
		{"affectionate", Classification{Sentiment: SentimentAffectionate, Target: TargetNone, Intensity: 1}, 4},
		{"affectionate half", Classification{Sentiment: SentimentAffectionate, Target: TargetNPC, Intensity: 0.5}, 2},
		{"positive at npc", Classification{Sentiment: SentimentPositive, Target: TargetNPC, Intensity: 0.5}, 2},
		{"positive elsewhere", Classification{Sentiment: SentimentPositive, Target: TargetEnvironment, Intensity: 0.9}, 0},
		{"neutral", Classification{Sentiment: SentimentNeutral, Target: TargetNPC}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrustDelta(tt.c))
		})
	}
}

func TestClassification_Normalize(t *testing.T) {
	t.Run("valid input is untouched", func(t *testing.T) {
		in := Classification{Sentiment: SentimentPositive, Intensity: 0.4, Emotion: "Happy", Target: TargetNPC}

		got, err := in.Normalize()

		require.NoError(t, err)
		assert.Equal(t, "happy", got.Emotion)
		assert.Equal(t, SentimentPositive, got.Sentiment)
	})

	t.Run("invalid fields get defaults", func(t *testing.T) {
		in := Classification{Sentiment: "furious", Intensity: 3, Emotion: "smug", Target: "crowd"}

		got, err := in.Normalize()

		require.Error(t, err)
		assert.Equal(t, SentimentNeutral, got.Sentiment)
		assert.Equal(t, TargetNone, got.Target)
		assert.Equal(t, "calm", got.Emotion)
		assert.Equal(t, 1.0, got.Intensity)

		var ve *ValidationError
		require.True(t, errors.As(err, &ve))
		assert.Equal(t, "sentiment", ve.Field)
		assert.Contains(t, err.Error(), "invalid emotion smug")
	})

	t.Run("NaN intensity", func(t *testing.T) {
		got, err := Classification{Sentiment: SentimentNeutral, Emotion: "calm", Target: TargetNone, Intensity: math.NaN()}.Normalize()
		require.Error(t, err)
		assert.Equal(t, 0.0, got.Intensity)
	})

	t.Run("zero value matches the default", func(t *testing.T) {
		got, _ := Classification{}.Normalize()
		assert.Equal(t, DefaultClassification(), got)
	})
}

func TestReaction_Normalize(t *testing.T) {
	got, err := Reaction{Emotion: "afraid", Intensity: 0.7}.Normalize()
	require.NoError(t, err)
	assert.Equal(t, Reaction{Emotion: "afraid", Intensity: 0.7}, got)

	got, err = Reaction{Emotion: "", Intensity: -0.2}.Normalize()
	require.Error(t, err)
	assert.Equal(t, Reaction{Emotion: "calm", Intensity: 0}, got)
}

func TestComputeStats(t *testing.T) {
	records := []ClassificationRecord{
		{Classification: Classification{Sentiment: SentimentHostile, Emotion: "angry", Target: TargetNPC, Intensity: 0.9, Offensive: true}},
		{Classification: Classification{Sentiment: SentimentPositive, Emotion: "happy", Target: TargetNPC, Intensity: 0.3}},
		{Classification: Classification{Sentiment: SentimentPositive, Emotion: "happy", Target: TargetNone, Intensity: 0.2}},
	}

	s := ComputeStats(records)

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, map[string]int{"hostile": 1, "positive": 2}, s.SentimentDistribution)
	assert.Equal(t, map[string]int{"angry": 1, "happy": 2}, s.EmotionDistribution)
	assert.Equal(t, map[string]int{"npc": 2, "none": 1}, s.TargetDistribution)
	assert.InDelta(t, 0.467, s.AverageIntensity, 1e-9)
	assert.InDelta(t, 0.333, s.OffensiveRate, 1e-9)

	empty := ComputeStats(nil)
	assert.Equal(t, 0, empty.Total)
	assert.Empty(t, empty.SentimentDistribution)
}
