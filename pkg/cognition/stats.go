package cognition

import (
	"math"
	"time"
)

// ClassificationRecord is one classified player line kept for reporting.
type ClassificationRecord struct {
	NPCID          string         `json:"npc_id"`
	UserID         string         `json:"user_id"`
	Classification Classification `json:"classification"`
	TrustDelta     int            `json:"trust_delta"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Stats aggregates how a player has been speaking to an NPC.
type Stats struct {
	Total                 int            `json:"total"`
	SentimentDistribution map[string]int `json:"sentiment_distribution"`
	AverageIntensity      float64        `json:"average_intensity"`
	OffensiveRate         float64        `json:"offensive_rate"`
	EmotionDistribution   map[string]int `json:"emotion_distribution"`
	TargetDistribution    map[string]int `json:"target_distribution"`
}

// ComputeStats aggregates records. Averages and rates are rounded to three
// places.
func ComputeStats(records []ClassificationRecord) Stats {
	s := Stats{
		Total:                 len(records),
		SentimentDistribution: map[string]int{},
		EmotionDistribution:   map[string]int{},
		TargetDistribution:    map[string]int{},
	}
	if len(records) == 0 {
		return s
	}

	var intensity float64
	var offensive int
	for _, r := range records {
		c := r.Classification
		s.SentimentDistribution[string(c.Sentiment)]++
		s.EmotionDistribution[c.Emotion]++
		s.TargetDistribution[string(c.Target)]++
		intensity += c.Intensity
		if c.Offensive {
			offensive++
		}
	}
	n := float64(len(records))
	s.AverageIntensity = round3(intensity / n)
	s.OffensiveRate = round3(float64(offensive) / n)
	return s
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
