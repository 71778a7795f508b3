package belief

import "time"

const (
	// CompetitivePenalty is subtracted from rival values of a competitive type.
	CompetitivePenalty = 0.02
	// PenaltyFloor is the lowest confidence a penalty can push a rival to.
	PenaltyFloor = 0.05
	// DefaultConfidence is used when an extractor omits a confidence.
	DefaultConfidence = 0.4
	// DefaultSnapshotMin is the confidence a belief needs to reach prompts.
	DefaultSnapshotMin = 0.6

	SourceInference  = "inference"
	EvidenceDialogue = "dialogue"
)

// Belief is one proposition an NPC holds about a player.
type Belief struct {
	NPCID      string    `json:"npc_id"`
	UserID     string    `json:"user_id"`
	Type       Type      `json:"type"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Source     string    `json:"source,omitempty"`
	Evidence   string    `json:"evidence,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Observation is incoming evidence for a belief.
type Observation struct {
	Type       Type    `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence,omitempty"`
	Source     string  `json:"source,omitempty"`
}

// Set is every belief one NPC holds about one player. Rows are unique per
// (type, value).
type Set []Belief

func (s Set) index(t Type, value string) int {
	for i := range s {
		if s[i].Type == t && s[i].Value == value {
			return i
		}
	}
	return -1
}

// Get returns the belief for (t, value), if held.
func (s Set) Get(t Type, value string) (Belief, bool) {
	if i := s.index(t, value); i >= 0 {
		return s[i], true
	}
	return Belief{}, false
}

// ReinforceOrInsert folds an observation into the set. A held value moves
// toward 1 by old+(1-old)*incoming; a new value starts at incoming. For
// competitive types every other value of the same type loses
// CompetitivePenalty, floored at PenaltyFloor.
func (s *Set) ReinforceOrInsert(npcID, userID string, obs Observation, now time.Time) Belief {
	incoming := clamp01(obs.Confidence)
	source := obs.Source
	if source == "" {
		source = SourceInference
	}

	var result Belief
	if i := s.index(obs.Type, obs.Value); i >= 0 {
		b := &(*s)[i]
		b.Confidence = clamp01(b.Confidence + (1-b.Confidence)*incoming)
		b.Evidence = obs.Evidence
		b.Source = source
		b.UpdatedAt = now
		result = *b
	} else {
		result = Belief{
			NPCID:      npcID,
			UserID:     userID,
			Type:       obs.Type,
			Value:      obs.Value,
			Confidence: incoming,
			Source:     source,
			Evidence:   obs.Evidence,
			UpdatedAt:  now,
		}
		*s = append(*s, result)
	}

	if obs.Type.Competitive() {
		for i := range *s {
			b := &(*s)[i]
			if b.Type != obs.Type || b.Value == obs.Value {
				continue
			}
			if b.Confidence <= PenaltyFloor {
				continue
			}
			b.Confidence = max(PenaltyFloor, b.Confidence-CompetitivePenalty)
			b.UpdatedAt = now
		}
	}

	return result
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
