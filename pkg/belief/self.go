package belief

import "time"

// SelfBelief is a proposition an NPC holds about itself. Stability is its
// resistance to revision.
type SelfBelief struct {
	NPCID      string    `json:"npc_id"`
	Type       string    `json:"type"`
	Value      string    `json:"value"`
	Confidence float64   `json:"confidence"`
	Stability  float64   `json:"stability"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SelfObservation is incoming evidence for a self-belief. Stability only
// applies when the belief is new.
type SelfObservation struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Stability  float64 `json:"stability"`
}

// SelfSet is every self-belief one NPC holds.
type SelfSet []SelfBelief

func (s SelfSet) index(t, value string) int {
	for i := range s {
		if s[i].Type == t && s[i].Value == value {
			return i
		}
	}
	return -1
}

// Get returns the self-belief for (t, value), if held.
func (s SelfSet) Get(t, value string) (SelfBelief, bool) {
	if i := s.index(t, value); i >= 0 {
		return s[i], true
	}
	return SelfBelief{}, false
}

// Reinforce moves a held self-belief toward the incoming confidence by
// (incoming-old)*(1-stability): stability 1 never moves, stability 0 takes
// the incoming value outright. Unseen beliefs are inserted as given.
func (s *SelfSet) Reinforce(npcID string, obs SelfObservation, now time.Time) SelfBelief {
	incoming := clamp01(obs.Confidence)

	if i := s.index(obs.Type, obs.Value); i >= 0 {
		b := &(*s)[i]
		b.Confidence = clamp01(b.Confidence + (incoming-b.Confidence)*(1-b.Stability))
		b.UpdatedAt = now
		return *b
	}

	b := SelfBelief{
		NPCID:      npcID,
		Type:       obs.Type,
		Value:      obs.Value,
		Confidence: incoming,
		Stability:  clamp01(obs.Stability),
		UpdatedAt:  now,
	}
	*s = append(*s, b)
	return b
}

// Seed inserts a self-belief only if the NPC does not hold it yet.
func (s *SelfSet) Seed(npcID string, obs SelfObservation, now time.Time) bool {
	if s.index(obs.Type, obs.Value) >= 0 {
		return false
	}
	s.Reinforce(npcID, obs, now)
	return true
}
