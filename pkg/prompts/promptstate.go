package prompts

import (
	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
)

// PromptBelief is a belief reduced to what a prompt needs.
type PromptBelief struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// PromptState is the character state included in collaborator prompts.
type PromptState struct {
	Character     string         `json:"character"`
	Player        string         `json:"player,omitempty"`
	Scene         string         `json:"scene,omitempty"`
	Relationship  string         `json:"relationship"`
	Trust         int            `json:"trust"`
	Emotion       string         `json:"current_emotion,omitempty"`
	PlayerBeliefs []PromptBelief `json:"beliefs_about_player,omitempty"`
	SelfBeliefs   []PromptBelief `json:"beliefs_about_self,omitempty"`
}

// ToPromptState reduces a collaborator context for prompt assembly.
func ToPromptState(c cognition.Context) *PromptState {
	name := c.NPCName
	if name == "" {
		name = c.NPCID
	}
	return &PromptState{
		Character:     name,
		Player:        c.PlayerName,
		Scene:         c.Scene,
		Relationship:  c.RelationshipLabel,
		Trust:         c.Trust,
		Emotion:       c.DominantEmotion,
		PlayerBeliefs: playerBeliefs(c.PlayerBeliefs),
		SelfBeliefs:   selfBeliefs(c.SelfBeliefs),
	}
}

func playerBeliefs(in []belief.Belief) []PromptBelief {
	if len(in) == 0 {
		return nil
	}
	out := make([]PromptBelief, 0, len(in))
	for _, b := range in {
		out = append(out, PromptBelief{Type: string(b.Type), Value: b.Value, Confidence: round2(b.Confidence)})
	}
	return out
}

func selfBeliefs(in []belief.SelfBelief) []PromptBelief {
	if len(in) == 0 {
		return nil
	}
	out := make([]PromptBelief, 0, len(in))
	for _, b := range in {
		out = append(out, PromptBelief{Type: b.Type, Value: b.Value, Confidence: round2(b.Confidence)})
	}
	return out
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
