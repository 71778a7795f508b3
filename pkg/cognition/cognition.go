// Package cognition defines the contracts for the external language
// capabilities the engine consumes, the safe defaults substituted when they
// misbehave, and the deterministic rules derived from their output.
package cognition

import (
	"context"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/memory"
)

// Context is what collaborators know about the NPC and the player when
// asked about a line.
type Context struct {
	NPCID             string              `json:"npc_id"`
	NPCName           string              `json:"npc_name,omitempty"`
	NPCDescription    string              `json:"npc_description,omitempty"`
	UserID            string              `json:"user_id"`
	PlayerName        string              `json:"player_name,omitempty"`
	Scene             string              `json:"scene,omitempty"`
	RelationshipLabel string              `json:"relationship"`
	Trust             int                 `json:"trust"`
	DominantEmotion   string              `json:"dominant_emotion,omitempty"`
	PlayerBeliefs     []belief.Belief     `json:"player_beliefs,omitempty"`
	SelfBeliefs       []belief.SelfBelief `json:"self_beliefs,omitempty"`
	// Memory is the encoded memory document, possibly empty.
	Memory string `json:"memory,omitempty"`
}

// SummaryRequest asks for the replacement text of the open scene after one
// more exchange.
type SummaryRequest struct {
	NPCID             string
	UserID            string
	RelationshipLabel string
	Trust             int
	SelfBeliefs       []belief.SelfBelief
	PlayerBeliefs     []belief.Belief
	// OpenScene is the encoded open scene, empty when there is none.
	OpenScene string
	// NextEpisode is the number the player's line should take.
	NextEpisode int
	Exchange    memory.Exchange
	// Compress asks the summarizer to fold older episodes into bullets.
	Compress bool
	Policy   string
	Now      time.Time
}

// Classifier labels a player line.
type Classifier interface {
	Classify(ctx context.Context, playerText string, c Context) (Classification, error)
}

// Reactor picks the NPC's emotional reaction to an exchange.
type Reactor interface {
	React(ctx context.Context, playerText, npcText string, c Context) (Reaction, error)
}

// BeliefExtractor infers beliefs about the player from a player line.
type BeliefExtractor interface {
	ExtractBeliefs(ctx context.Context, playerText string, c Context) ([]belief.Observation, error)
}

// SelfBeliefExtractor infers what the NPC revealed about itself.
type SelfBeliefExtractor interface {
	ExtractSelfBeliefs(ctx context.Context, npcText string, c Context) ([]belief.SelfObservation, error)
}

// Summarizer rewrites the open scene of a memory document.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// DialogueGenerator produces the NPC's next line.
type DialogueGenerator interface {
	Respond(ctx context.Context, playerText string, c Context) (string, error)
}

// Cognition is every capability the engine and consolidator call.
type Cognition interface {
	Classifier
	Reactor
	BeliefExtractor
	SelfBeliefExtractor
	Summarizer
	DialogueGenerator
}
