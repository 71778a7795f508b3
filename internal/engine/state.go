package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// State is the read-only export of what an NPC feels, believes and
// remembers about one player.
type State struct {
	NPCID         string              `json:"npc_id"`
	UserID        string              `json:"user_id"`
	Relationship  relationship.Label  `json:"relationship"`
	Trust         int                 `json:"trust"`
	WasEnemy      bool                `json:"was_enemy"`
	Dominant      *emotion.Record     `json:"dominant_emotion,omitempty"`
	Secondary     *emotion.Record     `json:"secondary_emotion,omitempty"`
	Emotions      []emotion.Record    `json:"emotions"`
	PlayerBeliefs []belief.Belief     `json:"player_beliefs"`
	SelfBeliefs   []belief.SelfBelief `json:"self_beliefs"`
	Memory        string              `json:"memory"`
	PendingTurns  int                 `json:"pending_turns"`
	Consolidating bool                `json:"consolidating"`
	Stats         cognition.Stats     `json:"stats"`
}

// State exports the pair's state without changing it. A pair that has never
// interacted reports the first-contact relationship.
func (e *Engine) State(ctx context.Context, npcID, userID string) (*State, error) {
	rel, err := e.storage.LoadRelationship(ctx, npcID, userID)
	if errors.Is(err, storage.ErrNotFound) {
		rel = relationship.New(npcID, userID)
	} else if err != nil {
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}

	emotions, err := e.storage.LoadEmotions(ctx, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emotions: %w", err)
	}
	player, err := e.storage.LoadPlayerBeliefs(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player beliefs: %w", err)
	}
	self, err := e.storage.LoadSelfBeliefs(ctx, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load self beliefs: %w", err)
	}
	doc, err := e.storage.LoadMemory(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memory: %w", err)
	}
	pending, err := e.storage.PendingTurns(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending turns: %w", err)
	}
	records, err := e.storage.ListClassifications(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load classifications: %w", err)
	}

	st := &State{
		NPCID:         npcID,
		UserID:        userID,
		Relationship:  rel.Label(),
		Trust:         rel.Trust,
		WasEnemy:      rel.WasEnemy,
		Emotions:      emotions.Ranked(),
		PlayerBeliefs: player.Snapshot(e.snapshotMin),
		SelfBeliefs:   self.Snapshot(e.snapshotMin),
		Memory:        doc,
		PendingTurns:  len(pending),
		Consolidating: e.consolidation.Running(npcID, userID),
		Stats:         cognition.ComputeStats(records),
	}
	if d, ok := emotions.Dominant(); ok {
		st.Dominant = &d
	}
	if s, ok := emotions.Secondary(); ok {
		st.Secondary = &s
	}
	return st, nil
}
