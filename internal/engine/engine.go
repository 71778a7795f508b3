// Package engine applies the synchronous, turn-level updates to an NPC's
// cognitive state and exports that state read-only.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jwebster45206/npc-engine/internal/lock"
	"github.com/jwebster45206/npc-engine/internal/services/events"
	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/persona"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

const (
	// OffensivePenalty is applied on top of the classification delta when a
	// line is offensive.
	OffensivePenalty = -50
	OffensiveNote    = "[player spoke offensively or disrespectfully]"

	DialogueTimeout = 30 * time.Second
)

// ErrNoPlayerTurn is returned by NPCTurn when there is no pending player
// line for the NPC to answer.
var ErrNoPlayerTurn = errors.New("no pending player turn to answer")

// Consolidation schedules background memory passes.
type Consolidation interface {
	Trigger(npcID, userID string) bool
	// Running reports whether a pass for the pair is in progress.
	Running(npcID, userID string) bool
}

// Engine runs player and NPC turns. Turns for the same NPC are serialized
// because the NPC's emotion state is shared by all of its players.
type Engine struct {
	storage       storage.Storage
	cognition     cognition.Cognition
	consolidation Consolidation
	publisher     events.Publisher
	logger        *slog.Logger
	snapshotMin   float64

	locks *lock.KeyedMutex
	now   func() time.Time
}

func New(store storage.Storage, cog cognition.Cognition, consolidation Consolidation, publisher events.Publisher, logger *slog.Logger, snapshotMin float64) *Engine {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if snapshotMin <= 0 {
		snapshotMin = belief.DefaultSnapshotMin
	}
	return &Engine{
		storage:       store,
		cognition:     cog,
		consolidation: consolidation,
		publisher:     publisher,
		logger:        logger,
		snapshotMin:   snapshotMin,
		locks:         lock.NewKeyedMutex(),
		now:           time.Now,
	}
}

// PlayerTurnResult is what a player line changed.
type PlayerTurnResult struct {
	TurnID         int64                    `json:"turn_id"`
	Classification cognition.Classification `json:"classification"`
	TrustDelta     int                      `json:"trust_delta"`
	Trust          int                      `json:"trust"`
	Relationship   relationship.Label       `json:"relationship"`
	Emotion        emotion.Record           `json:"emotion"`
	Beliefs        []belief.Belief          `json:"beliefs,omitempty"`
}

// NPCTurnResult is what an NPC line changed.
type NPCTurnResult struct {
	TurnID      int64               `json:"turn_id"`
	Reaction    cognition.Reaction  `json:"reaction"`
	Emotion     emotion.Record      `json:"emotion"`
	SelfBeliefs []belief.SelfBelief `json:"self_beliefs,omitempty"`
	// Consolidating is false when a pass for the pair was already running.
	Consolidating bool `json:"consolidating"`
}

// PlayerTurn records a player line addressed to an NPC.
func (e *Engine) PlayerTurn(ctx context.Context, npcID, userID, text string) (*PlayerTurnResult, error) {
	return e.playerTurn(ctx, chat.InteractRequest{NPCID: npcID, UserID: userID, PlayerText: text})
}

func (e *Engine) playerTurn(ctx context.Context, req chat.InteractRequest) (*PlayerTurnResult, error) {
	e.locks.Lock(req.NPCID)
	defer e.locks.Unlock(req.NPCID)

	log := e.logger.With("npc_id", req.NPCID, "user_id", req.UserID)
	now := e.now()

	rel, err := e.storage.EnsureRelationship(ctx, req.NPCID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure relationship: %w", err)
	}
	p, err := e.persona(ctx, req.NPCID)
	if err != nil {
		return nil, err
	}
	if err := e.seedPersona(ctx, log, p, now); err != nil {
		return nil, err
	}

	emotions, err := e.storage.LoadEmotions(ctx, req.NPCID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emotions: %w", err)
	}
	emotions.Decay(p.Decay())

	cc, err := e.context(ctx, p, rel, emotions, req)
	if err != nil {
		return nil, err
	}

	cls, err := e.cognition.Classify(ctx, req.PlayerText, cc)
	if err != nil {
		log.Warn("Classification failed, using defaults", "error", err)
		cls = cognition.DefaultClassification()
	}
	cls, err = cls.Normalize()
	if err != nil {
		log.Warn("Classification had invalid fields", "error", err)
	}

	before := rel.Trust
	var note string
	if cls.Offensive {
		// The penalty lands first and is clamped on its own.
		rel.ApplyDelta(OffensivePenalty)
		note = OffensiveNote
	}
	rel.ApplyDelta(cognition.TrustDelta(cls))
	rel.UpdatedAt = now
	if err := e.storage.SaveRelationship(ctx, rel); err != nil {
		return nil, fmt.Errorf("failed to save relationship: %w", err)
	}

	stored := emotions.SetDominant(cls.Emotion, cls.Intensity, p.React())
	if err := e.storage.SaveEmotions(ctx, req.NPCID, emotions); err != nil {
		return nil, fmt.Errorf("failed to save emotions: %w", err)
	}

	reinforced, err := e.reinforcePlayerBeliefs(ctx, log, req, cc, now)
	if err != nil {
		return nil, err
	}

	entry := &memory.TurnEntry{
		NPCID:           req.NPCID,
		UserID:          req.UserID,
		PlayerText:      &req.PlayerText,
		PlayerEmotion:   cls.Emotion,
		PlayerIntensity: cls.Intensity,
		TrustSnapshot:   rel.Trust,
		TrustDelta:      rel.Trust - before,
		Note:            note,
		CreatedAt:       now,
	}
	if err := e.storage.AppendTurn(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append player turn: %w", err)
	}
	if err := e.storage.AppendClassification(ctx, cognition.ClassificationRecord{
		NPCID:          req.NPCID,
		UserID:         req.UserID,
		Classification: cls,
		TrustDelta:     entry.TrustDelta,
		CreatedAt:      now,
	}); err != nil {
		// The log is for reporting only.
		log.Warn("Failed to record classification", "error", err)
	}

	log.Info("Player turn recorded",
		"turn_id", entry.ID,
		"sentiment", cls.Sentiment,
		"offensive", cls.Offensive,
		"trust", rel.Trust,
		"trust_delta", entry.TrustDelta,
		"emotion", cls.Emotion)

	dominant, _ := emotions.Dominant()
	e.publishState(ctx, log, rel, dominant)
	e.publish(ctx, log, events.Event{
		Type:   events.EventTypeTurnRecorded,
		NPCID:  req.NPCID,
		UserID: req.UserID,
		Data:   map[string]any{"turn_id": entry.ID, "speaker": string(memory.SpeakerPlayer)},
	})

	return &PlayerTurnResult{
		TurnID:         entry.ID,
		Classification: cls,
		TrustDelta:     entry.TrustDelta,
		Trust:          rel.Trust,
		Relationship:   rel.Label(),
		Emotion:        emotion.Record{Emotion: cls.Emotion, Intensity: stored},
		Beliefs:        reinforced,
	}, nil
}

func (e *Engine) reinforcePlayerBeliefs(ctx context.Context, log *slog.Logger, req chat.InteractRequest, cc cognition.Context, now time.Time) ([]belief.Belief, error) {
	observations, err := e.cognition.ExtractBeliefs(ctx, req.PlayerText, cc)
	if err != nil {
		log.Warn("Belief extraction failed, skipping", "error", err)
		return nil, nil
	}
	observations = belief.Dedupe(observations)
	if len(observations) == 0 {
		return nil, nil
	}

	set, err := e.storage.LoadPlayerBeliefs(ctx, req.NPCID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load player beliefs: %w", err)
	}
	out := make([]belief.Belief, 0, len(observations))
	for _, obs := range observations {
		out = append(out, set.ReinforceOrInsert(req.NPCID, req.UserID, obs, now))
	}
	if err := e.storage.SavePlayerBeliefs(ctx, req.NPCID, req.UserID, set); err != nil {
		return nil, fmt.Errorf("failed to save player beliefs: %w", err)
	}
	log.Debug("Player beliefs reinforced", "count", len(out))
	return out, nil
}

// NPCTurn records the NPC's answer to the latest pending player line and
// schedules consolidation.
func (e *Engine) NPCTurn(ctx context.Context, npcID, userID, npcText string) (*NPCTurnResult, error) {
	e.locks.Lock(npcID)
	defer e.locks.Unlock(npcID)

	log := e.logger.With("npc_id", npcID, "user_id", userID)
	now := e.now()

	pending, err := e.storage.PendingTurns(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending turns: %w", err)
	}
	playerText, ok := lastPlayerText(pending)
	if !ok {
		return nil, ErrNoPlayerTurn
	}

	rel, err := e.storage.EnsureRelationship(ctx, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure relationship: %w", err)
	}
	p, err := e.persona(ctx, npcID)
	if err != nil {
		return nil, err
	}
	emotions, err := e.storage.LoadEmotions(ctx, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emotions: %w", err)
	}
	cc, err := e.context(ctx, p, rel, emotions, chat.InteractRequest{NPCID: npcID, UserID: userID})
	if err != nil {
		return nil, err
	}

	reaction, err := e.cognition.React(ctx, playerText, npcText, cc)
	if err != nil {
		log.Warn("Reaction failed, using defaults", "error", err)
		reaction = cognition.Reaction{Emotion: emotion.Fallback}
	}
	reaction, err = reaction.Normalize()
	if err != nil {
		log.Warn("Reaction had invalid fields", "error", err)
	}

	stored := emotions.SetDominant(reaction.Emotion, reaction.Intensity, p.React())
	if err := e.storage.SaveEmotions(ctx, npcID, emotions); err != nil {
		return nil, fmt.Errorf("failed to save emotions: %w", err)
	}

	selfBeliefs, err := e.reinforceSelfBeliefs(ctx, log, npcID, npcText, cc, now)
	if err != nil {
		return nil, err
	}

	entry := &memory.TurnEntry{
		NPCID:         npcID,
		UserID:        userID,
		NPCText:       &npcText,
		NPCEmotion:    reaction.Emotion,
		NPCIntensity:  stored,
		TrustSnapshot: rel.Trust,
		CreatedAt:     now,
	}
	if err := e.storage.AppendTurn(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to append npc turn: %w", err)
	}

	log.Info("NPC turn recorded", "turn_id", entry.ID, "emotion", reaction.Emotion, "intensity", stored)

	dominant, _ := emotions.Dominant()
	e.publishState(ctx, log, rel, dominant)
	e.publish(ctx, log, events.Event{
		Type:   events.EventTypeTurnRecorded,
		NPCID:  npcID,
		UserID: userID,
		Data:   map[string]any{"turn_id": entry.ID, "speaker": string(memory.SpeakerNPC)},
	})

	result := &NPCTurnResult{
		TurnID:      entry.ID,
		Reaction:    reaction,
		Emotion:     emotion.Record{Emotion: reaction.Emotion, Intensity: stored},
		SelfBeliefs: selfBeliefs,
	}
	if e.consolidation != nil {
		result.Consolidating = e.consolidation.Trigger(npcID, userID)
	}
	return result, nil
}

func (e *Engine) reinforceSelfBeliefs(ctx context.Context, log *slog.Logger, npcID, npcText string, cc cognition.Context, now time.Time) ([]belief.SelfBelief, error) {
	observations, err := e.cognition.ExtractSelfBeliefs(ctx, npcText, cc)
	if err != nil {
		log.Warn("Self-belief extraction failed, skipping", "error", err)
		return nil, nil
	}
	observations = belief.DedupeSelf(observations)
	if len(observations) == 0 {
		return nil, nil
	}

	set, err := e.storage.LoadSelfBeliefs(ctx, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load self beliefs: %w", err)
	}
	out := make([]belief.SelfBelief, 0, len(observations))
	for _, obs := range observations {
		out = append(out, set.Reinforce(npcID, obs, now))
	}
	if err := e.storage.SaveSelfBeliefs(ctx, npcID, set); err != nil {
		return nil, fmt.Errorf("failed to save self beliefs: %w", err)
	}
	return out, nil
}

// Interact runs a full exchange: the player's line, the NPC's generated
// answer, and the NPC's reaction to it.
func (e *Engine) Interact(ctx context.Context, req chat.InteractRequest) (*chat.InteractResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	pt, err := e.playerTurn(ctx, req)
	if err != nil {
		return nil, err
	}

	cc, err := e.snapshotContext(ctx, req)
	if err != nil {
		return nil, err
	}
	dialogueCtx, cancel := context.WithTimeout(ctx, DialogueTimeout)
	defer cancel()
	reply, err := e.cognition.Respond(dialogueCtx, req.PlayerText, cc)
	if err != nil {
		return nil, fmt.Errorf("dialogue generation failed: %w", err)
	}

	nt, err := e.NPCTurn(ctx, req.NPCID, req.UserID, reply)
	if err != nil {
		return nil, err
	}

	return &chat.InteractResponse{
		RequestID:    req.RequestID,
		NPCID:        req.NPCID,
		UserID:       req.UserID,
		NPCText:      reply,
		Relationship: string(pt.Relationship),
		Trust:        pt.Trust,
		TrustDelta:   pt.TrustDelta,
		NPCEmotion:   nt.Emotion.Emotion,
		NPCIntensity: nt.Emotion.Intensity,
	}, nil
}

// snapshotContext reloads state for dialogue generation after the player
// turn has been applied.
func (e *Engine) snapshotContext(ctx context.Context, req chat.InteractRequest) (cognition.Context, error) {
	rel, err := e.storage.EnsureRelationship(ctx, req.NPCID, req.UserID)
	if err != nil {
		return cognition.Context{}, fmt.Errorf("failed to ensure relationship: %w", err)
	}
	p, err := e.persona(ctx, req.NPCID)
	if err != nil {
		return cognition.Context{}, err
	}
	emotions, err := e.storage.LoadEmotions(ctx, req.NPCID)
	if err != nil {
		return cognition.Context{}, fmt.Errorf("failed to load emotions: %w", err)
	}
	return e.context(ctx, p, rel, emotions, req)
}

func (e *Engine) context(ctx context.Context, p *persona.Persona, rel *relationship.Relationship, emotions emotion.State, req chat.InteractRequest) (cognition.Context, error) {
	player, err := e.storage.LoadPlayerBeliefs(ctx, req.NPCID, req.UserID)
	if err != nil {
		return cognition.Context{}, fmt.Errorf("failed to load player beliefs: %w", err)
	}
	self, err := e.storage.LoadSelfBeliefs(ctx, req.NPCID)
	if err != nil {
		return cognition.Context{}, fmt.Errorf("failed to load self beliefs: %w", err)
	}
	doc, err := e.storage.LoadMemory(ctx, req.NPCID, req.UserID)
	if err != nil {
		return cognition.Context{}, fmt.Errorf("failed to load memory: %w", err)
	}

	cc := cognition.Context{
		NPCID:             req.NPCID,
		NPCName:           p.Name,
		NPCDescription:    p.Description,
		UserID:            req.UserID,
		PlayerName:        req.PlayerName,
		Scene:             req.Scene,
		RelationshipLabel: string(rel.Label()),
		Trust:             rel.Trust,
		PlayerBeliefs:     player.Snapshot(e.snapshotMin),
		SelfBeliefs:       self.Snapshot(e.snapshotMin),
		Memory:            doc,
	}
	if d, ok := emotions.Dominant(); ok {
		cc.DominantEmotion = d.Emotion
	}
	return cc, nil
}

func (e *Engine) persona(ctx context.Context, npcID string) (*persona.Persona, error) {
	p, err := e.storage.GetPersona(ctx, npcID)
	if errors.Is(err, storage.ErrNotFound) {
		return persona.Default(npcID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load persona: %w", err)
	}
	return p, nil
}

// seedPersona gives an NPC the self-beliefs its persona starts with. Seeds
// the NPC already holds are left alone.
func (e *Engine) seedPersona(ctx context.Context, log *slog.Logger, p *persona.Persona, now time.Time) error {
	if len(p.SelfBeliefs) == 0 {
		return nil
	}
	set, err := e.storage.LoadSelfBeliefs(ctx, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load self beliefs: %w", err)
	}
	if n := p.Seed(&set, now); n > 0 {
		if err := e.storage.SaveSelfBeliefs(ctx, p.ID, set); err != nil {
			return fmt.Errorf("failed to save seeded self beliefs: %w", err)
		}
		log.Info("Seeded persona self-beliefs", "count", n)
	}
	return nil
}

func (e *Engine) publishState(ctx context.Context, log *slog.Logger, rel *relationship.Relationship, dominant emotion.Record) {
	e.publish(ctx, log, events.Event{
		Type:   events.EventTypeStateUpdated,
		NPCID:  rel.NPCID,
		UserID: rel.UserID,
		Data: map[string]any{
			"relationship": string(rel.Label()),
			"trust":        rel.Trust,
			"emotion":      dominant.Emotion,
			"intensity":    dominant.Intensity,
		},
	})
}

func (e *Engine) publish(ctx context.Context, log *slog.Logger, event events.Event) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		log.Warn("Failed to publish event", "event_type", event.Type, "error", err)
	}
}

func lastPlayerText(pending []memory.TurnEntry) (string, bool) {
	for i := len(pending) - 1; i >= 0; i-- {
		if pending[i].IsNPC() {
			return "", false
		}
		if pending[i].IsPlayer() {
			return *pending[i].PlayerText, true
		}
	}
	return "", false
}
