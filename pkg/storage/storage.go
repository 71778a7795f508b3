package storage

import (
	"context"
	"errors"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/persona"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines every persistence operation the engine and the memory
// consolidator need. NPC state lives in the backing store; personas are
// loaded from the data directory.
type Storage interface {
	// Health and lifecycle
	Ping(ctx context.Context) error
	Close() error

	// Relationship ledger
	// EnsureRelationship creates the (npc,user) row at default trust if it
	// does not exist and returns the stored row either way.
	EnsureRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error)
	LoadRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error)
	SaveRelationship(ctx context.Context, rel *relationship.Relationship) error

	// Emotion state, one map per NPC
	LoadEmotions(ctx context.Context, npcID string) (emotion.State, error)
	SaveEmotions(ctx context.Context, npcID string, state emotion.State) error

	// Beliefs. Saves upsert every row of the set.
	LoadPlayerBeliefs(ctx context.Context, npcID, userID string) (belief.Set, error)
	SavePlayerBeliefs(ctx context.Context, npcID, userID string, set belief.Set) error
	LoadSelfBeliefs(ctx context.Context, npcID string) (belief.SelfSet, error)
	SaveSelfBeliefs(ctx context.Context, npcID string, set belief.SelfSet) error

	// Turn buffer
	// AppendTurn assigns the entry a new increasing ID and stores it pending.
	AppendTurn(ctx context.Context, entry *memory.TurnEntry) error
	// PendingTurns returns the pending rows for (npc,user) in ID order.
	PendingTurns(ctx context.Context, npcID, userID string) ([]memory.TurnEntry, error)
	// MarkProcessed moves pending rows to processed. Rows that are not
	// pending are left alone.
	MarkProcessed(ctx context.Context, npcID, userID string, ids []int64) error
	// ArchiveTurns moves pending rows to superseded without processing them.
	ArchiveTurns(ctx context.Context, npcID, userID string, ids []int64) error

	// Memory document, stored as encoded text and replaced whole
	LoadMemory(ctx context.Context, npcID, userID string) (string, error)
	SaveMemory(ctx context.Context, npcID, userID string, doc string) error

	// Classification log
	AppendClassification(ctx context.Context, rec cognition.ClassificationRecord) error
	ListClassifications(ctx context.Context, npcID, userID string) ([]cognition.ClassificationRecord, error)

	// Personas (filesystem-backed)
	GetPersona(ctx context.Context, npcID string) (*persona.Persona, error)
}
