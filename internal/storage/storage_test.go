package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRedis(t *testing.T, dataDir string) *RedisStorage {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStorageWithClient(client, dataDir, testLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestSQLite(t *testing.T, dataDir string) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "npc.db"), dataDir, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// backends runs fn against every Storage implementation.
func backends(t *testing.T, fn func(t *testing.T, s storage.Storage)) {
	dataDir := t.TempDir()
	t.Run("redis", func(t *testing.T) { fn(t, newTestRedis(t, dataDir)) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLite(t, dataDir)) })
	t.Run("mock", func(t *testing.T) { fn(t, storage.NewMockStorage()) })
}

func ptr(s string) *string { return &s }

func TestStorage_Relationship(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		_, err := s.LoadRelationship(ctx, "guard", "u1")
		assert.True(t, errors.Is(err, storage.ErrNotFound))

		rel, err := s.EnsureRelationship(ctx, "guard", "u1")
		require.NoError(t, err)
		assert.Equal(t, relationship.DefaultTrust, rel.Trust)
		assert.False(t, rel.WasEnemy)

		rel.ApplyDelta(-40)
		require.NoError(t, s.SaveRelationship(ctx, rel))

		// A second ensure must not reset the row.
		again, err := s.EnsureRelationship(ctx, "guard", "u1")
		require.NoError(t, err)
		assert.Equal(t, 10, again.Trust)
		assert.True(t, again.WasEnemy)
	})
}

func TestStorage_Emotions(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		state, err := s.LoadEmotions(ctx, "guard")
		require.NoError(t, err)
		assert.Empty(t, state)

		require.NoError(t, s.SaveEmotions(ctx, "guard", emotion.State{"angry": 0.7, "calm": 0.2}))
		require.NoError(t, s.SaveEmotions(ctx, "guard", emotion.State{"happy": 0.4}))

		state, err = s.LoadEmotions(ctx, "guard")
		require.NoError(t, err)
		assert.Equal(t, emotion.State{"happy": 0.4}, state)
	})
}

func TestStorage_Beliefs(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()
		now := time.Now()

		var set belief.Set
		set.ReinforceOrInsert("guard", "u1", belief.Observation{Type: belief.TypeGoal, Value: "find the relic", Confidence: 0.6}, now)
		set.ReinforceOrInsert("guard", "u1", belief.Observation{Type: belief.TypeCurrentEmotion, Value: "nervous", Confidence: 0.5}, now)
		require.NoError(t, s.SavePlayerBeliefs(ctx, "guard", "u1", set))

		set.ReinforceOrInsert("guard", "u1", belief.Observation{Type: belief.TypeGoal, Value: "find the relic", Confidence: 0.5}, now)
		require.NoError(t, s.SavePlayerBeliefs(ctx, "guard", "u1", set))

		loaded, err := s.LoadPlayerBeliefs(ctx, "guard", "u1")
		require.NoError(t, err)
		require.Len(t, loaded, 2)
		goal, ok := loaded.Get(belief.TypeGoal, "find the relic")
		require.True(t, ok)
		assert.InDelta(t, 0.8, goal.Confidence, 1e-9)

		other, err := s.LoadPlayerBeliefs(ctx, "guard", "u2")
		require.NoError(t, err)
		assert.Empty(t, other)

		var self belief.SelfSet
		self.Reinforce("guard", belief.SelfObservation{Type: "role", Value: "gatekeeper", Confidence: 0.9, Stability: 0.8}, now)
		require.NoError(t, s.SaveSelfBeliefs(ctx, "guard", self))
		loadedSelf, err := s.LoadSelfBeliefs(ctx, "guard")
		require.NoError(t, err)
		require.Len(t, loadedSelf, 1)
		assert.Equal(t, "gatekeeper", loadedSelf[0].Value)
		assert.InDelta(t, 0.8, loadedSelf[0].Stability, 1e-9)
	})
}

func TestStorage_TurnBuffer(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		player := &memory.TurnEntry{NPCID: "guard", UserID: "u1", PlayerText: ptr("Hello"), PlayerEmotion: "happy", PlayerIntensity: 0.4}
		npc := &memory.TurnEntry{NPCID: "guard", UserID: "u1", NPCText: ptr("Halt."), NPCEmotion: "calm", NPCIntensity: 0.3, TrustSnapshot: 52}
		require.NoError(t, s.AppendTurn(ctx, player))
		require.NoError(t, s.AppendTurn(ctx, npc))
		assert.Greater(t, npc.ID, player.ID)

		// Other pairs are isolated.
		require.NoError(t, s.AppendTurn(ctx, &memory.TurnEntry{NPCID: "guard", UserID: "u2", PlayerText: ptr("Hi")}))

		pending, err := s.PendingTurns(ctx, "guard", "u1")
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, player.ID, pending[0].ID)
		require.NotNil(t, pending[0].PlayerText)
		assert.Equal(t, "Hello", *pending[0].PlayerText)
		assert.Nil(t, pending[0].NPCText)
		assert.Equal(t, memory.StatusPending, pending[0].Status)
		assert.Equal(t, 52, pending[1].TrustSnapshot)

		require.NoError(t, s.MarkProcessed(ctx, "guard", "u1", []int64{player.ID}))
		require.NoError(t, s.ArchiveTurns(ctx, "guard", "u1", []int64{npc.ID}))

		// Repeating a transition is a no-op.
		require.NoError(t, s.MarkProcessed(ctx, "guard", "u1", []int64{player.ID, npc.ID}))
		require.NoError(t, s.MarkProcessed(ctx, "guard", "u1", nil))

		pending, err = s.PendingTurns(ctx, "guard", "u1")
		require.NoError(t, err)
		assert.Empty(t, pending)

		pending, err = s.PendingTurns(ctx, "guard", "u2")
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

func TestStorage_Memory(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		doc, err := s.LoadMemory(ctx, "guard", "u1")
		require.NoError(t, err)
		assert.Empty(t, doc)

		require.NoError(t, s.SaveMemory(ctx, "guard", "u1", "first"))
		require.NoError(t, s.SaveMemory(ctx, "guard", "u1", "second"))
		doc, err = s.LoadMemory(ctx, "guard", "u1")
		require.NoError(t, err)
		assert.Equal(t, "second", doc)
	})
}

func TestStorage_Classifications(t *testing.T) {
	backends(t, func(t *testing.T, s storage.Storage) {
		ctx := context.Background()

		for _, c := range []cognition.Classification{
			{Sentiment: cognition.SentimentHostile, Intensity: 0.9, Offensive: true, Emotion: "angry", Target: cognition.TargetNPC},
			{Sentiment: cognition.SentimentPositive, Intensity: 0.5, Emotion: "happy", Target: cognition.TargetNPC},
		} {
			require.NoError(t, s.AppendClassification(ctx, cognition.ClassificationRecord{
				NPCID: "guard", UserID: "u1", Classification: c, TrustDelta: cognition.TrustDelta(c),
			}))
		}

		recs, err := s.ListClassifications(ctx, "guard", "u1")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, cognition.SentimentHostile, recs[0].Classification.Sentiment)
		assert.True(t, recs[0].Classification.Offensive)
		assert.Equal(t, -5, recs[0].TrustDelta)
		assert.Equal(t, cognition.TargetNPC, recs[1].Classification.Target)
	})
}

func TestStorage_Personas(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "personas"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "personas", "guard.yaml"), []byte(`
name: Brannoc
description: A tired gate guard.
decay_rate: 0.8
self_beliefs:
  - type: role
    value: gatekeeper
    confidence: 0.9
    stability: 0.9
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "personas", "broken.yml"), []byte("decay_rate: 3"), 0o644))

	s := newTestRedis(t, dataDir)
	ctx := context.Background()

	p, err := s.GetPersona(ctx, "guard")
	require.NoError(t, err)
	assert.Equal(t, "guard", p.ID)
	assert.Equal(t, "Brannoc", p.Name)
	assert.InDelta(t, 0.8, p.Decay(), 1e-9)
	require.Len(t, p.SelfBeliefs, 1)

	_, err = s.GetPersona(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))

	_, err = s.GetPersona(ctx, "broken")
	assert.Error(t, err)

	_, err = s.GetPersona(ctx, "../guard")
	assert.Error(t, err)
}

func TestRedisStorage_TurnStatus(t *testing.T) {
	s := newTestRedis(t, t.TempDir())
	ctx := context.Background()

	a := &memory.TurnEntry{NPCID: "guard", UserID: "u1", PlayerText: ptr("one")}
	b := &memory.TurnEntry{NPCID: "guard", UserID: "u1", PlayerText: ptr("two")}
	require.NoError(t, s.AppendTurn(ctx, a))
	require.NoError(t, s.AppendTurn(ctx, b))

	require.NoError(t, s.ArchiveTurns(ctx, "guard", "u1", []int64{a.ID}))
	// Already superseded, must stay superseded.
	require.NoError(t, s.MarkProcessed(ctx, "guard", "u1", []int64{a.ID, b.ID}))

	st, err := s.TurnStatus(ctx, "guard", "u1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.StatusSuperseded, st)
	st, err = s.TurnStatus(ctx, "guard", "u1", b.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.StatusProcessed, st)

	_, err = s.TurnStatus(ctx, "guard", "u1", 999)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSQLiteStorage_MigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "npc.db")
	s, err := NewSQLiteStorage(path, t.TempDir(), testLogger())
	require.NoError(t, err)
	require.NoError(t, s.SaveMemory(context.Background(), "guard", "u1", "kept"))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(path, t.TempDir(), testLogger())
	require.NoError(t, err)
	defer s.Close()

	doc, err := s.LoadMemory(context.Background(), "guard", "u1")
	require.NoError(t, err)
	assert.Equal(t, "kept", doc)
}
