package storage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/persona"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// RedisStorage implements the Storage interface using Redis for NPC state
// and the filesystem for personas.
type RedisStorage struct {
	client   *redis.Client
	logger   *slog.Logger
	personas *personaLoader
}

// Ensure RedisStorage implements Storage interface
var _ storage.Storage = (*RedisStorage)(nil)

// NewRedisStorage creates a new Redis storage instance. redisURL may be a
// host:port address or a redis:// URL.
func NewRedisStorage(redisURL string, dataDir string, logger *slog.Logger) (*RedisStorage, error) {
	opts, err := redisOptions(redisURL)
	if err != nil {
		return nil, err
	}
	return NewRedisStorageWithClient(redis.NewClient(opts), dataDir, logger), nil
}

// NewRedisStorageWithClient wraps an existing client.
func NewRedisStorageWithClient(client *redis.Client, dataDir string, logger *slog.Logger) *RedisStorage {
	return &RedisStorage{
		client:   client,
		logger:   logger,
		personas: newPersonaLoader(dataDir, logger),
	}
}

func redisOptions(redisURL string) (*redis.Options, error) {
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return opts, nil
	}
	return &redis.Options{Addr: redisURL}, nil
}

// Client exposes the underlying client so the broadcaster and the
// consolidation lock can share the connection pool.
func (r *RedisStorage) Client() *redis.Client {
	return r.client
}

// Health and lifecycle methods

func (r *RedisStorage) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (r *RedisStorage) Close() error {
	if err := r.client.Close(); err != nil {
		r.logger.Error("Failed to close Redis connection", "error", err)
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// WaitForConnection waits for Redis to become available (used during startup)
func (r *RedisStorage) WaitForConnection(ctx context.Context) error {
	maxRetries := 30
	retryDelay := 2 * time.Second

	for i := 0; i < maxRetries; i++ {
		if err := r.Ping(ctx); err != nil {
			r.logger.Debug("Redis not ready yet", "error", err, "attempt", i+1)

			select {
			case <-ctx.Done():
				return fmt.Errorf("context cancelled while waiting for redis: %w", ctx.Err())
			case <-time.After(retryDelay):
				continue
			}
		}

		r.logger.Info("Redis connection established")
		return nil
	}

	return fmt.Errorf("redis did not become available after %d attempts", maxRetries)
}

// Key layout

func relationshipKey(npcID, userID string) string { return "rel:" + npcID + ":" + userID }
func emotionsKey(npcID string) string             { return "emotions:" + npcID }
func beliefsKey(npcID, userID string) string      { return "beliefs:" + npcID + ":" + userID }
func selfBeliefsKey(npcID string) string          { return "selfbeliefs:" + npcID }
func turnsKey(npcID, userID string) string        { return "turns:" + npcID + ":" + userID }
func turnStatusKey(npcID, userID string) string   { return turnsKey(npcID, userID) + ":status" }
func pendingKey(npcID, userID string) string      { return turnsKey(npcID, userID) + ":pending" }
func memoryKey(npcID, userID string) string       { return "memory:" + npcID + ":" + userID }
func classificationsKey(npcID, userID string) string {
	return "classifications:" + npcID + ":" + userID
}

const turnSequenceKey = "turns:seq"

// beliefField is the hash field for one (type, value) row.
func beliefField(t, value string) string { return t + "\x1f" + value }

// Persona operations (filesystem-backed)

func (r *RedisStorage) GetPersona(ctx context.Context, npcID string) (*persona.Persona, error) {
	return r.personas.get(npcID)
}
