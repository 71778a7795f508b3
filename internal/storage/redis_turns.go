package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// transitionScript moves pending turn rows to a new status. A row moves only
// if it is still in the pending set, so each row transitions at most once.
// KEYS[1] pending set, KEYS[2] status hash, ARGV[1] new status, ARGV[2..] ids.
var transitionScript = redis.NewScript(`
local moved = 0
for i = 2, #ARGV do
	if redis.call("ZREM", KEYS[1], ARGV[i]) == 1 then
		redis.call("HSET", KEYS[2], ARGV[i], ARGV[1])
		moved = moved + 1
	end
end
return moved
`)

// Turn buffer operations

func (r *RedisStorage) AppendTurn(ctx context.Context, entry *memory.TurnEntry) error {
	if entry == nil {
		return errors.New("turn entry cannot be nil")
	}

	id, err := r.client.Incr(ctx, turnSequenceKey).Result()
	if err != nil {
		return fmt.Errorf("failed to allocate turn id: %w", err)
	}
	entry.ID = id
	entry.Status = memory.StatusPending
	entry.Processed = false
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal turn: %w", err)
	}

	field := strconv.FormatInt(id, 10)
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, turnsKey(entry.NPCID, entry.UserID), field, data)
		pipe.HSet(ctx, turnStatusKey(entry.NPCID, entry.UserID), field, string(memory.StatusPending))
		pipe.ZAdd(ctx, pendingKey(entry.NPCID, entry.UserID), redis.Z{Score: float64(id), Member: field})
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to append turn", "npc_id", entry.NPCID, "user_id", entry.UserID, "error", err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	return nil
}

func (r *RedisStorage) PendingTurns(ctx context.Context, npcID, userID string) ([]memory.TurnEntry, error) {
	ids, err := r.client.ZRange(ctx, pendingKey(npcID, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending turns: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	raw, err := r.client.HMGet(ctx, turnsKey(npcID, userID), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load pending turns: %w", err)
	}

	turns := make([]memory.TurnEntry, 0, len(raw))
	for i, v := range raw {
		s, ok := v.(string)
		if !ok {
			r.logger.Warn("Pending turn has no row", "npc_id", npcID, "user_id", userID, "turn_id", ids[i])
			continue
		}
		var t memory.TurnEntry
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal turn %s: %w", ids[i], err)
		}
		t.Status = memory.StatusPending
		t.Processed = false
		turns = append(turns, t)
	}
	return turns, nil
}

func (r *RedisStorage) MarkProcessed(ctx context.Context, npcID, userID string, ids []int64) error {
	return r.transition(ctx, npcID, userID, ids, memory.StatusProcessed)
}

func (r *RedisStorage) ArchiveTurns(ctx context.Context, npcID, userID string, ids []int64) error {
	return r.transition(ctx, npcID, userID, ids, memory.StatusSuperseded)
}

func (r *RedisStorage) transition(ctx context.Context, npcID, userID string, ids []int64, to memory.Status) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, string(to))
	for _, id := range ids {
		args = append(args, strconv.FormatInt(id, 10))
	}

	moved, err := transitionScript.Run(ctx, r.client,
		[]string{pendingKey(npcID, userID), turnStatusKey(npcID, userID)}, args...).Int()
	if err != nil {
		r.logger.Error("Failed to update turn status", "npc_id", npcID, "user_id", userID, "status", to, "error", err)
		return fmt.Errorf("failed to mark turns %s: %w", to, err)
	}
	r.logger.Debug("Turn status updated", "npc_id", npcID, "user_id", userID, "status", to, "moved", moved)
	return nil
}

// TurnStatus returns the stored status of one row.
func (r *RedisStorage) TurnStatus(ctx context.Context, npcID, userID string, id int64) (memory.Status, error) {
	s, err := r.client.HGet(ctx, turnStatusKey(npcID, userID), strconv.FormatInt(id, 10)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("turn %d: %w", id, storage.ErrNotFound)
		}
		return "", fmt.Errorf("failed to load turn status: %w", err)
	}
	return memory.Status(s), nil
}

// Memory document operations

func (r *RedisStorage) LoadMemory(ctx context.Context, npcID, userID string) (string, error) {
	doc, err := r.client.Get(ctx, memoryKey(npcID, userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load memory: %w", err)
	}
	return doc, nil
}

func (r *RedisStorage) SaveMemory(ctx context.Context, npcID, userID string, doc string) error {
	if err := r.client.Set(ctx, memoryKey(npcID, userID), doc, 0).Err(); err != nil {
		r.logger.Error("Failed to save memory", "npc_id", npcID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// Classification log operations

func (r *RedisStorage) AppendClassification(ctx context.Context, rec cognition.ClassificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal classification: %w", err)
	}
	if err := r.client.RPush(ctx, classificationsKey(rec.NPCID, rec.UserID), data).Err(); err != nil {
		return fmt.Errorf("failed to append classification: %w", err)
	}
	return nil
}

func (r *RedisStorage) ListClassifications(ctx context.Context, npcID, userID string) ([]cognition.ClassificationRecord, error) {
	raw, err := r.client.LRange(ctx, classificationsKey(npcID, userID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	out := make([]cognition.ClassificationRecord, 0, len(raw))
	for _, v := range raw {
		var rec cognition.ClassificationRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			r.logger.Warn("Skipping malformed classification", "npc_id", npcID, "user_id", userID, "error", err)
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}
