package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// Relationship operations

func (r *RedisStorage) EnsureRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	rel := relationship.New(npcID, userID)
	rel.UpdatedAt = time.Now()
	data, err := json.Marshal(rel)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal relationship: %w", err)
	}

	created, err := r.client.SetNX(ctx, relationshipKey(npcID, userID), data, 0).Result()
	if err != nil {
		r.logger.Error("Failed to ensure relationship", "npc_id", npcID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to ensure relationship: %w", err)
	}
	if created {
		r.logger.Debug("Relationship created", "npc_id", npcID, "user_id", userID)
		return rel, nil
	}
	return r.LoadRelationship(ctx, npcID, userID)
}

func (r *RedisStorage) LoadRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	data, err := r.client.Get(ctx, relationshipKey(npcID, userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}

	var rel relationship.Relationship
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("failed to unmarshal relationship: %w", err)
	}
	return &rel, nil
}

func (r *RedisStorage) SaveRelationship(ctx context.Context, rel *relationship.Relationship) error {
	if rel == nil {
		return errors.New("relationship cannot be nil")
	}
	rel.UpdatedAt = time.Now()
	data, err := json.Marshal(rel)
	if err != nil {
		return fmt.Errorf("failed to marshal relationship: %w", err)
	}
	if err := r.client.Set(ctx, relationshipKey(rel.NPCID, rel.UserID), data, 0).Err(); err != nil {
		r.logger.Error("Failed to save relationship", "npc_id", rel.NPCID, "user_id", rel.UserID, "error", err)
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

// Emotion operations

func (r *RedisStorage) LoadEmotions(ctx context.Context, npcID string) (emotion.State, error) {
	raw, err := r.client.HGetAll(ctx, emotionsKey(npcID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load emotions: %w", err)
	}

	state := make(emotion.State, len(raw))
	for name, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.logger.Warn("Skipping malformed emotion intensity", "npc_id", npcID, "emotion", name, "value", v)
			continue
		}
		state[name] = f
	}
	return state, nil
}

func (r *RedisStorage) SaveEmotions(ctx context.Context, npcID string, state emotion.State) error {
	key := emotionsKey(npcID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(state) == 0 {
			return nil
		}
		values := make(map[string]any, len(state))
		for name, v := range state {
			values[name] = strconv.FormatFloat(v, 'f', -1, 64)
		}
		pipe.HSet(ctx, key, values)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to save emotions", "npc_id", npcID, "error", err)
		return fmt.Errorf("failed to save emotions: %w", err)
	}
	return nil
}

// Belief operations

func (r *RedisStorage) LoadPlayerBeliefs(ctx context.Context, npcID, userID string) (belief.Set, error) {
	raw, err := r.client.HGetAll(ctx, beliefsKey(npcID, userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load beliefs: %w", err)
	}

	set := make(belief.Set, 0, len(raw))
	for field, v := range raw {
		var b belief.Belief
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			r.logger.Warn("Skipping malformed belief", "npc_id", npcID, "user_id", userID, "field", field, "error", err)
			continue
		}
		set = append(set, b)
	}
	slices.SortFunc(set, func(a, b belief.Belief) int {
		return compareTypeValue(string(a.Type), a.Value, string(b.Type), b.Value)
	})
	return set, nil
}

func (r *RedisStorage) SavePlayerBeliefs(ctx context.Context, npcID, userID string, set belief.Set) error {
	if len(set) == 0 {
		return nil
	}
	values := make(map[string]any, len(set))
	for _, b := range set {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal belief: %w", err)
		}
		values[beliefField(string(b.Type), b.Value)] = data
	}
	if err := r.client.HSet(ctx, beliefsKey(npcID, userID), values).Err(); err != nil {
		r.logger.Error("Failed to save beliefs", "npc_id", npcID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to save beliefs: %w", err)
	}
	return nil
}

func (r *RedisStorage) LoadSelfBeliefs(ctx context.Context, npcID string) (belief.SelfSet, error) {
	raw, err := r.client.HGetAll(ctx, selfBeliefsKey(npcID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load self beliefs: %w", err)
	}

	set := make(belief.SelfSet, 0, len(raw))
	for field, v := range raw {
		var b belief.SelfBelief
		if err := json.Unmarshal([]byte(v), &b); err != nil {
			r.logger.Warn("Skipping malformed self belief", "npc_id", npcID, "field", field, "error", err)
			continue
		}
		set = append(set, b)
	}
	slices.SortFunc(set, func(a, b belief.SelfBelief) int {
		return compareTypeValue(a.Type, a.Value, b.Type, b.Value)
	})
	return set, nil
}

func (r *RedisStorage) SaveSelfBeliefs(ctx context.Context, npcID string, set belief.SelfSet) error {
	if len(set) == 0 {
		return nil
	}
	values := make(map[string]any, len(set))
	for _, b := range set {
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("failed to marshal self belief: %w", err)
		}
		values[beliefField(b.Type, b.Value)] = data
	}
	if err := r.client.HSet(ctx, selfBeliefsKey(npcID), values).Err(); err != nil {
		r.logger.Error("Failed to save self beliefs", "npc_id", npcID, "error", err)
		return fmt.Errorf("failed to save self beliefs: %w", err)
	}
	return nil
}

// compareTypeValue orders rows the way the SQL backend returns them.
func compareTypeValue(at, av, bt, bv string) int {
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	case av < bv:
		return -1
	case av > bv:
		return 1
	}
	return 0
}
