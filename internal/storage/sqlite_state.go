package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
	"github.com/jwebster45206/npc-engine/pkg/relationship"
	"github.com/jwebster45206/npc-engine/pkg/storage"
)

// Relationship operations

func (s *SQLiteStorage) EnsureRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (npc_id, user_id, trust, was_enemy, updated_at)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (npc_id, user_id) DO NOTHING
	`, npcID, userID, relationship.DefaultTrust, time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to ensure relationship", "npc_id", npcID, "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to ensure relationship: %w", err)
	}
	return s.LoadRelationship(ctx, npcID, userID)
}

func (s *SQLiteStorage) LoadRelationship(ctx context.Context, npcID, userID string) (*relationship.Relationship, error) {
	rel := &relationship.Relationship{NPCID: npcID, UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT trust, was_enemy, updated_at FROM relationships WHERE npc_id = ? AND user_id = ?
	`, npcID, userID).Scan(&rel.Trust, &rel.WasEnemy, &rel.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load relationship: %w", err)
	}
	return rel, nil
}

func (s *SQLiteStorage) SaveRelationship(ctx context.Context, rel *relationship.Relationship) error {
	if rel == nil {
		return errors.New("relationship cannot be nil")
	}
	rel.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO relationships (npc_id, user_id, trust, was_enemy, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (npc_id, user_id) DO UPDATE SET
			trust = excluded.trust,
			was_enemy = excluded.was_enemy,
			updated_at = excluded.updated_at
	`, rel.NPCID, rel.UserID, rel.Trust, rel.WasEnemy, rel.UpdatedAt)
	if err != nil {
		s.logger.Error("Failed to save relationship", "npc_id", rel.NPCID, "user_id", rel.UserID, "error", err)
		return fmt.Errorf("failed to save relationship: %w", err)
	}
	return nil
}

// Emotion operations

func (s *SQLiteStorage) LoadEmotions(ctx context.Context, npcID string) (emotion.State, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT emotion, intensity FROM npc_emotions WHERE npc_id = ?`, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load emotions: %w", err)
	}
	defer rows.Close()

	state := emotion.State{}
	for rows.Next() {
		var name string
		var intensity float64
		if err := rows.Scan(&name, &intensity); err != nil {
			return nil, fmt.Errorf("failed to scan emotion: %w", err)
		}
		state[name] = intensity
	}
	return state, rows.Err()
}

func (s *SQLiteStorage) SaveEmotions(ctx context.Context, npcID string, state emotion.State) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM npc_emotions WHERE npc_id = ?`, npcID); err != nil {
			return fmt.Errorf("failed to clear emotions: %w", err)
		}
		for name, intensity := range state {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO npc_emotions (npc_id, emotion, intensity) VALUES (?, ?, ?)`,
				npcID, name, intensity,
			); err != nil {
				return fmt.Errorf("failed to save emotion %s: %w", name, err)
			}
		}
		return nil
	})
}

// Belief operations

func (s *SQLiteStorage) LoadPlayerBeliefs(ctx context.Context, npcID, userID string) (belief.Set, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, value, confidence, source, evidence, updated_at
		FROM player_beliefs
		WHERE npc_id = ? AND user_id = ?
		ORDER BY type, value
	`, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load beliefs: %w", err)
	}
	defer rows.Close()

	var set belief.Set
	for rows.Next() {
		b := belief.Belief{NPCID: npcID, UserID: userID}
		if err := rows.Scan(&b.Type, &b.Value, &b.Confidence, &b.Source, &b.Evidence, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan belief: %w", err)
		}
		set = append(set, b)
	}
	return set, rows.Err()
}

func (s *SQLiteStorage) SavePlayerBeliefs(ctx context.Context, npcID, userID string, set belief.Set) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range set {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO player_beliefs (npc_id, user_id, type, value, confidence, source, evidence, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT (npc_id, user_id, type, value) DO UPDATE SET
					confidence = excluded.confidence,
					source = excluded.source,
					evidence = excluded.evidence,
					updated_at = excluded.updated_at
			`, npcID, userID, string(b.Type), b.Value, b.Confidence, b.Source, b.Evidence, b.UpdatedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to save belief %s/%s: %w", b.Type, b.Value, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) LoadSelfBeliefs(ctx context.Context, npcID string) (belief.SelfSet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, value, confidence, stability, updated_at
		FROM self_beliefs
		WHERE npc_id = ?
		ORDER BY type, value
	`, npcID)
	if err != nil {
		return nil, fmt.Errorf("failed to load self beliefs: %w", err)
	}
	defer rows.Close()

	var set belief.SelfSet
	for rows.Next() {
		b := belief.SelfBelief{NPCID: npcID}
		if err := rows.Scan(&b.Type, &b.Value, &b.Confidence, &b.Stability, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan self belief: %w", err)
		}
		set = append(set, b)
	}
	return set, rows.Err()
}

func (s *SQLiteStorage) SaveSelfBeliefs(ctx context.Context, npcID string, set belief.SelfSet) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, b := range set {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO self_beliefs (npc_id, type, value, confidence, stability, updated_at)
				VALUES (?, ?, ?, ?, ?, ?)
				ON CONFLICT (npc_id, type, value) DO UPDATE SET
					confidence = excluded.confidence,
					stability = excluded.stability,
					updated_at = excluded.updated_at
			`, npcID, b.Type, b.Value, b.Confidence, b.Stability, b.UpdatedAt.UTC())
			if err != nil {
				return fmt.Errorf("failed to save self belief %s/%s: %w", b.Type, b.Value, err)
			}
		}
		return nil
	})
}

// inTx runs fn in a transaction, rolling back on error.
func (s *SQLiteStorage) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		s.logger.Error("Transaction failed", "error", err)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
