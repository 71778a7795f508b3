package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/memory"
)

// Turn buffer operations

func (s *SQLiteStorage) AppendTurn(ctx context.Context, entry *memory.TurnEntry) error {
	if entry == nil {
		return errors.New("turn entry cannot be nil")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	entry.Status = memory.StatusPending
	entry.Processed = false

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO turn_buffer (
			npc_id, user_id, player_text, npc_text,
			player_emotion, player_intensity, npc_emotion, npc_intensity,
			trust_snapshot, trust_delta, note, created_at, processed, status
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?)
	`,
		entry.NPCID, entry.UserID, nullString(entry.PlayerText), nullString(entry.NPCText),
		entry.PlayerEmotion, entry.PlayerIntensity, entry.NPCEmotion, entry.NPCIntensity,
		entry.TrustSnapshot, entry.TrustDelta, entry.Note, entry.CreatedAt.UTC(), string(memory.StatusPending),
	)
	if err != nil {
		s.logger.Error("Failed to append turn", "npc_id", entry.NPCID, "user_id", entry.UserID, "error", err)
		return fmt.Errorf("failed to append turn: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read turn id: %w", err)
	}
	entry.ID = id
	return nil
}

func (s *SQLiteStorage) PendingTurns(ctx context.Context, npcID, userID string) ([]memory.TurnEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, player_text, npc_text, player_emotion, player_intensity, npc_emotion, npc_intensity,
			trust_snapshot, trust_delta, note, created_at, processed, status
		FROM turn_buffer
		WHERE npc_id = ? AND user_id = ? AND status = ?
		ORDER BY id
	`, npcID, userID, string(memory.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending turns: %w", err)
	}
	defer rows.Close()

	var turns []memory.TurnEntry
	for rows.Next() {
		t := memory.TurnEntry{NPCID: npcID, UserID: userID}
		var player, npc sql.NullString
		var status string
		if err := rows.Scan(
			&t.ID, &player, &npc, &t.PlayerEmotion, &t.PlayerIntensity, &t.NPCEmotion, &t.NPCIntensity,
			&t.TrustSnapshot, &t.TrustDelta, &t.Note, &t.CreatedAt, &t.Processed, &status,
		); err != nil {
			return nil, fmt.Errorf("failed to scan turn: %w", err)
		}
		if player.Valid {
			t.PlayerText = &player.String
		}
		if npc.Valid {
			t.NPCText = &npc.String
		}
		t.Status = memory.Status(status)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (s *SQLiteStorage) MarkProcessed(ctx context.Context, npcID, userID string, ids []int64) error {
	return s.transition(ctx, npcID, userID, ids, memory.StatusProcessed)
}

func (s *SQLiteStorage) ArchiveTurns(ctx context.Context, npcID, userID string, ids []int64) error {
	return s.transition(ctx, npcID, userID, ids, memory.StatusSuperseded)
}

// transition moves rows that are still pending; the status guard in the
// WHERE clause makes a repeated call a no-op.
func (s *SQLiteStorage) transition(ctx context.Context, npcID, userID string, ids []int64, to memory.Status) error {
	if len(ids) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `
				UPDATE turn_buffer SET status = ?, processed = ?
				WHERE id = ? AND npc_id = ? AND user_id = ? AND status = ?
			`, string(to), to == memory.StatusProcessed, id, npcID, userID, string(memory.StatusPending)); err != nil {
				return fmt.Errorf("failed to mark turn %d %s: %w", id, to, err)
			}
		}
		return nil
	})
}

// Memory document operations

func (s *SQLiteStorage) LoadMemory(ctx context.Context, npcID, userID string) (string, error) {
	var doc string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM memory_documents WHERE npc_id = ? AND user_id = ?`, npcID, userID,
	).Scan(&doc)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load memory: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStorage) SaveMemory(ctx context.Context, npcID, userID string, doc string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_documents (npc_id, user_id, document, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (npc_id, user_id) DO UPDATE SET
			document = excluded.document,
			updated_at = excluded.updated_at
	`, npcID, userID, doc, time.Now().UTC())
	if err != nil {
		s.logger.Error("Failed to save memory", "npc_id", npcID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to save memory: %w", err)
	}
	return nil
}

// Classification log operations

func (s *SQLiteStorage) AppendClassification(ctx context.Context, rec cognition.ClassificationRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	c := rec.Classification
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO classification_log (npc_id, user_id, sentiment, intensity, offensive, emotion, target, trust_delta, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.NPCID, rec.UserID, string(c.Sentiment), c.Intensity, c.Offensive, c.Emotion, string(c.Target), rec.TrustDelta, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append classification: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListClassifications(ctx context.Context, npcID, userID string) ([]cognition.ClassificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sentiment, intensity, offensive, emotion, target, trust_delta, created_at
		FROM classification_log
		WHERE npc_id = ? AND user_id = ?
		ORDER BY id
	`, npcID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list classifications: %w", err)
	}
	defer rows.Close()

	var out []cognition.ClassificationRecord
	for rows.Next() {
		rec := cognition.ClassificationRecord{NPCID: npcID, UserID: userID}
		c := &rec.Classification
		var sentiment, target string
		if err := rows.Scan(&sentiment, &c.Intensity, &c.Offensive, &c.Emotion, &target, &rec.TrustDelta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan classification: %w", err)
		}
		c.Sentiment = cognition.Sentiment(sentiment)
		c.Target = cognition.Target(target)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
