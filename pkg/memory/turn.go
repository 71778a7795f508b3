package memory

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of a buffered turn row.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessed  Status = "processed"
	StatusSuperseded Status = "superseded"
)

// TurnEntry is one buffered half-turn. Rows are write-once except Status
// and Processed.
type TurnEntry struct {
	ID              int64     `json:"id"`
	NPCID           string    `json:"npc_id"`
	UserID          string    `json:"user_id"`
	PlayerText      *string   `json:"player_text,omitempty"`
	NPCText         *string   `json:"npc_text,omitempty"`
	PlayerEmotion   string    `json:"player_emotion,omitempty"`
	PlayerIntensity float64   `json:"player_intensity,omitempty"`
	NPCEmotion      string    `json:"npc_emotion,omitempty"`
	NPCIntensity    float64   `json:"npc_intensity,omitempty"`
	TrustSnapshot   int       `json:"trust_snapshot"`
	TrustDelta      int       `json:"trust_delta"`
	Note            string    `json:"note,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Processed       bool      `json:"processed"`
	Status          Status    `json:"status"`
}

// IsPlayer reports whether the row carries player text.
func (t TurnEntry) IsPlayer() bool { return t.PlayerText != nil }

// IsNPC reports whether the row carries NPC text.
func (t TurnEntry) IsNPC() bool { return t.NPCText != nil }

// Exchange is one player turn and the NPC turn that answered it. Player and
// NPC may be the same row when one row carries both texts.
type Exchange struct {
	Player TurnEntry
	NPC    TurnEntry
}

// PlayerText returns the player's line.
func (e Exchange) PlayerText() string {
	if e.Player.PlayerText == nil {
		return ""
	}
	return *e.Player.PlayerText
}

// NPCText returns the NPC's line.
func (e Exchange) NPCText() string {
	if e.NPC.NPCText == nil {
		return ""
	}
	return *e.NPC.NPCText
}

// RowIDs returns the distinct buffer rows that make up the exchange.
func (e Exchange) RowIDs() []int64 {
	if e.Player.ID == e.NPC.ID {
		return []int64{e.Player.ID}
	}
	return []int64{e.Player.ID, e.NPC.ID}
}

// Fact describes what the player's turn did to the relationship: the trust
// change and any note the turn carries. It is empty when neither exists.
func (e Exchange) Fact() string {
	var parts []string
	if d := e.Player.TrustDelta; d != 0 {
		parts = append(parts, fmt.Sprintf("trust %+d (now %d)", d, e.Player.TrustSnapshot))
	}
	if note := strings.TrimSpace(e.Player.Note); note != "" {
		parts = append(parts, note)
	}
	return strings.Join(parts, "; ")
}

// AnnotateExchange records ex.Fact on the latest detailed episode holding
// the player's line, unless that episode already has a fact. It reports
// whether it wrote one.
func AnnotateExchange(scenes []Scene, ex Exchange) bool {
	fact := ex.Fact()
	said := strings.TrimSpace(ex.PlayerText())
	if fact == "" || said == "" {
		return false
	}
	for i := len(scenes) - 1; i >= 0; i-- {
		eps := scenes[i].Episodes
		for j := len(eps) - 1; j >= 0; j-- {
			if eps[j].Speaker != SpeakerPlayer || strings.TrimSpace(eps[j].Said) != said {
				continue
			}
			if eps[j].Fact != "" {
				return false
			}
			eps[j].Fact = fact
			return true
		}
	}
	return false
}

// NextExchange finds the first complete exchange among pending rows, walking
// them in creation order. The most recent player row before an NPC row
// starts the exchange. Player rows it displaced, NPC rows with no player row
// before them, and rows carrying neither text are returned as superseded.
// When no exchange completes it returns nil and nothing is superseded.
func NextExchange(pending []TurnEntry) (*Exchange, []TurnEntry) {
	rows := slices.Clone(pending)
	slices.SortStableFunc(rows, func(a, b TurnEntry) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})

	var (
		start      *TurnEntry
		superseded []TurnEntry
	)
	for i := range rows {
		row := rows[i]
		switch {
		case row.IsPlayer() && row.IsNPC():
			if start != nil {
				superseded = append(superseded, *start)
			}
			return &Exchange{Player: row, NPC: row}, superseded
		case row.IsPlayer():
			if start != nil {
				superseded = append(superseded, *start)
			}
			start = &rows[i]
		case row.IsNPC():
			if start == nil {
				superseded = append(superseded, row)
				continue
			}
			return &Exchange{Player: *start, NPC: row}, superseded
		default:
			superseded = append(superseded, row)
		}
	}
	return nil, nil
}
