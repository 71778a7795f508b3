package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/engine"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// Engine is the part of the engine the HTTP surface calls.
type Engine interface {
	Interact(ctx context.Context, req chat.InteractRequest) (*chat.InteractResponse, error)
	State(ctx context.Context, npcID, userID string) (*engine.State, error)
}

var _ Engine = (*engine.Engine)(nil)

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, logger *slog.Logger, status int, msg string) {
	writeJSON(w, logger, status, ErrorResponse{Error: msg})
}

// validID rejects ids that would collide with storage key separators.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, ":/ ")
}
