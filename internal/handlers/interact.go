package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/jwebster45206/npc-engine/internal/middleware"
	"github.com/jwebster45206/npc-engine/pkg/chat"
)

// InteractHandler runs one player/NPC exchange.
// POST /v1/interact
type InteractHandler struct {
	engine Engine
	logger *slog.Logger
}

func NewInteractHandler(engine Engine, logger *slog.Logger) *InteractHandler {
	return &InteractHandler{
		engine: engine,
		logger: logger,
	}
}

func (h *InteractHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.logger.Warn("Method not allowed for interact endpoint",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr)
		writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only POST is supported.")
		return
	}

	var req chat.InteractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		writeError(w, h.logger, http.StatusBadRequest, "Invalid request body. Expected JSON with npc_id, user_id and player_text.")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, err.Error())
		return
	}
	if req.RequestID == "" {
		req.RequestID = r.Header.Get(middleware.RequestIDHeader)
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	log := h.logger.With("request_id", req.RequestID, "npc_id", req.NPCID, "user_id", req.UserID)
	log.Debug("Interaction received", "player_text", req.PlayerText)

	resp, err := h.engine.Interact(r.Context(), req)
	if err != nil {
		log.Error("Interaction failed", "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to process interaction. Please try again.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}
