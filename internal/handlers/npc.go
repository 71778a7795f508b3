package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jwebster45206/npc-engine/internal/engine"
	"github.com/jwebster45206/npc-engine/pkg/memory"
)

// MemoryLoader reads the stored memory document for a pair.
type MemoryLoader interface {
	LoadMemory(ctx context.Context, npcID, userID string) (string, error)
}

// MemoryResponse is the memory document plus a structural summary of it.
type MemoryResponse struct {
	NPCID    string `json:"npc_id"`
	UserID   string `json:"user_id"`
	Document string `json:"document"`
	Scenes   int    `json:"scenes"`
	Episodes int    `json:"episodes"`
	Valid    bool   `json:"valid"`
	Error    string `json:"error,omitempty"`
}

type ConsolidateResponse struct {
	Status string `json:"status"`
}

// NPCHandler serves per-pair state.
// Routes:
// GET  /v1/npcs/{npc}/users/{user}/state
// GET  /v1/npcs/{npc}/users/{user}/memory
// POST /v1/npcs/{npc}/users/{user}/consolidate
type NPCHandler struct {
	engine        Engine
	memory        MemoryLoader
	consolidation engine.Consolidation
	logger        *slog.Logger
}

func NewNPCHandler(eng Engine, mem MemoryLoader, consolidation engine.Consolidation, logger *slog.Logger) *NPCHandler {
	return &NPCHandler{
		engine:        eng,
		memory:        mem,
		consolidation: consolidation,
		logger:        logger,
	}
}

func (h *NPCHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected: /v1/npcs/{npc}/users/{user}/{action}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 6 || parts[0] != "v1" || parts[1] != "npcs" || parts[3] != "users" {
		writeError(w, h.logger, http.StatusNotFound, "Invalid path. Expected /v1/npcs/{npc}/users/{user}/{state|memory|consolidate}")
		return
	}
	npcID, userID, action := parts[2], parts[4], parts[5]
	if !validID(npcID) || !validID(userID) {
		writeError(w, h.logger, http.StatusBadRequest, "Invalid npc or user id.")
		return
	}

	switch action {
	case "state":
		if !h.allow(w, r, http.MethodGet) {
			return
		}
		h.handleState(w, r, npcID, userID)
	case "memory":
		if !h.allow(w, r, http.MethodGet) {
			return
		}
		h.handleMemory(w, r, npcID, userID)
	case "consolidate":
		if !h.allow(w, r, http.MethodPost) {
			return
		}
		h.handleConsolidate(w, npcID, userID)
	default:
		writeError(w, h.logger, http.StatusNotFound, "Unknown action "+action)
	}
}

func (h *NPCHandler) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	h.logger.Warn("Method not allowed", "method", r.Method, "path", r.URL.Path)
	writeError(w, h.logger, http.StatusMethodNotAllowed, "Method not allowed. Only "+method+" is supported.")
	return false
}

func (h *NPCHandler) handleState(w http.ResponseWriter, r *http.Request, npcID, userID string) {
	st, err := h.engine.State(r.Context(), npcID, userID)
	if err != nil {
		h.logger.Error("Failed to load state", "error", err, "npc_id", npcID, "user_id", userID)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load state.")
		return
	}
	writeJSON(w, h.logger, http.StatusOK, st)
}

func (h *NPCHandler) handleMemory(w http.ResponseWriter, r *http.Request, npcID, userID string) {
	text, err := h.memory.LoadMemory(r.Context(), npcID, userID)
	if err != nil {
		h.logger.Error("Failed to load memory", "error", err, "npc_id", npcID, "user_id", userID)
		writeError(w, h.logger, http.StatusInternalServerError, "Failed to load memory.")
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(text)); err != nil {
			h.logger.Error("Failed to write memory", "error", err)
		}
		return
	}

	resp := MemoryResponse{NPCID: npcID, UserID: userID, Document: text, Valid: true}
	doc, err := memory.Decode(text)
	if err != nil {
		resp.Valid = false
		resp.Error = err.Error()
	} else {
		resp.Scenes = len(doc.Scenes)
		resp.Episodes = doc.EpisodeCount()
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

func (h *NPCHandler) handleConsolidate(w http.ResponseWriter, npcID, userID string) {
	if !h.consolidation.Trigger(npcID, userID) {
		writeJSON(w, h.logger, http.StatusConflict, ConsolidateResponse{Status: "already_running"})
		return
	}
	h.logger.Info("Consolidation triggered manually", "npc_id", npcID, "user_id", userID)
	writeJSON(w, h.logger, http.StatusAccepted, ConsolidateResponse{Status: "started"})
}
