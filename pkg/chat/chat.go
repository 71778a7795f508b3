package chat

import (
	"fmt"
	"strings"
)

// InteractRequest is one player line addressed to an NPC.
type InteractRequest struct {
	RequestID  string `json:"request_id,omitempty"`
	NPCID      string `json:"npc_id"`
	UserID     string `json:"user_id"`
	PlayerName string `json:"player_name,omitempty"`
	PlayerText string `json:"player_text"`
	// Scene is a free-text description of where the exchange happens.
	Scene string `json:"scene,omitempty"`
}

// InteractResponse is the NPC's answer plus the state the turn left behind.
type InteractResponse struct {
	RequestID    string  `json:"request_id,omitempty"`
	NPCID        string  `json:"npc_id"`
	UserID       string  `json:"user_id"`
	NPCText      string  `json:"npc_text"`
	Relationship string  `json:"relationship"`
	Trust        int     `json:"trust"`
	TrustDelta   int     `json:"trust_delta"`
	NPCEmotion   string  `json:"npc_emotion"`
	NPCIntensity float64 `json:"npc_intensity"`
}

const (
	ChatRoleUser   = "user"      // Player or engine input
	ChatRoleAgent  = "assistant" // Model output
	ChatRoleSystem = "system"    // Instructions
)

// ChatMessage is a single message sent to an LLM.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is an LLM's reply.
type ChatResponse struct {
	Message string `json:"message"`
}

// Validate checks the fields every interaction needs.
func (r *InteractRequest) Validate() error {
	if strings.TrimSpace(r.NPCID) == "" {
		return fmt.Errorf("npc_id cannot be empty")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if strings.TrimSpace(r.PlayerText) == "" {
		return fmt.Errorf("player_text cannot be empty")
	}
	if strings.ContainsAny(r.NPCID+r.UserID, ":/ ") {
		return fmt.Errorf("npc_id and user_id cannot contain ':', '/' or spaces")
	}
	return nil
}

// FormatWithSpeaker prefixes a line with its speaker's name unless it
// already starts with one.
func FormatWithSpeaker(line, speaker string) string {
	line = strings.TrimSpace(line)
	if speaker == "" {
		return line
	}
	if i := strings.Index(line, ":"); i > 0 && i < 40 && !strings.ContainsAny(line[:i], ".!?\"") {
		return line
	}
	return speaker + ": " + line
}
