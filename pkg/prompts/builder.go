package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/memory"
)

// DefaultDialogueLimit is how many remembered lines dialogue prompts carry.
const DefaultDialogueLimit = 8

// Builder constructs the chat messages for one collaborator call.
type Builder struct {
	system      []string
	state       *PromptState
	memory      *memory.Document
	memoryLimit int
	userMessage string
}

// New creates a builder with the default memory window.
func New() *Builder {
	return &Builder{memoryLimit: DefaultDialogueLimit}
}

// WithSystem appends an instruction block to the system prompt.
func (b *Builder) WithSystem(prompt string) *Builder {
	if prompt != "" {
		b.system = append(b.system, prompt)
	}
	return b
}

// WithContext includes the character state.
func (b *Builder) WithContext(c cognition.Context) *Builder {
	b.state = ToPromptState(c)
	if c.Memory != "" {
		if doc, err := memory.Decode(c.Memory); err == nil {
			b.memory = &doc
		}
	}
	return b
}

// WithMemoryLimit sets how many remembered lines are included.
func (b *Builder) WithMemoryLimit(limit int) *Builder {
	b.memoryLimit = limit
	return b
}

// WithUserMessage sets the final user message.
func (b *Builder) WithUserMessage(message string) *Builder {
	b.userMessage = message
	return b
}

// Build returns the system message followed by the user message.
func (b *Builder) Build() ([]chat.ChatMessage, error) {
	if strings.TrimSpace(b.userMessage) == "" {
		return nil, fmt.Errorf("user message is required")
	}

	var sb strings.Builder
	sb.WriteString(strings.Join(b.system, "\n\n"))

	if b.state != nil {
		data, err := json.MarshalIndent(b.state, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal prompt state: %w", err)
		}
		sb.WriteString("\n\nCHARACTER STATE\n")
		sb.Write(data)
	}

	if b.memory != nil && b.memoryLimit > 0 {
		if lines := RecentDialogue(*b.memory, b.memoryLimit, b.playerName(), b.characterName()); len(lines) > 0 {
			sb.WriteString("\n\nRECENT MEMORY\n")
			sb.WriteString(strings.Join(lines, "\n"))
		}
	}

	return []chat.ChatMessage{
		{Role: chat.ChatRoleSystem, Content: strings.TrimSpace(sb.String())},
		{Role: chat.ChatRoleUser, Content: b.userMessage},
	}, nil
}

func (b *Builder) playerName() string {
	if b.state == nil || b.state.Player == "" {
		return "Player"
	}
	return b.state.Player
}

func (b *Builder) characterName() string {
	if b.state == nil || b.state.Character == "" {
		return "You"
	}
	return b.state.Character
}

// RecentDialogue returns the last limit remembered lines, oldest first,
// each prefixed with its speaker.
func RecentDialogue(doc memory.Document, limit int, playerName, npcName string) []string {
	var lines []string
	for _, s := range doc.Scenes {
		for _, ep := range s.Episodes {
			speaker := playerName
			if ep.Speaker == memory.SpeakerNPC {
				speaker = npcName
			}
			lines = append(lines, chat.FormatWithSpeaker(ep.Said, speaker))
		}
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}
	return lines
}

// ClassificationMessages builds the classification call for a player line.
func ClassificationMessages(playerText string, c cognition.Context) ([]chat.ChatMessage, error) {
	return New().
		WithSystem(ClassificationPrompt).
		WithContext(c).
		WithMemoryLimit(4).
		WithUserMessage(fmt.Sprintf("Player text:\n%q", playerText)).
		Build()
}

// ReactionMessages builds the reaction call for an exchange.
func ReactionMessages(playerText, npcText string, c cognition.Context) ([]chat.ChatMessage, error) {
	return New().
		WithSystem(ReactionPrompt).
		WithContext(c).
		WithMemoryLimit(0).
		WithUserMessage(fmt.Sprintf("Player said:\n%q\n\nCharacter replied:\n%q", playerText, npcText)).
		Build()
}

// BeliefMessages builds the belief extraction call for a player line.
func BeliefMessages(playerText string, c cognition.Context) ([]chat.ChatMessage, error) {
	return New().
		WithSystem(BeliefExtractionPrompt).
		WithContext(c).
		WithMemoryLimit(0).
		WithUserMessage(fmt.Sprintf("Player text:\n%q", playerText)).
		Build()
}

// SelfBeliefMessages builds the self-belief extraction call for an NPC line.
func SelfBeliefMessages(npcText string, c cognition.Context) ([]chat.ChatMessage, error) {
	return New().
		WithSystem(SelfBeliefExtractionPrompt).
		WithContext(c).
		WithMemoryLimit(0).
		WithUserMessage(fmt.Sprintf("Character line:\n%q", npcText)).
		Build()
}

// DialogueMessages builds the dialogue generation call.
func DialogueMessages(playerText string, c cognition.Context) ([]chat.ChatMessage, error) {
	name := c.NPCName
	if name == "" {
		name = c.NPCID
	}
	player := c.PlayerName
	if player == "" {
		player = "Player"
	}
	return New().
		WithSystem(fmt.Sprintf(DialogueSystemPrompt, name, c.NPCDescription)).
		WithContext(c).
		WithUserMessage(chat.FormatWithSpeaker(playerText, player)).
		Build()
}

// SummaryMessages builds the consolidation call for one exchange.
func SummaryMessages(req cognition.SummaryRequest) ([]chat.ChatMessage, error) {
	policy := req.Policy
	if policy == "" {
		policy = ScenePolicy
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Relationship: %s (trust %d)\n", req.RelationshipLabel, req.Trust)
	sb.WriteString("Beliefs about self:\n")
	writeSelfBeliefLines(&sb, req.SelfBeliefs)
	sb.WriteString("Beliefs about the player:\n")
	writeBeliefLines(&sb, req.PlayerBeliefs)

	sb.WriteString("\nCURRENT OPEN SCENE\n")
	if req.OpenScene == "" {
		sb.WriteString("(none, start a new scene)\n")
	} else {
		sb.WriteString(req.OpenScene)
	}

	ex := req.Exchange
	fmt.Fprintf(&sb, "\nNEW EXCHANGE (player line is episode [%d])\n", req.NextEpisode)
	fmt.Fprintf(&sb, "Player said: %q (emotion %s, intensity %.2f)\n",
		ex.PlayerText(), orNone(ex.Player.PlayerEmotion), ex.Player.PlayerIntensity)
	if d := ex.Player.TrustDelta; d != 0 {
		fmt.Fprintf(&sb, "Trust change from this line: %+d (now %d)\n", d, ex.Player.TrustSnapshot)
	}
	if ex.Player.Note != "" {
		fmt.Fprintf(&sb, "Note: %s\n", ex.Player.Note)
	}
	fmt.Fprintf(&sb, "Character replied: %q (emotion %s, intensity %.2f)\n",
		ex.NPCText(), orNone(ex.NPC.NPCEmotion), ex.NPC.NPCIntensity)
	if !req.Now.IsZero() {
		fmt.Fprintf(&sb, "Time: %s\n", req.Now.UTC().Format("2006-01-02 15:04"))
	}

	b := New().WithSystem(SummaryPrompt).WithSystem(policy)
	if req.Compress {
		b.WithSystem(CompressionInstruction)
	}
	return b.WithUserMessage(sb.String()).Build()
}

func writeBeliefLines(sb *strings.Builder, beliefs []belief.Belief) {
	if len(beliefs) == 0 {
		sb.WriteString("- none\n")
		return
	}
	for _, b := range beliefs {
		fmt.Fprintf(sb, "- %s: %s (conf %.2f)\n", b.Type, b.Value, b.Confidence)
	}
}

func writeSelfBeliefLines(sb *strings.Builder, beliefs []belief.SelfBelief) {
	if len(beliefs) == 0 {
		sb.WriteString("- none\n")
		return
	}
	for _, b := range beliefs {
		fmt.Fprintf(sb, "- %s: %s (conf %.2f)\n", b.Type, b.Value, b.Confidence)
	}
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
