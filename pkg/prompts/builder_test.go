package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/memory"
)

func testContext() cognition.Context {
	doc := memory.Document{Scenes: []memory.Scene{{
		Tag: "forge",
		Episodes: []memory.Episode{
			{Number: 1, Speaker: memory.SpeakerPlayer, Said: "Hello?"},
			{Number: 2, Speaker: memory.SpeakerNPC, Said: "We're closed.", RespondingTo: 1},
			{Number: 3, Speaker: memory.SpeakerPlayer, Said: "Please, it's urgent."},
		},
	}}}
	return cognition.Context{
		NPCID:             "mags",
		NPCName:           "Mags",
		NPCDescription:    "A blunt blacksmith.",
		UserID:            "u1",
		PlayerName:        "Aria",
		RelationshipLabel: "stranger",
		Trust:             38,
		DominantEmotion:   "calm",
		PlayerBeliefs:     []belief.Belief{{Type: belief.TypeGoal, Value: "buy a sword", Confidence: 0.666}},
		Memory:            memory.Encode(doc),
	}
}

func TestNew(t *testing.T) {
	b := New()
	if b.memoryLimit != DefaultDialogueLimit {
		t.Errorf("Expected default memory limit %d, got %d", DefaultDialogueLimit, b.memoryLimit)
	}
}

func TestBuild_RequiresUserMessage(t *testing.T) {
	if _, err := New().WithSystem("x").Build(); err == nil {
		t.Error("Expected error when user message is missing")
	}
}

func TestDialogueMessages(t *testing.T) {
	msgs, err := DialogueMessages("Can you fix this blade?", testContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != chat.ChatRoleSystem || msgs[1].Role != chat.ChatRoleUser {
		t.Errorf("unexpected roles %q %q", msgs[0].Role, msgs[1].Role)
	}
	system := msgs[0].Content
	for _, want := range []string{
		"You are Mags",
		"A blunt blacksmith.",
		`"relationship": "stranger"`,
		`"confidence": 0.67`,
		"RECENT MEMORY\nAria: Hello?\nMags: We're closed.\nAria: Please, it's urgent.",
	} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q\n%s", want, system)
		}
	}
	if msgs[1].Content != "Aria: Can you fix this blade?" {
		t.Errorf("unexpected user message %q", msgs[1].Content)
	}
}

func TestRecentDialogue_Limit(t *testing.T) {
	doc, err := memory.Decode(testContext().Memory)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := RecentDialogue(doc, 2, "Aria", "Mags")
	if len(lines) != 2 || lines[0] != "Mags: We're closed." {
		t.Errorf("unexpected lines %v", lines)
	}
}

func TestCollaboratorMessages_OmitMemory(t *testing.T) {
	msgs, err := BeliefMessages("I'm a soldier.", testContext())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(msgs[0].Content, "RECENT MEMORY") {
		t.Error("belief extraction should not carry memory")
	}
	if !strings.HasPrefix(msgs[0].Content, BeliefExtractionPrompt) {
		t.Error("belief extraction prompt should lead the system message")
	}
}

func TestSummaryMessages(t *testing.T) {
	player, npc := "Where is the key?", "Under the stone."
	req := cognition.SummaryRequest{
		RelationshipLabel: "friend",
		Trust:             70,
		SelfBeliefs:       []belief.SelfBelief{{Type: "role", Value: "smith", Confidence: 0.9}},
		NextEpisode:       4,
		Exchange: memory.Exchange{
			Player: memory.TurnEntry{PlayerText: &player, PlayerEmotion: "afraid", PlayerIntensity: 0.6},
			NPC:    memory.TurnEntry{NPCText: &npc},
		},
		Compress: true,
		Now:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	msgs, err := SummaryMessages(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	system, user := msgs[0].Content, msgs[1].Content
	if !strings.Contains(system, ScenePolicy) || !strings.Contains(system, CompressionInstruction) {
		t.Error("system prompt should carry the scene policy and compression instruction")
	}
	for _, want := range []string{
		"Relationship: friend (trust 70)",
		"- role: smith (conf 0.90)",
		"Beliefs about the player:\n- none",
		"(none, start a new scene)",
		"episode [4]",
		`Player said: "Where is the key?" (emotion afraid, intensity 0.60)`,
		`Character replied: "Under the stone." (emotion none, intensity 0.00)`,
		"Time: 2026-03-01 09:00",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q\n%s", want, user)
		}
	}

	req.Compress = false
	msgs, _ = SummaryMessages(req)
	if strings.Contains(msgs[0].Content, "COMPRESSION REQUIRED") {
		t.Error("compression instruction should be absent")
	}
}

func TestSummaryMessages_TrustChangeAndNote(t *testing.T) {
	player, npc := "You're a worthless coward.", "Leave. Now."
	req := cognition.SummaryRequest{
		NextEpisode: 1,
		Exchange: memory.Exchange{
			Player: memory.TurnEntry{
				PlayerText:    &player,
				TrustSnapshot: 0,
				TrustDelta:    -50,
				Note:          "[player spoke offensively or disrespectfully]",
			},
			NPC: memory.TurnEntry{NPCText: &npc},
		},
	}

	msgs, err := SummaryMessages(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	user := msgs[1].Content
	for _, want := range []string{
		"Trust change from this line: -50 (now 0)",
		"Note: [player spoke offensively or disrespectfully]",
	} {
		if !strings.Contains(user, want) {
			t.Errorf("user message missing %q\n%s", want, user)
		}
	}

	req.Exchange.Player.TrustDelta = 0
	req.Exchange.Player.Note = ""
	msgs, _ = SummaryMessages(req)
	if strings.Contains(msgs[1].Content, "Trust change") || strings.Contains(msgs[1].Content, "Note:") {
		t.Error("unchanged trust and empty note should not be mentioned")
	}
}
