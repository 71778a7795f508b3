package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/chat"
	"github.com/jwebster45206/npc-engine/pkg/cognition"
	"github.com/jwebster45206/npc-engine/pkg/prompts"
)

// ErrNoJSON is returned when a reply carries no JSON object.
var ErrNoJSON = errors.New("no JSON object in reply")

// Cognition implements cognition.Cognition on top of an LLMService. Dialogue
// goes to the chat model; everything else is a JSON-only completion on the
// backend model.
type Cognition struct {
	llm    LLMService
	logger *slog.Logger
}

var _ cognition.Cognition = (*Cognition)(nil)

func NewCognition(llm LLMService, logger *slog.Logger) *Cognition {
	return &Cognition{llm: llm, logger: logger}
}

func (c *Cognition) completeJSON(ctx context.Context, task string, messages []chat.ChatMessage, err error, v any) error {
	if err != nil {
		return fmt.Errorf("failed to build %s prompt: %w", task, err)
	}
	reply, err := c.llm.Complete(ctx, messages)
	if err != nil {
		return fmt.Errorf("%s call failed: %w", task, err)
	}
	obj, err := extractJSONObject(reply)
	if err != nil {
		c.logger.Debug("Unparseable collaborator reply", "task", task, "reply", reply)
		return fmt.Errorf("%s: %w", task, err)
	}
	if err := json.Unmarshal([]byte(obj), v); err != nil {
		return fmt.Errorf("failed to parse %s reply: %w", task, err)
	}
	return nil
}

func (c *Cognition) Classify(ctx context.Context, playerText string, cc cognition.Context) (cognition.Classification, error) {
	messages, err := prompts.ClassificationMessages(playerText, cc)
	var out cognition.Classification
	if err := c.completeJSON(ctx, "classification", messages, err, &out); err != nil {
		return cognition.Classification{}, err
	}
	return out, nil
}

func (c *Cognition) React(ctx context.Context, playerText, npcText string, cc cognition.Context) (cognition.Reaction, error) {
	messages, err := prompts.ReactionMessages(playerText, npcText, cc)
	var out cognition.Reaction
	if err := c.completeJSON(ctx, "reaction", messages, err, &out); err != nil {
		return cognition.Reaction{}, err
	}
	return out, nil
}

// extractedBelief accepts {"value": "...", "confidence": 0.7} or a bare
// string.
type extractedBelief struct {
	Value      string
	Confidence *float64
}

func (b *extractedBelief) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Value = s
		return nil
	}
	var obj struct {
		Value      string   `json:"value"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	b.Value, b.Confidence = obj.Value, obj.Confidence
	return nil
}

func (b extractedBelief) confidence() float64 {
	if b.Confidence == nil {
		return belief.DefaultConfidence
	}
	return *b.Confidence
}

// ExtractBeliefs returns raw observations keyed by the reply's fields.
// Unknown fields are skipped; a field may hold one belief or a list.
func (c *Cognition) ExtractBeliefs(ctx context.Context, playerText string, cc cognition.Context) ([]belief.Observation, error) {
	messages, err := prompts.BeliefMessages(playerText, cc)
	var raw map[string]json.RawMessage
	if err := c.completeJSON(ctx, "belief extraction", messages, err, &raw); err != nil {
		return nil, err
	}

	var out []belief.Observation
	for field, value := range raw {
		t, ok := belief.ParseType(field)
		if !ok {
			c.logger.Debug("Skipping unknown belief field", "field", field)
			continue
		}
		var items []extractedBelief
		if err := json.Unmarshal(value, &items); err != nil {
			var one extractedBelief
			if err := json.Unmarshal(value, &one); err != nil {
				c.logger.Warn("Skipping malformed belief field", "field", field, "error", err)
				continue
			}
			items = []extractedBelief{one}
		}
		for _, item := range items {
			out = append(out, belief.Observation{
				Type:       t,
				Value:      item.Value,
				Confidence: item.confidence(),
				Evidence:   playerText,
				Source:     belief.SourceInference,
			})
		}
	}
	return out, nil
}

// DefaultSelfStability is used when the extractor omits a stability.
const DefaultSelfStability = 0.5

func (c *Cognition) ExtractSelfBeliefs(ctx context.Context, npcText string, cc cognition.Context) ([]belief.SelfObservation, error) {
	messages, err := prompts.SelfBeliefMessages(npcText, cc)
	var raw struct {
		SelfBeliefs []struct {
			Type       string   `json:"type"`
			Value      string   `json:"value"`
			Confidence *float64 `json:"confidence"`
			Stability  *float64 `json:"stability"`
		} `json:"self_beliefs"`
	}
	if err := c.completeJSON(ctx, "self-belief extraction", messages, err, &raw); err != nil {
		return nil, err
	}

	out := make([]belief.SelfObservation, 0, len(raw.SelfBeliefs))
	for _, b := range raw.SelfBeliefs {
		obs := belief.SelfObservation{
			Type:       b.Type,
			Value:      b.Value,
			Confidence: belief.DefaultConfidence,
			Stability:  DefaultSelfStability,
		}
		if b.Confidence != nil {
			obs.Confidence = *b.Confidence
		}
		if b.Stability != nil {
			obs.Stability = *b.Stability
		}
		out = append(out, obs)
	}
	return out, nil
}

// Summarize returns the raw replacement text; validating it is the
// consolidator's job.
func (c *Cognition) Summarize(ctx context.Context, req cognition.SummaryRequest) (string, error) {
	messages, err := prompts.SummaryMessages(req)
	if err != nil {
		return "", fmt.Errorf("failed to build summary prompt: %w", err)
	}
	reply, err := c.llm.Complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("summary call failed: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

func (c *Cognition) Respond(ctx context.Context, playerText string, cc cognition.Context) (string, error) {
	messages, err := prompts.DialogueMessages(playerText, cc)
	if err != nil {
		return "", fmt.Errorf("failed to build dialogue prompt: %w", err)
	}
	resp, err := c.llm.Chat(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("dialogue call failed: %w", err)
	}
	name := cc.NPCName
	if name == "" {
		name = cc.NPCID
	}
	line := stripSpeaker(resp.Message, name)
	if line == "" {
		return "", errors.New("dialogue reply was empty")
	}
	return line, nil
}

// stripSpeaker removes a leading "Name:" the model sometimes adds.
func stripSpeaker(line, name string) string {
	line = strings.TrimSpace(line)
	if name != "" {
		if rest, ok := strings.CutPrefix(line, name+":"); ok {
			line = strings.TrimSpace(rest)
		}
	}
	return line
}

// extractJSONObject returns the first balanced {...} in s, skipping braces
// inside JSON strings. Code fences and surrounding prose are ignored.
func extractJSONObject(s string) (string, error) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", ErrNoJSON
	}
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && ch == '\\':
			escaped = true
		case ch == '"':
			inString = !inString
		case inString:
		case ch == '{':
			depth++
		case ch == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", ErrNoJSON
}
