package cognition

import (
	"errors"
	"fmt"

	"github.com/jwebster45206/npc-engine/pkg/emotion"
)

// Sentiment is the overall tone of a player line.
type Sentiment string

const (
	SentimentPositive     Sentiment = "positive"
	SentimentNeutral      Sentiment = "neutral"
	SentimentNegative     Sentiment = "negative"
	SentimentHostile      Sentiment = "hostile"
	SentimentAffectionate Sentiment = "affectionate"
)

func (s Sentiment) valid() bool {
	switch s {
	case SentimentPositive, SentimentNeutral, SentimentNegative, SentimentHostile, SentimentAffectionate:
		return true
	}
	return false
}

// Target is who the tone of a player line is aimed at.
type Target string

const (
	TargetNPC         Target = "npc"
	TargetSelf        Target = "self"
	TargetEnvironment Target = "environment"
	TargetNone        Target = "none"
)

func (t Target) valid() bool {
	switch t {
	case TargetNPC, TargetSelf, TargetEnvironment, TargetNone:
		return true
	}
	return false
}

// Classification is a collaborator's reading of a player line.
type Classification struct {
	Sentiment Sentiment `json:"sentiment"`
	Intensity float64   `json:"intensity"`
	Offensive bool      `json:"offensive"`
	Emotion   string    `json:"emotion"`
	Target    Target    `json:"target"`
}

// Reaction is the emotion an NPC feels after an exchange.
type Reaction struct {
	Emotion   string  `json:"emotion"`
	Intensity float64 `json:"intensity"`
}

// ValidationError reports a collaborator field that was missing or outside
// its allowed values and the default used in its place.
type ValidationError struct {
	Field   string
	Got     any
	Default any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %v, using %v", e.Field, e.Got, e.Default)
}

// DefaultClassification is used when classification fails outright.
func DefaultClassification() Classification {
	return Classification{
		Sentiment: SentimentNeutral,
		Emotion:   emotion.Fallback,
		Target:    TargetNone,
	}
}

// Normalize returns c with every invalid field replaced by its default. The
// error joins one ValidationError per replaced field and is meant to be
// logged, not returned to a player.
func (c Classification) Normalize() (Classification, error) {
	var errs []error

	if !c.Sentiment.valid() {
		errs = append(errs, &ValidationError{Field: "sentiment", Got: c.Sentiment, Default: SentimentNeutral})
		c.Sentiment = SentimentNeutral
	}
	if !c.Target.valid() {
		errs = append(errs, &ValidationError{Field: "target", Got: c.Target, Default: TargetNone})
		c.Target = TargetNone
	}
	if name, ok := emotion.Normalize(c.Emotion); ok {
		c.Emotion = name
	} else {
		errs = append(errs, &ValidationError{Field: "emotion", Got: c.Emotion, Default: name})
		c.Emotion = name
	}
	if v, ok := unit(c.Intensity); !ok {
		errs = append(errs, &ValidationError{Field: "intensity", Got: c.Intensity, Default: v})
		c.Intensity = v
	}
	return c, errors.Join(errs...)
}

// Normalize returns r with an allowed emotion and an intensity in [0,1].
func (r Reaction) Normalize() (Reaction, error) {
	var errs []error

	if name, ok := emotion.Normalize(r.Emotion); ok {
		r.Emotion = name
	} else {
		errs = append(errs, &ValidationError{Field: "emotion", Got: r.Emotion, Default: name})
		r.Emotion = name
	}
	if v, ok := unit(r.Intensity); !ok {
		errs = append(errs, &ValidationError{Field: "intensity", Got: r.Intensity, Default: v})
		r.Intensity = v
	}
	return r, errors.Join(errs...)
}

// TrustDelta derives the trust change for a classified line. Offence or
// hostility aimed at the NPC costs trust; vulnerability, affection and
// warmth toward the NPC earn it in proportion to intensity.
func TrustDelta(c Classification) int {
	switch {
	case c.Offensive && c.Target == TargetNPC:
		return -5
	case c.Sentiment == SentimentHostile && c.Target == TargetNPC:
		return -3
	case c.Sentiment == SentimentNegative && c.Target == TargetSelf:
		return int(1 + c.Intensity*2)
	case c.Sentiment == SentimentAffectionate:
		return int(1 + c.Intensity*3)
	case c.Sentiment == SentimentPositive && c.Target == TargetNPC:
		return int(1 + c.Intensity*2)
	}
	return 0
}

func unit(v float64) (float64, bool) {
	switch {
	case v != v:
		return 0, false
	case v < 0:
		return 0, false
	case v > 1:
		return 1, false
	}
	return v, true
}
