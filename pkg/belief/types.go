// Package belief holds the rules for what an NPC believes about a player and
// about itself: reinforcement, competition between values, canonical forms
// and read-only snapshots for prompt assembly.
package belief

import "strings"

// Type is a category of belief about the player.
type Type string

const (
	TypeCurrentEmotion   Type = "current_emotion"
	TypeMoralAlignment   Type = "moral_alignment"
	TypeAge              Type = "age"
	TypeGender           Type = "gender"
	TypeLifeStory        Type = "life_story"
	TypePersonalityTrait Type = "personality_trait"
	TypeSecret           Type = "secret"
	TypeGoal             Type = "goal"
	TypeLikes            Type = "likes"
	TypeDislikes         Type = "dislikes"
)

// typeInfo is the behaviour attached to each Type.
type typeInfo struct {
	// competitive types hold one true value at a time; reinforcing a value
	// penalizes its rivals.
	competitive bool
	// plural is the field name extraction results use for list types.
	plural string
}

var registry = map[Type]typeInfo{
	TypeCurrentEmotion:   {competitive: true},
	TypeMoralAlignment:   {competitive: true},
	TypeAge:              {competitive: true},
	TypeGender:           {competitive: true},
	TypeLifeStory:        {},
	TypePersonalityTrait: {plural: "personality_traits"},
	TypeSecret:           {plural: "secrets"},
	TypeGoal:             {plural: "goals"},
	TypeLikes:            {plural: "likes"},
	TypeDislikes:         {plural: "dislikes"},
}

// Types lists every known type in a stable order.
var Types = []Type{
	TypeCurrentEmotion, TypeMoralAlignment, TypeAge, TypeGender, TypeLifeStory,
	TypePersonalityTrait, TypeSecret, TypeGoal, TypeLikes, TypeDislikes,
}

// Competitive reports whether only one value of t can hold at a time.
func (t Type) Competitive() bool {
	return registry[t].competitive
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := registry[t]
	return ok
}

// ParseType accepts a type name or the plural field name used by extraction
// output ("personality_traits", "secrets", ...).
func ParseType(s string) (Type, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if t := Type(s); t.Valid() {
		return t, true
	}
	for t, info := range registry {
		if info.plural != "" && info.plural == s {
			return t, true
		}
	}
	return "", false
}
