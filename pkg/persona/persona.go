package persona

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jwebster45206/npc-engine/pkg/belief"
	"github.com/jwebster45206/npc-engine/pkg/emotion"
)

// Persona is the static description of an NPC: who it is, how quickly its
// emotions settle and how strongly it reacts.
type Persona struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	// DecayRate multiplies every emotion once per turn. Nil means the default.
	DecayRate *float64 `yaml:"decay_rate,omitempty" json:"decay_rate,omitempty"`
	// Reactivity scales incoming emotional intensity. Nil means the default.
	Reactivity  *float64         `yaml:"reactivity,omitempty" json:"reactivity,omitempty"`
	SelfBeliefs []SelfBeliefSeed `yaml:"self_beliefs,omitempty" json:"self_beliefs,omitempty"`
}

// SelfBeliefSeed is a self-belief the NPC holds before meeting anyone.
type SelfBeliefSeed struct {
	Type       string  `yaml:"type" json:"type"`
	Value      string  `yaml:"value" json:"value"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Stability  float64 `yaml:"stability" json:"stability"`
}

// Default is the persona used for NPCs without a persona file.
func Default(id string) *Persona {
	return &Persona{ID: id, Name: id}
}

// Parse reads a persona from YAML. The id is taken from the caller, not the
// file.
func Parse(id string, data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse persona %s: %w", id, err)
	}
	p.ID = id
	if p.Name == "" {
		p.Name = id
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks that every rate and seed is within [0,1].
func (p *Persona) Validate() error {
	if p.DecayRate != nil && (*p.DecayRate < 0 || *p.DecayRate > 1) {
		return fmt.Errorf("persona %s: decay_rate %v outside [0,1]", p.ID, *p.DecayRate)
	}
	if p.Reactivity != nil && *p.Reactivity < 0 {
		return fmt.Errorf("persona %s: reactivity %v is negative", p.ID, *p.Reactivity)
	}
	for _, s := range p.SelfBeliefs {
		if s.Type == "" || s.Value == "" {
			return fmt.Errorf("persona %s: self belief needs type and value", p.ID)
		}
		if s.Confidence < 0 || s.Confidence > 1 || s.Stability < 0 || s.Stability > 1 {
			return fmt.Errorf("persona %s: self belief %s/%s outside [0,1]", p.ID, s.Type, s.Value)
		}
	}
	return nil
}

// Decay returns the persona's decay rate or the default.
func (p *Persona) Decay() float64 {
	if p == nil || p.DecayRate == nil {
		return emotion.DefaultDecayRate
	}
	return *p.DecayRate
}

// React returns the persona's reactivity or the default.
func (p *Persona) React() float64 {
	if p == nil || p.Reactivity == nil {
		return emotion.DefaultReactivity
	}
	return *p.Reactivity
}

// Seed adds the persona's self-beliefs the NPC does not hold yet and
// reports how many were added.
func (p *Persona) Seed(set *belief.SelfSet, now time.Time) int {
	if p == nil {
		return 0
	}
	seeds := make([]belief.SelfObservation, 0, len(p.SelfBeliefs))
	for _, s := range p.SelfBeliefs {
		seeds = append(seeds, belief.SelfObservation(s))
	}
	added := 0
	for _, obs := range belief.DedupeSelf(seeds) {
		if set.Seed(p.ID, obs, now) {
			added++
		}
	}
	return added
}
