package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jwebster45206/npc-engine/pkg/memory"
	"github.com/jwebster45206/npc-engine/pkg/persona"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <memory.txt|persona.yaml>...\n", os.Args[0])
		os.Exit(1)
	}

	failed := false
	for _, filename := range os.Args[1:] {
		v := &Validator{}
		if err := v.validateFile(filename); err != nil {
			fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
			failed = true
			continue
		}
		fmt.Printf("%s is valid!\n", filename)
	}
	if failed {
		os.Exit(1)
	}
}

// Validator checks memory documents against the grammar and persona files
// against their schema.
type Validator struct {
	errors []string
}

func (v *Validator) validateFile(filename string) error {
	fmt.Printf("Validating %s...\n", filename)

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read file %s: %w", filename, err)
	}
	v.errors = nil

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".yaml", ".yml":
		id := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
		if !validIDRegex.MatchString(id) {
			v.addError(fmt.Sprintf("persona filename '%s' should be a lowercase id", id))
		}
		if _, err := persona.Parse(id, data); err != nil {
			return fmt.Errorf("file %s: %w", filename, err)
		}
	default:
		doc, err := memory.Decode(string(data))
		if err != nil {
			return fmt.Errorf("file %s: %w", filename, err)
		}
		v.validateDocument(doc)
	}

	if len(v.errors) > 0 {
		return fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return nil
}

// validateDocument checks what Decode accepts but the consolidator would
// never write.
func (v *Validator) validateDocument(doc memory.Document) {
	seen := make(map[string]bool)
	for i, s := range doc.Scenes {
		name := fmt.Sprintf("scene %d (%s)", i+1, s.Tag)
		if s.Tag == "" {
			v.addError(fmt.Sprintf("%s has an empty tag", name))
		} else if seen[s.Tag] {
			v.addError(fmt.Sprintf("%s reuses a tag", name))
		}
		seen[s.Tag] = true

		if len(s.Episodes) == 0 && len(s.Compressed) == 0 {
			v.addError(fmt.Sprintf("%s has no episodes", name))
		}
		for _, ep := range s.Episodes {
			if strings.TrimSpace(ep.Said) == "" {
				v.addError(fmt.Sprintf("%s episode [%d] has no said text", name, ep.Number))
			}
			if ep.RespondingTo > 0 && !hasEpisode(s, ep.RespondingTo) {
				v.addError(fmt.Sprintf("%s episode [%d] responds to missing episode [%d]", name, ep.Number, ep.RespondingTo))
			}
		}

		recomputed := s
		recomputed.RecomputePeak()
		if math.Abs(recomputed.PeakIntensity-s.PeakIntensity) > 0.005 {
			v.addError(fmt.Sprintf("%s peak intensity %.2f, episodes give %.2f", name, s.PeakIntensity, recomputed.PeakIntensity))
		}
	}
}

func hasEpisode(s memory.Scene, n int) bool {
	for _, ep := range s.Episodes {
		if ep.Number == n {
			return true
		}
	}
	// Compressed episodes keep their number in the bullet.
	prefix := fmt.Sprintf("[%d]", n)
	for _, b := range s.Compressed {
		if strings.HasPrefix(b, prefix) {
			return true
		}
	}
	return false
}

func (v *Validator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var validIDRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)
