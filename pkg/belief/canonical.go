package belief

import (
	"strings"

	"golang.org/x/text/cases"
)

// leadingPhrases are hedges and subject phrases extractors prepend to values.
// Longer phrases come first so "they seem to be" wins over "they seem".
var leadingPhrases = []string{
	"the player seems to be ",
	"the player appears to be ",
	"the player seems ",
	"the player is ",
	"they seem to be ",
	"they appear to be ",
	"they seem ",
	"they are ",
	"they're ",
	"seems to be ",
	"appears to be ",
	"seems ",
	"probably ",
	"likely ",
	"possibly ",
	"maybe ",
	"is ",
	"a ",
	"an ",
}

const trailingPunctuation = ".,;:!?\"' "

// Canonicalize reduces a belief value to a comparable form: Unicode case
// folded, whitespace collapsed, hedge phrases stripped from the front and
// punctuation trimmed from the end.
func Canonicalize(value string) string {
	// Casers keep state, so one per call.
	v := cases.Fold().String(value)
	v = strings.Join(strings.Fields(v), " ")

	for {
		stripped := false
		for _, p := range leadingPhrases {
			if rest, ok := strings.CutPrefix(v, p); ok && strings.TrimSpace(rest) != "" {
				v = strings.TrimSpace(rest)
				stripped = true
				break
			}
		}
		if !stripped {
			break
		}
	}

	return strings.TrimRight(v, trailingPunctuation)
}

// Dedupe canonicalizes a batch of observations and collapses entries that
// share (type, canonical value), keeping the highest confidence. Empty
// values and unknown types are dropped. First-seen order is preserved.
func Dedupe(batch []Observation) []Observation {
	type key struct {
		t Type
		v string
	}
	seen := make(map[key]int, len(batch))
	out := make([]Observation, 0, len(batch))

	for _, obs := range batch {
		if !obs.Type.Valid() {
			continue
		}
		obs.Value = Canonicalize(obs.Value)
		if obs.Value == "" {
			continue
		}
		k := key{obs.Type, obs.Value}
		if i, ok := seen[k]; ok {
			if obs.Confidence > out[i].Confidence {
				out[i].Confidence = obs.Confidence
				out[i].Evidence = obs.Evidence
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, obs)
	}
	return out
}

// DedupeSelf applies Dedupe's rules to self-belief observations. Types are
// free-form for self-beliefs and are folded to snake_case.
func DedupeSelf(batch []SelfObservation) []SelfObservation {
	type key struct{ t, v string }
	seen := make(map[key]int, len(batch))
	out := make([]SelfObservation, 0, len(batch))

	for _, obs := range batch {
		obs.Type = strings.Join(strings.Fields(cases.Fold().String(obs.Type)), "_")
		obs.Value = Canonicalize(obs.Value)
		if obs.Type == "" || obs.Value == "" {
			continue
		}
		k := key{obs.Type, obs.Value}
		if i, ok := seen[k]; ok {
			if obs.Confidence > out[i].Confidence {
				out[i].Confidence = obs.Confidence
			}
			continue
		}
		seen[k] = len(out)
		out = append(out, obs)
	}
	return out
}
