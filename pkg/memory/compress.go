package memory

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

const (
	// DefaultKeepRecent is how many of the latest episodes stay detailed.
	DefaultKeepRecent = 5
	// PeakKeepIntensity is the intensity at which an episode is never compressed.
	PeakKeepIntensity = 0.95
)

// anchors flag lines that carry a factual anchor or a relationship turn.
var anchors = []*regexp.Regexp{
	// numbers, dates and times
	regexp.MustCompile(`\d`),
	regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december|monday|tuesday|wednesday|thursday|friday|saturday|sunday|yesterday|tomorrow|tonight)\b`),
	// self-identification and roles
	regexp.MustCompile(`(?i)\b(my name is|my name's|call me|i am called|i'm called|known as)\b`),
	regexp.MustCompile(`(?i)\b(i am|i'm|i was|i work as) (a|an|the) \w+`),
	// promises, secrets, goals
	regexp.MustCompile(`(?i)\b(promise|swear|vow|secret|never tell|my goal|i want to|i need to|i plan to|i will)\b`),
	// beliefs, trust, rupture
	regexp.MustCompile(`(?i)\b(trust|betray\w*|lie[ds]?|liar|forgive|hate you|never again|enemy|enemies|murder\w*|wrong|evil)\b`),
}

// HighRelevance reports whether an episode carries something compression
// must keep in detail: a recorded fact or an anchor in its line.
func HighRelevance(ep Episode) bool {
	if ep.Fact != "" {
		return true
	}
	for _, re := range anchors {
		if re.MatchString(ep.Said) {
			return true
		}
	}
	return false
}

// Protected reports whether compression may never summarize ep.
func Protected(ep Episode) bool {
	return ep.Intensity >= PeakKeepIntensity || HighRelevance(ep)
}

// Compress folds older episodes of s into bullets. The keepRecent latest
// episodes and every protected episode stay detailed. Bullets keep the
// episode number and the said text verbatim. It reports whether anything
// was folded.
func Compress(s *Scene, keepRecent int) bool {
	if keepRecent < 0 {
		keepRecent = 0
	}
	if len(s.Episodes) <= keepRecent {
		return false
	}

	cut := len(s.Episodes) - keepRecent
	kept := make([]Episode, 0, len(s.Episodes))
	folded := 0
	for i, ep := range s.Episodes {
		if i >= cut || Protected(ep) {
			kept = append(kept, ep)
			continue
		}
		s.Compressed = append(s.Compressed, Bullet(ep))
		folded++
	}
	if folded == 0 {
		return false
	}
	s.Episodes = kept
	s.RecomputePeak()
	return true
}

// Bullet is the compressed form of an episode.
func Bullet(ep Episode) string {
	emotion := ep.Emotion
	if emotion == "" {
		emotion = "calm"
	}
	return fmt.Sprintf("[%d] %s said %q (%s %.2f)", ep.Number, ep.Speaker, ep.Said, emotion, ep.Intensity)
}

// RestoreProtected puts back protected episodes of before that a summarizer
// left out of its replacement scenes or folded into a bullet. A protected
// episode counts as kept only when a replacement episode has its speaker and
// said text; a bullet quoting it is removed and the detailed episode takes
// its place in that scene. Episodes dropped outright go into the first
// replacement scene. It returns how many were restored.
func RestoreProtected(before Scene, replacement []Scene) int {
	if len(replacement) == 0 {
		return 0
	}

	present := make(map[string]bool)
	for _, s := range replacement {
		for _, ep := range s.Episodes {
			present[string(ep.Speaker)+"\x00"+ep.Said] = true
		}
	}

	touched := make(map[int]bool)
	restored := 0
	for _, ep := range before.Episodes {
		if !Protected(ep) || present[string(ep.Speaker)+"\x00"+ep.Said] {
			continue
		}
		target := removeBullets(replacement, ep.Said)
		if target < 0 {
			target = 0
		}
		replacement[target].Episodes = append(replacement[target].Episodes, ep)
		touched[target] = true
		restored++
	}
	for i := range touched {
		s := &replacement[i]
		slices.SortStableFunc(s.Episodes, func(a, b Episode) int { return a.Number - b.Number })
		s.Episodes = renumberDuplicates(s.Episodes)
		s.RecomputePeak()
	}
	return restored
}

// removeBullets drops every bullet quoting said and returns the index of the
// first scene that had one, or -1.
func removeBullets(scenes []Scene, said string) int {
	quoted := fmt.Sprintf("%q", said)
	first := -1
	for i := range scenes {
		kept := scenes[i].Compressed[:0]
		for _, b := range scenes[i].Compressed {
			if strings.Contains(b, quoted) {
				if first < 0 {
					first = i
				}
				continue
			}
			kept = append(kept, b)
		}
		if len(kept) == 0 {
			kept = nil
		}
		scenes[i].Compressed = kept
	}
	return first
}

// renumberDuplicates keeps numbers strictly increasing after a merge. Back
// references that pointed at a shifted episode are left as they were.
func renumberDuplicates(eps []Episode) []Episode {
	prev := 0
	for i := range eps {
		if eps[i].Number <= prev {
			eps[i].Number = prev + 1
		}
		if eps[i].RespondingTo >= eps[i].Number {
			eps[i].RespondingTo = 0
		}
		prev = eps[i].Number
	}
	return eps
}
