package memory

import (
	"math"
	"regexp"
	"strconv"
	"time"
)

// Speaker identifies who said an episode's line.
type Speaker string

const (
	SpeakerPlayer Speaker = "player"
	SpeakerNPC    Speaker = "npc"
)

// FallbackSceneTag names the scene opened when a verbatim append finds no
// open scene.
const FallbackSceneTag = "unsorted"

// Document is the long-term memory one NPC keeps about one player: an
// ordered list of scenes, all closed except possibly the last.
type Document struct {
	Scenes []Scene
}

// Header is a scene's one-line metadata.
type Header struct {
	Where        string
	When         string
	HowWeGotHere string
	NPCLens      string
}

// BeliefLine is one belief recorded in a scene's snapshot.
type BeliefLine struct {
	Type       string
	Value      string
	Confidence float64
}

// Scene is a contiguous narrative unit.
type Scene struct {
	Tag           string
	Header        Header
	SelfBeliefs   []BeliefLine
	PlayerBeliefs []BeliefLine
	// Compressed holds bullet summaries of older episodes, oldest first.
	Compressed    []string
	Episodes      []Episode
	PeakIntensity float64
	Closed        bool
}

// Episode is one utterance inside a scene.
type Episode struct {
	Number  int
	Speaker Speaker
	Said    string
	// RespondingTo is the number of the episode this one answers, 0 for none.
	RespondingTo int
	Emotion      string
	Intensity    float64
	Notes        string
	Fact         string
	LoggedAt     time.Time
}

// Split separates the closed scenes from the trailing open scene, if any.
func (d Document) Split() (past []Scene, open *Scene) {
	n := len(d.Scenes)
	if n == 0 {
		return nil, nil
	}
	if last := d.Scenes[n-1]; !last.Closed {
		return d.Scenes[:n-1], &last
	}
	return d.Scenes, nil
}

// Assemble builds a document from closed scenes followed by the scenes that
// replace the old open scene.
func Assemble(past, updated []Scene) Document {
	scenes := make([]Scene, 0, len(past)+len(updated))
	scenes = append(scenes, past...)
	scenes = append(scenes, updated...)
	return Document{Scenes: scenes}
}

// EpisodeCount is the number of detailed episodes in all scenes.
func (d Document) EpisodeCount() int {
	n := 0
	for _, s := range d.Scenes {
		n += len(s.Episodes)
	}
	return n
}

// NextNumber is the number the next episode in the scene should take.
func (s Scene) NextNumber() int {
	n := 0
	for _, b := range s.Compressed {
		if m := bulletNumber.FindStringSubmatch(b); m != nil {
			v, _ := strconv.Atoi(m[1])
			n = max(n, v)
		}
	}
	for _, ep := range s.Episodes {
		n = max(n, ep.Number)
	}
	return n + 1
}

var (
	bulletNumber    = regexp.MustCompile(`^\[(\d+)\]`)
	bulletIntensity = regexp.MustCompile(`\([a-z]+ ([01](?:\.\d+)?)\)\s*$`)
)

// RecomputePeak sets PeakIntensity to the highest intensity among detailed
// episodes and compressed bullets that record one.
func (s *Scene) RecomputePeak() {
	peak := 0.0
	for _, ep := range s.Episodes {
		peak = max(peak, ep.Intensity)
	}
	for _, b := range s.Compressed {
		if m := bulletIntensity.FindStringSubmatch(b); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				peak = max(peak, v)
			}
		}
	}
	s.PeakIntensity = RoundUnit(peak)
}

// RoundUnit clamps v to [0,1] and rounds it to the two decimals the
// document stores.
func RoundUnit(v float64) float64 {
	return math.Round(clamp01(v)*100) / 100
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
