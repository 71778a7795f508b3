package memory

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	sceneOpenPrefix    = "=== SCENE:"
	sceneOpenSuffix    = "==="
	closedMarker       = "--- END SCENE ---"
	continuesMarker    = "--- SCENE CONTINUES ---"
	selfBeliefsLabel   = "Relevant beliefs in play (NPC about self):"
	playerBeliefsLabel = "Relevant beliefs in play (NPC about player):"
	compressedLabel    = "EPISODES (compressed)"
	episodesLabel      = "EPISODES (in order)"
	peakLabel          = "Scene peak intensity:"
	noneValue          = "none"

	whereKey        = "Where:"
	whenKey         = "When:"
	howWeGotHereKey = "How we got here:"
	npcLensKey      = "NPC lens:"
	headerSeparator = " | "

	speakerField       = "Speaker:"
	saidField          = "Said:"
	respondingField    = "Responding to:"
	playerEmotionField = "Player emotion (inferred):"
	npcEmotionField    = "NPC emotion:"
	intensityField     = "Intensity:"
	factField          = "Fact:"
	loggedField        = "Logged:"
	notesField         = "Notes (my bias):"

	loggedTimeLayout = time.RFC3339
	unitLayout       = "%.2f"
)

var (
	episodeNumberLine = regexp.MustCompile(`^\[(\d+)\]$`)
	beliefItemLine    = regexp.MustCompile(`^- (.+?):\s*(.*?)\s*\(conf ([0-9]*\.?[0-9]+)\)$`)

	// ErrNoScene is returned when text holds no scene at all.
	ErrNoScene = errors.New("no scene found")
)

// StructuralError reports text that does not follow the memory document
// grammar.
type StructuralError struct {
	Line   int
	Reason string
	Err    error
}

func (e *StructuralError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("memory document line %d: %s", e.Line, e.Reason)
	}
	return "memory document: " + e.Reason
}

func (e *StructuralError) Unwrap() error { return e.Err }

func structural(line int, format string, args ...any) error {
	return &StructuralError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

// Encode renders the document in the memory document grammar.
func Encode(d Document) string {
	parts := make([]string, 0, len(d.Scenes))
	for _, s := range d.Scenes {
		parts = append(parts, EncodeScene(s))
	}
	return strings.Join(parts, "\n")
}

// EncodeScene renders one scene. Open scenes end with the continuation
// marker, closed scenes with the end marker.
func EncodeScene(s Scene) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s %s\n", sceneOpenPrefix, oneLine(s.Tag), sceneOpenSuffix)
	fmt.Fprintf(&b, "%s %s%s%s %s%s%s %s%s%s %s\n",
		whereKey, headerValue(s.Header.Where), headerSeparator,
		whenKey, headerValue(s.Header.When), headerSeparator,
		howWeGotHereKey, headerValue(s.Header.HowWeGotHere), headerSeparator,
		npcLensKey, headerValue(s.Header.NPCLens))

	b.WriteString(selfBeliefsLabel + "\n")
	writeBeliefs(&b, s.SelfBeliefs)
	b.WriteString(playerBeliefsLabel + "\n")
	writeBeliefs(&b, s.PlayerBeliefs)

	if len(s.Compressed) > 0 {
		b.WriteString(compressedLabel + "\n")
		for _, c := range s.Compressed {
			if c = oneLine(c); c != "" {
				fmt.Fprintf(&b, "- %s\n", c)
			}
		}
	}

	b.WriteString(episodesLabel + "\n")
	for _, ep := range s.Episodes {
		writeEpisode(&b, ep)
	}

	fmt.Fprintf(&b, "%s "+unitLayout+"\n", peakLabel, s.PeakIntensity)
	if s.Closed {
		b.WriteString(closedMarker + "\n")
	} else {
		b.WriteString(continuesMarker + "\n")
	}
	return b.String()
}

func writeBeliefs(b *strings.Builder, lines []BeliefLine) {
	if len(lines) == 0 {
		b.WriteString("- " + noneValue + "\n")
		return
	}
	for _, l := range lines {
		fmt.Fprintf(b, "- %s: %s (conf "+unitLayout+")\n", oneLine(l.Type), oneLine(l.Value), l.Confidence)
	}
}

func writeEpisode(b *strings.Builder, ep Episode) {
	fmt.Fprintf(b, "[%d]\n", ep.Number)
	fmt.Fprintf(b, "%s %s\n", speakerField, ep.Speaker)
	fmt.Fprintf(b, "%s %s\n", saidField, strconv.Quote(ep.Said))
	if ep.RespondingTo > 0 {
		fmt.Fprintf(b, "%s [%d]\n", respondingField, ep.RespondingTo)
	} else {
		fmt.Fprintf(b, "%s %s\n", respondingField, noneValue)
	}
	if ep.Speaker == SpeakerNPC {
		fmt.Fprintf(b, "%s %s\n", npcEmotionField, oneLine(ep.Emotion))
	} else {
		fmt.Fprintf(b, "%s %s\n", playerEmotionField, oneLine(ep.Emotion))
	}
	fmt.Fprintf(b, "%s "+unitLayout+"\n", intensityField, ep.Intensity)
	if ep.Fact != "" {
		fmt.Fprintf(b, "%s %s\n", factField, oneLine(ep.Fact))
	}
	if !ep.LoggedAt.IsZero() {
		fmt.Fprintf(b, "%s %s\n", loggedField, ep.LoggedAt.UTC().Format(loggedTimeLayout))
	}
	fmt.Fprintf(b, "%s %s\n", notesField, oneLine(ep.Notes))
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func headerValue(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", "/")
}

type section int

const (
	sectionHeader section = iota
	sectionSelfBeliefs
	sectionPlayerBeliefs
	sectionCompressed
	sectionEpisodes
	sectionTrailer
)

// Decode parses text in the memory document grammar. Empty text is an empty
// document. Any line outside the grammar, a scene without an end or
// continuation marker, or an open scene followed by another scene is a
// StructuralError.
func Decode(text string) (Document, error) {
	var (
		doc Document
		cur *Scene
		ep  *Episode
		sec section
	)

	flush := func(line int) error {
		if ep == nil {
			return nil
		}
		if ep.Speaker == "" {
			return structural(line, "episode [%d] has no speaker", ep.Number)
		}
		cur.Episodes = append(cur.Episodes, *ep)
		ep = nil
		return nil
	}

	for i, raw := range strings.Split(text, "\n") {
		n := i + 1
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if tag, ok := parseSceneOpen(line); ok {
			if cur != nil {
				return Document{}, structural(n, "scene %q opened before %q was ended", tag, cur.Tag)
			}
			cur = &Scene{Tag: tag}
			sec = sectionHeader
			continue
		}
		if cur == nil {
			return Document{}, structural(n, "expected scene marker")
		}

		switch {
		case line == closedMarker || line == continuesMarker:
			if err := flush(n); err != nil {
				return Document{}, err
			}
			cur.Closed = line == closedMarker
			doc.Scenes = append(doc.Scenes, *cur)
			cur = nil
			continue

		case strings.HasPrefix(line, whereKey):
			cur.Header = parseHeader(line)
			continue

		case strings.HasPrefix(line, selfBeliefsLabel):
			sec = sectionSelfBeliefs
			if rest := strings.TrimSpace(strings.TrimPrefix(line, selfBeliefsLabel)); rest != "" {
				if err := addBelief(&cur.SelfBeliefs, rest, n); err != nil {
					return Document{}, err
				}
			}
			continue

		case strings.HasPrefix(line, playerBeliefsLabel):
			sec = sectionPlayerBeliefs
			if rest := strings.TrimSpace(strings.TrimPrefix(line, playerBeliefsLabel)); rest != "" {
				if err := addBelief(&cur.PlayerBeliefs, rest, n); err != nil {
					return Document{}, err
				}
			}
			continue

		case line == compressedLabel:
			sec = sectionCompressed
			continue

		case line == episodesLabel:
			sec = sectionEpisodes
			continue

		case strings.HasPrefix(line, peakLabel):
			if err := flush(n); err != nil {
				return Document{}, err
			}
			v, err := parseUnit(strings.TrimPrefix(line, peakLabel))
			if err != nil {
				return Document{}, structural(n, "peak intensity: %v", err)
			}
			cur.PeakIntensity = v
			sec = sectionTrailer
			continue
		}

		switch sec {
		case sectionSelfBeliefs:
			if err := addBelief(&cur.SelfBeliefs, line, n); err != nil {
				return Document{}, err
			}
		case sectionPlayerBeliefs:
			if err := addBelief(&cur.PlayerBeliefs, line, n); err != nil {
				return Document{}, err
			}
		case sectionCompressed:
			bullet, ok := strings.CutPrefix(line, "- ")
			if !ok {
				return Document{}, structural(n, "compressed episodes must be bullets")
			}
			cur.Compressed = append(cur.Compressed, strings.TrimSpace(bullet))
		case sectionEpisodes:
			if m := episodeNumberLine.FindStringSubmatch(line); m != nil {
				if err := flush(n); err != nil {
					return Document{}, err
				}
				num, _ := strconv.Atoi(m[1])
				ep = &Episode{Number: num}
				continue
			}
			if ep == nil {
				return Document{}, structural(n, "episode field before episode number")
			}
			if err := parseEpisodeField(ep, line, n); err != nil {
				return Document{}, err
			}
		default:
			return Document{}, structural(n, "unexpected line %q", line)
		}
	}

	if cur != nil {
		return Document{}, structural(0, "scene %q has no end or continuation marker", cur.Tag)
	}
	if err := Validate(doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// ParseReplacement decodes scene text returned by a summarizer. Surrounding
// whitespace and a markdown code fence are tolerated; at least one scene is
// required.
func ParseReplacement(text string) ([]Scene, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.IndexByte(text, '\n'); nl >= 0 {
			text = text[nl+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	if !strings.Contains(text, sceneOpenPrefix) {
		return nil, &StructuralError{Reason: "missing scene marker", Err: ErrNoScene}
	}
	if !strings.Contains(text, closedMarker) && !strings.Contains(text, continuesMarker) {
		return nil, &StructuralError{Reason: "missing end or continuation marker"}
	}
	doc, err := Decode(text)
	if err != nil {
		return nil, err
	}
	if len(doc.Scenes) == 0 {
		return nil, &StructuralError{Reason: "no scene decoded", Err: ErrNoScene}
	}
	return doc.Scenes, nil
}

// Validate checks the rules the grammar alone cannot express: only the last
// scene may be open, episode numbers increase within a scene, back
// references point at earlier episodes, and every value is within [0,1].
func Validate(d Document) error {
	for i, s := range d.Scenes {
		if !s.Closed && i != len(d.Scenes)-1 {
			return &StructuralError{Reason: fmt.Sprintf("scene %q is open but not last", s.Tag)}
		}
		if s.PeakIntensity < 0 || s.PeakIntensity > 1 {
			return &StructuralError{Reason: fmt.Sprintf("scene %q peak intensity out of range", s.Tag)}
		}
		prev := 0
		for _, ep := range s.Episodes {
			if ep.Number <= prev {
				return &StructuralError{Reason: fmt.Sprintf("scene %q episode [%d] out of order", s.Tag, ep.Number)}
			}
			if ep.RespondingTo >= ep.Number {
				return &StructuralError{Reason: fmt.Sprintf("scene %q episode [%d] responds to a later episode", s.Tag, ep.Number)}
			}
			if ep.Intensity < 0 || ep.Intensity > 1 {
				return &StructuralError{Reason: fmt.Sprintf("scene %q episode [%d] intensity out of range", s.Tag, ep.Number)}
			}
			prev = ep.Number
		}
		for _, bl := range slices.Concat(s.SelfBeliefs, s.PlayerBeliefs) {
			if bl.Confidence < 0 || bl.Confidence > 1 {
				return &StructuralError{Reason: fmt.Sprintf("scene %q belief %q confidence out of range", s.Tag, bl.Value)}
			}
		}
	}
	return nil
}

func parseSceneOpen(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, sceneOpenPrefix)
	if !ok {
		return "", false
	}
	rest, ok = strings.CutSuffix(strings.TrimSpace(rest), sceneOpenSuffix)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func parseHeader(line string) Header {
	var h Header
	for _, part := range strings.Split(line, strings.TrimSpace(headerSeparator)) {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, whereKey):
			h.Where = strings.TrimSpace(strings.TrimPrefix(part, whereKey))
		case strings.HasPrefix(part, whenKey):
			h.When = strings.TrimSpace(strings.TrimPrefix(part, whenKey))
		case strings.HasPrefix(part, howWeGotHereKey):
			h.HowWeGotHere = strings.TrimSpace(strings.TrimPrefix(part, howWeGotHereKey))
		case strings.HasPrefix(part, npcLensKey):
			h.NPCLens = strings.TrimSpace(strings.TrimPrefix(part, npcLensKey))
		}
	}
	return h
}

func addBelief(dst *[]BeliefLine, line string, n int) error {
	if line == "- "+noneValue {
		return nil
	}
	m := beliefItemLine.FindStringSubmatch(line)
	if m == nil {
		return structural(n, "malformed belief line %q", line)
	}
	conf, err := parseUnit(m[3])
	if err != nil {
		return structural(n, "belief confidence: %v", err)
	}
	*dst = append(*dst, BeliefLine{Type: strings.TrimSpace(m[1]), Value: m[2], Confidence: conf})
	return nil
}

func parseEpisodeField(ep *Episode, line string, n int) error {
	field := func(prefix string) (string, bool) {
		v, ok := strings.CutPrefix(line, prefix)
		return strings.TrimSpace(v), ok
	}

	if v, ok := field(speakerField); ok {
		switch Speaker(v) {
		case SpeakerPlayer, SpeakerNPC:
			ep.Speaker = Speaker(v)
			return nil
		}
		return structural(n, "unknown speaker %q", v)
	}
	if v, ok := field(saidField); ok {
		ep.Said = unquote(v)
		return nil
	}
	if v, ok := field(respondingField); ok {
		if v == noneValue {
			ep.RespondingTo = 0
			return nil
		}
		m := episodeNumberLine.FindStringSubmatch(v)
		if m == nil {
			return structural(n, "malformed back reference %q", v)
		}
		ep.RespondingTo, _ = strconv.Atoi(m[1])
		return nil
	}
	if v, ok := field(playerEmotionField); ok {
		ep.Emotion = v
		return nil
	}
	if v, ok := field(npcEmotionField); ok {
		ep.Emotion = v
		return nil
	}
	if v, ok := field(intensityField); ok {
		f, err := parseUnit(v)
		if err != nil {
			return structural(n, "episode intensity: %v", err)
		}
		ep.Intensity = f
		return nil
	}
	if v, ok := field(factField); ok {
		ep.Fact = v
		return nil
	}
	if v, ok := field(loggedField); ok {
		t, err := time.Parse(loggedTimeLayout, v)
		if err != nil {
			return structural(n, "logged time: %v", err)
		}
		ep.LoggedAt = t
		return nil
	}
	if v, ok := field(notesField); ok {
		ep.Notes = v
		return nil
	}
	return structural(n, "unexpected episode line %q", line)
}

func parseUnit(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if v < 0 || v > 1 {
		return 0, fmt.Errorf("%v outside [0,1]", v)
	}
	return RoundUnit(v), nil
}

func unquote(s string) string {
	if u, err := strconv.Unquote(s); err == nil {
		return u
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
