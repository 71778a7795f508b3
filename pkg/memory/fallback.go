package memory

import "time"

const fallbackNote = "logged verbatim, no summary available"

// AppendVerbatim records an exchange without a summarizer: both lines become
// episodes of the open scene, stamped with at. The exchange's Fact goes on
// the player's episode. A scene tagged
// FallbackSceneTag is opened when the document has no open scene.
func (d *Document) AppendVerbatim(ex Exchange, at time.Time) {
	at = at.UTC().Truncate(time.Second)

	if n := len(d.Scenes); n == 0 || d.Scenes[n-1].Closed {
		d.Scenes = append(d.Scenes, Scene{
			Tag:    FallbackSceneTag,
			Header: Header{When: at.Format(time.DateTime)},
		})
	}
	s := &d.Scenes[len(d.Scenes)-1]

	playerNum := s.NextNumber()
	s.Episodes = append(s.Episodes, Episode{
		Number:    playerNum,
		Speaker:   SpeakerPlayer,
		Said:      ex.PlayerText(),
		Emotion:   orCalm(ex.Player.PlayerEmotion),
		Intensity: RoundUnit(ex.Player.PlayerIntensity),
		Notes:     fallbackNote,
		Fact:      ex.Fact(),
		LoggedAt:  at,
	}, Episode{
		Number:       playerNum + 1,
		Speaker:      SpeakerNPC,
		Said:         ex.NPCText(),
		RespondingTo: playerNum,
		Emotion:      orCalm(ex.NPC.NPCEmotion),
		Intensity:    RoundUnit(ex.NPC.NPCIntensity),
		Notes:        fallbackNote,
		LoggedAt:     at,
	})
	s.RecomputePeak()
}

func orCalm(emotion string) string {
	if emotion == "" {
		return "calm"
	}
	return emotion
}
