package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func playerRow(id int64, text string) TurnEntry {
	return TurnEntry{ID: id, PlayerText: ptr(text), Status: StatusPending}
}

func npcRow(id int64, text string) TurnEntry {
	return TurnEntry{ID: id, NPCText: ptr(text), Status: StatusPending}
}

func TestNextExchange_PlayerNPCPlayer(t *testing.T) {
	rows := []TurnEntry{playerRow(1, "A"), npcRow(2, "B"), playerRow(3, "C")}

	ex, superseded := NextExchange(rows)

	require.NotNil(t, ex)
	assert.Equal(t, "A", ex.PlayerText())
	assert.Equal(t, "B", ex.NPCText())
	assert.Equal(t, []int64{1, 2}, ex.RowIDs())
	assert.Empty(t, superseded)

	// with A and B processed, C alone is no work
	ex, superseded = NextExchange(rows[2:])
	assert.Nil(t, ex)
	assert.Empty(t, superseded)
}

func TestNextExchange_Policies(t *testing.T) {
	tests := []struct {
		name           string
		rows           []TurnEntry
		wantPair       []int64
		wantSuperseded []int64
	}{
		{
			name: "empty buffer",
		},
		{
			name: "player only",
			rows: []TurnEntry{playerRow(1, "hi")},
		},
		{
			name:           "consecutive player rows keep the latest",
			rows:           []TurnEntry{playerRow(1, "hi"), playerRow(2, "hello?"), npcRow(3, "yes")},
			wantPair:       []int64{2, 3},
			wantSuperseded: []int64{1},
		},
		{
			name:           "orphan npc row is superseded",
			rows:           []TurnEntry{npcRow(1, "welcome"), playerRow(2, "hi"), npcRow(3, "hello")},
			wantPair:       []int64{2, 3},
			wantSuperseded: []int64{1},
		},
		{
			name:     "unsorted input is scanned by id",
			rows:     []TurnEntry{npcRow(8, "B"), playerRow(5, "A")},
			wantPair: []int64{5, 8},
		},
		{
			name:     "row carrying both lines",
			rows:     []TurnEntry{{ID: 4, PlayerText: ptr("hi"), NPCText: ptr("hello")}},
			wantPair: []int64{4},
		},
		{
			name: "orphans without a completed exchange are left alone",
			rows: []TurnEntry{npcRow(1, "welcome"), playerRow(2, "hi")},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, superseded := NextExchange(tt.rows)

			if tt.wantPair == nil {
				assert.Nil(t, ex)
			} else {
				require.NotNil(t, ex)
				assert.Equal(t, tt.wantPair, ex.RowIDs())
			}
			var ids []int64
			for _, r := range superseded {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.wantSuperseded, ids)
		})
	}
}

func TestNextExchange_DoesNotReorderInput(t *testing.T) {
	rows := []TurnEntry{npcRow(2, "B"), playerRow(1, "A")}

	NextExchange(rows)

	assert.Equal(t, int64(2), rows[0].ID)
}

func TestExchange_Fact(t *testing.T) {
	tests := []struct {
		name   string
		player TurnEntry
		want   string
	}{
		{name: "no change", player: TurnEntry{TrustSnapshot: 50}, want: ""},
		{name: "trust rise", player: TurnEntry{TrustSnapshot: 54, TrustDelta: 4}, want: "trust +4 (now 54)"},
		{
			name:   "offensive",
			player: TurnEntry{TrustSnapshot: 0, TrustDelta: -50, Note: "[player spoke offensively or disrespectfully]"},
			want:   "trust -50 (now 0); [player spoke offensively or disrespectfully]",
		},
		{name: "note only", player: TurnEntry{TrustSnapshot: 0, Note: "[player spoke offensively or disrespectfully]"}, want: "[player spoke offensively or disrespectfully]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Exchange{Player: tt.player}.Fact())
		})
	}
}

func TestAnnotateExchange(t *testing.T) {
	ex := Exchange{
		Player: TurnEntry{PlayerText: ptr("Liar."), TrustSnapshot: 47, TrustDelta: -3},
		NPC:    TurnEntry{NPCText: ptr("I never lied.")},
	}
	scenes := []Scene{{
		Tag: "gate",
		Episodes: []Episode{
			{Number: 1, Speaker: SpeakerPlayer, Said: "Liar."},
			{Number: 2, Speaker: SpeakerNPC, Said: "I never lied.", RespondingTo: 1},
			{Number: 3, Speaker: SpeakerPlayer, Said: "Liar."},
		},
	}}

	require.True(t, AnnotateExchange(scenes, ex))
	assert.Empty(t, scenes[0].Episodes[0].Fact)
	assert.Equal(t, "trust -3 (now 47)", scenes[0].Episodes[2].Fact)

	// A fact the summary already wrote is kept.
	assert.False(t, AnnotateExchange(scenes, ex))
	assert.Equal(t, "trust -3 (now 47)", scenes[0].Episodes[2].Fact)

	assert.False(t, AnnotateExchange(scenes, Exchange{Player: TurnEntry{PlayerText: ptr("Liar.")}}))
}
