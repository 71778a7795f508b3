package relationship

import "time"

const (
	// DefaultTrust is the trust an NPC extends on first contact.
	DefaultTrust = 50
	MinTrust     = 0
	MaxTrust     = 100

	// EnemyThreshold is the highest trust still considered hostile.
	EnemyThreshold = 20

	// OffensivePenalty is applied on top of the classification delta when the
	// player's line was classified as offensive.
	OffensivePenalty = -50
)

// Label names the relationship tier derived from trust.
type Label string

const (
	LabelEnemy        Label = "enemy"
	LabelStranger     Label = "stranger"
	LabelAcquaintance Label = "acquaintance"
	LabelFriend       Label = "friend"
	LabelMentor       Label = "mentor"
	LabelFormerEnemy  Label = "former_enemy"
)

// Relationship is an NPC's standing toward one player.
type Relationship struct {
	NPCID     string    `json:"npc_id"`
	UserID    string    `json:"user_id"`
	Trust     int       `json:"trust"`
	WasEnemy  bool      `json:"was_enemy"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns the relationship an NPC starts with on first contact.
func New(npcID, userID string) *Relationship {
	return &Relationship{
		NPCID:  npcID,
		UserID: userID,
		Trust:  DefaultTrust,
	}
}

// ApplyDelta shifts trust by delta, clamped to [MinTrust, MaxTrust].
// Dropping into the enemy band latches WasEnemy; nothing ever clears it.
// Returns the new trust.
func (r *Relationship) ApplyDelta(delta int) int {
	r.Trust = clamp(r.Trust + delta)
	if r.Trust <= EnemyThreshold {
		r.WasEnemy = true
	}
	return r.Trust
}

// Label returns the tier for the current trust, reporting former_enemy once
// a past enemy has climbed back above the enemy band.
func (r *Relationship) Label() Label {
	if r.WasEnemy && r.Trust > EnemyThreshold {
		return LabelFormerEnemy
	}
	return LabelFor(r.Trust)
}

// LabelFor maps trust to a tier without history.
func LabelFor(trust int) Label {
	switch {
	case trust <= EnemyThreshold:
		return LabelEnemy
	case trust <= 40:
		return LabelStranger
	case trust <= 60:
		return LabelAcquaintance
	case trust <= 80:
		return LabelFriend
	default:
		return LabelMentor
	}
}

func clamp(trust int) int {
	if trust < MinTrust {
		return MinTrust
	}
	if trust > MaxTrust {
		return MaxTrust
	}
	return trust
}
