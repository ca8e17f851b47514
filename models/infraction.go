package models

import "time"

// TargetType distinguishes user bans from whole-server bans.
type TargetType string

const (
	TargetUser   TargetType = "user"
	TargetServer TargetType = "server"
)

// InfractionStatus is the lifecycle state of an infraction.
type InfractionStatus string

const (
	InfractionActive   InfractionStatus = "ACTIVE"
	InfractionRevoked  InfractionStatus = "REVOKED"
	InfractionAppealed InfractionStatus = "APPEALED"
)

// Infraction is a blacklist record scoped to a hub and a user or server.
type Infraction struct {
	ID          string           `json:"id"`
	TargetID    string           `json:"target_id"`
	TargetType  TargetType       `json:"target_type"`
	HubID       string           `json:"hub_id"`
	Status      InfractionStatus `json:"status"`
	Reason      string           `json:"reason"`
	ModeratorID string           `json:"moderator_id"`
	CreatedAt   time.Time        `json:"created_at"`
	ExpiresAt   *time.Time       `json:"expires_at,omitempty"`
	AppealedAt  *time.Time       `json:"appealed_at,omitempty"`
}

// ActiveAt reports whether the infraction still blocks its target at t.
func (i *Infraction) ActiveAt(t time.Time) bool {
	if i == nil || i.Status != InfractionActive {
		return false
	}
	return i.ExpiresAt == nil || t.Before(*i.ExpiresAt)
}
