package models

import "time"

// HubSettings is the per-hub feature bitfield read by the moderation gate
// and the renderer. It is treated as an immutable snapshot once loaded.
type HubSettings uint32

const (
	SettingReactions HubSettings = 1 << iota
	SettingHideLinks
	SettingBlockInvites
	SettingBlockNSFW
	SettingSpamFilter
	SettingUseNicknames
)

// DefaultHubSettings is applied to newly created hubs.
const DefaultHubSettings = SettingReactions | SettingBlockInvites | SettingBlockNSFW | SettingSpamFilter

// Has reports whether every bit of flag is set.
func (s HubSettings) Has(flag HubSettings) bool {
	return s&flag == flag
}

// With returns a copy with flag set or cleared.
func (s HubSettings) With(flag HubSettings, on bool) HubSettings {
	if on {
		return s | flag
	}
	return s &^ flag
}

// Visibility controls whether a hub is listed publicly.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// DefaultAppealCooldown is used when a hub does not configure its own.
const DefaultAppealCooldown = 7 * 24 * time.Hour

// Hub is a named group of channels that share broadcast messages.
type Hub struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	OwnerID        string        `json:"owner_id"`
	IconURL        string        `json:"icon_url"`
	Visibility     Visibility    `json:"visibility"`
	Settings       HubSettings   `json:"settings"`
	AppealCooldown time.Duration `json:"appeal_cooldown"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Cooldown returns the appeal cooldown, falling back to the default.
func (h *Hub) Cooldown() time.Duration {
	if h.AppealCooldown <= 0 {
		return DefaultAppealCooldown
	}
	return h.AppealCooldown
}
