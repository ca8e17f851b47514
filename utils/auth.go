package utils

import (
	"slices"

	"hubnet/models"
)

// Auth answers who may act on hubs and relayed messages.
type Auth struct {
	developers []string
}

// NewAuth creates an Auth for the configured developer ids.
func NewAuth(developers []string) *Auth {
	return &Auth{developers: developers}
}

// IsDeveloper checks if a user is a developer. Developers may act in every hub.
func (a *Auth) IsDeveloper(userID string) bool {
	return slices.Contains(a.developers, userID)
}

// CanModerateHub checks if a user owns the hub or is a developer.
func (a *Auth) CanModerateHub(userID string, hub *models.Hub) bool {
	return hub.OwnerID == userID || a.IsDeveloper(userID)
}

// CanDeleteMessage checks if a user may delete a relayed message: its author,
// the hub owner or a developer.
func (a *Auth) CanDeleteMessage(userID string, msg *models.OriginalMessage, hub *models.Hub) bool {
	return msg.AuthorID == userID || a.CanModerateHub(userID, hub)
}
