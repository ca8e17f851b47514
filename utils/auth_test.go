package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hubnet/models"
)

func TestAuth_CanDeleteMessage(t *testing.T) {
	auth := NewAuth([]string{"dev"})
	hub := &models.Hub{ID: "h1", OwnerID: "owner"}
	msg := &models.OriginalMessage{ID: "m1", AuthorID: "author"}

	assert.True(t, auth.CanDeleteMessage("author", msg, hub))
	assert.True(t, auth.CanDeleteMessage("owner", msg, hub))
	assert.True(t, auth.CanDeleteMessage("dev", msg, hub))
	assert.False(t, auth.CanDeleteMessage("stranger", msg, hub))

	assert.False(t, auth.CanModerateHub("author", hub))
}
