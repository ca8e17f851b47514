package moderation

import "regexp"

var (
	invitePattern = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?(?:discord(?:app)?\.(?:gg|com/invite|me)|dsc\.gg|invite\.gg)/[a-z0-9-]+`)
	linkPattern   = regexp.MustCompile(`(?i)\bhttps?://[^\s<>]+`)
)

// HiddenLink replaces URLs when a hub hides links.
const HiddenLink = "`[link hidden]`"

// HasInvite reports whether text carries a server invite.
func HasInvite(text string) bool {
	return invitePattern.MatchString(text)
}

// MaskLinks replaces every URL in text with HiddenLink.
func MaskLinks(text string) string {
	return linkPattern.ReplaceAllString(text, HiddenLink)
}
