package moderation

import "fmt"

// Reason names why the gate stopped a message.
type Reason string

const (
	ReasonBlacklisted           Reason = "blacklisted"
	ReasonSpamThrottled         Reason = "spam_throttled"
	ReasonSlur                  Reason = "slur"
	ReasonNewAccount            Reason = "new_account"
	ReasonTooLong               Reason = "too_long"
	ReasonStickerOnly           Reason = "sticker_only"
	ReasonUnsupportedAttachment Reason = "unsupported_attachment"
	ReasonAttachmentTooLarge    Reason = "attachment_too_large"
	ReasonInviteLinkBlocked     Reason = "invite_link_blocked"
	ReasonNSFW                  Reason = "nsfw"
)

// Rejection is returned by the gate when a message must not enter the hub.
// Notice, when set, is shown to the author.
type Rejection struct {
	Reason Reason
	Notice string
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("message rejected: %s", r.Reason)
}

func reject(reason Reason, notice string) *Rejection {
	return &Rejection{Reason: reason, Notice: notice}
}
