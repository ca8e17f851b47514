// Package moderation decides whether a message may enter a hub. The gate is
// an ordered chain of checks; the first one that fails rejects the message.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/infraction"
	"hubnet/metrics"
	"hubnet/models"
)

// Infractions is the part of the infraction store the gate needs.
type Infractions interface {
	FetchActive(ctx context.Context, targetType models.TargetType, targetID, hubID string) (*models.Infraction, error)
	Add(ctx context.Context, in infraction.Input) (*models.Infraction, error)
}

// Notifier tells an author why their message was dropped.
type Notifier interface {
	Notify(ctx context.Context, c *Candidate, r *Rejection)
}

// Candidate is a message waiting to enter a hub.
type Candidate struct {
	Hub         *models.Hub
	Source      *models.Connection
	MessageID   string
	AuthorID    string
	Content     string
	Attachments []models.Attachment
	Stickers    int
	At          time.Time
}

// Verdict is the result for a message that passed every check.
type Verdict struct {
	// Profane is set when the content matched the profanity list. The
	// message is still relayed; targets with a profanity filter get a
	// censored copy.
	Profane bool
}

type check struct {
	name string
	run  func(ctx context.Context, c *Candidate, v *Verdict) error
}

// Gate runs the moderation chain.
type Gate struct {
	infractions Infractions
	spam        *AntiSpam
	lexicon     *Lexicon
	classifier  Classifier
	notifier    Notifier
	cfg         models.ModerationSettings
	moderatorID string
	now         func() time.Time

	checks []check
}

// Option configures optional gate collaborators.
type Option func(*Gate)

// WithClassifier enables the NSFW image check.
func WithClassifier(c Classifier) Option {
	return func(g *Gate) { g.classifier = c }
}

// WithNotifier sets who tells authors about rejections.
func WithNotifier(n Notifier) Option {
	return func(g *Gate) { g.notifier = n }
}

// WithModeratorID sets the moderator recorded on automatic infractions.
func WithModeratorID(id string) Option {
	return func(g *Gate) { g.moderatorID = id }
}

// NewGate builds the chain in its fixed order.
func NewGate(infractions Infractions, spam *AntiSpam, lexicon *Lexicon, cfg models.ModerationSettings, opts ...Option) *Gate {
	g := &Gate{
		infractions: infractions,
		spam:        spam,
		lexicon:     lexicon,
		cfg:         cfg,
		moderatorID: "system",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.checks = []check{
		{"blacklist", g.checkBlacklist},
		{"antispam", g.checkSpam},
		{"slurs", g.checkSlurs},
		{"profanity", g.checkProfanity},
		{"account_age", g.checkAccountAge},
		{"content", g.checkContent},
		{"invites", g.checkInvites},
		{"nsfw", g.checkNSFW},
	}
	return g
}

// Lexicon exposes the word lists used by the gate so renderers censor with
// the same lists.
func (g *Gate) Lexicon() *Lexicon {
	return g.lexicon
}

// Check runs the chain. A *Rejection error means the message must be dropped;
// any other error is an infrastructure failure.
func (g *Gate) Check(ctx context.Context, c *Candidate) (*Verdict, error) {
	if c.At.IsZero() {
		c.At = g.now()
	}
	v := &Verdict{}
	for _, chk := range g.checks {
		err := chk.run(ctx, c, v)
		if err == nil {
			continue
		}
		var rej *Rejection
		if errors.As(err, &rej) {
			metrics.Rejections.WithLabelValues(string(rej.Reason)).Inc()
			log.Debug().
				Str("check", chk.name).
				Str("reason", string(rej.Reason)).
				Str("author_id", c.AuthorID).
				Str("hub_id", c.Hub.ID).
				Msg("message rejected")
			if rej.Notice != "" && g.notifier != nil {
				g.notifier.Notify(ctx, c, rej)
			}
			return nil, rej
		}
		return nil, fmt.Errorf("%s check: %w", chk.name, err)
	}
	return v, nil
}

func (g *Gate) checkBlacklist(ctx context.Context, c *Candidate, _ *Verdict) error {
	inf, err := g.infractions.FetchActive(ctx, models.TargetUser, c.AuthorID, c.Hub.ID)
	if err != nil {
		return err
	}
	if inf != nil {
		return reject(ReasonBlacklisted, "You are blacklisted from this hub.")
	}
	inf, err = g.infractions.FetchActive(ctx, models.TargetServer, c.Source.ServerID, c.Hub.ID)
	if err != nil {
		return err
	}
	if inf != nil {
		return reject(ReasonBlacklisted, "This server is blacklisted from this hub.")
	}
	return nil
}

func (g *Gate) checkSpam(ctx context.Context, c *Candidate, _ *Verdict) error {
	res, err := g.spam.Hit(ctx, c.AuthorID, c.At)
	if err != nil {
		log.Warn().Err(err).Str("author_id", c.AuthorID).Msg("anti-spam counter unavailable")
	}
	if !res.Flagged {
		return nil
	}

	if res.Strikes >= int64(g.cfg.Spam.Strikes) && c.Hub.Settings.Has(models.SettingSpamFilter) {
		expires := c.At.Add(g.cfg.Spam.BlacklistDuration)
		inf, err := g.infractions.Add(ctx, infraction.Input{
			TargetID:    c.AuthorID,
			TargetType:  models.TargetUser,
			HubID:       c.Hub.ID,
			Reason:      "Auto-blacklisted for spamming",
			ModeratorID: g.moderatorID,
			ExpiresAt:   &expires,
		})
		if err != nil {
			return err
		}
		if err := g.spam.Reset(ctx, c.AuthorID); err != nil {
			log.Warn().Err(err).Str("author_id", c.AuthorID).Msg("failed to reset spam strikes")
		}
		log.Warn().
			Str("infraction_id", inf.ID).
			Str("author_id", c.AuthorID).
			Str("hub_id", c.Hub.ID).
			Time("expires_at", expires).
			Msg("author auto-blacklisted for spam")
		return reject(ReasonSpamThrottled, fmt.Sprintf(
			"You have been blacklisted from this hub for %s for spamming.", g.cfg.Spam.BlacklistDuration))
	}
	return reject(ReasonSpamThrottled, "")
}

func (g *Gate) checkSlurs(_ context.Context, c *Candidate, _ *Verdict) error {
	if g.lexicon.Check(c.Content).HasSlurs {
		return reject(ReasonSlur, "Your message contains language that is not allowed in hubs.")
	}
	return nil
}

func (g *Gate) checkProfanity(_ context.Context, c *Candidate, v *Verdict) error {
	if g.lexicon.Check(c.Content).HasProfanity {
		v.Profane = true
		log.Info().
			Str("message_id", c.MessageID).
			Str("author_id", c.AuthorID).
			Str("hub_id", c.Hub.ID).
			Str("content", c.Content).
			Msg("profanity flagged")
	}
	return nil
}

func (g *Gate) checkAccountAge(_ context.Context, c *Candidate, _ *Verdict) error {
	if g.cfg.MinAccountAge <= 0 {
		return nil
	}
	created, err := discordgo.SnowflakeTimestamp(c.AuthorID)
	if err != nil {
		return nil
	}
	if c.At.Sub(created) < g.cfg.MinAccountAge {
		return reject(ReasonNewAccount, fmt.Sprintf(
			"Your account must be at least %d days old to chat in hubs.", int(g.cfg.MinAccountAge.Hours()/24)))
	}
	return nil
}

func (g *Gate) checkContent(_ context.Context, c *Candidate, _ *Verdict) error {
	if utf8.RuneCountInString(c.Content) > g.cfg.MaxLength {
		return reject(ReasonTooLong, fmt.Sprintf("Your message is too long (max %d characters).", g.cfg.MaxLength))
	}
	if c.Stickers > 0 && strings.TrimSpace(c.Content) == "" && len(c.Attachments) == 0 {
		return reject(ReasonStickerOnly, "Stickers cannot be sent to hubs.")
	}
	for _, a := range c.Attachments {
		if !g.allowedType(a.ContentType) {
			return reject(ReasonUnsupportedAttachment, "That attachment type is not supported in hubs.")
		}
		if a.Size > g.cfg.MaxAttachmentBytes {
			return reject(ReasonAttachmentTooLarge, fmt.Sprintf(
				"Attachments must be smaller than %d MB.", g.cfg.MaxAttachmentBytes/(1<<20)))
		}
	}
	return nil
}

func (g *Gate) allowedType(contentType string) bool {
	mime, _, _ := strings.Cut(contentType, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, allowed := range g.cfg.AllowedMimeTypes {
		if mime == allowed {
			return true
		}
	}
	return false
}

func (g *Gate) checkInvites(_ context.Context, c *Candidate, _ *Verdict) error {
	if c.Hub.Settings.Has(models.SettingBlockInvites) && HasInvite(c.Content) {
		return reject(ReasonInviteLinkBlocked, "Invite links are not allowed in this hub.")
	}
	return nil
}

func (g *Gate) checkNSFW(ctx context.Context, c *Candidate, _ *Verdict) error {
	if g.classifier == nil || !c.Hub.Settings.Has(models.SettingBlockNSFW) {
		return nil
	}
	for _, a := range c.Attachments {
		if !strings.HasPrefix(a.ContentType, "image/") {
			continue
		}
		score, err := g.classifier.Analyze(ctx, a.URL)
		if err != nil {
			log.Warn().Err(err).Str("url", a.URL).Msg("nsfw classifier failed, allowing image")
			continue
		}
		if score >= g.cfg.NSFW.Threshold {
			return reject(ReasonNSFW, "NSFW images are not allowed in this hub.")
		}
	}
	return nil
}
