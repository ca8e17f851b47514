package handlers

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"hubnet/command"
	"hubnet/customid"
	"hubnet/identity"
	"hubnet/models"
	"hubnet/render"
	"hubnet/utils"
)

// reactionSelect is the route of the select menu in the "view all" list.
const reactionSelect = "select"

// maxSelectOptions is the platform limit for options in one select menu.
const maxSelectOptions = 25

// Responder answers interactions. *discordgo.Session implements it.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// HubLookup resolves hub settings and owners.
type HubLookup interface {
	GetHub(ctx context.Context, id string) (*models.Hub, error)
}

// ComponentHandler handles one component route.
type ComponentHandler func(ctx context.Context, r Responder, i *discordgo.Interaction, id customid.ID) error

// CommandHandler handles one application command.
type CommandHandler func(ctx context.Context, r Responder, i *discordgo.Interaction) error

// Interactions dispatches commands and components through fixed tables built
// at startup.
type Interactions struct {
	messages Messages
	hubs     HubLookup
	auth     *utils.Auth

	components map[string]ComponentHandler
	commands   map[string]CommandHandler
}

func NewInteractions(messages Messages, hubs HubLookup, auth *utils.Auth) *Interactions {
	x := &Interactions{messages: messages, hubs: hubs, auth: auth}
	x.components = map[string]ComponentHandler{
		customid.Encode(render.ReactionPrefix, render.ReactionToggle): x.toggleReaction,
		customid.Encode(render.ReactionPrefix, render.ReactionViewAll): x.viewReactions,
		customid.Encode(render.ReactionPrefix, reactionSelect):         x.selectReaction,
	}
	x.commands = map[string]CommandHandler{
		command.PingName:          x.ping,
		command.DeleteMessageName: x.deleteMessage,
	}
	return x
}

// Handle routes one interaction.
func (x *Interactions) Handle(ctx context.Context, r Responder, i *discordgo.Interaction) error {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		name := i.ApplicationCommandData().Name
		h, ok := x.commands[name]
		if !ok {
			return respondEphemeral(r, i, "🚫 Unknown command.")
		}
		return h(ctx, r, i)

	case discordgo.InteractionMessageComponent:
		id, err := customid.Parse(i.MessageComponentData().CustomID)
		if err != nil {
			return fmt.Errorf("component %q: %w", i.MessageComponentData().CustomID, err)
		}
		h, ok := x.components[id.Route()]
		if !ok {
			log.Warn().Str("route", id.Route()).Msg("no handler for component")
			return respondEphemeral(r, i, "🚫 This button is no longer supported.")
		}
		return h(ctx, r, i, id)
	}
	return nil
}

func (x *Interactions) ping(_ context.Context, r Responder, i *discordgo.Interaction) error {
	return respondEphemeral(r, i, "Pong!")
}

func (x *Interactions) deleteMessage(ctx context.Context, r Responder, i *discordgo.Interaction) error {
	if err := r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}); err != nil {
		return err
	}

	target := i.ApplicationCommandData().TargetID
	orig, err := x.messages.FindOrigin(ctx, target)
	if errors.Is(err, identity.ErrNotFound) {
		return editResponse(r, i, "This message isn't part of a hub.")
	}
	if err != nil {
		return err
	}
	hub, err := x.hubs.GetHub(ctx, orig.HubID)
	if err != nil {
		return err
	}
	if !x.auth.CanDeleteMessage(interactionUser(i), orig, hub) {
		return editResponse(r, i, "🚫 Only the author or the hub owner can delete this message.")
	}

	res, err := x.messages.DeleteOrigin(ctx, orig.ID)
	switch {
	case errors.Is(err, identity.ErrDeleteInProgress):
		return editResponse(r, i, "This message is already being deleted.")
	case errors.Is(err, identity.ErrNotFound):
		return editResponse(r, i, "This message isn't part of a hub.")
	case err != nil:
		return err
	}
	return editResponse(r, i, fmt.Sprintf("✅ Deleted from %d/%d channels.", res.Succeeded, res.Total))
}

func (x *Interactions) toggleReaction(ctx context.Context, r Responder, i *discordgo.Interaction, id customid.ID) error {
	if err := r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		return err
	}
	_, err := x.messages.ToggleReaction(ctx, id.Arg(0), id.Arg(1), interactionUser(i))
	if notice := reactionNotice(err); notice != "" {
		return followupEphemeral(r, i, notice)
	}
	return err
}

func (x *Interactions) viewReactions(ctx context.Context, r Responder, i *discordgo.Interaction, id customid.ID) error {
	origin := id.Arg(0)
	reactions, err := x.messages.Reactions(ctx, origin)
	if notice := reactionNotice(err); notice != "" {
		return respondEphemeral(r, i, notice)
	}
	if err != nil {
		return err
	}
	content, components := reactionList(origin, reactions)
	return r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:    content,
			Components: components,
			Flags:      discordgo.MessageFlagsEphemeral,
		},
	})
}

func (x *Interactions) selectReaction(ctx context.Context, r Responder, i *discordgo.Interaction, id customid.ID) error {
	values := i.MessageComponentData().Values
	if len(values) == 0 {
		return nil
	}
	if err := r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	}); err != nil {
		return err
	}

	origin := id.Arg(0)
	res, err := x.messages.ToggleReaction(ctx, origin, values[0], interactionUser(i))
	if notice := reactionNotice(err); notice != "" {
		return followupEphemeral(r, i, notice)
	}
	if err != nil {
		return err
	}

	content, components := reactionList(origin, res.Reactions)
	_, err = r.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content, Components: &components})
	return err
}

// reactionNotice maps expected toggle failures to what the user is told.
func reactionNotice(err error) string {
	switch {
	case errors.Is(err, identity.ErrUnknownReaction):
		return "This reaction doesn't exist."
	case errors.Is(err, identity.ErrReactionsDisabled):
		return "Reactions are disabled in this hub."
	case errors.Is(err, identity.ErrNotFound):
		return "This message is no longer available."
	}
	return ""
}

// reactionList renders the ephemeral "all reactions" view: one line per
// emoji, most used first, and a select menu to toggle any of them.
func reactionList(origin string, reactions models.Reactions) (string, []discordgo.MessageComponent) {
	if len(reactions) == 0 {
		return "No reactions yet.", []discordgo.MessageComponent{}
	}
	keys := make([]string, 0, len(reactions))
	for k := range reactions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		na, nb := len(reactions[keys[a]]), len(reactions[keys[b]])
		if na != nb {
			return na > nb
		}
		return keys[a] < keys[b]
	})

	var b strings.Builder
	options := make([]discordgo.SelectMenuOption, 0, min(len(keys), maxSelectOptions))
	for n, k := range keys {
		count := strconv.Itoa(len(reactions[k]))
		if n > 0 {
			b.WriteString("\n")
		}
		b.WriteString(k + " " + count)
		if len(options) < maxSelectOptions {
			options = append(options, discordgo.SelectMenuOption{Label: k + " " + count, Value: k})
		}
	}

	return b.String(), []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    customid.Encode(render.ReactionPrefix, reactionSelect, origin),
				Placeholder: "Add or remove a reaction",
				Options:     options,
			},
		}},
	}
}

func interactionUser(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondEphemeral(r Responder, i *discordgo.Interaction, content string) error {
	return r.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

func editResponse(r Responder, i *discordgo.Interaction, content string) error {
	_, err := r.InteractionResponseEdit(i, &discordgo.WebhookEdit{Content: &content})
	return err
}

func followupEphemeral(r Responder, i *discordgo.Interaction, content string) error {
	_, err := r.FollowupMessageCreate(i, false, &discordgo.WebhookParams{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
	return err
}
