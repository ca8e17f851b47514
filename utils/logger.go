package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	ColorInfo  = 0x00ff00 // Green
	ColorWarn  = 0xffff00 // Yellow
	ColorError = 0xff0000 // Red

	adminQueueSize = 64
	maxFieldValue  = 1024
)

// InitLogger configures the global zerolog logger.
func InitLogger(level string, pretty bool) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339

	log.Logger = zerolog.New(baseWriter(pretty)).With().Timestamp().Logger()
	return nil
}

func baseWriter(pretty bool) io.Writer {
	if pretty {
		return zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime}
	}
	return os.Stderr
}

// EmbedSender posts embeds to a channel. *discordgo.Session implements it.
type EmbedSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// AdminWriter forwards WARN and above to an admin channel as embeds. Sends
// are queued and rate limited; events over the limit are dropped.
type AdminWriter struct {
	sender    EmbedSender
	channelID string
	limiter   *rate.Limiter
	queue     chan *discordgo.MessageEmbed
	done      chan struct{}
}

// NewAdminWriter starts the forwarding goroutine. perSec <= 0 disables the
// limit.
func NewAdminWriter(sender EmbedSender, channelID string, perSec int) *AdminWriter {
	limit := rate.Inf
	if perSec > 0 {
		limit = rate.Limit(perSec)
	}
	w := &AdminWriter{
		sender:    sender,
		channelID: channelID,
		limiter:   rate.NewLimiter(limit, max(perSec, 1)),
		queue:     make(chan *discordgo.MessageEmbed, adminQueueSize),
		done:      make(chan struct{}),
	}
	go w.loop()
	return w
}

// Write satisfies io.Writer; only WriteLevel forwards.
func (w *AdminWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

func (w *AdminWriter) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < zerolog.WarnLevel || level == zerolog.NoLevel {
		return len(p), nil
	}
	if !w.limiter.Allow() {
		return len(p), nil
	}
	select {
	case w.queue <- adminEmbed(level, p):
	default:
	}
	return len(p), nil
}

// Close stops forwarding after the queue drains.
func (w *AdminWriter) Close() error {
	close(w.queue)
	<-w.done
	return nil
}

func (w *AdminWriter) loop() {
	defer close(w.done)
	for embed := range w.queue {
		if _, err := w.sender.ChannelMessageSendEmbed(w.channelID, embed); err != nil {
			// Not logged through zerolog: it would come straight back here.
			fmt.Fprintf(os.Stderr, "failed to forward log to admin channel: %v\n", err)
		}
	}
}

func adminEmbed(level zerolog.Level, p []byte) *discordgo.MessageEmbed {
	color := ColorWarn
	if level >= zerolog.ErrorLevel {
		color = ColorError
	}
	embed := &discordgo.MessageEmbed{
		Title:     "Log Level: " + level.CapitalString(),
		Color:     color,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	var fields map[string]any
	if err := json.Unmarshal(p, &fields); err != nil {
		embed.Description = truncate(string(p))
		return embed
	}
	if msg, ok := fields[zerolog.MessageFieldName].(string); ok {
		embed.Description = truncate(msg)
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		switch k {
		case zerolog.MessageFieldName, zerolog.LevelFieldName, zerolog.TimestampFieldName:
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   k,
			Value:  truncate(fmt.Sprint(fields[k])),
			Inline: k != zerolog.ErrorFieldName,
		})
	}
	return embed
}

func truncate(s string) string {
	if len(s) <= maxFieldValue {
		return s
	}
	return s[:maxFieldValue-3] + "..."
}

// AttachAdminChannel tees the global logger into the admin channel. It
// returns the writer so the caller can Close it on shutdown, or nil when no
// channel is configured.
func AttachAdminChannel(sender EmbedSender, channelID string, perSec int, pretty bool) *AdminWriter {
	if channelID == "" {
		log.Warn().Msg("bot.adminChannelId is not set, admin channel logging disabled")
		return nil
	}
	w := NewAdminWriter(sender, channelID, perSec)
	log.Logger = zerolog.New(zerolog.MultiLevelWriter(baseWriter(pretty), w)).With().Timestamp().Logger()
	return w
}
