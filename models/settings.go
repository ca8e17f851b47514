package models

import "time"

// Settings is the typed view of config.yaml, .env and the merged JSON files.
type Settings struct {
	Bot        BotSettings        `mapstructure:"bot"`
	Log        LogSettings        `mapstructure:"log"`
	Database   DatabaseSettings   `mapstructure:"database"`
	Redis      RedisSettings      `mapstructure:"redis"`
	Cache      CacheSettings      `mapstructure:"cache"`
	Broadcast  BroadcastSettings  `mapstructure:"broadcast"`
	Moderation ModerationSettings `mapstructure:"moderation"`
	Messages   MessageSettings    `mapstructure:"messages"`
	Cluster    ClusterSettings    `mapstructure:"cluster"`
	Metrics    MetricsSettings    `mapstructure:"metrics"`
}

type BotSettings struct {
	Token          string   `mapstructure:"token" validate:"required"`
	AdminChannelID string   `mapstructure:"adminChannelId"`
	Developers     []string `mapstructure:"developers"`
	ShardID        int      `mapstructure:"shardId" validate:"gte=0"`
	ShardCount     int      `mapstructure:"shardCount" validate:"gte=1"`
}

type LogSettings struct {
	Level           string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Pretty          bool   `mapstructure:"pretty"`
	AdminRatePerSec int    `mapstructure:"adminRatePerSec" validate:"gte=0"`
}

type DatabaseSettings struct {
	Path string `mapstructure:"path" validate:"required"`
}

type RedisSettings struct {
	Addr     string `mapstructure:"addr" validate:"required"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"gte=0"`
}

type CacheSettings struct {
	ConnectionTTL time.Duration `mapstructure:"connectionTtl" validate:"gt=0"`
	HubTTL        time.Duration `mapstructure:"hubTtl" validate:"gt=0"`
	InfractionTTL time.Duration `mapstructure:"infractionTtl" validate:"gt=0"`
	MessageRefTTL time.Duration `mapstructure:"messageRefTtl" validate:"gt=0"`
}

type BroadcastSettings struct {
	BatchSize      int           `mapstructure:"batchSize" validate:"gte=1"`
	MaxInFlight    int           `mapstructure:"maxInFlight" validate:"gte=1"`
	PoolSweepEvery time.Duration `mapstructure:"poolSweepEvery" validate:"gt=0"`
	DeleteLockTTL  time.Duration `mapstructure:"deleteLockTtl" validate:"gt=0"`
}

type ModerationSettings struct {
	MaxLength          int           `mapstructure:"maxLength" validate:"gte=1"`
	MaxAttachmentBytes int           `mapstructure:"maxAttachmentBytes" validate:"gte=1"`
	MinAccountAge      time.Duration `mapstructure:"minAccountAge" validate:"gte=0"`
	AllowedMimeTypes   []string      `mapstructure:"allowedMimeTypes" validate:"min=1"`
	Spam               SpamSettings  `mapstructure:"spam"`
	NSFW               NSFWSettings  `mapstructure:"nsfw"`
	Profanity          []string      `mapstructure:"profanity"`
	Slurs              []string      `mapstructure:"slurs"`
}

type SpamSettings struct {
	Window            time.Duration `mapstructure:"window" validate:"gt=0"`
	Threshold         int           `mapstructure:"threshold" validate:"gte=1"`
	StrikeWindow      time.Duration `mapstructure:"strikeWindow" validate:"gt=0"`
	Strikes           int           `mapstructure:"strikes" validate:"gte=1"`
	BlacklistDuration time.Duration `mapstructure:"blacklistDuration" validate:"gt=0"`
}

type NSFWSettings struct {
	Endpoint  string        `mapstructure:"endpoint" validate:"omitempty,url"`
	Threshold float64       `mapstructure:"threshold" validate:"gt=0,lte=1"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type MessageSettings struct {
	Retention  time.Duration `mapstructure:"retention" validate:"gt=0"`
	SweepEvery time.Duration `mapstructure:"sweepEvery" validate:"gt=0"`
}

type ClusterSettings struct {
	Listen  string        `mapstructure:"listen"`
	Peers   []string      `mapstructure:"peers"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type MetricsSettings struct {
	Listen string `mapstructure:"listen"`
}
