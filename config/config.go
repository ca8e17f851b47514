package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hubnet/models"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from several sources:
// 1. the .env file (environment variables)
// 2. config.yaml (base configuration)
// 3. config/lexicon.json (profanity and slur word lists, merged into the base)
// Environment variables override file values with the same key.
func LoadConfig() (*models.Settings, error) {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg(".env file not found, skipping")
	}

	v := viper.New()
	SetDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
		log.Info().Msg("config.yaml not found, using environment variables and defaults")
	}

	v.SetConfigName("lexicon")
	v.SetConfigType("json")
	v.AddConfigPath("./config")
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("merge config/lexicon.json: %w", err)
		}
		log.Info().Msg("config/lexicon.json not found, word filters start empty")
	}

	// BOT_TOKEN is accepted without the bot. prefix for compatibility with .env files.
	if token := v.GetString("BOT_TOKEN"); token != "" {
		v.Set("bot.token", token)
	}

	return Decode(v)
}

// Decode unmarshals and validates the settings held by v.
func Decode(v *viper.Viper) (*models.Settings, error) {
	var cfg models.Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return &cfg, nil
}

// SetDefaults registers every default value on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("bot.shardId", 0)
	v.SetDefault("bot.shardCount", 1)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.adminRatePerSec", 1)

	v.SetDefault("database.path", "data/hubnet.db")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.connectionTtl", 5*time.Minute)
	v.SetDefault("cache.hubTtl", 10*time.Minute)
	v.SetDefault("cache.infractionTtl", 10*time.Minute)
	v.SetDefault("cache.messageRefTtl", 24*time.Hour)

	v.SetDefault("broadcast.batchSize", 15)
	v.SetDefault("broadcast.maxInFlight", 10)
	v.SetDefault("broadcast.poolSweepEvery", 5*time.Minute)
	v.SetDefault("broadcast.deleteLockTtl", time.Minute)

	v.SetDefault("moderation.maxLength", 1000)
	v.SetDefault("moderation.maxAttachmentBytes", 8*1024*1024)
	v.SetDefault("moderation.minAccountAge", 7*24*time.Hour)
	v.SetDefault("moderation.allowedMimeTypes", []string{"image/png", "image/jpeg", "image/gif", "image/webp"})
	v.SetDefault("moderation.spam.window", 5*time.Second)
	v.SetDefault("moderation.spam.threshold", 4)
	v.SetDefault("moderation.spam.strikeWindow", time.Minute)
	v.SetDefault("moderation.spam.strikes", 3)
	v.SetDefault("moderation.spam.blacklistDuration", 5*time.Minute)
	v.SetDefault("moderation.nsfw.threshold", 0.8)
	v.SetDefault("moderation.nsfw.timeout", 10*time.Second)
	v.SetDefault("moderation.profanity", []string{})
	v.SetDefault("moderation.slurs", []string{})

	v.SetDefault("messages.retention", 7*24*time.Hour)
	v.SetDefault("messages.sweepEvery", time.Hour)

	v.SetDefault("cluster.timeout", 5*time.Second)
}
