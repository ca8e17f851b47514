package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Defaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("bot.token", "abc")

	cfg, err := Decode(v)
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Broadcast.BatchSize)
	assert.Equal(t, 10, cfg.Broadcast.MaxInFlight)
	assert.Equal(t, 5*time.Minute, cfg.Broadcast.PoolSweepEvery)
	assert.Equal(t, 1000, cfg.Moderation.MaxLength)
	assert.Equal(t, 8*1024*1024, cfg.Moderation.MaxAttachmentBytes)
	assert.Equal(t, 7*24*time.Hour, cfg.Moderation.MinAccountAge)
	assert.Equal(t, 3, cfg.Moderation.Spam.Strikes)
	assert.Equal(t, 5*time.Minute, cfg.Moderation.Spam.BlacklistDuration)
	assert.Contains(t, cfg.Moderation.AllowedMimeTypes, "image/png")
}

func TestDecode_MissingToken(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	_, err := Decode(v)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Token")
}

func TestDecode_StringDurations(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("bot.token", "abc")
	v.Set("cache.connectionTtl", "90s")

	cfg, err := Decode(v)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Cache.ConnectionTTL)
}

func TestDecode_RejectsBadLevel(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("bot.token", "abc")
	v.Set("log.level", "loud")

	_, err := Decode(v)
	require.Error(t, err)
}
