package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainConfig_IsAllowedAudioType(t *testing.T) {
	cfg := DefaultDomainConfig()

	assert.True(t, cfg.IsAllowedAudioType("audio/webm"))
	assert.True(t, cfg.IsAllowedAudioType("audio/webm; codecs=opus"))
	assert.True(t, cfg.IsAllowedAudioType("Audio/WAV"))
	assert.False(t, cfg.IsAllowedAudioType("video/mp4"))
	assert.False(t, cfg.IsAllowedAudioType(""))
}

func TestLoadDomainConfig_Production(t *testing.T) {
	assert.Less(t, LoadDomainConfig("production").MaxAudioBytes, DefaultDomainConfig().MaxAudioBytes)
	assert.Equal(t, "User: ", LoadDomainConfig("development").UserPrefix)
}
