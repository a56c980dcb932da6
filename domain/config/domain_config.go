package config

import "strings"

// DomainConfig holds the configurable business rules for conversations and
// their knowledge graphs.
type DomainConfig struct {
	// Audio input constraints
	MaxAudioBytes     int64
	AllowedAudioTypes []string

	// Text constraints
	MaxMessageLength   int
	MaxSynthesisLength int

	// Transcript line prefixes
	UserPrefix      string
	AssistantPrefix string
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		MaxAudioBytes: 10 << 20,
		AllowedAudioTypes: []string{
			"audio/wav",
			"audio/x-wav",
			"audio/mp3",
			"audio/mpeg",
			"audio/ogg",
			"audio/webm",
			"audio/webm;codecs=opus",
		},

		MaxMessageLength:   4000,
		MaxSynthesisLength: 5000,

		UserPrefix:      "User: ",
		AssistantPrefix: "AI: ",
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()
	config.MaxAudioBytes = 5 << 20
	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	if environment == "production" {
		return ProductionDomainConfig()
	}
	return DefaultDomainConfig()
}

// IsAllowedAudioType reports whether contentType is one of the accepted
// audio formats. Matching ignores case and whitespace.
func (c *DomainConfig) IsAllowedAudioType(contentType string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(contentType, " ", ""))
	for _, allowed := range c.AllowedAudioTypes {
		if normalized == allowed {
			return true
		}
	}
	return false
}
