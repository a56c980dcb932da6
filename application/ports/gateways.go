package ports

import (
	"context"

	"vdchat/domain/core/valueobjects"
)

// AudioMetadata describes a recorded utterance
type AudioMetadata struct {
	ContentType     string
	SampleRateHertz int32
	LanguageCode    string
}

// TranscriptionGateway converts recorded speech to text
type TranscriptionGateway interface {
	// Transcribe returns "" when no speech was recognized. Transport or
	// authentication failures are returned as provider errors.
	Transcribe(ctx context.Context, audio []byte, meta AudioMetadata) (string, error)
}

// Sentiment is the result of sentiment analysis
type Sentiment struct {
	Label      string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
}

// NeutralSentiment is returned whenever analysis cannot be completed
var NeutralSentiment = Sentiment{Label: "neutral", Confidence: 0}

// CompletionGateway wraps the chat-completion model
type CompletionGateway interface {
	// GenerateResponse produces the assistant reply for a user utterance
	GenerateResponse(ctx context.Context, userText string) (string, error)

	// ExtractTopics never fails: provider errors and malformed output
	// degrade to an empty slice.
	ExtractTopics(ctx context.Context, text string) []valueobjects.TopicRecord

	// Summarize condenses a transcript
	Summarize(ctx context.Context, transcript string) (string, error)

	// AnalyzeSentiment degrades to NeutralSentiment on any failure
	AnalyzeSentiment(ctx context.Context, text string) Sentiment
}

// VoiceConfig selects the synthesized voice
type VoiceConfig struct {
	LanguageCode string
	VoiceName    string
}

// SynthesisGateway converts text to encoded audio
type SynthesisGateway interface {
	// Synthesize returns audio bytes and their content type
	Synthesize(ctx context.Context, text string, voice VoiceConfig) ([]byte, string, error)
}
