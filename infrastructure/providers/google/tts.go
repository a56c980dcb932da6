package google

import (
	"context"
	"strings"

	"vdchat/application/ports"
	"vdchat/infrastructure/providers/resilience"
	pkgerrors "vdchat/pkg/errors"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"go.uber.org/zap"
)

const (
	ttsProvider   = "tts"
	mp3MimeType   = "audio/mpeg"
	defaultVoice  = "en-US-Standard-A"
	defaultLocale = "en-US"
)

type synthesizeFunc func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error)

// TTSGateway implements ports.SynthesisGateway
type TTSGateway struct {
	synthesize synthesizeFunc
	guard      *resilience.Guard
	defaults   ports.VoiceConfig
	logger     *zap.Logger
}

// NewTTSGateway wraps a Text-to-Speech client. The caller owns the client.
func NewTTSGateway(client *texttospeech.Client, guard *resilience.Guard, defaults ports.VoiceConfig, logger *zap.Logger) *TTSGateway {
	return newTTSGateway(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return client.SynthesizeSpeech(ctx, req)
	}, guard, defaults, logger)
}

func newTTSGateway(synthesize synthesizeFunc, guard *resilience.Guard, defaults ports.VoiceConfig, logger *zap.Logger) *TTSGateway {
	if defaults.LanguageCode == "" {
		defaults.LanguageCode = defaultLocale
	}
	if defaults.VoiceName == "" {
		defaults.VoiceName = defaultVoice
	}
	return &TTSGateway{
		synthesize: synthesize,
		guard:      guard,
		defaults:   defaults,
		logger:     logger,
	}
}

// Synthesize renders text as MP3. Empty fields of voice fall back to the
// gateway defaults.
func (g *TTSGateway) Synthesize(ctx context.Context, text string, voice ports.VoiceConfig) ([]byte, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", pkgerrors.NewValidationError("text cannot be empty")
	}
	if voice.LanguageCode == "" {
		voice.LanguageCode = g.defaults.LanguageCode
	}
	if voice.VoiceName == "" {
		voice.VoiceName = g.defaults.VoiceName
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: voice.LanguageCode,
			Name:         voice.VoiceName,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return g.synthesize(ctx, req)
	})
	if err != nil {
		return nil, "", pkgerrors.NewProviderError(ttsProvider, err)
	}

	g.logger.Debug("Speech synthesized",
		zap.String("voice", voice.VoiceName),
		zap.Int("text_length", len(text)),
		zap.Int("audio_bytes", len(resp.GetAudioContent())),
	)
	return resp.GetAudioContent(), mp3MimeType, nil
}
