// Package google adapts Google Cloud Speech-to-Text and Text-to-Speech to the
// transcription and synthesis gateways.
package google

import (
	"context"
	"strings"

	"vdchat/application/ports"
	"vdchat/infrastructure/providers/resilience"
	pkgerrors "vdchat/pkg/errors"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
)

const (
	speechProvider         = "speech"
	defaultSampleRateHertz = 48000
)

type recognizeFunc func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error)

// SpeechConfig holds recognition defaults
type SpeechConfig struct {
	LanguageCode    string
	SampleRateHertz int32
}

// SpeechGateway implements ports.TranscriptionGateway
type SpeechGateway struct {
	recognize recognizeFunc
	guard     *resilience.Guard
	config    SpeechConfig
	logger    *zap.Logger
}

// NewSpeechGateway wraps a Speech client. The caller owns the client.
func NewSpeechGateway(client *speech.Client, guard *resilience.Guard, cfg SpeechConfig, logger *zap.Logger) *SpeechGateway {
	return newSpeechGateway(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return client.Recognize(ctx, req)
	}, guard, cfg, logger)
}

func newSpeechGateway(recognize recognizeFunc, guard *resilience.Guard, cfg SpeechConfig, logger *zap.Logger) *SpeechGateway {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.SampleRateHertz == 0 {
		cfg.SampleRateHertz = defaultSampleRateHertz
	}
	return &SpeechGateway{
		recognize: recognize,
		guard:     guard,
		config:    cfg,
		logger:    logger,
	}
}

// Transcribe returns the first alternative of the first result, or "" when
// nothing was recognized.
func (g *SpeechGateway) Transcribe(ctx context.Context, audio []byte, meta ports.AudioMetadata) (string, error) {
	req := &speechpb.RecognizeRequest{
		Config: g.recognitionConfig(meta),
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	}

	resp, err := resilience.Call(ctx, g.guard, func(ctx context.Context) (*speechpb.RecognizeResponse, error) {
		return g.recognize(ctx, req)
	})
	if err != nil {
		return "", pkgerrors.NewProviderError(speechProvider, err)
	}

	results := resp.GetResults()
	if len(results) == 0 || len(results[0].GetAlternatives()) == 0 {
		g.logger.Debug("No transcription results returned", zap.Int("audio_bytes", len(audio)))
		return "", nil
	}

	alternative := results[0].GetAlternatives()[0]
	g.logger.Debug("Audio transcribed",
		zap.Int("audio_bytes", len(audio)),
		zap.Float32("confidence", alternative.GetConfidence()),
	)
	return strings.TrimSpace(alternative.GetTranscript()), nil
}

func (g *SpeechGateway) recognitionConfig(meta ports.AudioMetadata) *speechpb.RecognitionConfig {
	cfg := &speechpb.RecognitionConfig{
		Encoding:                   EncodingFor(meta.ContentType),
		LanguageCode:               g.config.LanguageCode,
		EnableAutomaticPunctuation: true,
	}
	if meta.LanguageCode != "" {
		cfg.LanguageCode = meta.LanguageCode
	}

	// WAV headers carry the rate.
	if cfg.Encoding != speechpb.RecognitionConfig_LINEAR16 {
		cfg.SampleRateHertz = g.config.SampleRateHertz
		if meta.SampleRateHertz > 0 {
			cfg.SampleRateHertz = meta.SampleRateHertz
		}
	}
	return cfg
}

// EncodingFor maps an upload content type to a recognition encoding.
func EncodingFor(contentType string) speechpb.RecognitionConfig_AudioEncoding {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	switch ct {
	case "audio/wav", "audio/x-wav":
		return speechpb.RecognitionConfig_LINEAR16
	case "audio/mp3", "audio/mpeg":
		return speechpb.RecognitionConfig_MP3
	case "audio/ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_WEBM_OPUS
	}
}
