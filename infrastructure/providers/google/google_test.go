package google

import (
	"context"
	"errors"
	"testing"
	"time"

	"vdchat/application/ports"
	"vdchat/infrastructure/providers/resilience"
	pkgerrors "vdchat/pkg/errors"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testGuard(name string) *resilience.Guard {
	return resilience.NewGuard(resilience.DefaultConfig(name, time.Second), zap.NewNop(), nil)
}

func TestEncodingFor(t *testing.T) {
	tests := []struct {
		contentType string
		expected    speechpb.RecognitionConfig_AudioEncoding
	}{
		{"audio/webm", speechpb.RecognitionConfig_WEBM_OPUS},
		{"audio/webm;codecs=opus", speechpb.RecognitionConfig_WEBM_OPUS},
		{"audio/wav", speechpb.RecognitionConfig_LINEAR16},
		{"audio/x-wav", speechpb.RecognitionConfig_LINEAR16},
		{"audio/mpeg", speechpb.RecognitionConfig_MP3},
		{"AUDIO/MP3", speechpb.RecognitionConfig_MP3},
		{"audio/ogg", speechpb.RecognitionConfig_OGG_OPUS},
		{"", speechpb.RecognitionConfig_WEBM_OPUS},
	}

	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			assert.Equal(t, tt.expected, EncodingFor(tt.contentType))
		})
	}
}

func TestSpeechGateway_Transcribe(t *testing.T) {
	// Arrange
	var captured *speechpb.RecognizeRequest
	gateway := newSpeechGateway(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		captured = req
		return &speechpb.RecognizeResponse{
			Results: []*speechpb.SpeechRecognitionResult{
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " tell me about photosynthesis ", Confidence: 0.9}}},
				{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "ignored"}}},
			},
		}, nil
	}, testGuard("speech"), SpeechConfig{}, zap.NewNop())

	// Act
	text, err := gateway.Transcribe(context.Background(), []byte{1, 2, 3}, ports.AudioMetadata{ContentType: "audio/webm"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "tell me about photosynthesis", text)
	assert.Equal(t, speechpb.RecognitionConfig_WEBM_OPUS, captured.GetConfig().GetEncoding())
	assert.Equal(t, int32(48000), captured.GetConfig().GetSampleRateHertz())
	assert.Equal(t, "en-US", captured.GetConfig().GetLanguageCode())
	assert.True(t, captured.GetConfig().GetEnableAutomaticPunctuation())
	assert.Equal(t, []byte{1, 2, 3}, captured.GetAudio().GetContent())
}

func TestSpeechGateway_NoResultsIsEmptyText(t *testing.T) {
	gateway := newSpeechGateway(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return &speechpb.RecognizeResponse{}, nil
	}, testGuard("speech"), SpeechConfig{}, zap.NewNop())

	text, err := gateway.Transcribe(context.Background(), []byte{1}, ports.AudioMetadata{ContentType: "audio/wav"})

	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestSpeechGateway_FailureIsProviderError(t *testing.T) {
	gateway := newSpeechGateway(func(ctx context.Context, req *speechpb.RecognizeRequest) (*speechpb.RecognizeResponse, error) {
		return nil, errors.New("permission denied")
	}, testGuard("speech"), SpeechConfig{}, zap.NewNop())

	_, err := gateway.Transcribe(context.Background(), []byte{1}, ports.AudioMetadata{})

	assert.True(t, pkgerrors.IsProvider(err))
}

func TestTTSGateway_Synthesize(t *testing.T) {
	var captured *texttospeechpb.SynthesizeSpeechRequest
	gateway := newTTSGateway(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		captured = req
		return &texttospeechpb.SynthesizeSpeechResponse{AudioContent: []byte("mp3")}, nil
	}, testGuard("tts"), ports.VoiceConfig{}, zap.NewNop())

	audio, contentType, err := gateway.Synthesize(context.Background(), "Hello there", ports.VoiceConfig{})

	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), audio)
	assert.Equal(t, "audio/mpeg", contentType)
	assert.Equal(t, "en-US-Standard-A", captured.GetVoice().GetName())
	assert.Equal(t, "en-US", captured.GetVoice().GetLanguageCode())
	assert.Equal(t, texttospeechpb.AudioEncoding_MP3, captured.GetAudioConfig().GetAudioEncoding())
	assert.Equal(t, "Hello there", captured.GetInput().GetText())
}

func TestTTSGateway_VoiceOverride(t *testing.T) {
	var captured *texttospeechpb.SynthesizeSpeechRequest
	gateway := newTTSGateway(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		captured = req
		return &texttospeechpb.SynthesizeSpeechResponse{}, nil
	}, testGuard("tts"), ports.VoiceConfig{}, zap.NewNop())

	_, _, err := gateway.Synthesize(context.Background(), "hi", ports.VoiceConfig{VoiceName: "en-GB-Standard-B", LanguageCode: "en-GB"})

	require.NoError(t, err)
	assert.Equal(t, "en-GB-Standard-B", captured.GetVoice().GetName())
	assert.Equal(t, "en-GB", captured.GetVoice().GetLanguageCode())
}

func TestTTSGateway_Errors(t *testing.T) {
	gateway := newTTSGateway(func(ctx context.Context, req *texttospeechpb.SynthesizeSpeechRequest) (*texttospeechpb.SynthesizeSpeechResponse, error) {
		return nil, errors.New("quota exceeded")
	}, testGuard("tts"), ports.VoiceConfig{}, zap.NewNop())

	_, _, err := gateway.Synthesize(context.Background(), "  ", ports.VoiceConfig{})
	assert.True(t, pkgerrors.IsValidation(err))

	_, _, err = gateway.Synthesize(context.Background(), "hi", ports.VoiceConfig{})
	assert.True(t, pkgerrors.IsProvider(err))
}
