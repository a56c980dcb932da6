package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"unicode/utf8"

	"vdchat/application/ports"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
)

// SpeechHandler serves the standalone synthesis and analysis endpoints
type SpeechHandler struct {
	responder
	synthesizer        ports.SynthesisGateway
	completion         ports.CompletionGateway
	maxSynthesisLength int
}

// NewSpeechHandler creates a new speech handler. maxSynthesisLength caps the
// characters accepted by /voice-output; 0 disables the cap.
func NewSpeechHandler(synthesizer ports.SynthesisGateway, completion ports.CompletionGateway, maxSynthesisLength int, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *SpeechHandler {
	return &SpeechHandler{
		responder:          responder{errors: errorHandler, logger: logger},
		synthesizer:        synthesizer,
		completion:         completion,
		maxSynthesisLength: maxSynthesisLength,
	}
}

// VoiceRequest selects a synthesis voice
type VoiceRequest struct {
	LanguageCode string `json:"language_code" validate:"max=35"`
	Name         string `json:"name" validate:"max=100"`
}

// VoiceOutputRequest represents the request body for synthesis
type VoiceOutputRequest struct {
	Text  string        `json:"text" validate:"required"`
	Voice *VoiceRequest `json:"voice,omitempty"`
}

// VoiceOutputResponse carries base64 encoded audio
type VoiceOutputResponse struct {
	AudioContent string `json:"audio_content"`
	ContentType  string `json:"content_type"`
}

// SentimentRequest represents the request body for sentiment analysis
type SentimentRequest struct {
	Text string `json:"text" validate:"required,max=5000"`
}

// VoiceOutput handles POST /voice-output/
func (h *SpeechHandler) VoiceOutput(w http.ResponseWriter, r *http.Request) {
	var req VoiceOutputRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if h.maxSynthesisLength > 0 && utf8.RuneCountInString(req.Text) > h.maxSynthesisLength {
		h.respondError(w, r, pkgerrors.NewValidationError(
			fmt.Sprintf("text exceeds maximum length of %d characters", h.maxSynthesisLength)))
		return
	}

	var voice ports.VoiceConfig
	if req.Voice != nil {
		voice = ports.VoiceConfig{LanguageCode: req.Voice.LanguageCode, VoiceName: req.Voice.Name}
	}

	audio, contentType, err := h.synthesizer.Synthesize(r.Context(), req.Text, voice)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, VoiceOutputResponse{
		AudioContent: base64.StdEncoding.EncodeToString(audio),
		ContentType:  contentType,
	})
}

// Sentiment handles POST /sentiment/. Analysis failures degrade to neutral.
func (h *SpeechHandler) Sentiment(w http.ResponseWriter, r *http.Request) {
	var req SentimentRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, h.completion.AnalyzeSentiment(r.Context(), req.Text))
}
