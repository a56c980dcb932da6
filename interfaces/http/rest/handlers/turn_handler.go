package handlers

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"vdchat/application/ports"
	"vdchat/application/sagas"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
)

// multipart overhead allowed on top of the audio itself
const formOverhead = 1 << 20

// TurnProcessor runs conversation turns
type TurnProcessor interface {
	ProcessVoice(ctx context.Context, req sagas.VoiceTurnRequest) (*sagas.TurnResult, error)
	ProcessText(ctx context.Context, req sagas.TextTurnRequest) (*sagas.TurnResult, error)
	RebuildGraph(ctx context.Context, conversationID int64) (*sagas.RebuildResult, error)
}

// TurnHandler serves the endpoints that run the turn pipeline
type TurnHandler struct {
	responder
	turns         TurnProcessor
	maxAudioBytes int64
	defaultUserID string
}

// NewTurnHandler creates a new turn handler
func NewTurnHandler(turns TurnProcessor, maxAudioBytes int64, defaultUserID string, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *TurnHandler {
	return &TurnHandler{
		responder:     responder{errors: errorHandler, logger: logger},
		turns:         turns,
		maxAudioBytes: maxAudioBytes,
		defaultUserID: defaultUserID,
	}
}

// VoiceTurnResponse is a turn result with the synthesized reply inlined
type VoiceTurnResponse struct {
	*sagas.TurnResult
	AudioContent string `json:"audio_content,omitempty"`
}

// ChatRequest represents the request body for a typed turn
type ChatRequest struct {
	ConversationID int64  `json:"conversation_id" validate:"gte=0"`
	UserID         string `json:"user_id" validate:"max=128"`
	Message        string `json:"message" validate:"required"`
}

// RebuildGraphRequest represents the request body for a graph rebuild
type RebuildGraphRequest struct {
	ConversationID int64 `json:"conversation_id" validate:"gt=0"`
}

// VoiceInput handles POST /voice-input/
func (h *TurnHandler) VoiceInput(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxAudioBytes+formOverhead)
	if err := r.ParseMultipartForm(h.maxAudioBytes + formOverhead); err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("invalid multipart form or audio too large").WithCause(err))
		return
	}

	file, header, err := r.FormFile("audio")
	if err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("no audio file provided"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, r, pkgerrors.NewValidationError("failed to read audio file").WithCause(err))
		return
	}

	var conversationID int64
	if raw := strings.TrimSpace(r.FormValue("conversation_id")); raw != "" {
		if conversationID, err = parseConversationID(raw); err != nil {
			h.respondError(w, r, err)
			return
		}
	}

	result, err := h.turns.ProcessVoice(r.Context(), sagas.VoiceTurnRequest{
		UserID:         h.userID(r.FormValue("user_id")),
		ConversationID: conversationID,
		Audio:          audio,
		Metadata: ports.AudioMetadata{
			ContentType:  header.Header.Get("Content-Type"),
			LanguageCode: r.FormValue("language_code"),
		},
		Voice: ports.VoiceConfig{
			LanguageCode: r.FormValue("voice_language_code"),
			VoiceName:    r.FormValue("voice_name"),
		},
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	response := VoiceTurnResponse{TurnResult: result}
	if result.AudioAvailable {
		response.AudioContent = base64.StdEncoding.EncodeToString(result.Audio)
	}
	h.respondJSON(w, http.StatusOK, response)
}

// ChatResponse handles POST /chat-response/
func (h *TurnHandler) ChatResponse(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.turns.ProcessText(r.Context(), sagas.TextTurnRequest{
		UserID:         h.userID(req.UserID),
		ConversationID: req.ConversationID,
		Message:        req.Message,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// RebuildGraph handles POST /knowledge-graph/
func (h *TurnHandler) RebuildGraph(w http.ResponseWriter, r *http.Request) {
	var req RebuildGraphRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.turns.RebuildGraph(r.Context(), req.ConversationID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, result)
}

func (h *TurnHandler) userID(raw string) string {
	if id := strings.TrimSpace(raw); id != "" {
		return id
	}
	return h.defaultUserID
}
