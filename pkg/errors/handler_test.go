package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestErrorHandler_Handle_MapsTypesToStatus(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errType   ErrorType
		retryable bool
	}{
		{"validation", NewValidationError("audio file is required"), http.StatusBadRequest, ErrorTypeValidation, false},
		{"not found", NewNotFoundError("conversation 42"), http.StatusNotFound, ErrorTypeNotFound, false},
		{"provider", NewProviderError("speech", fmt.Errorf("unavailable")), http.StatusBadGateway, ErrorTypeProvider, true},
		{"storage", NewStorageError("append_transcript", fmt.Errorf("disk full")), http.StatusInternalServerError, ErrorTypeStorage, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			handler := NewErrorHandler(zap.NewNop(), false)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/voice-input/", nil)

			// Act
			handler.Handle(rec, req, tt.err)

			// Assert
			assert.Equal(t, tt.status, rec.Code)
			var body ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.err.(*AppError).Message, body.Error)
			assert.Equal(t, string(tt.errType), body.Type)
			assert.Equal(t, tt.retryable, body.Retryable)
		})
	}
}

func TestErrorHandler_Handle_HidesUnknownErrors(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/conversations/", nil)

	handler.Handle(rec, req, fmt.Errorf("sql: connection refused at 10.0.0.3"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestErrorHandler_Handle_ErrorFieldIsMessage(t *testing.T) {
	// Arrange
	handler := NewErrorHandler(zap.NewNop(), false)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/voice-input/", nil)

	// Act
	handler.Handle(rec, req, NewValidationError("no audio file provided"))

	// Assert
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no audio file provided", body["error"])
	assert.Equal(t, "VALIDATION", body["type"])
	assert.Equal(t, false, body["retryable"])
}

func TestErrorHandler_Middleware_RecoversPanic(t *testing.T) {
	handler := NewErrorHandler(zap.NewNop(), false)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})
	rec := httptest.NewRecorder()

	handler.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWrap_KeepsAppErrorType(t *testing.T) {
	err := Wrap(NewNotFoundError("conversation 7"), "append transcript")

	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "append transcript")
	assert.Nil(t, Wrap(nil, "noop"))
	assert.True(t, IsType(Wrap(fmt.Errorf("raw"), "ctx"), ErrorTypeInternal))
}
