// Package handlers implements the REST endpoints.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	pkgerrors "vdchat/pkg/errors"
	"vdchat/pkg/utils"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxJSONBody = 1 << 20

type responder struct {
	errors *pkgerrors.ErrorHandler
	logger *zap.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	h.errors.Handle(w, r, err)
}

// decode reads a JSON body into dst and runs its validation tags
func (h responder) decode(r *http.Request, dst interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxJSONBody))
	if err := decoder.Decode(dst); err != nil {
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}
	return utils.ValidateStruct(dst)
}

// conversationIDParam reads the {conversationID} path segment
func conversationIDParam(r *http.Request) (int64, error) {
	return parseConversationID(chi.URLParam(r, "conversationID"))
}

func parseConversationID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, pkgerrors.NewValidationError("conversation_id must be a positive integer")
	}
	return id, nil
}
