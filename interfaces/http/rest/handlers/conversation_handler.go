package handlers

import (
	"net/http"
	"strings"

	"vdchat/application/commands"
	"vdchat/application/commands/bus"
	"vdchat/application/queries"
	querybus "vdchat/application/queries/bus"
	pkgerrors "vdchat/pkg/errors"

	"go.uber.org/zap"
)

// ConversationHandler serves conversation and knowledge-graph reads and
// conversation deletion
type ConversationHandler struct {
	responder
	commandBus    *bus.CommandBus
	queryBus      *querybus.QueryBus
	defaultUserID string
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(commandBus *bus.CommandBus, queryBus *querybus.QueryBus, defaultUserID string, errorHandler *pkgerrors.ErrorHandler, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		responder:     responder{errors: errorHandler, logger: logger},
		commandBus:    commandBus,
		queryBus:      queryBus,
		defaultUserID: defaultUserID,
	}
}

// ListConversations handles GET /conversations/?user_id=&q=
func (h *ConversationHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ListConversationsQuery{
		UserID: h.userID(r),
		Search: r.URL.Query().Get("q"),
	})
}

// GetConversation handles GET /conversations/{conversationID}/
func (h *ConversationHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversationIDParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.ask(w, r, queries.GetConversationQuery{ConversationID: id})
}

// DeleteConversation handles DELETE /conversations/{conversationID}/
func (h *ConversationHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	id, err := conversationIDParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	if err := h.commandBus.Send(r.Context(), commands.DeleteConversationCommand{ConversationID: id}); err != nil {
		h.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Summarize handles GET /conversations/{conversationID}/summary/
func (h *ConversationHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	id, err := conversationIDParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.ask(w, r, queries.SummarizeConversationQuery{ConversationID: id})
}

// ListUserSnapshots handles GET /knowledge-graph/?user_id=
func (h *ConversationHandler) ListUserSnapshots(w http.ResponseWriter, r *http.Request) {
	h.ask(w, r, queries.ListUserSnapshotsQuery{UserID: h.userID(r)})
}

// ListConversationSnapshots handles GET /knowledge-graph/{conversationID}/
func (h *ConversationHandler) ListConversationSnapshots(w http.ResponseWriter, r *http.Request) {
	id, err := conversationIDParam(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.ask(w, r, queries.ListSnapshotsQuery{ConversationID: id})
}

func (h *ConversationHandler) ask(w http.ResponseWriter, r *http.Request, query querybus.Query) {
	result, err := h.queryBus.Ask(r.Context(), query)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, result)
}

func (h *ConversationHandler) userID(r *http.Request) string {
	if id := strings.TrimSpace(r.URL.Query().Get("user_id")); id != "" {
		return id
	}
	return h.defaultUserID
}
