// Package commands holds the state-changing requests that are not turns.
package commands

import (
	pkgerrors "vdchat/pkg/errors"
)

// DeleteConversationCommand removes a conversation together with its
// snapshots. Topic nodes in the graph store keep the conversation id.
type DeleteConversationCommand struct {
	ConversationID int64
}

func (c DeleteConversationCommand) Validate() error {
	if c.ConversationID <= 0 {
		return pkgerrors.NewValidationError("conversation_id must be a positive integer")
	}
	return nil
}
