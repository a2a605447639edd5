package reconcile

import (
	"errors"

	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/zap"
)

// handleMessageDeleted tombstones the referenced message: the row stays,
// the body and attachment previews go. A reference to an unknown message
// is a no-op, not an error.
func (e *Engine) handleMessageDeleted(payload map[string]any) {
	msg, ok := backend.Map(payload, "message")
	if !ok {
		e.logger.Debug("malformed message_deleted payload")
		return
	}
	from, ok1 := backend.String(msg, "from")
	ts, ok2 := backend.Int64(msg, "timestamp")
	if !ok1 || !ok2 {
		e.logger.Debug("malformed message_deleted payload")
		return
	}

	err := e.db.WithTx(func(tx *store.Tx) error {
		user, err := tx.ActiveUser()
		if err != nil {
			return err
		}
		if user == nil {
			return errNoActiveUser
		}
		m, err := tx.MessageByCorrelation(user.ID, from, ts)
		if err != nil {
			return err
		}
		if m == nil || m.DeletedByUser {
			return nil
		}
		return tx.TombstoneMessage(m.ID)
	})
	if err != nil && !errors.Is(err, errNoActiveUser) {
		e.logger.Error("failed to apply message_deleted", zap.Error(err), zap.String("from", from))
	}
}

// handleMessageRead flips the read flag on the referenced message and
// decrements the conversation's unread counter in the same transaction.
// An already-read or unknown message changes nothing.
func (e *Engine) handleMessageRead(payload map[string]any) {
	msg, ok := backend.Map(payload, "message")
	if !ok {
		e.logger.Debug("malformed message_read payload")
		return
	}
	conversation, ok1 := backend.String(msg, "conversation")
	ts, ok2 := backend.Int64(msg, "timestamp")
	if !ok1 || !ok2 {
		e.logger.Debug("malformed message_read payload")
		return
	}

	err := e.db.WithTx(func(tx *store.Tx) error {
		user, err := tx.ActiveUser()
		if err != nil {
			return err
		}
		if user == nil {
			return errNoActiveUser
		}
		m, err := tx.MessageByCorrelation(user.ID, conversation, ts)
		if err != nil {
			return err
		}
		if m == nil || m.Read {
			return nil
		}
		if err := tx.MarkMessageRead(m.ID); err != nil {
			return err
		}
		// Only inbound messages count towards unread.
		if m.FromRecipientID != "" {
			return tx.DecrementUnread(m.ConversationID)
		}
		return nil
	})
	if err != nil && !errors.Is(err, errNoActiveUser) {
		e.logger.Error("failed to apply message_read", zap.Error(err), zap.String("conversation", conversation))
	}
}

// handleConnectionReport forwards connectivity reports to the status
// tracker verbatim.
func (e *Engine) handleConnectionReport(payload map[string]any) {
	if msg, ok := backend.String(payload, "connectionError"); ok && msg != "" {
		e.status.SetError(msg)
		return
	}
	connected, ok := backend.Bool(payload, "connected")
	if !ok {
		e.logger.Debug("malformed connection_report payload")
		return
	}
	e.status.SetConnected(connected)
}
