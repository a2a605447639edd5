package reconcile

import (
	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/zap"
)

// OpenConversation records that the presentation layer is now showing
// the conversation. Its unread counter is reset, unread inbound messages
// are flipped to read, and, if the effective read-checkmark setting
// allows, the reads are reported to the backend.
func (e *Engine) OpenConversation(conversationID string) {
	e.setObserved(conversationID)
	e.enqueue(func() { e.markObservedRead(conversationID) })
}

// CloseConversation clears the observed conversation; subsequent inbound
// messages go back to counting as unread.
func (e *Engine) CloseConversation() {
	e.setObserved("")
}

func (e *Engine) markObservedRead(conversationID string) {
	var (
		recipientAddr string
		timestamps    []int64
	)
	err := e.db.WithTx(func(tx *store.Tx) error {
		conv, err := tx.ConversationByID(conversationID)
		if err != nil {
			return err
		}
		if conv == nil {
			return nil
		}
		rec, err := tx.RecipientByID(conv.RecipientID)
		if err != nil {
			return err
		}
		timestamps, err = tx.UnreadInboundTimestamps(conv.ID)
		if err != nil {
			return err
		}
		if err := tx.MarkConversationRead(conv.ID); err != nil {
			return err
		}
		if rec != nil {
			recipientAddr = rec.SessionID
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to mark conversation read", zap.Error(err), zap.String("conversation", conversationID))
		return
	}
	if len(timestamps) == 0 || recipientAddr == "" {
		return
	}
	if !e.settings.SendReadCheckmarks(conversationID) {
		return
	}
	e.client.Request(backend.MarkAsReadRequest(recipientAddr, timestamps), nil)
}

// DeleteMessages asks the backend to delete the given messages for
// everyone and tombstones them locally once the backend acknowledges.
func (e *Engine) DeleteMessages(conversationID string, messageIDs []string) {
	e.enqueue(func() { e.requestDelete(conversationID, messageIDs) })
}

func (e *Engine) requestDelete(conversationID string, messageIDs []string) {
	conv, err := e.db.ConversationByID(conversationID)
	if err != nil || conv == nil {
		if err != nil {
			e.logger.Error("failed to resolve conversation for delete", zap.Error(err))
		}
		return
	}
	rec, err := e.db.RecipientByID(conv.RecipientID)
	if err != nil || rec == nil {
		if err != nil {
			e.logger.Error("failed to resolve recipient for delete", zap.Error(err))
		}
		return
	}

	var refs []backend.MessageRef
	var ids []string
	for _, id := range messageIDs {
		m, err := e.db.MessageByID(id)
		if err != nil {
			e.logger.Error("failed to load message for delete", zap.Error(err), zap.String("message", id))
			return
		}
		if m == nil || m.ConversationID != conversationID || m.DeletedByUser {
			continue
		}
		refs = append(refs, backend.MessageRef{Timestamp: m.Timestamp, Hash: m.MessageHash})
		ids = append(ids, m.ID)
	}
	if len(refs) == 0 {
		return
	}

	e.client.Request(backend.DeleteMessagesRequest(rec.SessionID, refs), func(resp map[string]any) {
		if ok, _ := backend.Bool(resp, "ok"); !ok {
			e.logger.Warn("backend rejected message delete", zap.String("conversation", conversationID))
			return
		}
		e.enqueue(func() { e.applyLocalDelete(ids) })
	})
}

func (e *Engine) applyLocalDelete(messageIDs []string) {
	err := e.db.WithTx(func(tx *store.Tx) error {
		for _, id := range messageIDs {
			if err := tx.TombstoneMessage(id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		e.logger.Error("failed to tombstone deleted messages", zap.Error(err))
	}
}
