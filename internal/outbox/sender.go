// Package outbox drains queued outbound messages and hands them to the
// backend, keeping the optimistic message rows in sync with the send
// outcome.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/bus"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/zap"
)

// Sender polls the outbox and sends queued messages through the backend
// client.
type Sender struct {
	db     *store.DB
	client backend.Client
	bus    *bus.Bus
	logger *zap.Logger
	cancel context.CancelFunc
}

// NewSender creates a new outbox sender.
func NewSender(db *store.DB, client backend.Client, b *bus.Bus, logger *zap.Logger) *Sender {
	return &Sender{
		db:     db,
		client: client,
		bus:    b,
		logger: logger,
	}
}

// Enqueue queues a text message for the conversation and returns the
// client message id. The optimistic message row appears once the sender
// picks the entry up.
func (s *Sender) Enqueue(conversationID, body string) (string, error) {
	clientMsgID := uuid.NewString()
	if err := s.db.QueueOutbox(clientMsgID, conversationID, body); err != nil {
		return "", err
	}
	return clientMsgID, nil
}

// Start begins polling the outbox for pending messages.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop stops the sender loop.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Sender) loop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.processPending()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sender) processPending() {
	pending, err := s.db.PendingOutbox()
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if err := s.db.MarkOutboxSending(entry.ClientMsgID); err != nil {
			s.logger.Error("failed to mark sending", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
			continue
		}
		s.send(entry)
	}
}

func (s *Sender) send(entry store.OutboxEntry) {
	conv, err := s.db.ConversationByID(entry.ConversationID)
	if err != nil || conv == nil {
		s.fail(entry, "conversation not found")
		return
	}
	rec, err := s.db.RecipientByID(conv.RecipientID)
	if err != nil || rec == nil {
		s.fail(entry, "recipient not found")
		return
	}

	// Optimistic insert: the message shows up as sending right away. An
	// outbound row carries no sender recipient.
	now := time.Now().UnixMilli()
	err = s.db.WithTx(func(tx *store.Tx) error {
		m := &store.Message{
			ID:             entry.ClientMsgID,
			ConversationID: conv.ID,
			CreatedAt:      now,
			Timestamp:      now,
			Body:           entry.Body,
			Read:           true,
			Status:         store.StatusSending,
		}
		if err := tx.InsertMessage(m, nil); err != nil {
			return err
		}
		return tx.SetLastMessage(conv.ID, m.ID, now)
	})
	if err != nil {
		s.logger.Error("failed to insert optimistic message", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		s.fail(entry, err.Error())
		return
	}

	s.client.Request(backend.SendMessageRequest(rec.SessionID, entry.Body), func(resp map[string]any) {
		s.settle(entry, resp)
	})
}

// settle applies the backend's send acknowledgement.
func (s *Sender) settle(entry store.OutboxEntry, resp map[string]any) {
	ok, _ := backend.Bool(resp, "ok")
	if !ok {
		reason, _ := backend.String(resp, "error")
		if reason == "" {
			reason = "send rejected"
		}
		if err := s.db.MarkOutboxFailed(entry.ClientMsgID, reason); err != nil {
			s.logger.Error("failed to mark outbox failed", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		if err := s.db.UpdateMessageStatus(entry.ClientMsgID, store.StatusErrored, reason, ""); err != nil {
			s.logger.Error("failed to update message status", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
		}
		s.publish(bus.KindOutboxSendFailed, map[string]string{
			"client_msg_id": entry.ClientMsgID,
			"error":         reason,
		})
		return
	}

	// The network hash only exists once the swarm accepted the message.
	hash, _ := backend.String(resp, "id")
	if err := s.db.MarkOutboxSent(entry.ClientMsgID); err != nil {
		s.logger.Error("failed to mark outbox sent", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	if err := s.db.UpdateMessageStatus(entry.ClientMsgID, store.StatusSent, "", hash); err != nil {
		s.logger.Error("failed to update message status", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.logger.Info("message sent", zap.String("client_msg_id", entry.ClientMsgID), zap.String("hash", hash))
	s.publish(bus.KindOutboxSendAck, map[string]string{
		"client_msg_id": entry.ClientMsgID,
		"hash":          hash,
	})
}

// fail settles an entry that never reached the backend.
func (s *Sender) fail(entry store.OutboxEntry, reason string) {
	if err := s.db.MarkOutboxFailed(entry.ClientMsgID, reason); err != nil {
		s.logger.Error("failed to mark outbox failed", zap.Error(err), zap.String("client_msg_id", entry.ClientMsgID))
	}
	s.publish(bus.KindOutboxSendFailed, map[string]string{
		"client_msg_id": entry.ClientMsgID,
		"error":         reason,
	})
}

func (s *Sender) publish(kind string, payload map[string]string) {
	s.bus.Publish(bus.Event{
		Kind:      kind,
		Timestamp: time.Now(),
		Payload:   payload,
	})
}
