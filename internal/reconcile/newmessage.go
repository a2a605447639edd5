package reconcile

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/notify"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/zap"
)

// errNoActiveUser aborts an event when no local identity is signed in.
var errNoActiveUser = errors.New("no active user")

func (e *Engine) handleNewMessage(payload map[string]any) {
	msg, ok := backend.Map(payload, "message")
	if !ok {
		e.logger.Debug("malformed new_message payload")
		return
	}
	from, ok1 := backend.String(msg, "from")
	hash, ok2 := backend.String(msg, "id")
	ts, ok3 := backend.Int64(msg, "timestamp")
	author, ok4 := backend.Map(msg, "author")
	if !ok1 || !ok2 || !ok3 || !ok4 {
		e.logger.Debug("malformed new_message payload")
		return
	}

	// Navigation state is read once per event, never re-evaluated
	// mid-transaction.
	observed := e.observedConversation()

	var (
		stored    *store.Message
		visible   bool
		duplicate bool
		title     string
		avatarURL string
		avatarKey string
	)

	err := e.db.WithTx(func(tx *store.Tx) error {
		user, err := tx.ActiveUser()
		if err != nil {
			return err
		}
		if user == nil {
			return errNoActiveUser
		}

		conv, err := tx.ConversationByAddress(user.ID, from)
		if err != nil {
			return err
		}

		displayName, _ := backend.String(author, "displayName")

		var rec *store.Recipient
		var contactName string
		if conv == nil {
			rec, err = tx.RecipientByAddress(from)
			if err != nil {
				return err
			}
			if rec == nil {
				rec = &store.Recipient{
					ID:          uuid.NewString(),
					SessionID:   from,
					DisplayName: displayName,
				}
				if err := tx.InsertRecipient(rec); err != nil {
					return err
				}
			}
			contact, err := tx.ContactByAddress(user.ID, from)
			if err != nil {
				return err
			}
			autoarchive := e.settings.AutoarchiveNewChats()
			conv = &store.Conversation{
				ID:                   uuid.NewString(),
				UserID:               user.ID,
				RecipientID:          rec.ID,
				Archived:             autoarchive,
				NotificationsEnabled: !autoarchive,
			}
			if contact != nil {
				conv.ContactID = contact.ID
				contactName = contact.Name
			}
			if err := tx.InsertConversation(conv); err != nil {
				return err
			}
		} else {
			rec, err = tx.RecipientByID(conv.RecipientID)
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("conversation %s references missing recipient", conv.ID)
			}
			if conv.ContactID != "" {
				contact, err := tx.ContactByID(conv.ContactID)
				if err != nil {
					return err
				}
				if contact != nil {
					contactName = contact.Name
				}
			}
		}

		// Redelivery of the same content hash must not create a second row.
		existing, err := tx.MessageByHash(conv.ID, hash)
		if err != nil {
			return err
		}
		if existing != nil {
			duplicate = true
			return nil
		}

		text, _ := backend.String(msg, "text")
		now := time.Now().UnixMilli()
		m := &store.Message{
			ID:              uuid.NewString(),
			ConversationID:  conv.ID,
			MessageHash:     hash,
			CreatedAt:       now,
			Timestamp:       ts,
			FromRecipientID: rec.ID,
			Body:            text,
			Status:          store.StatusSent,
		}
		if err := tx.InsertMessage(m, parseAttachments(msg)); err != nil {
			return err
		}
		if err := tx.SetLastMessage(conv.ID, m.ID, now); err != nil {
			return err
		}

		visible = observed != "" && observed == conv.ID
		if !visible {
			if err := tx.IncrementUnread(conv.ID); err != nil {
				return err
			}
		}

		// Best-effort reply resolution by timestamp+author. Timestamp
		// collisions and clock skew make this non-unique; an unresolved
		// reference never blocks message creation.
		if reply, ok := backend.Map(msg, "replyToMessage"); ok {
			rts, okTs := backend.Int64(reply, "timestamp")
			rauthor, okAuthor := backend.String(reply, "author")
			if okTs && okAuthor {
				target, err := tx.ReplyTarget(user.ID, rauthor, rts, rauthor == user.SessionID)
				if err != nil {
					return err
				}
				if target != nil {
					if err := tx.SetReplyTo(m.ID, target.ID); err != nil {
						return err
					}
					m.ReplyToID = target.ID
				}
			}
		}

		// Inbound profile data wins over whatever we stored before.
		if err := tx.UpdateRecipientDisplayName(rec.ID, displayName); err != nil {
			return err
		}
		if avatar, ok := backend.Map(author, "avatar"); ok {
			url, okURL := backend.String(avatar, "url")
			key, okKey := backend.String(avatar, "key")
			if okURL && okKey && key != rec.ProfileKey {
				avatarURL, avatarKey = url, key
			}
		}

		switch {
		case contactName != "":
			title = contactName
		case displayName != "":
			title = displayName
		default:
			title = notify.SessionIDPlaceholder(from)
		}
		stored = m
		return nil
	})
	if err != nil {
		if errors.Is(err, errNoActiveUser) {
			e.logger.Debug("no active user, dropping new_message")
		} else {
			e.logger.Error("failed to apply new_message", zap.Error(err), zap.String("from", from))
		}
		return
	}
	if duplicate {
		e.logger.Debug("duplicate new_message delivery ignored", zap.String("hash", hash))
		return
	}

	if avatarKey != "" {
		e.requestAvatar(from, avatarURL, avatarKey)
	}

	if visible {
		e.bridge.NotifyNewMessage(stored)
	} else {
		body := stored.Body
		if body == "" {
			body = "New message"
		}
		e.push.Notify(hash, title, body)
	}
}

// parseAttachments maps inbound attachment descriptors to preview rows.
// Entries without a fileserver id are incomplete and dropped, not retried.
func parseAttachments(msg map[string]any) []store.AttachmentPreview {
	raw, ok := backend.Slice(msg, "attachments")
	if !ok {
		return nil
	}
	var out []store.AttachmentPreview
	for _, item := range raw {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		fileserverID, ok := backend.String(entry, "id")
		if !ok || fileserverID == "" {
			continue
		}
		a := store.AttachmentPreview{
			ID:           uuid.NewString(),
			Name:         "unnamed",
			MimeType:     "application/octet-stream",
			FileserverID: fileserverID,
		}
		if name, ok := backend.String(entry, "name"); ok && name != "" {
			a.Name = name
		}
		if size, ok := backend.Int64(entry, "size"); ok {
			a.Size = size
		}
		if meta, ok := backend.Map(entry, "metadata"); ok {
			if ct, ok := backend.String(meta, "contentType"); ok && ct != "" {
				a.MimeType = ct
			}
		}
		if digest, ok := backend.String(entry, "digest"); ok {
			a.Digest = digest
		}
		if key, ok := backend.String(entry, "key"); ok {
			a.AttachmentKey = key
		}
		out = append(out, a)
	}
	return out
}

// requestAvatar fires an asynchronous avatar download. The response is
// applied only if the recipient's profile key was not rotated again
// while the request was in flight.
func (e *Engine) requestAvatar(sessionID, url, key string) {
	e.pendingAvatars[sessionID] = key
	e.client.Request(backend.DownloadAvatarRequest(url, key), func(resp map[string]any) {
		e.enqueue(func() { e.applyAvatar(sessionID, key, resp) })
	})
}

func (e *Engine) applyAvatar(sessionID, key string, resp map[string]any) {
	if e.pendingAvatars[sessionID] != key {
		// A newer rotation superseded this request.
		return
	}
	delete(e.pendingAvatars, sessionID)

	avatar, ok := resp["avatar"].([]byte)
	if !ok || len(avatar) == 0 {
		// Keep the previous avatar and profile key; no retry.
		e.logger.Warn("avatar download returned no data", zap.String("recipient", sessionID))
		return
	}
	if err := e.db.UpdateRecipientAvatar(sessionID, avatar, key); err != nil {
		e.logger.Error("failed to store avatar", zap.Error(err), zap.String("recipient", sessionID))
	}
}
