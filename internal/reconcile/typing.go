package reconcile

import (
	"sync"
	"time"

	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/bus"
	"go.uber.org/zap"
)

// TypingUpdate is the payload for conversation.typing events.
type TypingUpdate struct {
	ConversationID string
	Typing         bool
}

// typingRegistry tracks the ephemeral typing flag per conversation. Each
// active flag carries its own expiry timer; a fresh indicator for the
// same conversation resets the timer instead of stacking a second one.
type typingRegistry struct {
	mu     sync.Mutex
	slots  map[string]*typingSlot
	expire func(conversationID string, gen int)
}

type typingSlot struct {
	gen   int
	timer *time.Timer
}

func newTypingRegistry(expire func(conversationID string, gen int)) *typingRegistry {
	return &typingRegistry{
		slots:  make(map[string]*typingSlot),
		expire: expire,
	}
}

// set applies an indicator and reports whether the visible flag changed.
func (r *typingRegistry) set(conversationID string, typing bool, timeout time.Duration) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, active := r.slots[conversationID]
	if active {
		slot.timer.Stop()
	}
	if !typing {
		delete(r.slots, conversationID)
		return active
	}

	gen := 1
	if active {
		gen = slot.gen + 1
	}
	r.slots[conversationID] = &typingSlot{
		gen: gen,
		timer: time.AfterFunc(timeout, func() {
			r.expire(conversationID, gen)
		}),
	}
	return !active
}

// clearExpired clears the flag set under the given generation. It is a
// no-op when a newer indicator has re-armed the slot in the meantime.
func (r *typingRegistry) clearExpired(conversationID string, gen int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	slot, active := r.slots[conversationID]
	if !active || slot.gen != gen {
		return false
	}
	delete(r.slots, conversationID)
	return true
}

func (r *typingRegistry) isTyping(conversationID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, active := r.slots[conversationID]
	return active
}

func (r *typingRegistry) stopAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, slot := range r.slots {
		slot.timer.Stop()
		delete(r.slots, id)
	}
}

// handleTypingIndicator maintains the in-memory typing flag. Indicators
// are never persisted and never touch the store beyond resolving the
// conversation; indicators for unknown conversations are dropped.
func (e *Engine) handleTypingIndicator(payload map[string]any) {
	indicator, ok := backend.Map(payload, "indicator")
	if !ok {
		e.logger.Debug("malformed typing_indicator payload")
		return
	}
	addr, ok1 := backend.String(indicator, "conversation")
	isTyping, ok2 := backend.Bool(indicator, "isTyping")
	if !ok1 || !ok2 {
		e.logger.Debug("malformed typing_indicator payload")
		return
	}
	if !e.settings.ShowTypingIndicators() {
		return
	}

	user, err := e.db.ActiveUser()
	if err != nil {
		e.logger.Error("failed to resolve active user", zap.Error(err))
		return
	}
	if user == nil || addr == user.SessionID {
		// Our own indicators echo back from the network; ignore them.
		return
	}
	conv, err := e.db.ConversationByAddress(user.ID, addr)
	if err != nil {
		e.logger.Error("failed to resolve conversation for typing indicator", zap.Error(err))
		return
	}
	if conv == nil {
		return
	}

	if e.typing.set(conv.ID, isTyping, e.typingExpiry) {
		e.publishTyping(conv.ID, isTyping)
	}
}

func (e *Engine) expireTyping(conversationID string, gen int) {
	if e.typing.clearExpired(conversationID, gen) {
		e.publishTyping(conversationID, false)
	}
}

func (e *Engine) publishTyping(conversationID string, typing bool) {
	e.bus.Publish(bus.Event{
		Kind:      bus.KindConversationTyping,
		Timestamp: time.Now(),
		Payload:   TypingUpdate{ConversationID: conversationID, Typing: typing},
	})
}

// TypingIndicator reports whether the conversation's peer is currently
// typing.
func (e *Engine) TypingIndicator(conversationID string) bool {
	return e.typing.isTyping(conversationID)
}
