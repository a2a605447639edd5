// Package reconcile folds asynchronous backend events into the locally
// persisted conversation graph. All handlers run on a single
// serialization goroutine so two events never interleave their store
// mutations; each event is applied in exactly one transaction.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/sessiond/sessiond/internal/backend"
	"github.com/sessiond/sessiond/internal/bus"
	"github.com/sessiond/sessiond/internal/config"
	"github.com/sessiond/sessiond/internal/notify"
	"github.com/sessiond/sessiond/internal/status"
	"github.com/sessiond/sessiond/internal/store"
	"go.uber.org/zap"
)

// typingTimeout is how long an inbound isTyping=true flag stays set
// without a follow-up indicator.
const typingTimeout = 20 * time.Second

// Engine subscribes to backend events and applies their state
// transitions to the entity model.
type Engine struct {
	db       *store.DB
	client   backend.Client
	settings config.Settings
	bridge   *notify.Bridge
	push     *notify.Dispatcher
	status   *status.Tracker
	bus      *bus.Bus
	logger   *zap.Logger

	tasks  chan func()
	cancel context.CancelFunc

	mu         sync.Mutex
	subs       []backend.Subscription
	subscribed bool

	// observed is the conversation id the presentation layer is
	// currently showing, supplied via OpenConversation. Handlers read it
	// once per event.
	observedMu sync.RWMutex
	observed   string

	typing *typingRegistry

	// pendingAvatars maps a recipient address to the profile key its
	// in-flight download_avatar request was issued under. Loop-confined.
	pendingAvatars map[string]string

	typingExpiry time.Duration
}

// NewEngine creates a reconciliation engine. It does not subscribe or
// process anything until Start and Subscribe are called.
func NewEngine(db *store.DB, client backend.Client, settings config.Settings,
	bridge *notify.Bridge, push *notify.Dispatcher, tracker *status.Tracker,
	b *bus.Bus, logger *zap.Logger) *Engine {
	e := &Engine{
		db:             db,
		client:         client,
		settings:       settings,
		bridge:         bridge,
		push:           push,
		status:         tracker,
		bus:            b,
		logger:         logger,
		tasks:          make(chan func(), 256),
		pendingAvatars: make(map[string]string),
		typingExpiry:   typingTimeout,
	}
	e.typing = newTypingRegistry(func(conversationID string, gen int) {
		e.enqueue(func() { e.expireTyping(conversationID, gen) })
	})
	return e
}

// Start launches the serialization loop.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	go e.loop(ctx)
}

// Stop stops the loop and cancels all pending typing timers.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.typing.stopAll()
}

func (e *Engine) loop(ctx context.Context) {
	for {
		select {
		case fn := <-e.tasks:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// enqueue hands work to the serialization loop. Delivery is
// non-blocking; the queue is sized so a full queue means the store is
// stalled, and dropping mirrors the bus's own overflow policy.
func (e *Engine) enqueue(fn func()) {
	select {
	case e.tasks <- fn:
	default:
		e.logger.Warn("engine task queue full, dropping event")
	}
}

// Subscribe registers handlers for all backend event kinds as a unit.
// Calling it while already subscribed is a no-op, so partial
// registration state never persists.
func (e *Engine) Subscribe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.subscribed {
		return
	}
	handlers := []struct {
		event string
		fn    func(map[string]any)
	}{
		{backend.EventNewMessage, e.handleNewMessage},
		{backend.EventMessageDeleted, e.handleMessageDeleted},
		{backend.EventMessageRead, e.handleMessageRead},
		{backend.EventTypingIndicator, e.handleTypingIndicator},
		{backend.EventConnectionReport, e.handleConnectionReport},
	}
	for _, h := range handlers {
		fn := h.fn
		e.subs = append(e.subs, e.client.On(h.event, func(payload map[string]any) {
			e.enqueue(func() { fn(payload) })
		}))
	}
	e.subscribed = true
}

// Unsubscribe releases all registered handlers and cancels pending
// typing timers. Calling it while not subscribed is a no-op.
func (e *Engine) Unsubscribe() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.subscribed {
		return
	}
	for _, sub := range e.subs {
		e.client.Off(sub)
	}
	e.subs = nil
	e.subscribed = false
	e.typing.stopAll()
}

func (e *Engine) observedConversation() string {
	e.observedMu.RLock()
	defer e.observedMu.RUnlock()
	return e.observed
}

func (e *Engine) setObserved(conversationID string) {
	e.observedMu.Lock()
	e.observed = conversationID
	e.observedMu.Unlock()
}
