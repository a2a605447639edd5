package backend

import (
	"sync"
	"testing"
	"time"

	"github.com/sessiond/sessiond/internal/bus"
)

func TestBusClientDeliversEvents(t *testing.T) {
	b := bus.New()
	c := NewBusClient(b)

	got := make(chan map[string]any, 1)
	sub := c.On(EventNewMessage, func(payload map[string]any) {
		got <- payload
	})
	defer c.Off(sub)

	if sub.Event() != EventNewMessage {
		t.Errorf("subscription event = %q, want %q", sub.Event(), EventNewMessage)
	}

	c.Emit(EventNewMessage, map[string]any{"k": "v"})

	select {
	case payload := <-got:
		if payload["k"] != "v" {
			t.Errorf("payload = %v", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
}

func TestBusClientEventIsolation(t *testing.T) {
	b := bus.New()
	c := NewBusClient(b)

	got := make(chan string, 2)
	sub := c.On(EventMessageRead, func(map[string]any) { got <- EventMessageRead })
	defer c.Off(sub)

	c.Emit(EventNewMessage, map[string]any{})
	c.Emit(EventMessageRead, map[string]any{})

	select {
	case name := <-got:
		if name != EventMessageRead {
			t.Errorf("delivered %q, want message_read only", name)
		}
	case <-time.After(time.Second):
		t.Fatal("handler not invoked")
	}
	select {
	case <-got:
		t.Error("handler invoked for a different event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusClientOff(t *testing.T) {
	b := bus.New()
	c := NewBusClient(b)

	var mu sync.Mutex
	calls := 0
	sub := c.On(EventNewMessage, func(map[string]any) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	c.Off(sub)
	// A second Off with the same token is a no-op.
	c.Off(sub)

	c.Emit(EventNewMessage, map[string]any{})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("handler invoked %d times after Off", calls)
	}
}

func TestBusClientRequestReachesWireLayer(t *testing.T) {
	b := bus.New()
	c := NewBusClient(b)

	ch, tok := b.Subscribe(bus.KindBackendRequest, 10)
	defer b.Unsubscribe(tok)

	replied := make(chan map[string]any, 1)
	c.Request(map[string]any{"type": "send_message"}, func(resp map[string]any) {
		replied <- resp
	})

	var env RequestEnvelope
	select {
	case evt := <-ch:
		env = evt.Payload.(RequestEnvelope)
	case <-time.After(time.Second):
		t.Fatal("request never published")
	}
	if typ, _ := String(env.Payload, "type"); typ != "send_message" {
		t.Errorf("request type = %q", typ)
	}

	// The wire layer services the request and replies.
	env.Reply(map[string]any{"ok": true})
	select {
	case resp := <-replied:
		if ok, _ := Bool(resp, "ok"); !ok {
			t.Errorf("resp = %v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("reply callback not invoked")
	}
}
