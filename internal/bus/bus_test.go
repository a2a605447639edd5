package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, tok := b.Subscribe("connection.", 10)
	defer b.Unsubscribe(tok)

	b.Publish(Event{Kind: KindConnectionChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != KindConnectionChanged {
			t.Errorf("got kind %q, want %q", evt.Kind, KindConnectionChanged)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, tok := b.Subscribe("outbox.", 10)
	defer b.Unsubscribe(tok)

	b.Publish(Event{Kind: KindConnectionChanged})
	b.Publish(Event{Kind: KindOutboxSendAck})

	select {
	case evt := <-ch:
		if evt.Kind != KindOutboxSendAck {
			t.Errorf("got kind %q, want %q", evt.Kind, KindOutboxSendAck)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the connection event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, tok := b.Subscribe("connection.", 10)
	b.Unsubscribe(tok)

	b.Publish(Event{Kind: KindConnectionChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestUnsubscribeTwiceIsNoOp(t *testing.T) {
	b := New()
	_, tok := b.Subscribe("a.", 1)
	ch, other := b.Subscribe("a.", 1)
	defer b.Unsubscribe(other)

	b.Unsubscribe(tok)
	b.Unsubscribe(tok)

	// The remaining subscriber is unaffected.
	b.Publish(Event{Kind: "a.event"})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("surviving subscription stopped receiving")
	}
}

func TestTokensAreIndependent(t *testing.T) {
	b := New()
	ch1, tok1 := b.Subscribe("x.", 1)
	ch2, tok2 := b.Subscribe("x.", 1)
	defer b.Unsubscribe(tok2)

	b.Unsubscribe(tok1)
	b.Publish(Event{Kind: "x.event"})

	select {
	case evt := <-ch1:
		t.Errorf("unsubscribed channel received %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
	select {
	case <-ch2:
	case <-time.After(time.Second):
		t.Fatal("second subscriber should still receive")
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, tok := b.Subscribe("test.", 1)
	defer b.Unsubscribe(tok)

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}
