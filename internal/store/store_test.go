package store

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedUser(t *testing.T, db *DB, sessionID string) *User {
	t.Helper()
	u := &User{ID: uuid.NewString(), SessionID: sessionID, DisplayName: "Me", Active: true}
	if err := db.InsertUser(u); err != nil {
		t.Fatal(err)
	}
	return u
}

func seedConversation(t *testing.T, db *DB, userID, addr string) (*Recipient, *Conversation) {
	t.Helper()
	r := &Recipient{ID: uuid.NewString(), SessionID: addr}
	if err := db.InsertRecipient(r); err != nil {
		t.Fatal(err)
	}
	c := &Conversation{ID: uuid.NewString(), UserID: userID, RecipientID: r.ID, NotificationsEnabled: true}
	if err := db.InsertConversation(c); err != nil {
		t.Fatal(err)
	}
	return r, c
}

func seedMessage(t *testing.T, db *DB, conversationID, fromRecipientID, hash string, ts int64) *Message {
	t.Helper()
	m := &Message{
		ID:              uuid.NewString(),
		ConversationID:  conversationID,
		MessageHash:     hash,
		CreatedAt:       ts,
		Timestamp:       ts,
		FromRecipientID: fromRecipientID,
		Body:            "hello",
		Status:          StatusSent,
	}
	if err := db.InsertMessage(m, nil); err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := testDB(t)

	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 2 {
		t.Errorf("version = %d, want 2 (init + fts)", result.Version)
	}
}

func TestActiveUserSwitch(t *testing.T) {
	db := testDB(t)

	u, err := db.ActiveUser()
	if err != nil {
		t.Fatal(err)
	}
	if u != nil {
		t.Fatal("fresh db should have no active user")
	}

	a := seedUser(t, db, "addr-a")
	b := &User{ID: uuid.NewString(), SessionID: "addr-b"}
	if err := db.InsertUser(b); err != nil {
		t.Fatal(err)
	}

	u, err = db.ActiveUser()
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != a.ID {
		t.Fatalf("active user = %v, want %s", u, a.ID)
	}

	if err := db.SetActiveUser(b.ID); err != nil {
		t.Fatal(err)
	}
	u, err = db.ActiveUser()
	if err != nil {
		t.Fatal(err)
	}
	if u == nil || u.ID != b.ID {
		t.Fatalf("active user = %v, want %s", u, b.ID)
	}
}

func TestRecipientAddressIsUnique(t *testing.T) {
	db := testDB(t)

	if err := db.InsertRecipient(&Recipient{ID: uuid.NewString(), SessionID: "addr"}); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertRecipient(&Recipient{ID: uuid.NewString(), SessionID: "addr"}); err == nil {
		t.Error("duplicate recipient address should be rejected")
	}
}

func TestOneConversationPerPair(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, _ := seedConversation(t, db, u.ID, "peer")

	dup := &Conversation{ID: uuid.NewString(), UserID: u.ID, RecipientID: r.ID}
	if err := db.InsertConversation(dup); err == nil {
		t.Error("second conversation for the same pair should be rejected")
	}
}

func TestMessageHashDedup(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	seedMessage(t, db, c.ID, r.ID, "hash-1", 1000)

	dup := &Message{
		ID: uuid.NewString(), ConversationID: c.ID, MessageHash: "hash-1",
		CreatedAt: 2000, Timestamp: 2000, FromRecipientID: r.ID, Status: StatusSent,
	}
	if err := db.InsertMessage(dup, nil); err == nil {
		t.Error("duplicate (conversation, hash) should be rejected")
	}

	// Outbound rows without a network hash never collide.
	for i := 0; i < 2; i++ {
		m := &Message{
			ID: uuid.NewString(), ConversationID: c.ID,
			CreatedAt: int64(3000 + i), Timestamp: int64(3000 + i), Status: StatusSending,
		}
		if err := db.InsertMessage(m, nil); err != nil {
			t.Fatalf("empty hash insert %d: %v", i, err)
		}
	}
}

func TestMessageByCorrelation(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")
	m := seedMessage(t, db, c.ID, r.ID, "hash-1", 1234)

	got, err := db.MessageByCorrelation(u.ID, "peer", 1234)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != m.ID {
		t.Fatalf("correlation lookup = %v, want %s", got, m.ID)
	}

	got, err = db.MessageByCorrelation(u.ID, "peer", 9999)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("unknown timestamp should resolve to nil")
	}

	got, err = db.MessageByCorrelation(u.ID, "stranger", 1234)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("unknown address should resolve to nil")
	}
}

func TestReplyTarget(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	inbound := seedMessage(t, db, c.ID, r.ID, "h-in", 100)
	outbound := seedMessage(t, db, c.ID, "", "h-out", 200)

	got, err := db.ReplyTarget(u.ID, "peer", 100, false)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != inbound.ID {
		t.Fatalf("remote reply target = %v, want %s", got, inbound.ID)
	}

	got, err = db.ReplyTarget(u.ID, "me", 200, true)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != outbound.ID {
		t.Fatalf("self reply target = %v, want %s", got, outbound.ID)
	}

	got, err = db.ReplyTarget(u.ID, "peer", 555, false)
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Error("unresolvable reference should yield nil, not an error")
	}
}

func TestTombstoneKeepsRowClearsContent(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	m := &Message{
		ID: uuid.NewString(), ConversationID: c.ID, MessageHash: "h1",
		CreatedAt: 100, Timestamp: 100, FromRecipientID: r.ID,
		Body: "secret", Status: StatusSent,
	}
	atts := []AttachmentPreview{{ID: uuid.NewString(), Name: "pic.png", FileserverID: "f1"}}
	if err := db.InsertMessage(m, atts); err != nil {
		t.Fatal(err)
	}

	if err := db.TombstoneMessage(m.ID); err != nil {
		t.Fatal(err)
	}

	got, err := db.MessageByID(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("tombstoned row must survive")
	}
	if !got.DeletedByUser || got.Body != "" {
		t.Errorf("tombstone = {deleted:%v body:%q}, want {true \"\"}", got.DeletedByUser, got.Body)
	}
	if got.Timestamp != 100 || got.MessageHash != "h1" {
		t.Error("tombstone must keep the correlation key")
	}

	remaining, err := db.AttachmentsForMessage(m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(remaining) != 0 {
		t.Errorf("got %d attachment previews after tombstone, want 0", len(remaining))
	}
}

func TestUnreadCounterClampsAtZero(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	_, c := seedConversation(t, db, u.ID, "peer")

	for i := 0; i < 3; i++ {
		if err := db.IncrementUnread(c.ID); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := db.DecrementUnread(c.ID); err != nil {
			t.Fatal(err)
		}
	}

	got, err := db.ConversationByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", got.UnreadCount)
	}
}

func TestMarkConversationRead(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	seedMessage(t, db, c.ID, r.ID, "h1", 100)
	seedMessage(t, db, c.ID, r.ID, "h2", 200)
	seedMessage(t, db, c.ID, "", "h3", 300) // outbound, never counts
	for i := 0; i < 2; i++ {
		if err := db.IncrementUnread(c.ID); err != nil {
			t.Fatal(err)
		}
	}

	ts, err := db.UnreadInboundTimestamps(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 2 || ts[0] != 100 || ts[1] != 200 {
		t.Fatalf("unread timestamps = %v, want [100 200]", ts)
	}

	if err := db.MarkConversationRead(c.ID); err != nil {
		t.Fatal(err)
	}

	ts, err = db.UnreadInboundTimestamps(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(ts) != 0 {
		t.Errorf("unread timestamps after read = %v, want none", ts)
	}
	got, err := db.ConversationByID(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.UnreadCount != 0 {
		t.Errorf("unread = %d, want 0", got.UnreadCount)
	}
}

func TestListConversationsPinnedFirst(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	_, older := seedConversation(t, db, u.ID, "peer-a")
	rb, newer := seedConversation(t, db, u.ID, "peer-b")

	m := seedMessage(t, db, newer.ID, rb.ID, "h1", 2000)
	if err := db.SetLastMessage(newer.ID, m.ID, 2000); err != nil {
		t.Fatal(err)
	}
	if err := db.SetConversationPinned(older.ID, true); err != nil {
		t.Fatal(err)
	}

	convs, err := db.ListConversations(u.ID, 10, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(convs) != 2 {
		t.Fatalf("got %d conversations, want 2", len(convs))
	}
	if convs[0].ID != older.ID {
		t.Errorf("pinned conversation should sort first")
	}
}

func TestOutboxLifecycle(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	_, c := seedConversation(t, db, u.ID, "peer")

	if err := db.QueueOutbox("c1", c.ID, "hi"); err != nil {
		t.Fatal(err)
	}
	pending, err := db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ClientMsgID != "c1" {
		t.Fatalf("pending = %v, want one entry c1", pending)
	}

	if err := db.MarkOutboxSending("c1"); err != nil {
		t.Fatal(err)
	}
	pending, err = db.PendingOutbox()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Error("sending entries must not show as pending")
	}

	if err := db.MarkOutboxFailed("c1", "offline"); err != nil {
		t.Fatal(err)
	}
}

func TestSearchMessagesFollowsTombstone(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	m := &Message{
		ID: uuid.NewString(), ConversationID: c.ID, MessageHash: "h1",
		CreatedAt: 100, Timestamp: 100, FromRecipientID: r.ID,
		Body: "the quick brown fox", Status: StatusSent,
	}
	if err := db.InsertMessage(m, nil); err != nil {
		t.Fatal(err)
	}

	results, err := db.SearchMessages("quick", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || results[0].Message.ID != m.ID {
		t.Fatalf("search = %v, want the inserted message", results)
	}

	if err := db.TombstoneMessage(m.ID); err != nil {
		t.Fatal(err)
	}
	results, err = db.SearchMessages("quick", "", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 {
		t.Error("tombstoned content must drop out of the search index")
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db, "me")
	r, c := seedConversation(t, db, u.ID, "peer")

	err := db.WithTx(func(tx *Tx) error {
		m := &Message{
			ID: uuid.NewString(), ConversationID: c.ID, MessageHash: "h1",
			CreatedAt: 100, Timestamp: 100, FromRecipientID: r.ID, Status: StatusSent,
		}
		if err := tx.InsertMessage(m, nil); err != nil {
			return err
		}
		// Duplicate hash forces a failure after the first insert succeeded.
		dup := &Message{
			ID: uuid.NewString(), ConversationID: c.ID, MessageHash: "h1",
			CreatedAt: 200, Timestamp: 200, FromRecipientID: r.ID, Status: StatusSent,
		}
		return tx.InsertMessage(dup, nil)
	})
	if err == nil {
		t.Fatal("expected transaction to fail")
	}

	n, err := db.MessageCount(c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("message count = %d after rollback, want 0", n)
	}
}
