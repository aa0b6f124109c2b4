package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Mokona5901/ChatApp/internal/model"
)

func newTestChat(t *testing.T) (*ChatService, *memStore, *Hub, *PresenceTracker) {
	t.Helper()
	store := newMemStore()
	hub := newTestHub(t)
	presence := NewPresenceTracker()
	svc := NewChatService(store, hub, presence, nil)
	svc.grace = 20 * time.Millisecond
	return svc, store, hub, presence
}

func seedMessages(t *testing.T, store *memStore, channel string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		u := "alice"
		msg := &model.Message{
			Username: &u,
			Channel:  channel,
			Type:     model.TypeChat,
			Message:  fmt.Sprintf("msg %d", i+1),
		}
		if err := store.Insert(context.Background(), msg); err != nil {
			t.Fatalf("seed insert failed: %v", err)
		}
	}
}

func TestConnectSendsHistoryBatch(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	seedMessages(t, store, model.DefaultChannel, 60)

	a := newTestClient("alice", model.DefaultChannel)
	hub.Register(a)
	waitForCount(t, hub, 1)

	svc.Connect(context.Background(), a)

	ev := recvEvent(t, a)
	if ev.Type != model.EventChatHistory {
		t.Fatalf("expected chat history first, got %q", ev.Type)
	}

	var batch []model.Message
	if err := json.Unmarshal(ev.Data, &batch); err != nil {
		t.Fatalf("bad history payload: %v", err)
	}
	if len(batch) != HistoryLimit {
		t.Fatalf("expected %d messages, got %d", HistoryLimit, len(batch))
	}
	// Oldest-first within the newest 50 of 60.
	if batch[0].ID != 11 || batch[len(batch)-1].ID != 60 {
		t.Fatalf("expected ids 11..60, got %d..%d", batch[0].ID, batch[len(batch)-1].ID)
	}

	// Join notice, persisted as a system status row.
	ev = recvEvent(t, a)
	if ev.Type != model.EventChatMessage {
		t.Fatalf("expected join status broadcast, got %q", ev.Type)
	}
	var status model.Message
	if err := json.Unmarshal(ev.Data, &status); err != nil {
		t.Fatalf("bad status payload: %v", err)
	}
	if status.Type != model.TypeStatus || status.Username != nil {
		t.Fatalf("expected system status row, got type=%q username=%v", status.Type, status.Username)
	}

	// Presence snapshot to everyone.
	ev = recvEvent(t, a)
	if ev.Type != model.EventOnlineUsers {
		t.Fatalf("expected online users, got %q", ev.Type)
	}
	var users []string
	if err := json.Unmarshal(ev.Data, &users); err != nil {
		t.Fatalf("bad presence payload: %v", err)
	}
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("expected [alice], got %v", users)
	}
}

func TestPostMessageBroadcastsToChannelOnly(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)

	a := newTestClient("alice", "general")
	b := newTestClient("bob", "general")
	c := newTestClient("carol", "dev")
	for _, cl := range []*Client{a, b, c} {
		hub.Register(cl)
	}
	waitForCount(t, hub, 3)

	svc.PostMessage(context.Background(), a, model.ChatPayload{Message: "hi"})

	for _, cl := range []*Client{a, b} {
		ev := recvEvent(t, cl)
		if ev.Type != model.EventChatMessage {
			t.Fatalf("expected chat message, got %q", ev.Type)
		}
		var msg model.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil {
			t.Fatalf("bad message payload: %v", err)
		}
		if msg.Username == nil || *msg.Username != "alice" || msg.Message != "hi" || msg.Channel != "general" {
			t.Fatalf("unexpected message %+v", msg)
		}
		if msg.ID == 0 {
			t.Fatal("broadcast message missing server-assigned id")
		}
	}
	expectSilence(t, c)

	if store.count() != 1 {
		t.Fatalf("expected 1 stored message, got %d", store.count())
	}
}

func TestPostMessageIdentityFromSession(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)

	a := newTestClient("alice", "general")
	hub.Register(a)
	waitForCount(t, hub, 1)

	// Payload type and reply snapshot are copied; identity is not.
	svc.PostMessage(context.Background(), a, model.ChatPayload{
		Type:    model.TypeTenor,
		PostID:  "12345",
		ReplyTo: &model.ReplyRef{ID: 7, Username: "bob", Text: "earlier"},
	})

	ev := recvEvent(t, a)
	var msg model.Message
	if err := json.Unmarshal(ev.Data, &msg); err != nil {
		t.Fatalf("bad message payload: %v", err)
	}
	if *msg.Username != "alice" {
		t.Fatalf("expected session identity alice, got %q", *msg.Username)
	}
	if msg.Type != model.TypeTenor || msg.PostID != "12345" {
		t.Fatalf("payload fields not copied: %+v", msg)
	}
	if msg.ReplyTo == nil || msg.ReplyTo.ID != 7 || msg.ReplyTo.Text != "earlier" {
		t.Fatalf("reply snapshot not preserved: %+v", msg.ReplyTo)
	}
	if store.count() != 1 {
		t.Fatalf("expected 1 stored message, got %d", store.count())
	}
}

func TestPostMessagePersistFailureIsSilent(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	store.failInsert = true

	a := newTestClient("alice", "general")
	hub.Register(a)
	waitForCount(t, hub, 1)

	svc.PostMessage(context.Background(), a, model.ChatPayload{Message: "lost"})

	// No broadcast and no stored row; the sender gets no error signal.
	expectSilence(t, a)
	if store.count() != 0 {
		t.Fatalf("expected no stored messages, got %d", store.count())
	}
}

func TestJoinChannelSwitchesRouting(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	seedMessages(t, store, "dev", 2)

	a := newTestClient("alice", "general")
	b := newTestClient("bob", "general")
	hub.Register(a)
	hub.Register(b)
	waitForCount(t, hub, 2)

	svc.JoinChannel(context.Background(), a, "dev")

	if a.Channel != "dev" {
		t.Fatalf("expected current channel dev, got %q", a.Channel)
	}

	// The requester alone gets a replacement history batch.
	ev := recvEvent(t, a)
	if ev.Type != model.EventChatHistory {
		t.Fatalf("expected chat history after join, got %q", ev.Type)
	}
	var batch []model.Message
	if err := json.Unmarshal(ev.Data, &batch); err != nil {
		t.Fatalf("bad history payload: %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected 2 dev messages, got %d", len(batch))
	}
	expectSilence(t, b)

	// A message from the moved session reaches dev, not general.
	svc.PostMessage(context.Background(), a, model.ChatPayload{Message: "in dev"})
	ev = recvEvent(t, a)
	if ev.Type != model.EventChatMessage {
		t.Fatalf("expected chat message, got %q", ev.Type)
	}
	expectSilence(t, b)
}

func TestJoinChannelRefreshesCurrentChannel(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	seedMessages(t, store, "general", 3)

	a := newTestClient("alice", "general")
	hub.Register(a)
	waitForCount(t, hub, 1)

	// Re-joining the channel the session is already in resends a
	// fresh history batch.
	svc.JoinChannel(context.Background(), a, "general")

	if a.Channel != "general" {
		t.Fatalf("expected channel unchanged, got %q", a.Channel)
	}
	ev := recvEvent(t, a)
	if ev.Type != model.EventChatHistory {
		t.Fatalf("expected chat history on re-join, got %q", ev.Type)
	}
	var batch []model.Message
	if err := json.Unmarshal(ev.Data, &batch); err != nil {
		t.Fatalf("bad history payload: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(batch))
	}

	// An empty channel name is still ignored.
	svc.JoinChannel(context.Background(), a, "")
	expectSilence(t, a)
}

func TestEditOwnership(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	seedMessages(t, store, "general", 1)

	// Edits broadcast globally, channel regardless.
	watcher := newTestClient("carol", "dev")
	hub.Register(watcher)
	waitForCount(t, hub, 1)

	if _, err := svc.Edit(context.Background(), "bob", 1, "hijacked"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-author, got %v", err)
	}
	stored, err := store.GetByID(context.Background(), 1)
	if err != nil {
		t.Fatalf("message should still exist: %v", err)
	}
	if stored.Message != "msg 1" {
		t.Fatalf("failed edit mutated the message: %q", stored.Message)
	}
	expectSilence(t, watcher)

	msg, err := svc.Edit(context.Background(), "alice", 1, "edited")
	if err != nil {
		t.Fatalf("author edit failed: %v", err)
	}
	if msg.Message != "edited" || msg.ID != 1 {
		t.Fatalf("unexpected edit result %+v", msg)
	}

	ev := recvEvent(t, watcher)
	if ev.Type != model.EventMessageEdited {
		t.Fatalf("expected message edited broadcast, got %q", ev.Type)
	}

	if _, err := svc.Edit(context.Background(), "alice", 999, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestDeleteOwnership(t *testing.T) {
	svc, store, hub, _ := newTestChat(t)
	seedMessages(t, store, "general", 1)

	watcher := newTestClient("carol", "dev")
	hub.Register(watcher)
	waitForCount(t, hub, 1)

	if err := svc.Delete(context.Background(), "bob", 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-author, got %v", err)
	}
	if store.count() != 1 {
		t.Fatal("failed delete removed the message")
	}
	expectSilence(t, watcher)

	if err := svc.Delete(context.Background(), "alice", 1); err != nil {
		t.Fatalf("author delete failed: %v", err)
	}
	if store.count() != 0 {
		t.Fatal("message still present after delete")
	}

	ev := recvEvent(t, watcher)
	if ev.Type != model.EventMessageDeleted {
		t.Fatalf("expected message deleted broadcast, got %q", ev.Type)
	}
	var id int64
	if err := json.Unmarshal(ev.Data, &id); err != nil || id != 1 {
		t.Fatalf("expected deleted id 1, got %s (err %v)", ev.Data, err)
	}

	if err := svc.Delete(context.Background(), "alice", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for deleted id, got %v", err)
	}
}

func TestDisconnectGraceSurvivesReconnect(t *testing.T) {
	svc, _, hub, presence := newTestChat(t)

	a := newTestClient("alice", "general")
	hub.Register(a)
	waitForCount(t, hub, 1)
	svc.Connect(context.Background(), a)

	// Drop and reconnect inside the grace window.
	svc.Disconnect(context.Background(), a)
	if got := presence.Count("alice"); got != 1 {
		t.Fatalf("decrement fired before grace elapsed, count %d", got)
	}

	b := newTestClient("alice", "general")
	hub.Register(b)
	waitForCount(t, hub, 2)
	svc.Connect(context.Background(), b)

	// After the delayed decrement, exactly one connection remains
	// counted; alice never left the online list.
	time.Sleep(svc.grace * 4)
	if got := presence.Count("alice"); got != 1 {
		t.Fatalf("expected count 1 after grace, got %d", got)
	}
	users := presence.Snapshot()
	if len(users) != 1 || users[0] != "alice" {
		t.Fatalf("expected [alice] online, got %v", users)
	}
}

func TestHistoryPaginationGapless(t *testing.T) {
	svc, store, _, _ := newTestChat(t)
	seedMessages(t, store, "general", 120)

	var all []model.Message
	for skip := 0; ; skip += HistoryLimit {
		page, err := svc.History(context.Background(), "general", skip)
		if err != nil {
			t.Fatalf("history skip=%d failed: %v", skip, err)
		}
		if len(page) == 0 {
			break
		}
		// Each page is internally chronological; pages arrive newest
		// block first, so prepend.
		all = append(page, all...)
	}

	if len(all) != 120 {
		t.Fatalf("expected 120 messages total, got %d", len(all))
	}
	for i, m := range all {
		if m.ID != int64(i+1) {
			t.Fatalf("gap or duplicate at position %d: id %d", i, m.ID)
		}
	}
}
