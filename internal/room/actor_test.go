package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/slichti/studio-platform-dev-sub010/internal/domain"
)

// fakeSender records everything sent to it; optionally every Send fails.
type fakeSender struct {
	mu     sync.Mutex
	events []any
	fail   bool
}

func (f *fakeSender) Send(v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("send failed")
	}
	f.events = append(f.events, v)
	return nil
}

func (f *fakeSender) Events() []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]any, len(f.events))
	copy(out, f.events)
	return out
}

func (f *fakeSender) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = nil
}

func eventsOfType(events []any, typ string) []any {
	var out []any
	for _, e := range events {
		switch v := e.(type) {
		case HistoryEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		case UserListEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		case PresenceEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		case MessageEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		case TypingEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		case PongEvent:
			if v.Type == typ {
				out = append(out, v)
			}
		}
	}
	return out
}

func newTestActor(store MessageStore) *Actor {
	return NewActor("room-1", ActorOptions{Store: store})
}

func register(a *Actor, userID, userName string) *fakeSender {
	s := &fakeSender{}
	a.Register(s, Attachment{UserID: userID, UserName: userName})
	return s
}

func chatFrame(content string) []byte {
	b, _ := json.Marshal(map[string]string{"type": "message", "content": content})
	return b
}

func TestActor_RegisterSendsHistoryAndUserList(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")

	events := alice.Events()
	if len(events) != 2 {
		t.Fatalf("newcomer received %d events, want 2 (history, user_list)", len(events))
	}
	hist, ok := events[0].(HistoryEvent)
	if !ok || hist.Type != EventHistory {
		t.Fatalf("first event = %#v, want history", events[0])
	}
	if len(hist.Messages) != 0 {
		t.Errorf("history for empty room has %d messages, want 0", len(hist.Messages))
	}
	ul, ok := events[1].(UserListEvent)
	if !ok || ul.Type != EventUserList {
		t.Fatalf("second event = %#v, want user_list", events[1])
	}
	if len(ul.Users) != 0 {
		t.Errorf("user_list on first connect has %d users, want 0", len(ul.Users))
	}
}

func TestActor_UserListReflectsConnectionsBeforeConnect(t *testing.T) {
	a := newTestActor(nil)
	register(a, "u1", "alice")
	register(a, "u2", "bob")
	carol := register(a, "u3", "carol")

	uls := eventsOfType(carol.Events(), EventUserList)
	if len(uls) != 1 {
		t.Fatalf("carol received %d user_list events, want 1", len(uls))
	}
	users := uls[0].(UserListEvent).Users
	if len(users) != 2 {
		t.Fatalf("user_list has %d users, want 2", len(users))
	}
	if users[0].UserID != "u1" || users[1].UserID != "u2" {
		t.Errorf("user_list = %v, want [u1 u2] in join order", users)
	}
}

func TestActor_JoinBroadcastExcludesNewcomer(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")

	joined := eventsOfType(alice.Events(), EventUserJoined)
	if len(joined) != 1 {
		t.Fatalf("alice received %d user_joined events, want 1", len(joined))
	}
	ev := joined[0].(PresenceEvent)
	if ev.UserID != "u2" || ev.UserName != "bob" {
		t.Errorf("user_joined = %+v, want bob/u2", ev)
	}
	if got := eventsOfType(bob.Events(), EventUserJoined); len(got) != 0 {
		t.Errorf("newcomer received %d user_joined events about itself, want 0", len(got))
	}
}

func TestActor_MessageBroadcastIncludesSender(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	a.HandleMessage(alice, chatFrame("hello"))

	for name, s := range map[string]*fakeSender{"alice": alice, "bob": bob} {
		msgs := eventsOfType(s.Events(), EventMessage)
		if len(msgs) != 1 {
			t.Fatalf("%s received %d message events, want 1", name, len(msgs))
		}
		ev := msgs[0].(MessageEvent)
		if ev.Content != "hello" || ev.UserID != "u1" || ev.UserName != "alice" {
			t.Errorf("%s got %+v, want hello from alice", name, ev)
		}
		if ev.ID == "" {
			t.Errorf("%s got message without server-assigned id", name)
		}
		if ev.Timestamp.IsZero() {
			t.Errorf("%s got message without server-assigned timestamp", name)
		}
	}
}

func TestActor_TypingExcludesSender(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	a.HandleMessage(alice, []byte(`{"type":"typing"}`))

	if got := eventsOfType(alice.Events(), EventTyping); len(got) != 0 {
		t.Errorf("sender received %d typing events, want 0", len(got))
	}
	got := eventsOfType(bob.Events(), EventTyping)
	if len(got) != 1 {
		t.Fatalf("bob received %d typing events, want 1", len(got))
	}
	if ev := got[0].(TypingEvent); ev.UserID != "u1" {
		t.Errorf("typing event = %+v, want from u1", ev)
	}
}

func TestActor_PingRepliesToSenderOnly(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	a.HandleMessage(alice, []byte(`{"type":"ping"}`))

	if got := eventsOfType(alice.Events(), EventPong); len(got) != 1 {
		t.Errorf("sender received %d pong events, want 1", len(got))
	}
	if got := bob.Events(); len(got) != 0 {
		t.Errorf("bob received %d events after ping, want 0", len(got))
	}
}

func TestActor_MalformedFrameIgnored(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	a.HandleMessage(alice, []byte("not json"))
	a.HandleMessage(alice, []byte(`{"type":"no-such-type"}`))

	if got := bob.Events(); len(got) != 0 {
		t.Fatalf("malformed frames produced %d events, want 0", len(got))
	}

	// the connection stays usable for subsequent valid frames
	a.HandleMessage(alice, chatFrame("still here"))
	if got := eventsOfType(bob.Events(), EventMessage); len(got) != 1 {
		t.Errorf("valid frame after garbage produced %d message events, want 1", len(got))
	}
}

func TestActor_MessageFromUnknownSenderIgnored(t *testing.T) {
	a := newTestActor(nil)
	bob := register(a, "u2", "bob")
	bob.Reset()

	stranger := &fakeSender{}
	a.HandleMessage(stranger, chatFrame("who am i"))

	if got := bob.Events(); len(got) != 0 {
		t.Errorf("unregistered sender produced %d events, want 0", len(got))
	}
	if a.HistorySnapshot(100) != nil {
		t.Error("unregistered sender's message was buffered")
	}
}

func TestActor_HistoryCapsAtFifty(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	for i := 0; i < 60; i++ {
		a.HandleMessage(alice, chatFrame(fmt.Sprintf("m%d", i)))
	}

	bob := register(a, "u2", "bob")
	hists := eventsOfType(bob.Events(), EventHistory)
	if len(hists) != 1 {
		t.Fatalf("bob received %d history events, want 1", len(hists))
	}
	msgs := hists[0].(HistoryEvent).Messages
	if len(msgs) != 50 {
		t.Fatalf("history has %d messages, want 50", len(msgs))
	}
	if msgs[0].Content != "m10" || msgs[49].Content != "m59" {
		t.Errorf("history window = [%s .. %s], want [m10 .. m59]",
			msgs[0].Content, msgs[49].Content)
	}
}

func TestActor_HistoryBelowFiftyReturnsAll(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	for i := 0; i < 7; i++ {
		a.HandleMessage(alice, chatFrame(fmt.Sprintf("m%d", i)))
	}

	bob := register(a, "u2", "bob")
	msgs := eventsOfType(bob.Events(), EventHistory)[0].(HistoryEvent).Messages
	if len(msgs) != 7 {
		t.Fatalf("history has %d messages, want 7", len(msgs))
	}
	for i, m := range msgs {
		if m.Content != fmt.Sprintf("m%d", i) {
			t.Errorf("history[%d] = %s, want m%d (arrival order)", i, m.Content, i)
		}
	}
}

func TestActor_BufferEvictsOldestPastHundred(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	for i := 0; i < 101; i++ {
		a.HandleMessage(alice, chatFrame(fmt.Sprintf("m%d", i)))
	}

	snap := a.HistorySnapshot(200)
	if len(snap) != 100 {
		t.Fatalf("buffer holds %d messages after 101 sends, want 100", len(snap))
	}
	if snap[0].Content != "m1" {
		t.Errorf("oldest buffered = %s, want m1 (m0 evicted)", snap[0].Content)
	}
}

func TestActor_BroadcastSurvivesFailingSender(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bad := &fakeSender{fail: true}
	a.Register(bad, Attachment{UserID: "u2", UserName: "bad"})
	carol := register(a, "u3", "carol")
	alice.Reset()
	carol.Reset()

	a.HandleMessage(alice, chatFrame("hello"))

	for name, s := range map[string]*fakeSender{"alice": alice, "carol": carol} {
		if got := eventsOfType(s.Events(), EventMessage); len(got) != 1 {
			t.Errorf("%s received %d message events despite one failing peer, want 1", name, len(got))
		}
	}
}

func TestActor_CleanCloseBroadcastsUserLeft(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()

	a.Remove(bob, true)

	left := eventsOfType(alice.Events(), EventUserLeft)
	if len(left) != 1 {
		t.Fatalf("alice received %d user_left events, want 1", len(left))
	}
	if ev := left[0].(PresenceEvent); ev.UserID != "u2" {
		t.Errorf("user_left = %+v, want u2", ev)
	}
	if a.Online() != 1 {
		t.Errorf("Online() = %d after one of two left, want 1", a.Online())
	}
}

func TestActor_ErrorCloseRemovesSilently(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()

	a.Remove(bob, false)

	if got := alice.Events(); len(got) != 0 {
		t.Errorf("errored close produced %d events, want 0", len(got))
	}
	if a.Online() != 1 {
		t.Errorf("Online() = %d, want 1", a.Online())
	}
}

func TestActor_RemoveUnknownSenderIsNoop(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	alice.Reset()

	a.Remove(&fakeSender{}, true)

	if got := alice.Events(); len(got) != 0 {
		t.Errorf("removing an unknown sender produced %d events, want 0", len(got))
	}
}

func TestActor_InjectBroadcastReachesAll(t *testing.T) {
	a := newTestActor(nil)
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	payload := json.RawMessage(`{"type":"system","note":"maintenance at noon"}`)
	a.InjectBroadcast(payload)

	for name, s := range map[string]*fakeSender{"alice": alice, "bob": bob} {
		events := s.Events()
		if len(events) != 1 {
			t.Fatalf("%s received %d events, want 1", name, len(events))
		}
		raw, ok := events[0].(json.RawMessage)
		if !ok {
			t.Fatalf("%s received %T, want raw passthrough", name, events[0])
		}
		if string(raw) != string(payload) {
			t.Errorf("%s received %s, want verbatim payload", name, raw)
		}
	}
}

func TestActor_PersistsMessagesAsync(t *testing.T) {
	store := NewMemoryStore()
	a := newTestActor(store)
	alice := register(a, "u1", "alice")

	a.HandleMessage(alice, chatFrame("durable"))

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if store.Len() != 1 {
		t.Fatalf("store holds %d messages, want 1", store.Len())
	}

	id := a.HistorySnapshot(1)[0].ID
	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%s): %v", id, err)
	}
	if got.Content != "durable" {
		t.Errorf("persisted content = %s, want durable", got.Content)
	}
}

func TestActor_PersistenceFailureDoesNotBlockBroadcast(t *testing.T) {
	a := newTestActor(failingStore{})
	alice := register(a, "u1", "alice")
	bob := register(a, "u2", "bob")
	alice.Reset()
	bob.Reset()

	a.HandleMessage(alice, chatFrame("lossy"))

	if got := eventsOfType(bob.Events(), EventMessage); len(got) != 1 {
		t.Errorf("bob received %d message events with a failing store, want 1", len(got))
	}
}

type failingStore struct{}

func (failingStore) Put(context.Context, domain.ChatMessage) error { return errors.New("store down") }
func (failingStore) PutBatch(context.Context, []domain.ChatMessage) error {
	return errors.New("store down")
}
func (failingStore) Get(context.Context, string) (domain.ChatMessage, error) {
	return domain.ChatMessage{}, errors.New("store down")
}

func TestActor_FlushPersistsPendingBatch(t *testing.T) {
	store := NewMemoryStore()
	a := newTestActor(store)
	alice := register(a, "u1", "alice")
	for i := 0; i < 5; i++ {
		a.HandleMessage(alice, chatFrame(fmt.Sprintf("m%d", i)))
	}

	a.Flush(context.Background())

	if store.Len() != 5 {
		t.Fatalf("store holds %d messages after flush, want 5", store.Len())
	}
	// second flush has nothing pending and must not error or duplicate
	a.Flush(context.Background())
	if store.Len() != 5 {
		t.Errorf("store holds %d messages after second flush, want 5", store.Len())
	}
}

func TestActor_RestoreRebuildsTable(t *testing.T) {
	a := newTestActor(nil)
	s1 := &fakeSender{}
	s2 := &fakeSender{}

	good, _ := json.Marshal(Attachment{UserID: "u1", UserName: "alice", JoinedAt: time.Now()})
	a.Restore([]ResumedConn{
		{Sender: s1, Attachment: good},
		{Sender: s2, Attachment: []byte("corrupt{")},
	})

	if a.Online() != 1 {
		t.Fatalf("Online() after restore = %d, want 1 (corrupt attachment dropped)", a.Online())
	}
	users := a.Presence()
	if len(users) != 1 || users[0].UserID != "u1" {
		t.Errorf("presence after restore = %v, want [u1]", users)
	}

	// the restored connection can send attributable messages again
	bob := register(a, "u2", "bob")
	bob.Reset()
	a.HandleMessage(s1, chatFrame("back"))
	got := eventsOfType(bob.Events(), EventMessage)
	if len(got) != 1 || got[0].(MessageEvent).UserID != "u1" {
		t.Errorf("restored sender's message = %v, want attributed to u1", got)
	}
}

func TestActor_TenantLatchedFirstWriteWins(t *testing.T) {
	a := newTestActor(nil)
	a.LatchTenant("tenant-a")
	a.LatchTenant("tenant-b")
	if got := a.TenantID(); got != "tenant-a" {
		t.Errorf("TenantID() = %s, want tenant-a", got)
	}
}

func TestRegistry_GetReturnsSameActor(t *testing.T) {
	reg := NewRegistry(ActorOptions{})
	a := reg.Get("room-1")
	if b := reg.Get("room-1"); a != b {
		t.Error("Get returned a different actor for the same room id")
	}
	if c := reg.Get("room-2"); a == c {
		t.Error("Get returned the same actor for different room ids")
	}
}

func TestRegistry_LookupDoesNotCreate(t *testing.T) {
	reg := NewRegistry(ActorOptions{})
	if _, ok := reg.Lookup("nope"); ok {
		t.Error("Lookup created an actor")
	}
	reg.Get("room-1")
	if _, ok := reg.Lookup("room-1"); !ok {
		t.Error("Lookup missed an existing actor")
	}
}

func TestRegistry_ConcurrentGet(t *testing.T) {
	reg := NewRegistry(ActorOptions{})
	var wg sync.WaitGroup
	actors := make([]*Actor, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			actors[i] = reg.Get("shared")
		}(i)
	}
	wg.Wait()
	for i := 1; i < 50; i++ {
		if actors[i] != actors[0] {
			t.Fatal("concurrent Get produced distinct actors for one room id")
		}
	}
}
