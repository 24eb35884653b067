package scheduler

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/time/rate"

	"tyres_bot/internal/api"
	"tyres_bot/internal/fakeapi"
	"tyres_bot/internal/model"
	"tyres_bot/internal/storage"
)

type sentMessage struct {
	ChatID int64
	Text   string
}

type mockSender struct {
	mu       sync.Mutex
	messages []sentMessage
}

func (m *mockSender) SendMessage(chatID int64, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, sentMessage{ChatID: chatID, Text: text})
}

func (m *mockSender) getMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]sentMessage, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func newTestStore(t *testing.T) *storage.SQLite {
	t.Helper()
	s, err := storage.NewSQLite(":memory:")
	if err != nil {
		t.Fatalf("new sqlite: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestBackend(t *testing.T) *fakeapi.Server {
	t.Helper()
	backend := fakeapi.New(append(fakeapi.MakeTyres("w195", 4, "195"), fakeapi.MakeTyres("w205", 3, "205")...))
	t.Cleanup(backend.Close)
	return backend
}

func newTestScheduler(store storage.Watches, backend *fakeapi.Server, sender Sender) *Scheduler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := New(store, api.New(backend.URL(), backend.Client(), log), sender, 15*time.Minute, log)
	sched.limiter = rate.NewLimiter(rate.Inf, 0)
	return sched
}

func saveWatch(t *testing.T, store *storage.SQLite, chatID int64, query string) {
	t.Helper()
	if err := store.SaveWatch(context.Background(), &model.Watch{ChatID: chatID, Query: query}); err != nil {
		t.Fatalf("save watch: %v", err)
	}
}

// makeDue moves a watch's last check back past the interval.
func makeDue(t *testing.T, store *storage.SQLite, chatID int64) {
	t.Helper()
	ctx := context.Background()
	w, err := store.GetWatch(ctx, chatID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	past := time.Now().UTC().Add(-time.Hour)
	w.LastCheckAt = &past
	if err := store.UpdateWatch(ctx, w); err != nil {
		t.Fatalf("update watch: %v", err)
	}
}

func newListing(id, width string, expiresIn time.Duration) model.Tyre {
	tyre := fakeapi.MakeTyres(id, 1, width)[0]
	tyre.ID = id
	tyre.CreatedAt = time.Now().UTC().Add(time.Minute)
	tyre.ExpiresAt = time.Now().UTC().Add(expiresIn)
	return tyre
}

func TestFirstCheckRecordsBaseline(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newTestBackend(t)
	saveWatch(t, store, 100, "width=195")

	sender := &mockSender{}
	sched := newTestScheduler(store, backend, sender)
	sched.checkAll(ctx)

	if diff := cmp.Diff(0, len(sender.getMessages())); diff != "" {
		t.Errorf("baseline should send nothing (-want +got):\n%s", diff)
	}

	for _, id := range []string{"w195-00", "w195-03"} {
		seen, err := store.IsSeen(ctx, 100, id)
		if err != nil {
			t.Fatalf("is seen: %v", err)
		}
		if !seen {
			t.Errorf("%s should be recorded in the baseline", id)
		}
	}
	if seen, _ := store.IsSeen(ctx, 100, "w205-00"); seen {
		t.Error("listings outside the filters should not be recorded")
	}

	w, err := store.GetWatch(ctx, 100)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if w.LastCheckAt == nil {
		t.Error("expected LastCheckAt to be set")
	}

	q := backend.ListQueries()[0]
	if diff := cmp.Diff("195", q.Get("width")); diff != "" {
		t.Errorf("width param (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("newest", q.Get("sort")); diff != "" {
		t.Errorf("sort param (-want +got):\n%s", diff)
	}
}

func TestSchedulerSendsNewListings(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newTestBackend(t)
	saveWatch(t, store, 100, "width=195")

	sender := &mockSender{}
	sched := newTestScheduler(store, backend, sender)
	sched.checkAll(ctx)

	backend.Add(
		newListing("fresh-195", "195", 24*time.Hour),
		newListing("fresh-205", "205", 24*time.Hour),
		newListing("lapsed-195", "195", -time.Minute),
	)

	// Not due yet.
	sched.checkAll(ctx)
	if diff := cmp.Diff(0, len(sender.getMessages())); diff != "" {
		t.Fatalf("watch checked before its interval (-want +got):\n%s", diff)
	}

	makeDue(t, store, 100)
	sched.checkAll(ctx)

	msgs := sender.getMessages()
	if diff := cmp.Diff(1, len(msgs)); diff != "" {
		t.Fatalf("message count mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(int64(100), msgs[0].ChatID); diff != "" {
		t.Errorf("chatID mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(msgs[0].Text, "id: fresh-195") {
		t.Errorf("alert should describe the new listing, got:\n%s", msgs[0].Text)
	}

	makeDue(t, store, 100)
	sched.checkAll(ctx)
	if diff := cmp.Diff(1, len(sender.getMessages())); diff != "" {
		t.Errorf("listings must be announced once (-want +got):\n%s", diff)
	}
}

func TestSchedulerAlertsInPublicationOrder(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newTestBackend(t)
	saveWatch(t, store, 100, "")

	sender := &mockSender{}
	sched := newTestScheduler(store, backend, sender)
	sched.checkAll(ctx)

	older := newListing("older", "215", 24*time.Hour)
	newer := newListing("newer", "215", 24*time.Hour)
	newer.CreatedAt = older.CreatedAt.Add(time.Minute)
	backend.Add(newer, older)

	makeDue(t, store, 100)
	sched.checkAll(ctx)

	var got []string
	for _, m := range sender.getMessages() {
		got = append(got, m.Text[strings.LastIndex(m.Text, "id: ")+4:])
	}
	if diff := cmp.Diff([]string{"older", "newer"}, got); diff != "" {
		t.Errorf("alert order mismatch (-want +got):\n%s", diff)
	}
}

func TestSchedulerFetchError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	backend := newTestBackend(t)
	saveWatch(t, store, 100, "width=195")

	sender := &mockSender{}
	sched := newTestScheduler(store, backend, sender)

	backend.SetFailing(true)
	sched.checkAll(ctx)

	w, err := store.GetWatch(ctx, 100)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if w.LastCheckAt != nil {
		t.Error("a failed first check must not count as the baseline")
	}

	backend.SetFailing(false)
	sched.checkAll(ctx)
	backend.SetFailing(true)
	makeDue(t, store, 100)
	before := time.Now().UTC().Add(-time.Second)
	sched.checkAll(ctx)

	if diff := cmp.Diff(0, len(sender.getMessages())); diff != "" {
		t.Errorf("expected no messages on fetch error (-want +got):\n%s", diff)
	}

	// last_check_at should still be updated even on error
	w, err = store.GetWatch(ctx, 100)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if w.LastCheckAt == nil || w.LastCheckAt.Before(before) {
		t.Errorf("LastCheckAt = %v, want at or after %v", w.LastCheckAt, before)
	}
}

func TestSchedulerCancelledContext(t *testing.T) {
	store := newTestStore(t)
	backend := newTestBackend(t)
	saveWatch(t, store, 100, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sender := &mockSender{}
	sched := newTestScheduler(store, backend, sender)
	sched.checkAll(ctx)

	if diff := cmp.Diff(0, backend.Hits("GET /api/tyres")); diff != "" {
		t.Errorf("expected no requests when context cancelled (-want +got):\n%s", diff)
	}
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	backend := newTestBackend(t)
	sched := newTestScheduler(store, backend, &mockSender{})
	sched.SetTickInterval(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
