package notify

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scrypster/companion/internal/engine"
)

func turnEvent(response string) engine.Event {
	return engine.Event{
		Type:      engine.EventTurn,
		Timestamp: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
		Turn:      &engine.TurnResult{Response: response},
	}
}

func TestEventWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)

	if err := w.Notify(turnEvent("hi")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, Dir))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".event" {
		t.Errorf("expected .event extension, got %s", entries[0].Name())
	}
}

func TestEventWatcherReceivesEvent(t *testing.T) {
	dir := t.TempDir()
	received := make(chan engine.Event, 1)

	watcher := NewEventWatcher(dir, func(ev engine.Event) {
		received <- ev
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	if err := NewEventWriter(dir).Notify(turnEvent("hello from the cli")); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}

	select {
	case ev := <-received:
		if ev.Type != engine.EventTurn {
			t.Errorf("expected event type turn, got %s", ev.Type)
		}
		if ev.Turn == nil || ev.Turn.Response != "hello from the cli" {
			t.Errorf("unexpected turn payload: %+v", ev.Turn)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}

	// Consumed files are removed.
	deadline := time.Now().Add(time.Second)
	for {
		entries, _ := os.ReadDir(filepath.Join(dir, Dir))
		if len(entries) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected events dir to be empty, found %d entries", len(entries))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestEventWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	writer := NewEventWriter(dir)
	for _, r := range []string{"one", "two"} {
		if err := writer.Notify(turnEvent(r)); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
	}

	received := make(chan engine.Event, 2)
	watcher := NewEventWatcher(dir, func(ev engine.Event) {
		received <- ev
	})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected 2 drained events, got %d", i)
		}
	}
}

func TestEventWatcherSkipsInvalidFiles(t *testing.T) {
	dir := t.TempDir()
	events := filepath.Join(dir, Dir)
	if err := os.MkdirAll(events, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(events, "1-bad.event"), []byte("{nope"), 0o600); err != nil {
		t.Fatal(err)
	}

	called := false
	watcher := NewEventWatcher(dir, func(engine.Event) { called = true })
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	watcher.Stop()

	if called {
		t.Error("callback should not run for an invalid event file")
	}
	if _, err := os.Stat(filepath.Join(events, "1-bad.event")); !os.IsNotExist(err) {
		t.Error("invalid event file should be removed")
	}
}

func TestEventWriterPublishesAdventure(t *testing.T) {
	dir := t.TempDir()
	w := NewEventWriter(dir)
	w.Publish(engine.Event{Type: engine.EventAdventure, Adventure: &engine.AdventureResult{Action: engine.ActionStart}})

	entries, err := os.ReadDir(filepath.Join(dir, Dir))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 event file, got %d", len(entries))
	}
}
