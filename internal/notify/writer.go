// Package notify relays companion events between processes through files
// in a shared directory, so turns recorded by the CLI reach browsers
// connected to a running web server.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/scrypster/companion/internal/engine"
)

// Dir is the events directory under the data path.
const Dir = "events"

// EventWriter writes notification event files to a shared directory.
type EventWriter struct {
	dir string
	now func() time.Time
}

// NewEventWriter creates a writer that emits events to {dataPath}/events/.
func NewEventWriter(dataPath string) *EventWriter {
	return &EventWriter{dir: filepath.Join(dataPath, Dir), now: time.Now}
}

// Notify writes ev to a new event file. The file appears under its final
// name only once complete. Safe to call concurrently.
func (w *EventWriter) Notify(ev engine.Event) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}

	tmp, err := os.CreateTemp(w.dir, "*.tmp")
	if err != nil {
		return fmt.Errorf("notify: create temp: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: write event: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: close event: %w", err)
	}

	name := fmt.Sprintf("%d-%s.event", w.now().UnixNano(), ev.Type)
	if err := os.Rename(tmp.Name(), filepath.Join(w.dir, name)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("notify: publish event: %w", err)
	}
	return nil
}

// Publish is Notify with the error logged, shaped for Engine.SetOnTurn.
func (w *EventWriter) Publish(ev engine.Event) {
	if err := w.Notify(ev); err != nil {
		logf("notify: %v", err)
	}
}
