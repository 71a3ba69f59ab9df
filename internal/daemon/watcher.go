package daemon

import (
	"encoding/json"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// chainEvent is pushed to every connected /api/events client whenever a
// session's chain file changes on disk.
type chainEvent struct {
	SessionID string `json:"session_id"`
	Op        string `json:"op"`
}

// eventHub fans fsnotify-observed chain writes out to connected websocket
// clients. Subscribing and publishing are decoupled from the watcher
// goroutine so a slow or dead client never blocks a write to disk.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: map[chan []byte]struct{}{}}
}

func (h *eventHub) subscribe() chan []byte {
	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan []byte) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) publish(evt chainEvent) {
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- b:
		default:
			// Drop the event for a client whose buffer is full rather than
			// stall the watcher loop.
		}
	}
}

// watchActiveDir watches the active-session directory so that external
// dashboards and CLI tools subscribed to /api/events learn about a heartbeat
// or new-session append without polling the JSONL files themselves.
func (d *Daemon) watchActiveDir() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		d.Log.Warn("fsnotify unavailable, live chain events disabled", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := watcher.Add(d.Layout.ActiveDir()); err != nil {
		d.Log.Warn("could not watch active session dir", map[string]interface{}{"error": err.Error()})
		watcher.Close()
		return
	}
	d.watcher = watcher

	go func() {
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				sessionID := strippedSessionID(ev.Name)
				d.events.publish(chainEvent{SessionID: sessionID, Op: ev.Op.String()})
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()
}

func strippedSessionID(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
