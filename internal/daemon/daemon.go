// Package daemon implements the long-running local HTTP server: the
// health/mcp/seal-active endpoints, the single-instance guarantee, and
// graceful shutdown.
package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gorilla/websocket"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"github.com/useai-dev/useai-core/internal/config"
	"github.com/useai-dev/useai-core/internal/engine"
	"github.com/useai-dev/useai-core/internal/keystore"
	"github.com/useai-dev/useai-core/internal/logging"
	"github.com/useai-dev/useai-core/internal/metrics"
	"github.com/useai-dev/useai-core/internal/store"
	"github.com/useai-dev/useai-core/internal/toolhandlers"
)

// Version identifies this daemon build; bumped at release time. The
// single-instance guarantee compares this against a running instance's
// reported version to decide whether to replace it.
var Version = "dev"

// Daemon owns the engine-per-transport map, the stores, and the HTTP
// server.
type Daemon struct {
	Layout  store.Layout
	Signer  *keystore.KeyStore
	Log     *logging.Logger
	Port    int

	mu        sync.Mutex
	transports map[string]*engine.Engine
	cfg       config.Config

	server   *http.Server
	listener net.Listener
	cronJob  *cron.Cron
	upgrader websocket.Upgrader
	watcher  *fsnotify.Watcher
	events   *eventHub

	startedAt time.Time
}

// New constructs a Daemon over layout, loading the initial configuration
// from its config.json (re-read from disk by configFn on every call so a
// concurrent edit takes effect immediately).
func New(layout store.Layout, signer *keystore.KeyStore, log *logging.Logger, port int) *Daemon {
	return &Daemon{
		Layout:     layout,
		Signer:     signer,
		Log:        log,
		Port:       port,
		transports: map[string]*engine.Engine{},
		cfg:        config.Load(layout.ConfigPath()),
		upgrader:   websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		events:     newEventHub(),
	}
}

func (d *Daemon) configFn() config.Config {
	cfg := config.Load(d.Layout.ConfigPath())
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg = cfg
	return d.cfg
}

// engineFor returns (creating if necessary) the Engine owned by a given
// transport id. Access is serialized per-transport by the daemon's own
// mutex, satisfying §5's "linearizable ordering within a transport".
func (d *Daemon) engineFor(transportID string) *engine.Engine {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.transports[transportID]
	if !ok {
		var signer engine.Signer
		if d.Signer != nil {
			signer = d.Signer
		}
		e = engine.New(d.Layout, signer, d.configFn)
		d.transports[transportID] = e
	}
	return e
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	active := 0
	for _, e := range d.transports {
		active += e.ActiveSessionCount()
	}
	d.mu.Unlock()
	metrics.ActiveSessions.Set(float64(active))

	resp := map[string]interface{}{
		"status":          "ok",
		"version":         Version,
		"uptime_seconds":  time.Since(d.startedAt).Seconds(),
		"active_sessions": active,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (d *Daemon) handleSealActive(w http.ResponseWriter, r *http.Request) {
	sealed := 0
	d.mu.Lock()
	engines := make([]*engine.Engine, 0, len(d.transports))
	for _, e := range d.transports {
		engines = append(engines, e)
	}
	d.mu.Unlock()

	for _, e := range engines {
		if e.InProgress() {
			if err := e.SealActive(); err == nil {
				sealed++
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if sealed == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	json.NewEncoder(w).Encode(map[string]int{"sealed": sealed})
}

// transportIDFromRequest identifies the logical session transport so a
// reconnecting client resumes the same Engine (and parent stack) rather
// than starting fresh. Clients supply it as a header; absent it, every
// request shares one default transport.
func transportIDFromRequest(r *http.Request) string {
	if id := r.Header.Get("X-Useai-Transport-Id"); id != "" {
		return id
	}
	return "default"
}

// Start binds the port (honoring the single-instance guarantee), installs
// the HTTP routes, and begins serving in the background. It returns
// immediately; the caller blocks (e.g. on a signal) and then calls Shutdown.
func (d *Daemon) Start() error {
	listener, redundant, err := EnsureSingleInstance(d.Layout.PIDPath(), d.Port, Version, d.Log)
	if err != nil {
		return err
	}
	if redundant {
		return nil
	}
	d.listener = listener
	d.startedAt = time.Now().UTC()

	d.sealOrphanedSessions()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", d.handleHealth)
	mux.HandleFunc("/api/seal-active", d.handleSealActive)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/events", d.handleEvents)

	mcpHandler := mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		transportID := transportIDFromRequest(r)
		e := d.engineFor(transportID)
		server := mcp.NewServer(&mcp.Implementation{Name: "useai-core", Version: Version}, nil)
		toolhandlers.Register(server, &toolhandlers.Registry{
			Engine: e,
			Layout: d.Layout,
			CfgFn:  d.configFn,
		})
		return server
	}, nil)
	mux.Handle("/mcp", mcpHandler)

	d.server = &http.Server{Handler: mux}

	d.cronJob = cron.New()
	d.cronJob.AddFunc("@every 5m", d.sweepAbandonedSessions)
	d.cronJob.AddFunc("@every 1h", d.maybeSync)
	d.cronJob.Start()

	d.watchActiveDir()

	go func() {
		if err := d.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			d.Log.Error("http server exited", map[string]interface{}{"error": err.Error()})
		}
	}()
	return nil
}

func (d *Daemon) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := d.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := d.events.subscribe()
	defer d.events.unsubscribe(sub)

	// A dashboard process that disconnects is simply dropped, never
	// retried across a network boundary.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for b := range sub {
		if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
			return
		}
	}
}

// sealOrphanedSessions scans data/active/ at startup for chain files left
// behind by a process that crashed before calling End — invisible to the
// per-transport engine map, which starts empty on every restart. Each one
// is reconstructed from its own chain records and sealed synthetically, so
// invariant 6 ("present only in SEALED/") still resolves after a crash.
func (d *Daemon) sealOrphanedSessions() {
	entries, err := os.ReadDir(d.Layout.ActiveDir())
	if err != nil {
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		sessionID := strippedSessionID(entry.Name())

		records, err := store.ReadChain(d.Layout.ActivePath(sessionID))
		if err != nil || len(records) == 0 {
			d.Log.Warn("skipping unreadable orphaned chain file", map[string]interface{}{"session_id": sessionID})
			continue
		}

		var signer engine.Signer
		if d.Signer != nil {
			signer = d.Signer
		}
		e, err := engine.RecoverFromChain(d.Layout, signer, d.configFn, sessionID, records)
		if err != nil {
			d.Log.Warn("could not reconstruct orphaned session", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
			continue
		}
		if err := e.SealActive(); err != nil {
			d.Log.Warn("could not seal orphaned session", map[string]interface{}{"session_id": sessionID, "error": err.Error()})
			continue
		}
		metrics.SealActiveSweeps.Inc()
		d.Log.Info("sealed orphaned session found at startup", map[string]interface{}{"session_id": sessionID})
	}
}

func (d *Daemon) sweepAbandonedSessions() {
	d.mu.Lock()
	engines := make([]*engine.Engine, 0, len(d.transports))
	for _, e := range d.transports {
		engines = append(engines, e)
	}
	d.mu.Unlock()

	for _, e := range engines {
		if e.InProgress() {
			if err := e.SealActive(); err != nil {
				d.Log.Warn("periodic seal-active sweep failed", map[string]interface{}{"error": err.Error()})
			} else {
				metrics.SealActiveSweeps.Inc()
			}
		}
	}
}

// maybeSync reads the config's auto_sync flag and returns. No sync hook or
// Syncer type exists in this repo, so it performs no sync and does not
// consult sync_interval_hours.
func (d *Daemon) maybeSync() {
	cfg := d.configFn()
	if !cfg.AutoSync {
		return
	}
}

// Shutdown stops accepting new requests, seals every live session, flushes
// stores, and removes the PID file.
func (d *Daemon) Shutdown(ctx context.Context) error {
	if d.cronJob != nil {
		d.cronJob.Stop()
	}
	if d.watcher != nil {
		d.watcher.Close()
	}

	d.mu.Lock()
	engines := make([]*engine.Engine, 0, len(d.transports))
	for _, e := range d.transports {
		engines = append(engines, e)
	}
	d.mu.Unlock()

	for _, e := range engines {
		if e.InProgress() {
			if err := e.SealActive(); err != nil {
				d.Log.Warn("shutdown seal-active failed; next start tolerates stale active entry", map[string]interface{}{"error": err.Error()})
			}
		}
	}

	var err error
	if d.server != nil {
		err = d.server.Shutdown(ctx)
	}
	removePIDFile(d.Layout.PIDPath())
	return err
}

// EnsureDaemon is the client-side helper used by AI-tool launchers: probe
// /health, and if it doesn't match, spawn a detached child and poll until
// it comes up (or the 60s deadline expires).
func EnsureDaemon(port int, expectedVersion string, spawn func() error) error {
	if probeHealth(port, expectedVersion) {
		return nil
	}
	if err := spawn(); err != nil {
		return fmt.Errorf("spawn daemon: %w", err)
	}
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		if probeHealth(port, expectedVersion) {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("daemon did not become healthy within 60s")
}
