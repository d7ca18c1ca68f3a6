// Package monitor serves the tracker's HTTP interface: health, the latest
// frame, pipeline counters, stored observations, a distance chart and
// on-demand position snapshots.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"tailscale.com/tsweb"

	"github.com/banshee-data/tagpose/internal/db"
	"github.com/banshee-data/tagpose/internal/httputil"
	"github.com/banshee-data/tagpose/internal/monitoring"
	"github.com/banshee-data/tagpose/internal/pipeline"
	"github.com/banshee-data/tagpose/internal/timeutil"
	"github.com/banshee-data/tagpose/internal/units"
)

// WebServer handles the HTTP interface for the tracker.
type WebServer struct {
	address     string
	stats       *pipeline.Stats
	latest      *Latest
	db          *db.DB
	sessionID   string
	snapshotDir string
	units       string
	clock       timeutil.Clock
	server      *http.Server
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address string
	Stats   *pipeline.Stats
	Latest  *Latest
	// DB is optional; without it the observation and chart routes answer 503.
	DB *db.DB
	// SessionID is the default session for observation queries.
	SessionID string
	// SnapshotDir receives snapshot PNGs. Empty disables snapshots.
	SnapshotDir string
	Units       string
	Clock       timeutil.Clock
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(config WebServerConfig) (*WebServer, error) {
	ws := &WebServer{
		address:     config.Address,
		stats:       config.Stats,
		latest:      config.Latest,
		db:          config.DB,
		sessionID:   config.SessionID,
		snapshotDir: config.SnapshotDir,
		units:       config.Units,
		clock:       config.Clock,
	}
	if ws.stats == nil {
		ws.stats = &pipeline.Stats{}
	}
	if ws.latest == nil {
		ws.latest = &Latest{}
	}
	if !units.IsValid(ws.units) {
		ws.units = units.M
	}
	if ws.clock == nil {
		ws.clock = timeutil.RealClock{}
	}
	if ws.snapshotDir != "" {
		if err := os.MkdirAll(ws.snapshotDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
		}
	}

	mux, err := ws.setupRoutes()
	if err != nil {
		return nil, err
	}
	ws.server = &http.Server{
		Addr:              ws.address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws, nil
}

// Handler returns the server's routes.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("HTTP server routine stopped")
	return nil
}

func (ws *WebServer) setupRoutes() (*http.ServeMux, error) {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/api/latest", ws.handleLatest)
	mux.HandleFunc("/api/stats", ws.handleStats)
	mux.HandleFunc("/api/sessions", ws.handleSessions)
	mux.HandleFunc("/api/observations", ws.handleObservations)
	mux.HandleFunc("/api/snapshot", ws.handleSnapshot)

	debug := tsweb.Debugger(mux)
	debug.Handle("distance-chart", "Distance from the reference tag per frame", http.HandlerFunc(ws.handleDistanceChart))
	if ws.db != nil {
		if err := ws.db.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":    "ok",
		"service":   "tagpose",
		"timestamp": ws.clock.Now().UTC().Format(time.RFC3339),
	})
}

func (ws *WebServer) handleLatest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	report, ok := ws.latest.Get()
	if !ok {
		httputil.NotFound(w, "no frame processed yet")
		return
	}
	httputil.WriteJSONOK(w, report.JSONSafe())
}

func (ws *WebServer) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, ws.stats.Snapshot())
}

func (ws *WebServer) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	sessions, err := ws.db.Sessions()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, sessions)
}

// handleObservations returns stored rows for a session.
// Query params:
//   - session (optional; defaults to the running session)
//   - tag (optional; all tags when omitted)
//   - limit (optional; default 1000, max 10000)
func (ws *WebServer) handleObservations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if ws.db == nil {
		httputil.ServiceUnavailable(w, "no database configured")
		return
	}
	session, ok := ws.sessionParam(w, r)
	if !ok {
		return
	}
	tag, err := httputil.QueryInt(r, "tag", db.AllTags)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	limit, err := httputil.QueryInt(r, "limit", db.DefaultObservationLimit)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	if limit <= 0 || limit > 10000 {
		httputil.BadRequest(w, "limit must be between 1 and 10000")
		return
	}

	rows, err := ws.db.Observations(session, tag, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, rows)
}

// sessionParam resolves the session query parameter, writing an error
// response and returning false when it cannot.
func (ws *WebServer) sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	session := r.URL.Query().Get("session")
	if session == "" {
		session = ws.sessionID
	}
	if session == "" {
		httputil.BadRequest(w, "missing 'session' parameter")
		return "", false
	}
	if _, err := ws.db.Session(session); err != nil {
		if errors.Is(err, db.ErrSessionNotFound) {
			httputil.NotFound(w, err.Error())
		} else {
			httputil.InternalServerError(w, err.Error())
		}
		return "", false
	}
	return session, true
}
