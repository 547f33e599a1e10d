// Package dashboard serves live and recorded telemetry over HTTP: JSON for
// tools and quick go-echarts pages for looking at a run in a browser.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/linefollow/internal/db"
	"github.com/banshee-data/linefollow/internal/httputil"
	"github.com/banshee-data/linefollow/internal/monitoring"
	"github.com/banshee-data/linefollow/internal/telemetry"
	"github.com/banshee-data/linefollow/internal/version"
)

const (
	defaultFrameCount = 250
	maxFrameCount     = 10000
)

// Server is the debug HTTP interface.
type Server struct {
	address  string
	recorder *telemetry.Recorder
	stream   *telemetry.Broadcaster
	db       *db.DB
	server   *http.Server
}

// Config contains configuration options for the server. Recorder serves live
// frames and Stream pushes them as they happen; DB, when set, serves
// recorded runs.
type Config struct {
	Address  string
	Recorder *telemetry.Recorder
	Stream   *telemetry.Broadcaster
	DB       *db.DB
}

// NewServer creates a server with the provided configuration.
func NewServer(cfg Config) *Server {
	s := &Server{
		address:  cfg.Address,
		recorder: cfg.Recorder,
		stream:   cfg.Stream,
		db:       cfg.DB,
	}
	s.server = &http.Server{
		Addr:              s.address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/frame", s.handleFrame)
	mux.HandleFunc("/api/frames", s.handleFrames)
	mux.HandleFunc("/api/stream", s.handleStream)
	mux.HandleFunc("/api/summary", s.handleSummary)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/debug/reflectance", s.handleReflectanceChart)
	mux.HandleFunc("/debug/path", s.handlePathChart)
	mux.HandleFunc("/debug/path.png", s.handlePathPNG)

	return mux
}

// Start serves until ctx is cancelled, then shuts down. It returns early
// with an error if the listener fails.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		monitoring.Logf("dashboard: listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("dashboard server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("dashboard: shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("dashboard: force close error: %v", err)
		}
	}
	monitoring.Logf("dashboard: stopped")
	return nil
}

// frames resolves the frame set for a request: the recorded run named by
// ?run= (or "latest") when a database is attached, else the live recorder.
// ?n= keeps the most recent n frames; without it, defaultN applies and zero
// means every frame.
func (s *Server) frames(r *http.Request, defaultN int) ([]telemetry.Frame, string, int, error) {
	n := defaultN
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			return nil, "", http.StatusBadRequest, fmt.Errorf("invalid 'n' parameter %q", v)
		}
		n = min(parsed, maxFrameCount)
	}

	runID := r.URL.Query().Get("run")
	if runID == "" {
		if s.recorder == nil {
			return nil, "", http.StatusServiceUnavailable, errors.New("no live telemetry")
		}
		return s.recorder.Recent(n), "live", http.StatusOK, nil
	}

	if s.db == nil {
		return nil, "", http.StatusServiceUnavailable, errors.New("run database not configured")
	}
	var (
		run db.Run
		err error
	)
	if runID == "latest" {
		run, err = s.db.LatestRun()
	} else {
		run, err = s.db.GetRun(runID)
	}
	if errors.Is(err, db.ErrRunNotFound) {
		return nil, "", http.StatusNotFound, err
	}
	if err != nil {
		return nil, "", http.StatusInternalServerError, err
	}
	frames, err := s.db.Frames(run.ID, n)
	if err != nil {
		return nil, "", http.StatusInternalServerError, err
	}
	return frames, run.ID, http.StatusOK, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]string{
		"status":  "ok",
		"version": version.String(),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.recorder == nil {
		httputil.ServiceUnavailable(w, "no live telemetry")
		return
	}
	f, ok := s.recorder.Latest()
	if !ok {
		httputil.NotFound(w, "no frames yet")
		return
	}
	httputil.WriteJSONOK(w, f)
}

func (s *Server) handleFrames(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	frames, _, status, err := s.frames(r, defaultFrameCount)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	httputil.WriteJSONOK(w, frames)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	frames, _, status, err := s.frames(r, 0)
	if err != nil {
		httputil.WriteJSONError(w, status, err.Error())
		return
	}
	httputil.WriteJSONOK(w, telemetry.Summarize(frames))
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if !httputil.RequireGET(w, r) {
		return
	}
	if s.db == nil {
		httputil.ServiceUnavailable(w, "run database not configured")
		return
	}
	runs, err := s.db.Runs()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	if runs == nil {
		runs = []db.Run{}
	}
	httputil.WriteJSONOK(w, runs)
}
