// Package web serves the analyzer as a server-rendered HTML page plus a small
// JSON API.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"ghanalyzer/internal/analyzer"
	"ghanalyzer/internal/chart"
	"ghanalyzer/internal/config"

	"golang.org/x/sync/singleflight"
)

const (
	defaultRefresh    = time.Second
	defaultAPITimeout = 2 * time.Minute
)

type Server struct {
	ctrl    *analyzer.Controller
	runner  analyzer.Runner
	palette []string
	logger  *slog.Logger
	refresh time.Duration
	timeout time.Duration

	// baseCtx parents runs started by form posts and API calls; they must
	// outlive the request that started them.
	baseCtx context.Context

	lookups singleflight.Group
	mux     *http.ServeMux
}

type Option func(*Server)

func WithPalette(palette []string) Option {
	return func(s *Server) {
		if len(palette) > 0 {
			s.palette = palette
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRefreshInterval sets how often the page reloads while a run is loading.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.refresh = d
		}
	}
}

// WithAPITimeout bounds stateless lookups on /api/users/{username}.
func WithAPITimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer wires the page to ctrl and the stateless API to runner.
func NewServer(ctrl *analyzer.Controller, runner analyzer.Runner, opts ...Option) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("controller is nil")
	}
	if runner == nil {
		return nil, errors.New("runner is nil")
	}
	s := &Server{
		ctrl:    ctrl,
		runner:  runner,
		palette: chart.DefaultPalette,
		logger:  slog.Default(),
		refresh: defaultRefresh,
		timeout: defaultAPITimeout,
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /analyze", s.handleAnalyze)
	mux.HandleFunc("GET /chart.svg", s.handleChart)
	mux.HandleFunc("GET /api/state", s.handleState)
	mux.HandleFunc("GET /api/users/{username}", s.handleUser)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux = mux
	return s, nil
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully
// within shutdownTimeout and cancels any run still in flight.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln, shutdownTimeout)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener, shutdownTimeout time.Duration) error {
	baseCtx, cancelRuns := context.WithCancel(ctx)
	defer cancelRuns()
	s.baseCtx = baseCtx

	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	s.ctrl.Cancel()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	data, err := newPageData(st, s.palette, s.refresh)
	if err != nil {
		s.logger.Error("render chart", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.Execute(w, data); err != nil {
		s.logger.Error("render page", "err", err)
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	if _, err := s.ctrl.Start(s.baseCtx, username); err != nil && !errors.Is(err, analyzer.ErrEmptyUsername) {
		s.logger.Error("start analysis", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	st := s.ctrl.State()
	if st.Phase != analyzer.PhaseSuccess {
		http.NotFound(w, r)
		return
	}
	svg, err := chart.RenderSVG(chart.NewPie(st.Tally, s.palette), chart.Options{Title: "Languages used by " + st.Username})
	if err != nil {
		s.logger.Error("render chart", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(svg)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.State())
}

type userResponse struct {
	*analyzer.Result
	Chart chart.Pie `json:"chart"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	login, err := config.NormalizeUsername(r.PathValue("username"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: analyzer.MsgNotFound})
		return
	}

	// Concurrent lookups of one login share a single run.
	v, err, shared := s.lookups.Do(strings.ToLower(login), func() (any, error) {
		ctx, cancel := context.WithTimeout(s.baseCtx, s.timeout)
		defer cancel()
		return s.runner.Run(ctx, login)
	})
	if shared {
		s.logger.Debug("lookup shared", "user", login)
	}
	if err != nil {
		status := http.StatusBadGateway
		if analyzer.IsNotFound(err) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, errorResponse{Error: analyzer.UserMessage(err)})
		return
	}

	res := v.(*analyzer.Result)
	writeJSON(w, http.StatusOK, userResponse{Result: res, Chart: chart.NewPie(res.Tally, s.palette)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
