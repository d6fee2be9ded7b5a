package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"shook/internal/config"
	"shook/internal/deployment"
	"shook/internal/event"
	"shook/internal/history"
	"shook/internal/hook"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	// HTTP server timeouts
	HTTPReadTimeout = 10 * time.Second
	HTTPIdleTimeout = 60 * time.Second

	// requestSlack is added on top of the deploy step timeouts so a handler
	// waiting on a cycle is not cut off before the cycle itself times out.
	requestSlack = 30 * time.Second

	// ShutdownTimeout bounds graceful shutdown of in-flight requests.
	ShutdownTimeout = 30 * time.Second
)

// Submitter queues deploy cycles. *deployment.Dispatcher implements it.
type Submitter interface {
	Submit(t deployment.Target) (<-chan deployment.Result, error)
}

// Options configures NewServer.
type Options struct {
	Config     *config.ServerConfig
	Secret     string
	Dispatcher Submitter
	History    *history.History // nil disables recording and /status
	Logger     *slog.Logger
	TestMode   bool // disables rate limiting and history
}

// Server represents the HTTP server
type Server struct {
	Config      *config.ServerConfig
	Reader      *hook.Reader
	Dispatcher  Submitter
	Target      deployment.Target
	Events      event.Set
	History     *history.History
	Logger      *slog.Logger
	Fingerprint string
	TestMode    bool
}

// NewServer creates a new server instance from a validated config.
func NewServer(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("server: dispatcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	target, err := deployment.TargetFromConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	fingerprint, err := opts.Config.Fingerprint()
	if err != nil {
		return nil, err
	}

	hist := opts.History
	if opts.TestMode {
		hist = nil
	}

	return &Server{
		Config: opts.Config,
		Reader: &hook.Reader{
			Verifier: hook.NewVerifier(opts.Secret, logger),
			MaxBytes: opts.Config.MaxPayloadBytes,
		},
		Dispatcher:  opts.Dispatcher,
		Target:      target,
		Events:      opts.Config.Events(),
		History:     hist,
		Logger:      logger,
		Fingerprint: fingerprint,
		TestMode:    opts.TestMode,
	}, nil
}

// RequestTimeout is the longest a webhook request may take: every deploy
// step at its timeout plus some slack.
func (s *Server) RequestTimeout() time.Duration {
	return s.Target.PullTimeout + s.Target.PreRestartTimeout + s.Target.RestartTimeout + requestSlack
}

// Router creates and configures the HTTP router
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.RequestTimeout()))
	r.Use(s.logRequests)

	// Routes
	r.Get("/health", s.HandleHealth)
	r.Get("/status", s.HandleStatus)

	limit := s.Config.RateLimit()
	if !s.TestMode && limit > 0 {
		r.With(NewRateLimitMiddleware(limit, s.Logger)).Post("/", s.HandleWebhook)
	} else {
		r.Post("/", s.HandleWebhook)
	}

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			s.Logger.Info("http_request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()))
		}()

		next.ServeHTTP(ww, r)
	})
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully. The listener is expected to be fully provisioned.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Router(),
		ReadTimeout:  HTTPReadTimeout,
		WriteTimeout: s.RequestTimeout() + 5*time.Second,
		IdleTimeout:  HTTPIdleTimeout,
		ErrorLog:     slog.NewLogLogger(s.Logger.Handler(), slog.LevelWarn),
	}

	s.Logger.Info("Starting server",
		"addr", ln.Addr().String(),
		"system_name", s.Target.SystemName,
		"update_events", s.Events.Kinds(),
		"config_fingerprint", s.Fingerprint)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
