package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync/atomic"
	"time"

	"dailysales/internal/chart"
	"dailysales/internal/log"
	"dailysales/internal/middleware/ratelimit"
	"dailysales/internal/middleware/security"
	"dailysales/internal/middleware/trace"
	"dailysales/internal/session"
	"dailysales/internal/sheets"
	appweb "dailysales/web"
)

// PageTitle heads the tracker page.
const PageTitle = "🛒 Supermarket Daily Sales Tracker"

// CheckFunc is a readiness probe for one dependency.
type CheckFunc func(ctx context.Context) error

// Options wires the server's collaborators.
type Options struct {
	Addr     string
	Sessions *session.Manager
	// Exporter is optional; nil hides the Google Sheets action.
	Exporter           sheets.LedgerExporter
	RateLimitPerMinute int
	Chart              chart.Options
	// Checks run on /readyz in addition to the built-in template check.
	Checks map[string]CheckFunc
	Logger *log.Logger
}

// Server is the tracker's HTTP front end.
type Server struct {
	*http.Server

	templates *template.Template
	sessions  *session.Manager
	exporter  sheets.LedgerExporter
	chartOpts chart.Options
	checks    map[string]CheckFunc
	logger    *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	appMetrics *appMetrics
}

type appMetrics struct {
	uptime         time.Time
	salesRecorded  atomic.Int64
	salesRejected  atomic.Int64
	exports        atomic.Int64
	exportFailures atomic.Int64
}

// NewServer parses the embedded templates and builds the handler chain.
func NewServer(opts Options) (*Server, error) {
	if opts.Sessions == nil {
		return nil, errors.New("http server requires a session manager")
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	tmpl, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	detector := security.NewDetector(logger)
	s := &Server{
		templates:  tmpl,
		sessions:   opts.Sessions,
		exporter:   opts.Exporter,
		chartOpts:  opts.Chart,
		checks:     opts.Checks,
		logger:     logger,
		detector:   detector,
		tracer:     trace.NewMiddleware(detector.ExtractClientIP, logger),
		limiter:    ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, logger),
		appMetrics: &appMetrics{uptime: time.Now()},
	}

	s.Server = &http.Server{
		Addr:              opts.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return s, nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	withSession := s.sessions.Middleware
	mux.Handle("GET /{$}", withSession(http.HandlerFunc(s.handleIndex)))
	mux.Handle("POST /sales", withSession(http.HandlerFunc(s.handleCreateSale)))
	mux.Handle("GET /ui/sales", withSession(http.HandlerFunc(s.handleSalesPanel)))
	mux.Handle("GET /chart", withSession(http.HandlerFunc(s.handleChart)))
	mux.Handle("GET /sales.csv", withSession(http.HandlerFunc(s.handleDownloadCSV)))
	mux.Handle("POST /export/sheets", withSession(http.HandlerFunc(s.handleExportSheets)))

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		// StaticFS is embedded with a static/ prefix, so this cannot fail at runtime.
		panic(err)
	}
	mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(
		http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		TooManyRequestsError().Write(w)
	}, http.MethodPost)

	var h http.Handler = mux
	h = limit(h)
	h = headers.Middleware(h)
	h = s.detector.Middleware(h)
	h = s.tracer.Middleware(h)
	return h
}

// Shutdown stops accepting requests and releases the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.limiter.Stop()
	return s.Server.Shutdown(ctx)
}

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.Addr, log.FieldOperation, log.OpStartup)
		errCh <- s.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.limiter.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// requestSession returns the session placed in the context by the session middleware.
func requestSession(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Session missing from request context")
		InternalServerError("Session unavailable").Write(w)
		return nil, false
	}
	return sess, true
}
