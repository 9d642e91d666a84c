// Package http is the thin presentation layer: HTML pages and partials over
// the storage and service layers.
package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/middleware/trace"
	"tally/internal/services"
	"tally/internal/storage"
	appweb "tally/web"
)

type Server struct {
	http.Server
	templates *template.Template
	storage   *storage.Repository
	overview  *services.Overview
	currency  core.Currency

	limiter *rateLimiter
	metrics *securityMetrics
	tracer  *trace.Middleware

	// Rendered dashboard partials, keyed by period. Any mutation purges the
	// whole cache because balances span months.
	overviewCache *cache.LRUCache[services.MonthOverview]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
// currency is the user's base currency, used for amount formatting.
func NewServer(addr string, repo *storage.Repository, currency core.Currency) *Server {
	mux := http.NewServeMux()

	s := &Server{
		storage:          repo,
		overview:         services.NewOverview(repo),
		currency:         currency,
		limiter:          newRateLimiter(),
		metrics:          &securityMetrics{},
		tracer:           trace.NewMiddleware(extractClientIP),
		overviewCache:    cache.NewLRUCache[services.MonthOverview](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}
	s.Server = http.Server{
		Addr:    addr,
		Handler: s.tracer.Middleware(mux),
	}

	go s.startCacheCleanup()

	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
			static.ServeHTTP(w, r)
		}))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/", s.secured(s.handleIndex))
	mux.HandleFunc("/ui/month-overview", s.secured(s.handleMonthOverview))
	mux.HandleFunc("/transactions", s.secured(s.handleCreateTransaction))
	mux.HandleFunc("/transactions/delete", s.secured(s.handleDeleteTransaction))
	mux.HandleFunc("/transfers", s.secured(s.handleTransfer))
	mux.HandleFunc("/categories", s.secured(s.handleCreateCategory))
	mux.HandleFunc("/recurring", s.secured(s.handleCreateRecurring))
	mux.HandleFunc("/recurring/stop", s.secured(s.handleStopRecurring))
	mux.HandleFunc("/favourites", s.secured(s.handleCreateFavourite))

	return s
}

// secured adds security headers and applies rate limiting to mutations.
func (s *Server) secured(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		if r.Method == http.MethodPost {
			clientIP := extractClientIP(r)
			if !s.limiter.allow(clientIP, s.metrics) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.overviewCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "entries_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown stops the cleanup goroutines and then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.limiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
