// Package server provides the HTTP handlers and routing for the MCP server.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"autoform-mcp/internal/autoform"
	"autoform-mcp/internal/tools"
)

const (
	TransportHTTP = "http"
	TransportSSE  = "sse"

	shutdownTimeout = 10 * time.Second
)

// Config selects which MCP transport the router mounts.
type Config struct {
	Transport   string
	TLSCertFile string
	TLSKeyFile  string
}

// Server contains the configured router, tool registry and MCP server.
type Server struct {
	cfg      Config
	router   *chi.Mux
	registry *tools.Registry
	mcp      *mcp.Server
	logger   *zap.Logger
}

// New constructs a Server with middleware and routes configured. gatherer backs
// /metrics; nil disables the route.
func New(cfg Config, registry *tools.Registry, mcpServer *mcp.Server, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:      cfg,
		router:   chi.NewRouter(),
		registry: registry,
		mcp:      mcpServer,
		logger:   logger.Named("http"),
	}
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	if gatherer != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	getServer := func(*http.Request) *mcp.Server { return s.mcp }
	s.router.Route("/mcp", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			r.Get("/tools", s.handleListTools)
			r.Post("/call", s.handleCall)
		})
		if cfg.Transport != TransportSSE {
			r.Handle("/", mcp.NewStreamableHTTPHandler(getServer, nil))
		}
	})
	if cfg.Transport == TransportSSE {
		s.router.Handle("/sse", mcp.NewSSEHandler(getServer, nil))
	}

	return s
}

// Router exposes the root HTTP handler for the server.
func (s *Server) Router() http.Handler { return s.router }

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.cfg.TLSCertFile != "" && s.cfg.TLSKeyFile != "" {
			s.logger.Info("listening", zap.String("addr", addr), zap.String("transport", s.cfg.Transport), zap.Bool("tls", true))
			err = srv.ListenAndServeTLS(s.cfg.TLSCertFile, s.cfg.TLSKeyFile)
		} else {
			s.logger.Info("listening", zap.String("addr", addr), zap.String("transport", s.cfg.Transport), zap.Bool("tls", false))
			err = srv.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	list := s.registry.List()
	out := make([]Tool, 0, len(list))
	for _, t := range list {
		out = append(out, Tool{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  t.InputSchema,
			OutputSchema: t.OutputSchema,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"tools": out})
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	var req CallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, CallResponse{Error: &autoform.ErrorInfo{Kind: autoform.KindValidation, Message: "invalid json"}})
		return
	}
	if _, ok := s.registry.Lookup(req.Name); !ok {
		writeJSON(w, http.StatusNotFound, CallResponse{Error: &autoform.ErrorInfo{Kind: autoform.KindValidation, Message: "unknown tool: " + req.Name}})
		return
	}

	ctx := autoform.WithToken(r.Context(), autoform.TokenFromHeader(r.Header))
	out, err := s.registry.Invoke(ctx, req.Name, req.Args)
	if err != nil {
		info := autoform.Describe(err)
		writeJSON(w, autoform.HTTPStatus(err), CallResponse{Error: &info})
		return
	}
	writeJSON(w, http.StatusOK, CallResponse{Result: out})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.logger.Debug("request",
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)))
		}()
		next.ServeHTTP(ww, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
