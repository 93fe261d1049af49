package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/flowhook/flowhook/pkg/persistence"
)

const (
	serverReadTimeout     = 30 * time.Second
	serverWriteTimeout    = 30 * time.Second
	serverIdleTimeout     = 60 * time.Second
	serverShutdownTimeout = 5 * time.Second
	maxRequestBodySize    = 1024 * 1024 // 1MB max request body
)

// Server exposes the webhook ingestion endpoint over HTTP.
type Server struct {
	server      *http.Server
	port        int
	dispatcher  *Dispatcher
	persistence persistence.Persistence
	logger      *slog.Logger
	mu          sync.Mutex
	started     bool
	done        chan struct{}
	doneOnce    sync.Once
}

func NewServer(port int, logger *slog.Logger, dispatcher *Dispatcher, persistence persistence.Persistence) *Server {
	return &Server{
		port:        port,
		dispatcher:  dispatcher,
		persistence: persistence,
		logger:      logger.With("module", "webhook_server", "port", port),
		done:        make(chan struct{}),
	}
}

// Start begins serving webhook requests and arranges shutdown on ctx
// cancellation.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook/", s.handleWebhook)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      mux,
		ReadTimeout:  serverReadTimeout,
		WriteTimeout: serverWriteTimeout,
		IdleTimeout:  serverIdleTimeout,
	}

	s.started = true
	s.logger.Info("Starting webhook server", "addr", s.server.Addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Webhook server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		if err := s.Stop(shutdownCtx); err != nil {
			s.logger.Error("Error during webhook server shutdown", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	s.logger.Info("Stopping webhook server")

	shutdownCtx, cancel := context.WithTimeout(ctx, serverShutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Error during server shutdown", "error", err)

		return err
	}

	s.started = false
	s.doneOnce.Do(func() {
		close(s.done)
	})

	return nil
}

// Done returns a channel closed once the server has shut down.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "Only POST method allowed")

		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Error reading request body")

		return
	}

	event := make(map[string]any)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &event); err != nil {
			s.writeError(w, http.StatusBadRequest, "Invalid JSON in request body")

			return
		}
	}

	result, err := s.dispatcher.Dispatch(r.Context(), r.URL.Path, r.Header, event)
	if err != nil {
		s.logger.Error("Error dispatching webhook", "path", r.URL.Path, "error", err)
		s.writeError(w, http.StatusInternalServerError, "Error processing webhook")

		return
	}

	s.logger.Info("Webhook processed",
		"path", r.URL.Path,
		"status", result.Status,
		"matched", result.Matched,
		"remote_addr", r.RemoteAddr)

	if result.RawBody != nil {
		w.WriteHeader(result.Status)

		if _, err := w.Write(result.RawBody); err != nil {
			s.logger.Error("Error writing handshake response", "error", err)
		}

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(result.Status)

	if err := json.NewEncoder(w).Encode(result.Body); err != nil {
		s.logger.Error("Error encoding response", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	code := http.StatusOK

	if err := s.persistence.HealthCheck(r.Context()); err != nil {
		s.logger.Error("Persistence health check failed", "error", err)

		status = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		s.logger.Error("Error encoding health response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": message,
		"code":    statusCode,
	}); err != nil {
		s.logger.Error("Error encoding error response", "error", err)
	}
}
