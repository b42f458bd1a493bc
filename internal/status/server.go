package status

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/rxtech-lab/tickerwatch/internal/logger"
	"github.com/rxtech-lab/tickerwatch/pkg/errors"
	"go.uber.org/zap"
)

// StateFunc reports the scheduler's current state.
type StateFunc func() string

// Server exposes /healthz and /status.
type Server struct {
	address    string
	counters   *Counters
	state      StateFunc
	log        *logger.Logger
	httpServer *http.Server

	mu       sync.RWMutex
	listener net.Listener
}

// NewServer creates a status server. It does not listen until Run.
func NewServer(address string, counters *Counters, state StateFunc, log *logger.Logger) *Server {
	s := &Server{
		address:    address,
		counters:   counters,
		state:      state,
		log:        log,
		httpServer: nil,
		mu:         sync.RWMutex{},
		listener:   nil,
	}

	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Router returns the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	router.HandleFunc("/status", s.handleStatus).Methods("GET")

	return router
}

// Run listens on the configured address until ctx is cancelled. If address
// is ":0", a random available port is used.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "listen on %s", s.address)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Info("Status server listening", zap.String("address", listener.Addr().String()))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return errors.Wrap(errors.ErrCodeStageFailed, "status server", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Addr returns the bound address once Run has started listening.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := ""
	if s.state != nil {
		state = s.state()
	}

	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(s.counters.Snapshot(state)); err != nil {
		s.log.Warn("Failed to encode status", zap.Error(err))
	}
}
