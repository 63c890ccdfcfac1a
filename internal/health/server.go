// Package health serves a small JSON liveness endpoint for hosting platforms.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Status is the body of every response.
type Status struct {
	Status    string  `json:"status"`
	Uptime    float64 `json:"uptime"` // seconds
	Timestamp string  `json:"timestamp"`
	Guilds    int     `json:"guilds"`
}

type Server struct {
	addr    string
	started time.Time
	guilds  func() int
	now     func() time.Time
	log     zerolog.Logger
}

// New builds a server; guilds reports how many guilds have an active queue.
func New(addr string, guilds func() int, logger zerolog.Logger) *Server {
	return &Server{
		addr:    addr,
		started: time.Now(),
		guilds:  guilds,
		now:     time.Now,
		log:     logger.With().Str("component", "health").Logger(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStatus)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	st := Status{
		Status:    "Bot is running",
		Uptime:    now.Sub(s.started).Seconds(),
		Timestamp: now.UTC().Format(time.RFC3339Nano),
	}
	if s.guilds != nil {
		st.Guilds = s.guilds()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(st); err != nil {
		s.log.Warn().Err(err).Msg("failed to write health response")
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info().Msg("shutting down health server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", s.addr).Msg("health server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
