// Package backend serves the guild, request and queue store over HTTP.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/repository"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	repo  *repository.Repo
	token string
}

func New(repo *repository.Repo, token string) *Server {
	return &Server{repo: repo, token: token}
}

// Handler returns the routed API with auth and request logging applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.health)

	mux.HandleFunc("PUT /v1/guilds/{guildID}", s.upsertGuild)
	mux.HandleFunc("GET /v1/guilds/{guildID}/settings", s.getSettings)
	mux.HandleFunc("PATCH /v1/guilds/{guildID}/settings", s.updateSettings)
	mux.HandleFunc("GET /v1/guilds/{guildID}/history", s.history)

	mux.HandleFunc("PUT /v1/channels/{channelID}", s.upsertChannel)
	mux.HandleFunc("PUT /v1/users/{userID}", s.upsertUser)
	mux.HandleFunc("PUT /v1/videos/{videoID}", s.upsertVideo)
	mux.HandleFunc("GET /v1/videos/{videoID}", s.getVideo)

	mux.HandleFunc("POST /v1/requests", s.createRequest)
	mux.HandleFunc("GET /v1/requests/{requestID}", s.getRequest)
	mux.HandleFunc("PUT /v1/requests/{requestID}/played", s.markPlayed)

	mux.HandleFunc("GET /v1/guilds/{guildID}/queue", s.peekQueue)
	mux.HandleFunc("POST /v1/guilds/{guildID}/queue", s.pushQueue)
	mux.HandleFunc("POST /v1/guilds/{guildID}/queue/advance", s.advanceQueue)
	mux.HandleFunc("DELETE /v1/guilds/{guildID}/queue", s.clearQueue)
	mux.HandleFunc("DELETE /v1/guilds/{guildID}/queue/{order}", s.removeFromQueue)

	return logRequests(bearerAuth(s.token, mux))
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("api shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
