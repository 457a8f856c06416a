package httpserver

import (
	"context"
	"net/http"

	"log/slog"

	"gatherly-backend/internal/badge"
	"gatherly-backend/internal/chat"
	"gatherly-backend/internal/roster"
	"gatherly-backend/internal/social"
	"gatherly-backend/internal/ws"
)

type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

type ReadyChecker interface {
	Ready(ctx context.Context) error
}

type Services struct {
	Roster *roster.Service
	Social *social.Service
	Chat   *chat.Service
	Badge  *badge.Service
}

func NewHandler(logger *slog.Logger, ready ReadyChecker, verifier TokenVerifier, hub *ws.Hub, svcs Services) http.Handler {
	mux := http.NewServeMux()
	api := newV1API(logger, svcs)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := ready.Ready(r.Context()); err != nil {
			logger.Warn("ready check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.Handle("/v1/ws", hub.Handler())
	mux.HandleFunc("/v1/events/", api.handleEventSubroutes)
	mux.HandleFunc("/v1/me/phone", api.handleLinkPhone)
	mux.HandleFunc("/v1/friends", api.handleFriends)
	mux.HandleFunc("/v1/friends/", api.handleFriendSubroutes)
	mux.HandleFunc("/v1/chats/", api.handleChatSubroutes)
	mux.HandleFunc("/v1/badge", api.handleBadge)

	return chain(
		mux,
		recoverMiddleware(logger),
		requestLogMiddleware(logger),
		corsMiddleware(),
		authMiddleware(verifier),
	)
}
