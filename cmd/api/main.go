package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gatherly-backend/internal/auth"
	"gatherly-backend/internal/badge"
	"gatherly-backend/internal/chat"
	"gatherly-backend/internal/config"
	"gatherly-backend/internal/docstore"
	"gatherly-backend/internal/httpserver"
	"gatherly-backend/internal/logging"
	"gatherly-backend/internal/phone"
	"gatherly-backend/internal/push"
	"gatherly-backend/internal/roster"
	"gatherly-backend/internal/social"
	"gatherly-backend/internal/ws"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("log init error: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Info("starting", "httpAddr", cfg.HTTPAddr, "store", docstore.RedactedStoreURL(cfg.StoreURL))

	store, err := docstore.Open(ctx, cfg.StoreURL, cfg.MongoDatabase, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	phones := phone.NewNormalizer(cfg.CountryCode)
	notifier := push.LogNotifier{Logger: logger}
	verifier := auth.NewVerifier(store)

	svcs := httpserver.Services{
		Roster: roster.NewService(store, phones, notifier, logger),
		Social: social.NewService(store, notifier, logger),
		Chat:   chat.NewService(store, notifier, logger),
		Badge:  badge.NewService(store, logger),
	}

	hub := ws.NewHub(logger, &verifierTokenValidator{verifier: verifier}, store)
	handler := httpserver.NewHandler(logger, store, verifier, hub, svcs)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          logging.StdLogger(logger),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("listening", "httpAddr", cfg.HTTPAddr)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			os.Exit(1)
		}
	}

	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("stopped")
}

type verifierTokenValidator struct {
	verifier *auth.Verifier
}

func (v *verifierTokenValidator) ValidateToken(ctx context.Context, token string) (string, error) {
	return v.verifier.Verify(ctx, token)
}
