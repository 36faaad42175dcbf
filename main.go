package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vinyl_scanner/internal/app"
	"vinyl_scanner/internal/config"
	"vinyl_scanner/internal/web"

	"github.com/rs/zerolog/log"
)

func main() {
	app.SetupEnvironment()
	log.Debug().Msg("Starting application")

	cfg := app.LoadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clients, err := app.InitializeClients(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize clients")
	}
	defer clients.Close()

	resilience := config.DefaultResilienceConfig
	server, err := web.NewServer(
		web.Config{
			SecretKey:         cfg.SecretKey,
			CORSOrigins:       cfg.CORSOrigins,
			MaxUploadBytes:    cfg.MaxUploadBytes,
			ScanRatePerMinute: cfg.ScanRatePerMinute,
			ScanBurst:         cfg.ScanBurst,
			ScanTimeout:       resilience.ScanTimeout,
			SheetRead:         resilience.SheetRead,
			SecureCookies:     cfg.SecureCookies,
		},
		web.NewOAuthConfig(cfg.OAuthClientID, cfg.OAuthClientSecret, cfg.OAuthRedirectURL),
		clients.Sessions,
		web.NewGoogleServices(),
		clients.Scanner,
		clients.Notifier,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      resilience.ScanTimeout + 15*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	go func() {
		log.Info().Str("addr", cfg.Addr).Msg("Vinyl scanner listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
