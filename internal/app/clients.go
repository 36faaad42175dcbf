package app

import (
	"context"

	"vinyl_scanner/internal/config"
	"vinyl_scanner/internal/discogs"
	"vinyl_scanner/internal/ebay"
	"vinyl_scanner/internal/notifications"
	"vinyl_scanner/internal/ocr"
	"vinyl_scanner/internal/scan"
	"vinyl_scanner/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// Clients are the process-wide collaborators. Per-user Google clients are
// built on demand by the web layer.
type Clients struct {
	Scanner  *scan.Service
	Notifier *notifications.Client
	Sessions session.Store

	pool *pgxpool.Pool
}

// InitializeClients creates the OCR, catalogue and marketplace clients and
// the session store.
func InitializeClients(ctx context.Context, cfg Config) (*Clients, error) {
	log.Debug().Msg("Initializing clients")
	timeout := config.DefaultResilienceConfig.HTTPTimeout

	vision, err := ocr.NewVisionClient(ctx, option.WithCredentialsFile(cfg.GoogleCredentials))
	if err != nil {
		return nil, err
	}

	catalogue := discogs.NewCatalogue(discogs.NewClient(discogs.DefaultBaseURL, cfg.DiscogsToken, timeout))
	market := ebay.NewClient(cfg.EbayAppID, cfg.EbayCertID, ebay.DefaultTokenURL, ebay.DefaultBaseURL, timeout)

	clients := &Clients{
		Scanner:  scan.NewService(vision, catalogue, ebay.NewAggregator(market)),
		Notifier: InitializeNotificationClient(cfg),
	}

	if cfg.DatabaseDSN == "" {
		log.Info().Msg("Using in-memory session store")
		clients.Sessions = session.NewMemoryStore(session.DefaultTTL)
	} else {
		pool, err := session.Connect(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		store := session.NewPGStore(pool, session.DefaultTTL)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		if removed, err := store.CleanupExpired(ctx); err != nil {
			log.Warn().Err(err).Msg("Failed to clean up expired sessions")
		} else if removed > 0 {
			log.Info().Int64("removed", removed).Msg("Removed expired sessions")
		}
		log.Info().Msg("Using Postgres session store")
		clients.Sessions = store
		clients.pool = pool
	}

	log.Debug().Msg("Clients initialized successfully")
	return clients, nil
}

// Close waits for pending notifications and releases the database pool.
func (c *Clients) Close() {
	c.Notifier.Wait()
	if c.pool != nil {
		c.pool.Close()
	}
	sent, failed := c.Notifier.Metrics()
	log.Debug().Int64("sent", sent).Int64("failed", failed).Msg("Notification totals")
}

// InitializeNotificationClient creates and returns the notification client
func InitializeNotificationClient(cfg Config) *notifications.Client {
	log.Debug().
		Bool("enabled", cfg.NotifyEnabled).
		Str("base_url", cfg.NotifyURL).
		Str("topic", cfg.NotifyTopic).
		Msg("Initializing notification client")

	client := notifications.NewClient(cfg.NotifyURL, cfg.NotifyTopic, cfg.NotifyEnabled, cfg.NotifyPriority, config.DefaultResilienceConfig.HTTPTimeout)

	if cfg.NotifyEnabled {
		log.Info().Str("topic", cfg.NotifyTopic).Msg("Notifications enabled")
	} else {
		log.Debug().Msg("Notifications disabled")
	}

	return client
}
