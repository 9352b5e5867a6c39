// Package app wires configuration into stores, providers and services.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Shivanand-hulikatti/advisor-match/internal/config"
	"github.com/Shivanand-hulikatti/advisor-match/internal/database"
	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding"
	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding/hashing"
	"github.com/Shivanand-hulikatti/advisor-match/internal/embedding/openai"
	"github.com/Shivanand-hulikatti/advisor-match/internal/handler"
	"github.com/Shivanand-hulikatti/advisor-match/internal/index"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/notify"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository"
	"github.com/Shivanand-hulikatti/advisor-match/internal/repository/memory"
	"github.com/Shivanand-hulikatti/advisor-match/internal/service"
	"github.com/Shivanand-hulikatti/advisor-match/internal/storage"
)

// App holds every long-lived component of a running process.
type App struct {
	Config   *config.Config
	Index    *index.ProfileIndex
	Embedder embedding.Provider
	Notifier *notify.Dispatcher

	Profiles      *service.ProfileService
	Documents     *service.DocumentService
	Matches       *service.MatchService
	Registrations *service.RegistrationService
	Notifications *service.NotificationService

	log     *logger.Logger
	closers []func()
}

type stores struct {
	profiles      service.ProfileStore
	registrations service.RegistrationStore
	documents     service.DocumentStore
	notifications interface {
		service.NotificationStore
		notify.Appender
	}
}

// New builds the application from cfg. The caller must Close it.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Index: index.New(), log: log}

	st, err := a.openStores(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	blobs, err := a.openBlobs(ctx)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	a.Embedder, err = newEmbedder(cfg.Embedding, log)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	opts := notify.DefaultOptions()
	opts.MaxAttempts = cfg.Notify.MaxAttempts
	opts.MaxInFlight = cfg.Notify.MaxInFlight
	a.Notifier = notify.New(st.notifications, log, opts)

	a.Profiles = service.NewProfileService(st.profiles, a.Embedder, a.Index, cfg.Registration.DefaultCapacity, log)
	a.Documents = service.NewDocumentService(st.documents, blobs, a.Embedder, log)
	a.Matches = service.NewMatchService(a.Index, st.documents, a.Embedder,
		service.MatchDefaults{TopK: cfg.Match.TopK, MinScore: cfg.Match.MinScore}, log)
	a.Registrations = service.NewRegistrationService(st.registrations, st.profiles, st.documents, a.Notifier, log)
	a.Notifications = service.NewNotificationService(st.notifications)
	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	if a.Config.Store == "memory" {
		a.log.Warn("using in-memory store; data is lost on exit")
		m := memory.New()
		return &stores{
			profiles:      m.Profiles(),
			registrations: m.Registrations(),
			documents:     m.Documents(),
			notifications: m.Notifications(),
		}, nil
	}

	if err := database.Migrate(ctx, a.Config.Database); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	pool, err := database.NewPool(ctx, a.Config.Database, a.log)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	a.closers = append(a.closers, pool.Close)
	cc := pool.Config().ConnConfig
	a.log.Info("connected to PostgreSQL", "host", cc.Host, "db", cc.Database)
	return postgresStores(pool), nil
}

func postgresStores(pool *pgxpool.Pool) *stores {
	return &stores{
		profiles:      repository.NewProfileRepository(pool),
		registrations: repository.NewRegistrationRepository(pool),
		documents:     repository.NewDocumentRepository(pool),
		notifications: repository.NewNotificationRepository(pool),
	}
}

func (a *App) openBlobs(ctx context.Context) (storage.BlobStore, error) {
	sc := a.Config.Storage
	if sc.Backend == "gcs" {
		g, err := storage.NewGCS(ctx, sc.Bucket, sc.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := g.Close(); err != nil {
				a.log.Warn("closing gcs client", "error", err)
			}
		})
		return g, nil
	}
	l, err := storage.NewLocal(sc.Dir)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return l, nil
}

func newEmbedder(ec config.EmbeddingConfig, log *logger.Logger) (embedding.Provider, error) {
	var base embedding.Provider
	switch ec.Provider {
	case "hashing":
		base = hashing.New(ec.Dimension)
	default:
		key := os.Getenv(ec.APIKeyEnv)
		c, err := openai.NewClient(openai.Config{
			BaseURL:           ec.BaseURL,
			APIKey:            key,
			Model:             ec.Model,
			Dimensions:        ec.Dimension,
			RequestsPerSecond: ec.RequestsPerSecond,
		})
		if err != nil {
			return nil, fmt.Errorf("embedding: %w (set %s)", err, ec.APIKeyEnv)
		}
		base = c
	}

	policy := embedding.DefaultPolicy()
	policy.Attempts = ec.MaxAttempts
	policy.Timeout = ec.Timeout
	p := embedding.WithRetry(base, policy, log)
	if ec.CacheSize > 0 {
		// worst case for one retried call: every attempt times out and backs off
		budget := time.Duration(max(policy.Attempts, 1)) * (policy.Timeout + policy.MaxDelay)
		p = embedding.NewCache(p, ec.CacheSize, budget)
	}
	log.Info("embedding provider ready", "provider", p.Name(), "dimension", ec.Dimension)
	return p, nil
}

// Handler returns the HTTP router for the app.
func (a *App) Handler(maxUpload int64) *handler.Handler {
	return handler.New(handler.Services{
		Profiles:      a.Profiles,
		Documents:     a.Documents,
		Matches:       a.Matches,
		Registrations: a.Registrations,
		Notifications: a.Notifications,
		Index:         a.Index,
	}, a.log, maxUpload)
}

// Close drains pending notifications and releases connections in reverse
// order of creation.
func (a *App) Close(ctx context.Context) {
	if a.Notifier != nil {
		if err := a.Notifier.Close(ctx); err != nil {
			a.log.Warn("notifications still pending at shutdown", "error", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
