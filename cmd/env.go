package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/lekki-homes/leadflow/internal/approval"
	"github.com/lekki-homes/leadflow/internal/dedup"
	"github.com/lekki-homes/leadflow/internal/intake"
	"github.com/lekki-homes/leadflow/internal/poll"
	"github.com/lekki-homes/leadflow/internal/scoring"
	"github.com/lekki-homes/leadflow/internal/store"
	anthropicpkg "github.com/lekki-homes/leadflow/pkg/anthropic"
	"github.com/lekki-homes/leadflow/pkg/mailer"
)

// appEnv holds the initialized store, clients, and pipelines shared by
// the serve and one-shot commands.
type appEnv struct {
	Store    store.Store
	Intake   *intake.Pipeline
	Poll     *poll.Pipeline
	Approval *approval.Machine

	redis *redis.Client
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.OpenSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.OpenPostgres(ctx, cfg.Store.DatabaseURL)
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initDedup picks the idempotency backend. Redis is used when an
// address is configured so replays are caught across restarts and
// replicas; otherwise dedup is process-local.
func initDedup() (dedup.Store, *redis.Client) {
	ttl := time.Duration(cfg.Webhook.IdempotencyTTLHours) * time.Hour
	if cfg.Redis.Addr == "" {
		return dedup.NewMemory(ttl), nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	zap.L().Info("using redis idempotency store", zap.String("addr", cfg.Redis.Addr))
	return dedup.NewRedis(rdb, ttl), rdb
}

func scoringConfig() scoring.Config {
	return scoring.Config{
		PremiumBudgetThreshold:   cfg.Scoring.PremiumBudgetThreshold,
		MidTierBudgetThreshold:   cfg.Scoring.MidTierBudgetThreshold,
		EntryTierBudgetThreshold: cfg.Scoring.EntryBudgetThreshold,
	}
}

// initEnv validates config for the given mode and wires up the store,
// mail clients, draft writer, and pipelines. Callers should defer
// env.Close().
func initEnv(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}

	ded, rdb := initDedup()
	sender := mailer.NewSMTPSender(cfg.Mail)
	fetcher := mailer.NewIMAPFetcher(cfg.Mail)
	drafts := anthropicpkg.NewDraftWriter(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic)

	return &appEnv{
		Store:    st,
		Intake:   intake.NewPipeline(st, sender, ded, scoringConfig()),
		Poll:     poll.NewPipeline(st, fetcher, drafts),
		Approval: approval.NewMachine(st, sender),
		redis:    rdb,
	}, nil
}
