package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/db"
	"github.com/sells-group/salesops-cli/internal/engine"
	"github.com/sells-group/salesops-cli/internal/resilience"
	"github.com/sells-group/salesops-cli/internal/runner"
	"github.com/sells-group/salesops-cli/internal/store"
)

// env holds the collaborators shared by run and serve.
type env struct {
	Catalog *engine.Catalog
	Ledger  store.Ledger
	Runner  *runner.Runner

	refPool *pgxpool.Pool
	loader  *store.PostgresLoader
}

// initLedger opens the run ledger named by store.driver and migrates it.
func initLedger(ctx context.Context) (store.Ledger, error) {
	if cfg.Store.Driver == "none" {
		return store.Nop{}, nil
	}
	l, err := store.NewSQLite(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open ledger")
	}
	if err := l.Migrate(ctx); err != nil {
		l.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate ledger")
	}
	return l, nil
}

// initEnv wires the catalog, ledger and, when load is set, the Postgres loader.
func initEnv(ctx context.Context, load bool) (*env, error) {
	e := &env{}

	var pool db.Pool
	if cfg.Reference.DatabaseURL != "" {
		p, err := store.OpenPool(ctx, cfg.Reference.DatabaseURL, &store.PoolConfig{MaxConns: 4})
		if err != nil {
			return nil, eris.Wrap(err, "open reference database")
		}
		e.refPool = p
		pool = p
	}
	e.Catalog = engine.NewCatalog(cfg, pool)

	ledger, err := initLedger(ctx)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Ledger = ledger
	e.Runner = &runner.Runner{Engines: e.Catalog, Ledger: ledger}

	if load {
		policy := resilience.NewPolicy(cfg.Loader.Retry.MaxAttempts, cfg.Loader.Retry.InitialBackoffMs, cfg.Loader.Retry.MaxBackoffMs)
		policy.OnRetry = resilience.LogRetry("postgres load")
		l, err := store.NewPostgresLoader(ctx, cfg.Loader.DatabaseURL, cfg.Loader.Table, policy)
		if err != nil {
			e.Close()
			return nil, err
		}
		e.loader = l
		e.Runner.Loader = l
	}
	return e, nil
}

// Close releases everything initEnv opened.
func (e *env) Close() {
	if e.loader != nil {
		if err := e.loader.Close(); err != nil {
			zap.L().Warn("close loader", zap.Error(err))
		}
	}
	if e.Ledger != nil {
		if err := e.Ledger.Close(); err != nil {
			zap.L().Warn("close ledger", zap.Error(err))
		}
	}
	if e.refPool != nil {
		e.refPool.Close()
	}
}
