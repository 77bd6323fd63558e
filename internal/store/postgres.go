package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/salesops-cli/internal/db"
	"github.com/sells-group/salesops-cli/internal/model"
	"github.com/sells-group/salesops-cli/internal/resilience"
)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// OpenPool creates and pings a pgx pool.
func OpenPool(ctx context.Context, connString string, poolCfg *PoolConfig) (*pgxpool.Pool, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return pool, nil
}

// Leading columns added to every loaded table.
const (
	ColumnBatchID  = "batch_id"
	ColumnLoadedAt = "loaded_at"
)

// PostgresLoader appends accepted datasets to a text-typed reporting table.
type PostgresLoader struct {
	pool    db.Pool
	table   string
	policy  resilience.Policy
	closeFn func()
	now     func() time.Time
}

// NewPostgresLoader opens a pool and returns a loader for table.
func NewPostgresLoader(ctx context.Context, connString, table string, policy resilience.Policy) (*PostgresLoader, error) {
	pool, err := OpenPool(ctx, connString, nil)
	if err != nil {
		return nil, err
	}
	l := NewPostgresLoaderWithPool(pool, table, policy)
	l.closeFn = pool.Close
	return l, nil
}

// NewPostgresLoaderWithPool returns a loader over an existing pool, which the
// caller keeps ownership of.
func NewPostgresLoaderWithPool(pool db.Pool, table string, policy resilience.Policy) *PostgresLoader {
	return &PostgresLoader{pool: pool, table: table, policy: policy, now: time.Now}
}

// Close releases the pool when the loader opened it.
func (l *PostgresLoader) Close() error {
	if l.closeFn != nil {
		l.closeFn()
	}
	return nil
}

// Load creates the table if needed and copies every record of ds, tagged
// with batchID. The whole copy is retried on transient errors; COPY is
// atomic so a failed attempt leaves no rows behind.
func (l *PostgresLoader) Load(ctx context.Context, batchID string, ds *model.Dataset) (int64, error) {
	id, err := uuid.Parse(batchID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: batch id %q", batchID)
	}
	if ds.Len() == 0 {
		return 0, nil
	}

	leading := map[string]string{ColumnBatchID: "UUID", ColumnLoadedAt: "TIMESTAMPTZ"}
	columns := append([]string{ColumnBatchID, ColumnLoadedAt}, ds.Columns...)
	loadedAt := l.now().UTC()

	rows := make([][]any, len(ds.Records))
	for i, rec := range ds.Records {
		row := make([]any, 0, len(columns))
		row = append(row, id, loadedAt)
		for _, v := range rec {
			row = append(row, v)
		}
		rows[i] = row
	}

	policy := l.policy
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.LogRetry("postgres: load " + l.table)
	}

	n, err := resilience.DoVal(ctx, policy, func(ctx context.Context) (int64, error) {
		if err := db.EnsureTextTable(ctx, l.pool, l.table, leading, ds.Columns); err != nil {
			return 0, err
		}
		return db.CopyFrom(ctx, l.pool, l.table, columns, rows)
	})
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: load %s", l.table)
	}

	zap.L().Info("dataset loaded",
		zap.String("component", "store.postgres"),
		zap.String("table", l.table),
		zap.String("batch_id", batchID),
		zap.Int64("rows", n),
	)
	return n, nil
}
