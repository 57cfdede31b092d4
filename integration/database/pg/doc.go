// Package pg connects to PostgreSQL and exposes it as the pub/sub store.
//
// Connect builds a pgx connection pool with retry and a verifying ping.
// Migrate applies the embedded goose migrations that create the list and
// blob tables, and Healthcheck wraps a ping for readiness probes.
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, logger); err != nil {
//		return err
//	}
//
//	store, err := pg.NewListStore(pool)
//
// # Transactions
//
// WithTx attaches a pgx.Tx to a context. ListStore methods called with that
// context run inside it, so a publish can commit atomically with the
// caller's own writes:
//
//	err := pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
//		if _, err := tx.Exec(ctx, "UPDATE orders SET status = 'paid' WHERE id = $1", id); err != nil {
//			return err
//		}
//		return client.Publish(pg.WithTx(ctx, tx), "orders", id)
//	})
//
// The broker only sees the message once the transaction commits.
//
// # Configuration
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"2"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//		MigrationsTable   string        `env:"PG_MIGRATIONS_TABLE" envDefault:"ionmq_schema_migrations"`
//	}
package pg
