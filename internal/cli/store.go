package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anton-trapeznikov/ion-mq/core/config"
	"github.com/anton-trapeznikov/ion-mq/core/logger"
	"github.com/anton-trapeznikov/ion-mq/core/pubsub"
	"github.com/anton-trapeznikov/ion-mq/integration/database/pg"
	"github.com/anton-trapeznikov/ion-mq/integration/database/redis"
)

// ErrUnknownBackend is returned for a backend name OpenStore does not know.
var ErrUnknownBackend = errors.New("unknown backend")

// OpenStore resolves backend to a store, loading its connection settings
// from the environment. The memory backend lives only as long as the process.
func OpenStore(ctx context.Context, backend string, log *slog.Logger) (pubsub.Store, func(), error) {
	switch backend {
	case "memory":
		return pubsub.NewMemoryStorage(), func() {}, nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		store, err := redis.NewListStore(client)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = client.Close() }, nil

	case "postgres", "pg":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx, pool, cfg, log.With(logger.Backend(backend))); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store, err := pg.NewListStore(pool)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil
	}

	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
}
