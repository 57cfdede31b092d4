// Package redis connects to Redis and exposes it as the pub/sub store.
//
// Connect parses a redis:// or rediss:// URL, retries PING with exponential
// backoff and returns a ready *redis.Client. Healthcheck wraps PING for
// readiness probes.
//
// ListStore adapts any redis.UniversalClient to pubsub.Store:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	store, err := redis.NewListStore(client)
//	if err != nil {
//		return err
//	}
//	broker, err := pubsub.NewBroker(store)
//
// Queues are Redis lists drained with LRANGE followed by LTRIM, so entries
// pushed between the two commands are kept for the next drain. The listener
// map is stored as a JSON string.
//
// # Configuration
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//	}
//
// # Errors
//
//   - ErrEmptyConnectionURL: no URL configured
//   - ErrFailedToParseRedisConnString: URL is malformed or uses another scheme
//   - ErrRedisNotReady: PING kept failing until attempts or timeout ran out
//   - ErrHealthcheckFailed: returned by the Healthcheck function
package redis
