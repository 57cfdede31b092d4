package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParsingConfig is returned when environment variables cannot be parsed into the target.
var ErrParsingConfig = errors.New("failed to parse config")

var (
	dotenvOnce sync.Once
	cache      sync.Map // reflect.Type -> value
)

// Load fills cfg from environment variables. A .env file in the working
// directory is read once, without overriding variables already set. Each
// configuration type is parsed once; later calls return the cached value.
func Load[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		_ = godotenv.Load()
	})

	key := reflect.TypeFor[T]()
	if v, ok := cache.Load(key); ok {
		*cfg = v.(T)
		return nil
	}

	var fresh T
	if err := env.Parse(&fresh); err != nil {
		return fmt.Errorf("%w: %w", ErrParsingConfig, err)
	}

	v, _ := cache.LoadOrStore(key, fresh)
	*cfg = v.(T)
	return nil
}

// MustLoad is Load that panics on failure. Useful at startup.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

func reset() {
	cache.Range(func(k, _ any) bool {
		cache.Delete(k)
		return true
	})
}
