// Package config loads typed configuration from environment variables.
//
// Struct fields are described with caarlos0/env tags. A .env file in the
// working directory is read on first use; variables already present in the
// environment win over the file.
//
//	import "github.com/anton-trapeznikov/ion-mq/core/config"
//
//	type BrokerConfig struct {
//		PubSub pubsub.Config
//		Redis  redis.Config
//	}
//
//	var cfg BrokerConfig
//	if err := config.Load(&cfg); err != nil {
//		log.Fatal(err)
//	}
//
//	// Or panic on failure at startup
//	config.MustLoad(&cfg)
//
// # Caching Behavior
//
// Each configuration type is parsed once per process. Later calls for the same
// type return the cached value even if the environment has changed; different
// types are cached independently.
package config
