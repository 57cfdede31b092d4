// Package logger provides structured logging utilities built on Go's standard slog package.
//
// New builds a *slog.Logger from functional options:
//
//	import "github.com/anton-trapeznikov/ion-mq/core/logger"
//
//	// Development: text format, debug level, source locations
//	log := logger.New(logger.WithDevelopment("ionmq"))
//
//	// Production: JSON format, info level
//	log := logger.New(logger.WithProduction("ionmq"))
//
//	// Custom configuration
//	log := logger.New(
//		logger.WithLevel(slog.LevelWarn),
//		logger.WithJSONFormatter(),
//		logger.WithAttr(slog.String("service", "broker")),
//		logger.WithOutput(os.Stderr),
//	)
//
// # Attribute Helpers
//
// Helpers cover errors, timing and messaging identifiers. They return an empty
// slog.Attr for nil or empty input, and slog omits empty attributes:
//
//	log.Warn("skipping malformed record",
//		logger.Channel("chat"),
//		logger.ClientID(clientID),
//		logger.Error(err), // nil-safe
//	)
package logger
