// Package health exposes liveness and readiness endpoints for long-running
// processes such as the broker.
//
//	checks := []health.Check{broker.Healthcheck}
//	go health.Serve(ctx, ":8081", logger, checks...)
//
// GET /health/live always answers ALIVE. GET /health/ready runs every check
// and answers READY, or 503 when any check fails.
package health
