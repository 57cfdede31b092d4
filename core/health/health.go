package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/anton-trapeznikov/ion-mq/core/logger"
)

// Check reports whether a dependency is usable.
type Check func(context.Context) error

// Liveness indicates the process is running. It never checks dependencies.
func Liveness(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ALIVE"))
}

// Readiness runs every check with the request context and answers 503 on
// the first failure.
func Readiness(log *slog.Logger, checks ...Check) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				http.Error(w, "NOT READY", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("READY"))
	}
}

// Handler serves /health/live and /health/ready.
func Handler(log *slog.Logger, checks ...Check) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health/live", Liveness)
	mux.Handle("GET /health/ready", Readiness(log, checks...))
	return mux
}

// Serve runs the health endpoints on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, log *slog.Logger, checks ...Check) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(log, checks...),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "health endpoints listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
