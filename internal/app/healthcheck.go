package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// startHealthcheck starts a minimal liveness endpoint on the given port and
// returns a function that shuts it down. The endpoint exists so external
// supervisors can probe long-running training pipelines.
func (a *App) startHealthcheck(ctx context.Context, port int) (func(), error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: mux}
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			a.logger.Error("Healthcheck server failed.", "error", serveErr)
		}
	}()
	a.logger.Info("🩺 Healthcheck endpoint listening.", "port", port)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			a.logger.Warn("Healthcheck server shutdown error.", "error", shutdownErr)
		}
	}, nil
}
