package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iwt-cmd/awx/clog"
)

// Serve 在 cfg.Addr 上暴露 meter 的指标，阻塞直到 ctx 取消；Addr 为空时直接返回
func Serve(ctx context.Context, cfg *Config, meter Meter, logger clog.Logger) error {
	if cfg == nil || cfg.Addr == "" || meter == nil {
		return nil
	}
	if logger == nil {
		logger = clog.Discard()
	}
	cfg.setDefaults()

	mux := http.NewServeMux()
	mux.Handle(cfg.Path, meter.Handler())
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("telemetry server listening", clog.String("addr", cfg.Addr), clog.String("path", cfg.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
