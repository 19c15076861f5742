package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
)

// Shutdown stops the HTTP server, then the modules, then the shared
// connections. It collects every error instead of stopping at the first.
func (app *App) Shutdown(ctx context.Context) error {
	var errs []error

	if err := app.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}
	if err := app.Room.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := app.Notifier.Close(); err != nil {
		errs = append(errs, err)
	}

	done := make(chan struct{})
	go func() {
		app.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		app.Logger.Warn("Timed out waiting for modules to stop")
	}

	if err := app.Bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("event bus: %w", err))
	}
	if err := app.NATS.Drain(); err != nil {
		errs = append(errs, fmt.Errorf("nats: %w", err))
	}
	if err := app.DB.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	err := errors.Join(errs...)
	if err != nil {
		app.Logger.Error("Shutdown finished with errors", attr.Error(err))
	} else {
		app.Logger.Info("Application shut down gracefully")
	}
	return err
}
