package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Black-And-White-Club/reverse-chorus/internal/observability/attr"
)

// Start runs the module goroutines and the HTTP server in the background.
// Listener errors are logged.
func (app *App) Start(ctx context.Context) error {
	app.wg.Add(2)
	go app.Room.Run(ctx, &app.wg)
	go app.Notifier.Run(ctx, &app.wg)

	select {
	case <-app.Notifier.Running():
	case <-time.After(30 * time.Second):
		return fmt.Errorf("notifier router did not start")
	case <-ctx.Done():
		return ctx.Err()
	}

	go func() {
		app.Logger.Info("HTTP server listening", attr.String("address", app.server.Addr))
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("HTTP server failed", attr.Error(err))
		}
	}()
	return nil
}
