package app

import (
	"net/http"

	"github.com/Black-And-White-Club/reverse-chorus/internal/httpx"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router builds the HTTP surface: the REST API under /api, the websocket at
// /ws and the metrics endpoint.
func (app *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(httpx.CORSMiddleware(app.Config.HTTP.AllowedOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{Registry: app.Registry}))

	requirePlayer := app.Identity.RequirePlayer()
	r.Route("/api", func(r chi.Router) {
		r.Route("/rooms", func(r chi.Router) {
			app.Room.Mount(r, requirePlayer)
			app.Round.MountRoomRoutes(r, requirePlayer)
		})
		app.Round.Mount(r, app.Identity.RequireRoundPlayer)
	})

	app.Notifier.Mount(r, app.Identity.Service, app.Room.Service, app.Round.Service)
	return r
}
