package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports storage health for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig bundles the handlers and middleware the router mounts.
type RouterConfig struct {
	Bookings   *BookingHandler
	Rooms      *RoomHandler
	Health     Pinger
	Middleware []func(http.Handler) http.Handler
}

// NewRouter mounts the API surface. Booking mutations go through a single
// collection endpoint and address their target in the request body.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", healthHandler(cfg.Health))

		if cfg.Bookings != nil {
			r.Get("/bookings", cfg.Bookings.List)
			r.Post("/bookings", cfg.Bookings.Create)
			r.Put("/bookings", cfg.Bookings.Update)
			r.Delete("/bookings", cfg.Bookings.Delete)
		}

		if cfg.Rooms != nil {
			r.Get("/rooms", cfg.Rooms.List)
		}
	})

	return r
}

func healthHandler(pinger Pinger) http.HandlerFunc {
	responder := newResponder(nil)

	return func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				responder.writeError(r.Context(), w, http.StatusServiceUnavailable, codeInternal, err)
				return
			}
		}
		responder.writeJSON(r.Context(), w, http.StatusOK, meta{Success: true, Version: SchemaVersion})
	}
}
