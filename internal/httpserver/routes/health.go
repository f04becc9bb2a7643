package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/mw"
)

func init() { Register(registerHealth) }

func registerHealth(r chi.Router, d deps.Deps) {
	r.Get("/healthz", handlers.Healthz(d))

	cidr := mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger)
	r.With(cidr).Get("/readyz", handlers.Readyz(d))
	r.With(cidr).Get("/status", handlers.Status(d))
}
