package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/mw"
)

func init() { Register(registerAPI) }

func registerAPI(r chi.Router, d deps.Deps) {
	r.Route("/api", func(api chi.Router) {
		api.Use(
			mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
			mw.EnforceHost(d.AllowedHosts, d.Logger),
			mw.RateLimit(mw.RateLimitConfig{
				Burst:             d.RateLimitBurst,
				RefillPerIPPerMin: d.RateLimitRefillPerMin,
				MaxEntries:        10_000,
				TrustProxy:        d.TrustProxy,
			}),
		)

		api.Post("/message", handlers.Message(d))
		api.Get("/badge", handlers.Badge(d))

		api.Get("/links", handlers.ListLinks(d))
		api.Get("/links/active", handlers.ActiveLinks(d))
		api.Post("/links", handlers.AddLink(d))
		api.Put("/links", handlers.ReplaceLinks(d))
		api.Delete("/links", handlers.RemoveLink(d))
		api.Delete("/links/all", handlers.ClearLinks(d))
	})
}
