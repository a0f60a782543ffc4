package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hrk/storefront-api/internal/audit"
	"github.com/hrk/storefront-api/internal/common"
	"github.com/hrk/storefront-api/internal/obs"
	"github.com/hrk/storefront-api/internal/security"
	"github.com/hrk/storefront-api/internal/storefront"
)

func (a *api) routes() http.Handler {
	cfg := a.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if a.httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: a.httpMetrics}.Middleware)
	}
	r.Use(a.storefront.SessionMiddleware)
	if a.tracing {
		r.Use(obs.SpanEnricher)
	}
	r.Use(obs.RequestLogger{Logger: a.logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg.CORSAllowedOrigins),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", cfg.CSRFHeader, storefront.SessionHeader, common.IdempotencyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{Enable: cfg.SecurityHeaders, EnableHSTS: cfg.EnableHSTS}.Middleware)

	if a.httpMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if cfg.Obs.PprofEnabled {
		r.With(basicAuth("pprof", cfg.Obs.PprofUser, cfg.Obs.PprofPassword)).Mount("/debug", middleware.Profiler())
	}
	r.Get("/health/live", a.health.Live)
	r.Get("/health/ready", a.health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Get("/categories", a.catalog.Categories)
		v.Get("/products", a.catalog.Products)
		v.Get("/products/{id}", a.catalog.ProductDetail)
		v.Route("/storefront", a.storefrontRoutes)
		if cfg.AdminUser != "" {
			v.Route("/admin", a.adminRoutes)
		}
	})
	return r
}

func (a *api) storefrontRoutes(s chi.Router) {
	sf := a.storefront
	s.Use(security.BodyLimit{Max: a.cfg.BodyLimitBytes}.Middleware)
	s.Post("/sessions", sf.CreateSession)
	s.Group(func(g chi.Router) {
		g.Use(security.CSRF{Header: a.cfg.CSRFHeader, SessionCookie: a.cfg.SessionCookieName}.Middleware)
		g.Get("/session", sf.Get)
		g.Put("/session/view", sf.SetView)
		g.Put("/session/category", sf.SelectCategory)
		g.Post("/cart/items", sf.AddItem)
		g.Delete("/cart/items/{name}", sf.RemoveItem)
		g.Delete("/cart", sf.ClearCart)
		g.Put("/checkout/draft", sf.SaveDraft)
		g.With(
			a.checkoutRL.Middleware,
			a.idem.Middleware,
			a.auditor.Middleware(audit.Route{Action: "checkout.submit", Resource: "checkout"}),
		).Post("/checkout", sf.Checkout)
	})
}

func (a *api) adminRoutes(admin chi.Router) {
	admin.Use(basicAuth("admin", a.cfg.AdminUser, a.cfg.AdminPassword))
	admin.Use(a.auditor.Middleware(audit.Route{Actor: audit.BasicAuthActor}))
	admin.Get("/audit", a.auditList.List)
	admin.Get("/intents", a.intentAdmin.ListIntents)
	admin.Get("/queue/dlq", a.queueAdmin.ListDLQ)
	admin.Post("/queue/dlq/replay", a.queueAdmin.ReplayDLQ)
	admin.Get("/queue/stats", a.queueAdmin.Stats)
}

// basicAuth guards a route group with a single credential pair. An empty
// user leaves the group open.
func basicAuth(realm, user, pass string) func(http.Handler) http.Handler {
	if user == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return middleware.BasicAuth(realm, map[string]string{user: pass})
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}
