package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the per-deployment knobs of the router
type RouterOptions struct {
	CORSOrigins    []string
	RateLimitRPM   int
	RequestTimeout time.Duration
	Identity       IdentityConfig
	ScopedReads    bool
}

func (h *Handler) Routes(m *Middleware, opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}

	// Global middleware
	r.Use(m.RequestID)
	r.Use(m.RequestLogger)
	r.Use(m.Recoverer)
	r.Use(m.SecurityHeaders)
	r.Use(m.Compress())
	r.Use(middleware.Heartbeat("/ping"))

	// CORS and rate limiting - configured from main
	r.Use(m.CORS(opts.CORSOrigins))
	r.Use(m.RateLimit(opts.RateLimitRPM))

	// Health endpoints
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)

	r.Group(func(r chi.Router) {
		r.Use(m.Timeout(opts.RequestTimeout))
		r.Use(m.Identity(opts.Identity))

		r.Get("/categories", h.ListCategories)

		r.Route("/posts", func(r chi.Router) {
			r.With(m.RequireCaller).Get("/", h.ListPosts)
			r.With(m.RequireCaller).Post("/", h.CreatePost)

			if opts.ScopedReads {
				r.With(m.RequireCaller).Get("/{postId}", h.GetPost)
			} else {
				r.Get("/{postId}", h.GetPost)
			}
			r.With(m.RequireCaller).Patch("/{postId}", h.UpdatePost)
			r.With(m.RequireCaller).Delete("/{postId}", h.DeletePost)
		})
	})

	return r
}
