package api

import (
	"log/slog"
	"net/http"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/routecore/platform/internal/audit"
	"github.com/routecore/platform/internal/invite"
	"github.com/routecore/platform/internal/login"
	"github.com/routecore/platform/internal/notify"
	"github.com/routecore/platform/internal/optimizer"
	"github.com/routecore/platform/internal/pipeline"
	"github.com/routecore/platform/internal/ratelimit"
	"github.com/routecore/platform/internal/refresh"
	"github.com/routecore/platform/internal/tokens"
)

type Server struct {
	Router *chi.Mux
	Pool   *pgxpool.Pool
}

// Deps wires every collaborator the router needs. Built once at startup
// by cmd/api/main.go.
type Deps struct {
	Pool        *pgxpool.Pool
	Tokens      *tokens.Provider
	Login       *login.Service
	Refresh     *refresh.Service
	Invite      *invite.Service
	Optimizer   *optimizer.Client
	Audit       audit.Logger
	Mailer      notify.EmailSender
	Cookies     CookieConfig
	AuthLimiter *ratelimit.IPLimiter
}

// NewServer assembles the full route tree. Ordering of middleware
// mirrors the teacher's router: request id / real ip first, Sentry
// before recovery so a panic is still captured, then logging and
// recovery, then the pipeline (C5), which is mounted globally: a request
// that presents a credential reaches its route with a populated request
// context, and one that presents none reaches it with no request context
// installed.
func NewServer(deps Deps) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	sentryHandler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	r.Use(sentryHandler.Handle)

	r.Use(requestLogger)
	r.Use(panicRecovery)

	r.Use(pipeline.Middleware(pipeline.Deps{
		Pool:   deps.Pool,
		Tokens: deps.Tokens,
		Actors: pipeline.RepoActorLookup{},
	}))

	r.Get("/health", healthHandler(deps.Pool))

	authHandler := NewAuthHandler(deps.Pool, deps.Login, deps.Refresh, deps.Invite, deps.Cookies, deps.Audit)
	resourceHandler := NewResourceHandler(deps.Optimizer, deps.Audit, deps.Mailer)

	r.Route("/auth", func(r chi.Router) {
		if deps.AuthLimiter != nil {
			r.Use(deps.AuthLimiter.Middleware)
		}
		r.Post("/login", authHandler.LoginWeb)
		r.Post("/login/mobile", authHandler.LoginMobile)
		r.Post("/refresh", authHandler.Refresh)
		r.Post("/logout", authHandler.Logout)
		r.Post("/mobile/register", authHandler.Register)
	})

	r.Get("/me", authHandler.Me)

	r.Route("/missions", func(r chi.Router) {
		r.Post("/", resourceHandler.CreateMission)
		r.Get("/", resourceHandler.ListMissions)
	})

	r.Route("/vehicles", func(r chi.Router) {
		r.Post("/", resourceHandler.CreateVehicle)
		r.Get("/", resourceHandler.ListVehicles)
	})

	r.Post("/balance/purchase", resourceHandler.PurchaseBalance)
	r.Post("/invites", resourceHandler.CreateInvite)

	return &Server{Router: r, Pool: deps.Pool}
}

func healthHandler(pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := pool.Ping(r.Context()); err != nil {
			slog.Error("health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
