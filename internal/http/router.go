package http

import (
	"log/slog"

	"github.com/geocoder89/profilehub/internal/cache"
	"github.com/geocoder89/profilehub/internal/config"
	"github.com/geocoder89/profilehub/internal/http/handlers"
	"github.com/geocoder89/profilehub/internal/http/middlewares"
	"github.com/geocoder89/profilehub/internal/identity"
	"github.com/geocoder89/profilehub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// UserStore is the users table as the handlers see it.
type UserStore interface {
	handlers.UserSignupStore
	handlers.ProfileStore
}

// SessionManager issues session tokens at signup and verifies them on
// every authenticated request.
type SessionManager interface {
	handlers.SessionIssuer
	middlewares.TokenVerifier
}

type Deps struct {
	Config   config.Config
	Verifier identity.Verifier
	Sessions SessionManager
	Users    UserStore
	Cache    cache.ProfileCache

	// optional
	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
	Checks   map[string]handlers.ReadinessCheck
	Health   *handlers.HealthHandler
}

func NewRouter(log *slog.Logger, deps Deps) *gin.Engine {
	if deps.Config.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	if deps.Config.OTelServiceName != "" {
		r.Use(otelgin.Middleware(deps.Config.OTelServiceName))
	}
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.SecurityHeaders(deps.Config.Env))
	r.Use(middlewares.CORSMiddleware(deps.Config.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(deps.Config.MaxBodyBytes))

	// health and docs
	h := deps.Health
	if h == nil {
		h = handlers.NewHealthHandler(deps.Checks)
	}
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.GET("/swagger", handlers.SwaggerUI)
	r.GET("/docs/openapi.yaml", handlers.OpenAPISpec)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(deps.Verifier, deps.Sessions, deps.Users, log, deps.Prom)
	profileHandler := handlers.NewProfileHandler(deps.Users, deps.Cache, log)
	authMiddleware := middlewares.NewAuthMiddleware(deps.Sessions)

	r.POST("/signup", middlewares.RequireJSON(), authHandler.SignUp)

	profile := r.Group("/profile", authMiddleware.RequireAuth())
	profile.GET("", profileHandler.GetProfile)
	profile.PUT("", middlewares.RequireJSON(), profileHandler.UpdateProfile)

	return r
}
