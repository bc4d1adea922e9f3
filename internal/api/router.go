package api

import (
	"strings"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/clipper/clipper-api/internal/api/handler"
	"github.com/clipper/clipper-api/internal/api/middleware"
	"github.com/clipper/clipper-api/internal/core/domain"
	"github.com/clipper/clipper-api/internal/core/ports"
	"github.com/clipper/clipper-api/internal/core/service"
)

// RouterDeps is everything NewRouter wires into routes.
type RouterDeps struct {
	Sessions   ports.SessionService
	Users      ports.UserRepository
	Tokens     middleware.TokenValidator
	Authorizer middleware.Authorizer
	Limiter    middleware.Limiter
	Log        zerolog.Logger

	// TrustProxy takes the client address from X-Forwarded-For.
	TrustProxy bool
	Errors     ErrorOptions

	// Mongo and Redis feed the readiness probe; nil means in-memory.
	Mongo *mongo.Database
	Redis *redis.Client

	// Registry receives the HTTP metrics. A fresh registry is used when nil.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(d RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(d.Log, d.Errors)
	e.Validator = handler.NewValidator()
	if d.TrustProxy {
		e.IPExtractor = echo.ExtractIPFromXFFHeader()
	} else {
		e.IPExtractor = echo.ExtractIPDirect()
	}

	reg := d.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "clipper",
		Subsystem:  "http",
		Registerer: reg,
		Skipper:    skipProbes,
	}))

	// --- Metrics and health probes (no auth, no rate limit) ---
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))
	e.GET("/health", handler.NewHealthHandler().Liveness)
	e.GET("/health/ready", handler.NewReadinessHandler(d.Mongo, d.Redis).Readiness)

	apiGroup := e.Group("/api", middleware.RateLimit(d.Limiter, service.ClassGlobal, d.Log))
	authn := middleware.Authenticate(d.Tokens)
	sensitive := middleware.RateLimit(d.Limiter, service.ClassSensitive, d.Log)

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(d.Sessions)
	auth := apiGroup.Group("/auth")
	auth.POST("/login", authHandler.Login, sensitive)
	auth.POST("/register", authHandler.Register, sensitive)
	auth.POST("/refresh-token", authHandler.Refresh, sensitive)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me, authn)

	// --- Protected routes ---
	userHandler := handler.NewUserHandler(d.Users, d.Sessions)
	ownsUser := middleware.Authorize(d.Authorizer, domain.OwnershipRequirement{ResourceIDParam: "id", ResourceType: domain.ResourceUser})
	apiGroup.GET("/users/:id", userHandler.GetUser, authn, ownsUser)
	apiGroup.POST("/users/:id/sessions/revoke", userHandler.RevokeSessions, authn, ownsUser)
	apiGroup.GET("/admin/ping", userHandler.AdminPing, authn,
		middleware.RequireRoles(d.Authorizer, domain.RoleAdmin))
	apiGroup.GET("/channels/:id/owner-check", userHandler.ChannelOwnerCheck, authn,
		middleware.Authorize(d.Authorizer, domain.OwnershipRequirement{ResourceIDParam: "id", ResourceType: domain.ResourceChannel}))

	return e
}

func skipProbes(c echo.Context) bool {
	p := c.Request().URL.Path
	return p == "/metrics" || strings.HasPrefix(p, "/health")
}
