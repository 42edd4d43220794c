package http

import (
	"context"
	"errors"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	appsvc "careerhub/internal/app"
	"careerhub/internal/bootstrap"
	"careerhub/internal/cache"
	"careerhub/internal/config"
	"careerhub/internal/platform/rabbitmq"
	"careerhub/internal/repository"
	"careerhub/internal/transport/http/handler"
	"careerhub/internal/transport/http/middleware"
)

var errConnectionClosed = errors.New("connection closed")

// Deps are the shared resources the router is built from. Redis and
// Publisher may be nil.
type Deps struct {
	Config    *config.Config
	Logger    *logrus.Logger
	DB        *gorm.DB
	Redis     *redis.Client
	Publisher appsvc.EventPublisher
	Registry  *prometheus.Registry
	Health    map[string]handler.Pinger
	StartedAt time.Time
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	deps := Deps{
		Config:    app.Config,
		Logger:    app.Logger,
		DB:        app.MySQL,
		Redis:     app.Redis,
		Registry:  app.Registry,
		StartedAt: app.StartedAt,
		Health: map[string]handler.Pinger{
			"mysql": func(ctx context.Context) error {
				sqlDB, err := app.MySQL.DB()
				if err != nil {
					return err
				}
				return sqlDB.PingContext(ctx)
			},
			"redis": func(ctx context.Context) error {
				return app.Redis.Ping(ctx).Err()
			},
			"rabbitmq": func(context.Context) error {
				if app.MQConn == nil || app.MQConn.IsClosed() {
					return errConnectionClosed
				}
				return nil
			},
		},
	}
	if app.MQConn != nil {
		deps.Publisher = rabbitmq.NewEventPublisher(app.MQConn, app.Config.RabbitMQ.AuditEventQueue)
	}
	return BuildRouter(deps)
}

func BuildRouter(d Deps) *gin.Engine {
	cfg := d.Config
	gin.SetMode(cfg.App.GinMode)
	handler.RegisterValidators()

	registry := d.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	metrics := middleware.NewMetrics(registry)

	router := gin.New()
	if err := router.SetTrustedProxies(cfg.TrustedProxies()); err != nil {
		d.Logger.WithError(err).Warn("invalid trusted proxies, trusting none")
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(d.Logger),
		metrics.Handler(),
	)
	if origins := cfg.CORSOrigins(); len(origins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     origins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID},
			ExposeHeaders:    []string{middleware.HeaderRequestID},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	var profiles appsvc.ProfileCache
	if d.Redis != nil {
		profiles = cache.NewProfileCache(d.Redis, cfg.ProfileTTL())
	}

	userRepo := repository.NewUserRepository(d.DB)
	authService := appsvc.NewAuthService(userRepo, cfg.Auth.JWTSecret, cfg.TokenTTL(), d.Publisher, profiles, d.Logger)
	userService := appsvc.NewUserService(userRepo, d.Publisher, profiles, d.Logger)

	authHandler := handler.NewAuthHandler(authService, handler.CookieSettings{
		Name:   cfg.Auth.CookieName,
		Domain: cfg.Auth.CookieDomain,
		Secure: cfg.Auth.CookieSecure,
	}, metrics)
	userHandler := handler.NewUserHandler(userService)
	pageHandler := handler.NewPageHandler(cfg.App.WebDir)
	healthHandler := handler.NewHealthHandler(cfg.App.Name, cfg.App.Env, d.StartedAt, d.Health)

	limiter := middleware.NewRateLimiter(d.Redis, cfg.RateLimitWindow(), d.Logger)
	requireAuth := middleware.AuthJWT(middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.CookieName))
	guard := middleware.RouteGuard(middleware.GuardPaths{
		CookieName:    cfg.Auth.CookieName,
		LoginPath:     cfg.Auth.LoginPath,
		DashboardPath: cfg.Auth.DashboardPath,
	})

	router.GET("/healthz", healthHandler.Check)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	router.GET(cfg.Auth.LoginPath, guard, pageHandler.Login)
	router.GET(cfg.Auth.DashboardPath, guard, pageHandler.Dashboard)

	router.POST("/login", limiter.Limit("login", cfg.HTTP.LoginRateLimit), authHandler.Login)
	router.POST("/signup", limiter.Limit("signup", cfg.HTTP.SignupRateLimit), authHandler.Signup)
	router.POST("/logout", authHandler.Logout)

	router.PUT("/user", requireAuth, userHandler.UpdateUser)
	router.GET("/user/me", requireAuth, authHandler.Me)
	router.GET("/user/username-available", userHandler.UsernameAvailable)

	return router
}
