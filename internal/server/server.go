package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/aman-churiwal/gen-broker/internal/config"
	"github.com/aman-churiwal/gen-broker/internal/handler"
	"github.com/aman-churiwal/gen-broker/internal/middleware"
	"github.com/aman-churiwal/gen-broker/internal/repository"
	"github.com/aman-churiwal/gen-broker/internal/service"
	"github.com/aman-churiwal/gen-broker/internal/storage"
	"github.com/aman-churiwal/gen-broker/internal/upstream"
	"github.com/gin-gonic/gin"
)

type Server struct {
	router   *gin.Engine
	config   *config.Config
	redis    *storage.RedisClient
	postgres *storage.Postgres
	upstream *upstream.Client

	resolver    *service.Resolver
	registry    *service.Registry
	enforcer    *service.Enforcer
	pool        *service.Pool
	authService *service.AuthService

	generateHandler  *handler.GenerateHandler
	clientHandler    *handler.ClientHandler
	authHandler      *handler.AuthHandler
	analyticsHandler *handler.AnalyticsHandler
	systemHandler    *handler.SystemHandler

	httpServer *http.Server
}

func New(cfg *config.Config, redis *storage.RedisClient, postgres *storage.Postgres, up *upstream.Client) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Repositories
	identityRepo := repository.NewIdentityRepository(postgres)
	tierRepo := repository.NewTierRepository(postgres)
	usageRepo := repository.NewUsageRepository(postgres)
	credentialRepo := repository.NewCredentialRepository(postgres)
	requestLogRepo := repository.NewRequestLogRepository(postgres)
	authRepo := repository.NewAuthRepository(postgres)

	// Services
	resolver := service.NewResolver(identityRepo)

	free := cfg.FindTier("free")
	premium := cfg.FindTier("premium")
	registry := service.NewRegistry(tierRepo, redis, *free, *premium)

	enforcer := service.NewEnforcer(usageRepo, registry)
	pool := service.NewPool(credentialRepo, up, cfg.Upstream.RenewalMargin(), cfg.Upstream.Timeout())
	orchestrator := service.NewOrchestrator(registry, enforcer, pool, up)

	authService := service.NewAuthService(authRepo, cfg.Auth.JWTSecret, cfg.Auth.ExpiryHours)
	analyticsService := service.NewAnalyticsService(requestLogRepo)

	// Background request log writer
	middleware.InitRequestLogger(requestLogRepo, 1000)

	s := &Server{
		router:      router,
		config:      cfg,
		redis:       redis,
		postgres:    postgres,
		upstream:    up,
		resolver:    resolver,
		registry:    registry,
		enforcer:    enforcer,
		pool:        pool,
		authService: authService,

		generateHandler:  handler.NewGenerateHandler(orchestrator),
		clientHandler:    handler.NewClientHandler(registry, enforcer),
		authHandler:      handler.NewAuthHandler(authService),
		analyticsHandler: handler.NewAnalyticsHandler(analyticsService),
		systemHandler:    handler.NewSystemHandler(pool, up),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.Recovery())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Logger())
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.IPGuard(s.redis, s.config.IPGuard))
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)

	v1 := s.router.Group("/v1")
	v1.Use(middleware.ClientIdentity(s.resolver))
	v1.Use(middleware.RequestLogger())
	{
		v1.POST("/generate", s.generateHandler.Generate)
		v1.GET("/me", s.clientHandler.Me)
		v1.POST("/upgrade", s.clientHandler.Upgrade)
	}

	admin := s.router.Group("/admin")
	{
		admin.POST("/auth/register", s.authHandler.Register)
		admin.POST("/auth/login", s.authHandler.Login)

		protected := admin.Group("")
		protected.Use(middleware.RequireAuth(s.authService))
		{
			protected.GET("/status", s.systemHandler.Status)
			protected.POST("/circuit-breaker/reset", s.systemHandler.ResetCircuitBreakers)
			protected.GET("/analytics", s.analyticsHandler.GetSummary)
			protected.GET("/analytics/clients/:id", s.analyticsHandler.GetClientStats)
			protected.GET("/logs", s.analyticsHandler.GetLogs)
		}
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	redisHealthy := true
	if err := s.redis.Ping(c.Request.Context()); err != nil {
		redisHealthy = false
		log.Printf("Redis health check failed: %v", err)
	}

	dbHealthy := true
	if err := s.postgres.Ping(c.Request.Context()); err != nil {
		dbHealthy = false
		log.Printf("Database health check failed: %v", err)
	}

	status := "healthy"
	statusCode := http.StatusOK

	if !redisHealthy || !dbHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"status":    status,
		"service":   "gen-broker",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
		"checks": gin.H{
			"redis":    redisHealthy,
			"database": dbHealthy,
		},
	})
}

func (s *Server) Run(addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // generation calls can be slow
		IdleTimeout:  15 * time.Second,
	}

	log.Printf("Starting generation broker on %s", addr)
	log.Printf("Environment: %s", s.config.Server.Environment)

	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down server...")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
