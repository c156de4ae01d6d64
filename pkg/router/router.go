package router

import (
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"rpg-nexus/backend/internal/ws"
	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/di"
	"rpg-nexus/backend/pkg/errors"
	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/pkg/middleware"
	"rpg-nexus/backend/pkg/validator"
)

// Router is the main router for the application
type Router struct {
	Engine    *gin.Engine
	Container *di.Container
	Logger    *logger.Logger
	Config    *config.Config
}

// New creates a new router with the given container
func New(container *di.Container) *Router {
	logger.SetGlobal(container.Logger)

	cfg := container.Config
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	engine.Use(logger.Middleware(container.Logger))
	engine.Use(errors.ErrorHandler())
	engine.Use(errors.RecoveryWithLogger())

	limiterOpts := middleware.DefaultRateLimiterOptions()
	if cfg.Security.RateLimit > 0 {
		limiterOpts.Limit = rate.Limit(cfg.Security.RateLimit)
	}
	if cfg.Security.RateLimitBurst > 0 {
		limiterOpts.Burst = cfg.Security.RateLimitBurst
	}
	rateLimiter := middleware.NewRateLimiter(container.Logger, limiterOpts)
	engine.Use(rateLimiter.Middleware())

	go container.BattleHub.Run()

	return &Router{
		Engine:    engine,
		Container: container,
		Logger:    container.Logger,
		Config:    cfg,
	}
}

// SetupRoutes registers all application routes
func (r *Router) SetupRoutes() {
	r.Engine.Use(corsMiddleware(r.Config.Security.AllowedOrigins))

	jwtAuth := middleware.JWTAuthMiddleware(r.Container.JWTService, r.Logger)
	jwtQueryAuth := middleware.JWTQueryAuthMiddleware(r.Container.JWTService, r.Logger)

	// Health and metrics live outside the versioned API
	r.Engine.GET("/health", r.Container.HealthHandler.Health)
	r.Engine.GET("/health/live", r.Container.HealthHandler.Live)
	r.Engine.GET("/metrics", r.Container.MetricsHandler)

	v1 := r.Engine.Group("/api/v1")

	if schemaPath := os.Getenv("OPENAPI_SCHEMA_PATH"); schemaPath != "" {
		if openapi, err := validator.NewOpenAPIValidator(schemaPath); err != nil {
			r.Logger.LogError(err, "failed to load OpenAPI schema, request validation disabled", "path", schemaPath)
		} else {
			v1.Use(openapi.Middleware())
		}
	}

	authRoutes := v1.Group("/auth")
	{
		authRoutes.POST("/signup", r.Container.AuthHandler.Signup)
		authRoutes.POST("/login", r.Container.AuthHandler.Login)
		authRoutes.GET("/me", jwtAuth, r.Container.AuthHandler.Me)
	}

	protected := v1.Group("/")
	protected.Use(jwtAuth)
	{
		userRoutes := protected.Group("/users")
		{
			userRoutes.PUT("/me", r.Container.UserHandler.UpdateMe)
			userRoutes.DELETE("/me", r.Container.UserHandler.DeleteMe)
		}

		characterRoutes := protected.Group("/characters")
		{
			characterRoutes.POST("", r.Container.CharacterHandler.CreateCharacter)
			characterRoutes.GET("", r.Container.CharacterHandler.ListCharacters)
			characterRoutes.GET("/:id", r.Container.CharacterHandler.GetCharacter)
			characterRoutes.PUT("/:id", r.Container.CharacterHandler.UpdateCharacter)
			characterRoutes.DELETE("/:id", r.Container.CharacterHandler.DeleteCharacter)
			characterRoutes.POST("/:id/experience", r.Container.CharacterHandler.AwardExperience)
			characterRoutes.GET("/:id/progress", r.Container.CharacterHandler.GetProgress)
			characterRoutes.PUT("/:id/progress", r.Container.CharacterHandler.SetProgress)
		}

		battleRoutes := protected.Group("/battles")
		{
			battleRoutes.POST("/start", r.Container.BattleHandler.StartBattle)
			battleRoutes.POST("/action", r.Container.BattleHandler.TakeAction)
			battleRoutes.GET("/suggestions", r.Container.BattleHandler.Suggestions)
			battleRoutes.GET("/characters/:id/recent", r.Container.BattleHandler.MostRecentState)
		}
	}

	// WebSocket upgrades cannot carry an Authorization header from browsers,
	// so the battle gateway authenticates via the token query param.
	r.Engine.GET("/ws/battle", jwtQueryAuth, func(c *gin.Context) {
		ws.ServeWs(r.Container.BattleHub, c)
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	allowAll := len(allowedOrigins) == 0
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowAll:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept, Accept-Encoding, X-CSRF-Token, Authorization, Origin, Upgrade, Connection, Cache-Control")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Upgrade, Connection")
		c.Writer.Header().Set("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
