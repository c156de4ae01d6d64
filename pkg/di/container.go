package di

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"rpg-nexus/backend/ai"
	"rpg-nexus/backend/internal/api"
	"rpg-nexus/backend/internal/memory"
	"rpg-nexus/backend/internal/models"
	"rpg-nexus/backend/internal/narrative"
	"rpg-nexus/backend/internal/service"
	"rpg-nexus/backend/internal/ws"
	"rpg-nexus/backend/pkg/cache"
	"rpg-nexus/backend/pkg/config"
	"rpg-nexus/backend/pkg/health"
	"rpg-nexus/backend/pkg/jwt"
	"rpg-nexus/backend/pkg/logger"
	"rpg-nexus/backend/pkg/secrets"
	"rpg-nexus/backend/shared/observability"
	"rpg-nexus/backend/shared/redis"
)

// Container holds all the dependencies for the application
type Container struct {
	DB      *gorm.DB
	Config  *config.Config
	Logger  *logger.Logger
	Secrets *secrets.VaultManager

	JWTService *jwt.Service
	Redis      *redis.Client
	Chroma     *memory.ChromaClient
	Memory     *memory.Store
	LLMRouter  *ai.Router
	Engine     *narrative.Engine

	UserService      *service.UserService
	CharacterService *service.CharacterService
	BattleService    *service.BattleService
	NarratorService  *service.NarratorService

	AuthHandler      *api.AuthHandler
	UserHandler      *api.UserHandler
	CharacterHandler *api.CharacterHandler
	BattleHandler    *api.BattleHandler
	HealthHandler    *api.HealthHandler
	BattleHub        *ws.Hub

	HealthChecker  *health.Checker
	Metrics        *observability.Metrics
	MetricsHandler gin.HandlerFunc
}

// New builds the full dependency graph. Secrets from Vault (when enabled)
// override the corresponding environment-derived config values before any
// consumer is constructed.
func New(cfg *config.Config, log *logger.Logger) (*Container, error) {
	vault, err := secrets.NewVaultManager(log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets manager: %w", err)
	}
	secrets.SetManager(vault)
	applySecrets(cfg, vault)

	db, err := config.NewDB()
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&models.User{}, &models.Character{}, &models.BattleState{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	metrics, metricsHandler := observability.SetupPrometheusMetrics("rpg-nexus")

	redisClient := redis.NewClient(cfg)
	chromaClient := memory.NewChromaClient(cfg, log)
	reranker := memory.NewCohereReranker(cfg.LLM.Cohere.APIKey, cfg.Chroma.Timeout, log)
	memoryStore := memory.NewStore(chromaClient, reranker, log, metrics)

	llmRouter := ai.NewRouter(cfg, log, metrics, ai.DefaultProviders(cfg, log)...)
	engine := narrative.NewEngine(llmRouter, log)

	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Expiry)

	var suggestionCache *cache.Cache
	if cfg.Cache.Enabled {
		suggestionCache = cache.New(cfg.Cache.TTL, cfg.Cache.PurgeWindow, cfg.Cache.MaxSize)
	}

	userService := service.NewUserService(db, jwtService)
	characterService := service.NewCharacterService(db)
	battleService := service.NewBattleService(db, redisClient, cfg.Redis.TTL, log)
	narratorService := service.NewNarratorService(
		engine,
		memoryStore,
		characterService,
		battleService,
		suggestionCache,
		cfg,
		log,
		metrics,
	)

	checker := newHealthChecker(log, db, redisClient, chromaClient)

	return &Container{
		DB:      db,
		Config:  cfg,
		Logger:  log,
		Secrets: vault,

		JWTService: jwtService,
		Redis:      redisClient,
		Chroma:     chromaClient,
		Memory:     memoryStore,
		LLMRouter:  llmRouter,
		Engine:     engine,

		UserService:      userService,
		CharacterService: characterService,
		BattleService:    battleService,
		NarratorService:  narratorService,

		AuthHandler:      api.NewAuthHandler(userService, log),
		UserHandler:      api.NewUserHandler(userService, log),
		CharacterHandler: api.NewCharacterHandler(characterService, log),
		BattleHandler:    api.NewBattleHandler(narratorService, battleService, log),
		HealthHandler:    api.NewHealthHandler(checker),
		BattleHub:        ws.NewHub(narratorService, battleService, cfg, log),

		HealthChecker:  checker,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
	}, nil
}

// applySecrets overlays Vault-managed secrets on top of the env-derived
// config so deployments can rotate keys without restarting on env changes.
func applySecrets(cfg *config.Config, vault *secrets.VaultManager) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg.JWT.Secret = vault.GetSecretWithDefault(ctx, "JWT_SECRET", cfg.JWT.Secret)
	cfg.Database.Password = vault.GetSecretWithDefault(ctx, "DB_PASSWORD", cfg.Database.Password)
	cfg.Redis.Password = vault.GetSecretWithDefault(ctx, "REDIS_PASSWORD", cfg.Redis.Password)

	cfg.LLM.Google.APIKey = vault.GetSecretWithDefault(ctx, "GOOGLE_AISTUDIO_KEY", cfg.LLM.Google.APIKey)
	cfg.LLM.Cerebras.APIKey = vault.GetSecretWithDefault(ctx, "CEREBRAS_KEY", cfg.LLM.Cerebras.APIKey)
	cfg.LLM.Groq.APIKey = vault.GetSecretWithDefault(ctx, "GROQ_KEY", cfg.LLM.Groq.APIKey)
	cfg.LLM.Nvidia.APIKey = vault.GetSecretWithDefault(ctx, "NVIDIA_NIM_KEY", cfg.LLM.Nvidia.APIKey)
	cfg.LLM.Cohere.APIKey = vault.GetSecretWithDefault(ctx, "COHERE_KEY", cfg.LLM.Cohere.APIKey)
	cfg.LLM.Together.APIKey = vault.GetSecretWithDefault(ctx, "TOGETHER_KEY", cfg.LLM.Together.APIKey)
	cfg.LLM.Cloudflare.APIKey = vault.GetSecretWithDefault(ctx, "CLOUDFLARE_WORKERS_AI_KEY", cfg.LLM.Cloudflare.APIKey)
	cfg.LLM.OpenRouter.APIKey = vault.GetSecretWithDefault(ctx, "OPENROUTER_KEY", cfg.LLM.OpenRouter.APIKey)
}

func newHealthChecker(log *logger.Logger, db *gorm.DB, redisClient *redis.Client, chroma *memory.ChromaClient) *health.Checker {
	checker := health.NewChecker(log, 30*time.Second)

	checker.RegisterPingCheck("database", true, func() error {
		return config.TestConnection(db)
	})
	checker.RegisterPingCheck("redis", false, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return redisClient.Ping(ctx)
	})
	checker.RegisterPingCheck("chroma", false, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return chroma.Ping(ctx)
	})

	return checker
}
