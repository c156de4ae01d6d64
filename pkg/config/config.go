package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// ProviderConfig holds the credential and model priority list for one LLM vendor
type ProviderConfig struct {
	APIKey    string
	AccountID string // Cloudflare only
	Models    []string
}

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server struct {
		Port    string
		Env     string
		Timeout time.Duration
		BaseURL string
	}

	// Database configuration
	Database struct {
		Host     string
		Port     string
		User     string
		Password string
		Name     string
		SSLMode  string
		MaxConns int
		Timeout  time.Duration
	}

	// JWT configuration
	JWT struct {
		Secret string
		Expiry time.Duration
	}

	// Security configuration
	Security struct {
		RateLimit      float64
		RateLimitBurst int
		AllowedOrigins []string
	}

	// Logging configuration
	Logging struct {
		Level  string
		Format string
	}

	// Redis cache
	Redis struct {
		Addr     string
		Password string
		DB       int
		TTL      time.Duration
	}

	// Chroma vector store
	Chroma struct {
		BaseURL    string
		Collection string
		Timeout    time.Duration
	}

	// LLM provider chain
	LLM struct {
		Google         ProviderConfig
		Cerebras       ProviderConfig
		Groq           ProviderConfig
		Nvidia         ProviderConfig
		Cohere         ProviderConfig
		Together       ProviderConfig
		Cloudflare     ProviderConfig
		OpenRouter     ProviderConfig
		RequestTimeout time.Duration
		RouterTimeout  time.Duration
		FallbackText   string
	}

	// Battle streaming pacing
	Battle struct {
		LinePacing        time.Duration
		TurnStartDelay    time.Duration
		SentencePacingCap time.Duration
		PlayerHealth      int
		EnemyHealth       int
	}

	// Cache settings
	Cache struct {
		Enabled     bool
		TTL         time.Duration
		MaxSize     int
		PurgeWindow time.Duration
	}
}

var (
	instance *Config
	once     sync.Once
)

// New creates a new Config instance with values from environment variables
// Uses singleton pattern to ensure only one instance exists
func New() *Config {
	once.Do(func() {
		// Load .env file if exists
		godotenv.Load()

		instance = &Config{}

		// Server config
		instance.Server.Port = getEnvString("PORT", "8080")
		instance.Server.Env = getEnvString("APP_ENV", "development")
		instance.Server.Timeout = getEnvDuration("SERVER_TIMEOUT", 30*time.Second)
		instance.Server.BaseURL = getEnvString("BASE_URL", "http://localhost:"+instance.Server.Port)

		// Database config
		instance.Database.Host = getEnvString("DB_HOST", "localhost")
		instance.Database.Port = getEnvString("DB_PORT", "5432")
		instance.Database.User = getEnvString("DB_USER", "postgres")
		instance.Database.Password = getEnvString("DB_PASSWORD", "postgres")
		instance.Database.Name = getEnvString("DB_NAME", "rpg_nexus")
		instance.Database.SSLMode = getEnvString("DB_SSL_MODE", "disable")
		instance.Database.MaxConns = getEnvInt("DB_MAX_CONNS", 20)
		instance.Database.Timeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)

		// JWT config
		instance.JWT.Secret = getEnvString("JWT_SECRET", "default-jwt-secret-do-not-use-in-production")
		instance.JWT.Expiry = getEnvDuration("JWT_EXPIRY", 24*time.Hour)

		// Security config
		instance.Security.RateLimit = float64(getEnvInt("RATE_LIMIT", 5))
		instance.Security.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 10)
		instance.Security.AllowedOrigins = getEnvStringSlice("ALLOWED_ORIGINS", []string{"*"})

		// Logging config
		instance.Logging.Level = getEnvString("LOG_LEVEL", "info")
		instance.Logging.Format = getEnvString("LOG_FORMAT", "json")

		// Redis config
		instance.Redis.Addr = getEnvString("REDIS_URL", "localhost:6379")
		instance.Redis.Password = getEnvString("REDIS_PASSWORD", "")
		instance.Redis.DB = getEnvInt("REDIS_DB", 0)
		instance.Redis.TTL = getEnvDuration("REDIS_TTL", 10*time.Minute)

		// Chroma config
		instance.Chroma.BaseURL = getEnvString("CHROMA_URL", "http://localhost:8001")
		instance.Chroma.Collection = getEnvString("CHROMA_COLLECTION", "rpg_nexus_history")
		instance.Chroma.Timeout = getEnvDuration("CHROMA_TIMEOUT", 15*time.Second)

		// LLM provider chain. Model lists are semicolon separated, highest priority first.
		instance.LLM.Google = providerConfig("GOOGLE_AISTUDIO_KEY", "GOOGLE_AISTUDIO_MODELS_PRIORITY",
			"gemini-2.0-flash;gemini-2.0-flash-lite;gemma-3-27b-it;gemma-3n-e4b-it")
		instance.LLM.Cerebras = providerConfig("CEREBRAS_KEY", "CEREBRAS_MODELS_PRIORITY",
			"llama-3.3-70b;llama-4-scout-17b-16e-instruct;qwen-3-32b")
		instance.LLM.Groq = providerConfig("GROQ_KEY", "GROQ_MODELS_PRIORITY",
			"llama-3.3-70b-versatile;llama3-70b-8192;meta-llama/llama-4-scout-17b-16e-instruct")
		instance.LLM.Nvidia = providerConfig("NVIDIA_NIM_KEY", "NVIDIA_MODELS_PRIORITY",
			"meta/llama-3.3-70b-instruct;google/gemma-3-27b-it;qwen/qwen3-235b-a22b;mistralai/mistral-small-3.1-24b-instruct-2503;google/gemma-3n-e4b-it")
		instance.LLM.Cohere = providerConfig("COHERE_KEY", "COHERE_MODELS_PRIORITY",
			"command-a-03-2025;command-r-plus;c4ai-aya-expanse-32b")
		instance.LLM.Together = providerConfig("TOGETHER_KEY", "TOGETHER_MODELS_PRIORITY",
			"deepseek-ai/DeepSeek-V3;meta-llama/Llama-4-Maverick-17B-128E-Instruct-FP8;arcee_ai/arcee-spotlight;google/gemma-3n-E4B-it")
		instance.LLM.Cloudflare = providerConfig("CLOUDFLARE_WORKERS_AI_KEY", "CLOUDFLARE_WORKERS_AI_MODELS_PRIORITY",
			"meta/llama-3.3-70b-instruct-fp8-fast;meta/llama-3.1-70b-instruct;meta/llama-4-scout-17b-16e-instruct;mistralai/mistral-small-3.1-24b-instruct")
		instance.LLM.Cloudflare.AccountID = getEnvString("CLOUDFLARE_ACCOUNT_ID", "")
		// OpenRouter takes a base model plus a vendor-side fallback list
		instance.LLM.OpenRouter = providerConfig("OPENROUTER_KEY", "OPENROUTER_MODELS_FALLBACK",
			"amazon/nova-micro-v1;google/gemini-flash-1.5-8b;mistralai/mistral-nemo")
		instance.LLM.OpenRouter.Models = append(
			[]string{getEnvString("OPENROUTER_BASEMODEL", "google/gemma-3n-e4b-it")},
			instance.LLM.OpenRouter.Models...,
		)
		instance.LLM.RequestTimeout = getEnvDuration("LLM_REQUEST_TIMEOUT", 90*time.Second)
		instance.LLM.RouterTimeout = getEnvDuration("LLM_ROUTER_TIMEOUT", 120*time.Second)
		instance.LLM.FallbackText = getEnvString("LLM_FALLBACK_NARRATIVE",
			"O narrador faz uma pausa dramática. Os ventos do destino estão instáveis; tente novamente em instantes.")

		// Battle pacing
		instance.Battle.LinePacing = getEnvDuration("BATTLE_LINE_PACING", 400*time.Millisecond)
		instance.Battle.TurnStartDelay = getEnvDuration("BATTLE_TURN_START_DELAY", 300*time.Millisecond)
		instance.Battle.SentencePacingCap = getEnvDuration("BATTLE_SENTENCE_PACING_CAP", 1200*time.Millisecond)
		instance.Battle.PlayerHealth = getEnvInt("BATTLE_PLAYER_HEALTH", 100)
		instance.Battle.EnemyHealth = getEnvInt("BATTLE_ENEMY_HEALTH", 100)

		// Cache settings
		instance.Cache.Enabled = getEnvBool("CACHE_ENABLED", true)
		instance.Cache.TTL = getEnvDuration("CACHE_TTL", 5*time.Minute)
		instance.Cache.MaxSize = getEnvInt("CACHE_MAX_SIZE", 1000)
		instance.Cache.PurgeWindow = getEnvDuration("CACHE_PURGE_WINDOW", 10*time.Minute)
	})

	return instance
}

// Get returns the singleton Config instance
func Get() *Config {
	if instance == nil {
		return New()
	}
	return instance
}

func providerConfig(keyEnv, modelsEnv, defaultModels string) ProviderConfig {
	return ProviderConfig{
		APIKey: getEnvString(keyEnv, ""),
		Models: strings.Split(getEnvString(modelsEnv, defaultModels), ";"),
	}
}

// Helper functions to read environment variables with default values

func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
