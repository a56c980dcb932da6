package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string `yaml:"server_address"`
	Environment   string `yaml:"environment"`
	LogLevel      string `yaml:"log_level"`

	// Conversation store
	SQLiteDSN string `yaml:"sqlite_dsn"`

	// Topic graph store
	GraphBackend  string `yaml:"graph_backend"`
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
	Neo4jDatabase string `yaml:"neo4j_database"`

	// Providers
	GeminiAPIKey     string `yaml:"gemini_api_key"`
	GeminiModel      string `yaml:"gemini_model"`
	SpeechLanguage   string `yaml:"speech_language"`
	SpeechSampleRate int    `yaml:"speech_sample_rate"`
	TTSVoice         string `yaml:"tts_voice"`
	TTSLanguage      string `yaml:"tts_language"`

	// Per-call deadlines
	TranscribeTimeout time.Duration `yaml:"transcribe_timeout"`
	CompletionTimeout time.Duration `yaml:"completion_timeout"`
	SynthesisTimeout  time.Duration `yaml:"synthesis_timeout"`
	GraphTimeout      time.Duration `yaml:"graph_timeout"`

	// AWS configuration
	AWSRegion    string        `yaml:"aws_region"`
	LockBackend  string        `yaml:"lock_backend"`
	LockTable    string        `yaml:"lock_table"`
	LockLease    time.Duration `yaml:"lock_lease"`
	EventBusName string        `yaml:"event_bus_name"`

	// Lambda configuration
	IsLambda bool `yaml:"is_lambda"`

	// Query cache
	CacheBackend  string        `yaml:"cache_backend"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`

	// Request limits
	MaxAudioBytes      int64  `yaml:"max_audio_bytes"`
	DefaultUserID      string `yaml:"default_user_id"`
	// Requests per minute per caller on provider-backed routes; 0 disables.
	// Shares the lock backend and table.
	RateLimitPerMinute int    `yaml:"rate_limit_per_minute"`

	// Feature flags
	EnableEvents  bool     `yaml:"enable_events"`
	EnableMetrics bool     `yaml:"enable_metrics"`
	EnableTracing bool     `yaml:"enable_tracing"`
	EnableCORS    bool     `yaml:"enable_cors"`
	CORSOrigins   []string `yaml:"cors_origins"`
}

// Backends
const (
	GraphBackendNeo4j  = "neo4j"
	GraphBackendMemory = "memory"
	LockBackendLocal   = "local"
	LockBackendDynamo  = "dynamodb"
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
	CacheBackendNone   = "none"
)

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		ServerAddress:      ":8080",
		Environment:        "development",
		LogLevel:           "info",
		SQLiteDSN:          "vdchat.db",
		GraphBackend:       GraphBackendNeo4j,
		Neo4jURI:           "bolt://localhost:7687",
		Neo4jUser:          "neo4j",
		Neo4jDatabase:      "neo4j",
		GeminiModel:        "gemini-2.0-flash",
		SpeechLanguage:     "en-US",
		SpeechSampleRate:   48000,
		TTSVoice:           "en-US-Standard-A",
		TTSLanguage:        "en-US",
		TranscribeTimeout:  30 * time.Second,
		CompletionTimeout:  30 * time.Second,
		SynthesisTimeout:   30 * time.Second,
		GraphTimeout:       10 * time.Second,
		AWSRegion:          "us-west-2",
		LockBackend:        LockBackendLocal,
		LockTable:          "vdchat-locks",
		LockLease:          2 * time.Minute,
		EventBusName:       "vdchat-events",
		CacheBackend:       CacheBackendMemory,
		RedisAddr:          "localhost:6379",
		CacheTTL:           5 * time.Minute,
		MaxAudioBytes:      10 << 20,
		RateLimitPerMinute: 30,
		EnableMetrics:      true,
		EnableCORS:         true,
		CORSOrigins:        []string{"*"},
	}
}

// LoadConfig loads configuration from defaults, then the YAML file named by
// CONFIG_FILE if any, then environment variables. Later sources win.
func LoadConfig() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Load is an alias for LoadConfig
func Load() (*Config, error) {
	return LoadConfig()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.ServerAddress = getEnv("SERVER_ADDRESS", c.ServerAddress)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	c.SQLiteDSN = getEnv("SQLITE_DSN", c.SQLiteDSN)

	c.GraphBackend = strings.ToLower(getEnv("GRAPH_BACKEND", c.GraphBackend))
	c.Neo4jURI = getEnv("NEO4J_URI", c.Neo4jURI)
	c.Neo4jUser = getEnv("NEO4J_USER", c.Neo4jUser)
	c.Neo4jPassword = getEnv("NEO4J_PASSWORD", c.Neo4jPassword)
	c.Neo4jDatabase = getEnv("NEO4J_DATABASE", c.Neo4jDatabase)

	c.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.GeminiAPIKey)
	c.GeminiModel = getEnv("GEMINI_MODEL", c.GeminiModel)
	c.SpeechLanguage = getEnv("SPEECH_LANGUAGE", c.SpeechLanguage)
	c.SpeechSampleRate = getEnvInt("SPEECH_SAMPLE_RATE", c.SpeechSampleRate)
	c.TTSVoice = getEnv("TTS_VOICE", c.TTSVoice)
	c.TTSLanguage = getEnv("TTS_LANGUAGE", c.TTSLanguage)

	c.TranscribeTimeout = getEnvDuration("TRANSCRIBE_TIMEOUT", c.TranscribeTimeout)
	c.CompletionTimeout = getEnvDuration("COMPLETION_TIMEOUT", c.CompletionTimeout)
	c.SynthesisTimeout = getEnvDuration("SYNTHESIS_TIMEOUT", c.SynthesisTimeout)
	c.GraphTimeout = getEnvDuration("GRAPH_TIMEOUT", c.GraphTimeout)

	c.AWSRegion = getEnv("AWS_REGION", c.AWSRegion)
	c.LockBackend = strings.ToLower(getEnv("LOCK_BACKEND", c.LockBackend))
	c.LockTable = getEnv("LOCK_TABLE", c.LockTable)
	c.LockLease = getEnvDuration("LOCK_LEASE", c.LockLease)
	c.EventBusName = getEnv("EVENT_BUS_NAME", c.EventBusName)

	c.IsLambda = getEnvBool("IS_LAMBDA", c.IsLambda || os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "")

	c.CacheBackend = strings.ToLower(getEnv("CACHE_BACKEND", c.CacheBackend))
	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.CacheTTL = getEnvDuration("CACHE_TTL", c.CacheTTL)

	c.MaxAudioBytes = int64(getEnvInt("MAX_AUDIO_BYTES", int(c.MaxAudioBytes)))
	c.DefaultUserID = getEnv("DEFAULT_USER_ID", c.DefaultUserID)
	c.RateLimitPerMinute = getEnvInt("RATE_LIMIT_PER_MINUTE", c.RateLimitPerMinute)

	c.EnableEvents = getEnvBool("ENABLE_EVENTS", c.EnableEvents)
	c.EnableMetrics = getEnvBool("ENABLE_METRICS", c.EnableMetrics)
	c.EnableTracing = getEnvBool("ENABLE_TRACING", c.EnableTracing)
	c.EnableCORS = getEnvBool("ENABLE_CORS", c.EnableCORS)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.GraphBackend {
	case GraphBackendNeo4j, GraphBackendMemory:
	default:
		return fmt.Errorf("GRAPH_BACKEND must be %q or %q, got %q", GraphBackendNeo4j, GraphBackendMemory, c.GraphBackend)
	}
	switch c.LockBackend {
	case LockBackendLocal, LockBackendDynamo:
	default:
		return fmt.Errorf("LOCK_BACKEND must be %q or %q, got %q", LockBackendLocal, LockBackendDynamo, c.LockBackend)
	}
	switch c.CacheBackend {
	case CacheBackendMemory, CacheBackendRedis, CacheBackendNone:
	default:
		return fmt.Errorf("CACHE_BACKEND must be %q, %q or %q, got %q", CacheBackendMemory, CacheBackendRedis, CacheBackendNone, c.CacheBackend)
	}

	if c.SQLiteDSN == "" {
		return fmt.Errorf("SQLITE_DSN is required")
	}
	if c.MaxAudioBytes <= 0 {
		return fmt.Errorf("MAX_AUDIO_BYTES must be positive")
	}
	if c.RateLimitPerMinute < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must not be negative")
	}
	if c.LockBackend == LockBackendDynamo && c.LockTable == "" {
		return fmt.Errorf("LOCK_TABLE is required for the dynamodb lock backend")
	}
	if c.EnableEvents && c.EventBusName == "" {
		return fmt.Errorf("EVENT_BUS_NAME is required when events are enabled")
	}

	if c.IsProduction() {
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required in production")
		}
		if c.GraphBackend == GraphBackendNeo4j && c.Neo4jURI == "" {
			return fmt.Errorf("NEO4J_URI is required in production")
		}
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("30s") or whole seconds ("30")
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
