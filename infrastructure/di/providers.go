package di

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vdchat/application/commands"
	"vdchat/application/commands/bus"
	commandhandlers "vdchat/application/commands/handlers"
	"vdchat/application/ports"
	querybus "vdchat/application/queries/bus"
	queryhandlers "vdchat/application/queries/handlers"
	"vdchat/application/sagas"
	"vdchat/application/services"
	domainconfig "vdchat/domain/config"
	"vdchat/infrastructure/cache"
	"vdchat/infrastructure/concurrency"
	"vdchat/infrastructure/config"
	"vdchat/infrastructure/messaging/eventbridge"
	"vdchat/infrastructure/messaging/logging"
	lockstore "vdchat/infrastructure/persistence/dynamodb"
	"vdchat/infrastructure/persistence/graphdb"
	"vdchat/infrastructure/persistence/memory"
	"vdchat/infrastructure/persistence/sqlite"
	"vdchat/infrastructure/providers/gemini"
	"vdchat/infrastructure/providers/google"
	"vdchat/infrastructure/providers/resilience"
	"vdchat/pkg/observability"
	"vdchat/pkg/ratelimit"

	speech "cloud.google.com/go/speech/apiv1"
	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"
)

const serviceName = "vdchat"

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.IsProduction() {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.LogLevel != "" {
		level, err := zap.ParseAtomicLevel(cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		zapCfg.Level = level
	}

	return zapCfg.Build()
}

// ProvideMetrics creates the Prometheus collector
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector(serviceName)
}

// ProvideTracer creates the X-Ray tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer(serviceName, cfg.EnableTracing)
}

// ProvideDomainConfig loads the business rules for the environment
func ProvideDomainConfig(cfg *config.Config) *domainconfig.DomainConfig {
	domainCfg := domainconfig.LoadDomainConfig(cfg.Environment)
	if cfg.MaxAudioBytes > 0 {
		domainCfg.MaxAudioBytes = cfg.MaxAudioBytes
	}
	return domainCfg
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDatabase opens the SQLite conversation store
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*sql.DB, func(), error) {
	db, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	return db, cleanup, nil
}

// ProvideConversationRepository creates the conversation repository
func ProvideConversationRepository(db *sql.DB, logger *zap.Logger) ports.ConversationRepository {
	return sqlite.NewConversationRepository(db, logger)
}

// ProvideTopicGraph connects to Neo4j, or keeps the graph in process memory
// when GRAPH_BACKEND=memory.
func ProvideTopicGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.TopicGraph, func(), error) {
	if cfg.GraphBackend == config.GraphBackendMemory {
		logger.Warn("Using in-memory topic graph; the graph is lost on restart")
		return memory.NewTopicGraph(), func() {}, nil
	}

	driver, err := graphdb.NewDriver(ctx, graphdb.Config{
		URI:      cfg.Neo4jURI,
		Username: cfg.Neo4jUser,
		Password: cfg.Neo4jPassword,
		Database: cfg.Neo4jDatabase,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := driver.Close(context.Background()); err != nil {
			logger.Warn("Failed to close neo4j driver", zap.Error(err))
		}
	}
	return graphdb.NewTopicGraph(driver, cfg.Neo4jDatabase, cfg.GraphTimeout, logger), cleanup, nil
}

// ProvideLocker returns the per-conversation lock. The DynamoDB lock is
// needed once more than one instance serves the same store.
func ProvideLocker(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.ConversationLocker {
	if cfg.LockBackend == config.LockBackendDynamo {
		return lockstore.NewConversationLock(awsdynamodb.NewFromConfig(awsCfg), cfg.LockTable, cfg.LockLease, logger)
	}
	return concurrency.NewKeyedMutex()
}

// ProvideRateLimiter limits callers of the provider-backed routes. It
// follows the lock backend so a distributed deployment shares one budget
// per caller. Returns nil when limiting is disabled.
func ProvideRateLimiter(ctx context.Context, cfg *config.Config, awsCfg aws.Config) (ratelimit.Limiter, func()) {
	if cfg.RateLimitPerMinute == 0 {
		return nil, func() {}
	}
	if cfg.LockBackend == config.LockBackendDynamo {
		return ratelimit.NewDistributedLimiter(awsdynamodb.NewFromConfig(awsCfg), cfg.LockTable, cfg.RateLimitPerMinute, time.Minute), func() {}
	}

	limiter := ratelimit.NewSlidingWindowLimiter(cfg.RateLimitPerMinute, time.Minute)
	pruneCtx, cancel := context.WithCancel(ctx)
	go limiter.RunPruner(pruneCtx, 5*time.Minute)
	return limiter, cancel
}

// ProvideEventPublisher publishes to EventBridge when events are enabled and
// to the log otherwise.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) ports.EventPublisher {
	if cfg.EnableEvents {
		return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.EventBusName, logger)
	}
	return logging.NewPublisher(logger)
}

// ProvideCache creates the query cache. It returns a nil cache when caching
// is disabled.
func ProvideCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.Cache, func(), error) {
	switch cfg.CacheBackend {
	case config.CacheBackendRedis:
		redisCache, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:      cfg.RedisAddr,
			Password:  cfg.RedisPassword,
			DB:        cfg.RedisDB,
			KeyPrefix: serviceName + ":",
		})
		if err != nil {
			return nil, nil, err
		}
		return redisCache, func() {
			if err := redisCache.Close(); err != nil {
				logger.Warn("Failed to close redis cache", zap.Error(err))
			}
		}, nil
	case config.CacheBackendNone:
		return nil, func() {}, nil
	default:
		memoryCache := cache.NewInMemoryCache()
		return memoryCache, func() { memoryCache.Close() }, nil
	}
}

// ProviderGuards holds one circuit breaker per external provider
type ProviderGuards struct {
	Speech     *resilience.Guard
	Completion *resilience.Guard
	Synthesis  *resilience.Guard
}

// ProvideGuards creates the provider circuit breakers
func ProvideGuards(cfg *config.Config, metrics *observability.Collector, logger *zap.Logger) *ProviderGuards {
	onChange := func(name, to string) { metrics.SetBreakerState(name, to) }
	return &ProviderGuards{
		Speech:     resilience.NewGuard(resilience.DefaultConfig("speech", cfg.TranscribeTimeout), logger, onChange),
		Completion: resilience.NewGuard(resilience.DefaultConfig("completion", cfg.CompletionTimeout), logger, onChange),
		Synthesis:  resilience.NewGuard(resilience.DefaultConfig("tts", cfg.SynthesisTimeout), logger, onChange),
	}
}

// ProvideTranscriptionGateway creates the Speech-to-Text gateway
func ProvideTranscriptionGateway(ctx context.Context, cfg *config.Config, guards *ProviderGuards, logger *zap.Logger) (ports.TranscriptionGateway, func(), error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	gateway := google.NewSpeechGateway(client, guards.Speech, google.SpeechConfig{
		LanguageCode:    cfg.SpeechLanguage,
		SampleRateHertz: int32(cfg.SpeechSampleRate),
	}, logger)
	return gateway, func() { client.Close() }, nil
}

// ProvideSynthesisGateway creates the Text-to-Speech gateway
func ProvideSynthesisGateway(ctx context.Context, cfg *config.Config, guards *ProviderGuards, logger *zap.Logger) (ports.SynthesisGateway, func(), error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create text-to-speech client: %w", err)
	}
	gateway := google.NewTTSGateway(client, guards.Synthesis, ProvideDefaultVoice(cfg), logger)
	return gateway, func() { client.Close() }, nil
}

// ProvideDefaultVoice returns the configured synthesis voice
func ProvideDefaultVoice(cfg *config.Config) ports.VoiceConfig {
	return ports.VoiceConfig{
		LanguageCode: cfg.TTSLanguage,
		VoiceName:    cfg.TTSVoice,
	}
}

// ProvideCompletionGateway creates the Gemini completion gateway
func ProvideCompletionGateway(ctx context.Context, cfg *config.Config, guards *ProviderGuards, logger *zap.Logger) (ports.CompletionGateway, error) {
	client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey)
	if err != nil {
		return nil, err
	}
	return gemini.NewCompletionGateway(client, cfg.GeminiModel, guards.Completion, logger), nil
}

// ProvideGraphUpsertService creates the graph upsert engine
func ProvideGraphUpsertService(graph ports.TopicGraph, logger *zap.Logger) *services.GraphUpsertService {
	return services.NewGraphUpsertService(graph, logger)
}

// ProvideTurnOrchestrator creates the turn orchestrator
func ProvideTurnOrchestrator(
	cfg *config.Config,
	repo ports.ConversationRepository,
	transcriber ports.TranscriptionGateway,
	completion ports.CompletionGateway,
	synthesizer ports.SynthesisGateway,
	upserter *services.GraphUpsertService,
	locker ports.ConversationLocker,
	publisher ports.EventPublisher,
	queryCache ports.Cache,
	domainCfg *domainconfig.DomainConfig,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *sagas.TurnOrchestrator {
	return sagas.NewTurnOrchestrator(sagas.Dependencies{
		Repository:   repo,
		Transcriber:  transcriber,
		Completion:   completion,
		Synthesizer:  synthesizer,
		Upserter:     upserter,
		Locker:       locker,
		Publisher:    publisher,
		Cache:        queryCache,
		DomainConfig: domainCfg,
		DefaultVoice: ProvideDefaultVoice(cfg),
		Logger:       logger,
		Metrics:      metrics,
		Tracer:       tracer,
	})
}

// ProvideCommandBus creates a command bus with registered handlers
func ProvideCommandBus(
	repo ports.ConversationRepository,
	locker ports.ConversationLocker,
	queryCache ports.Cache,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) (*bus.CommandBus, error) {
	commandBus := bus.NewCommandBus()
	pipeline := bus.NewPipeline(bus.LoggingMiddleware(logger))

	deleteHandler := commandhandlers.NewDeleteConversationHandler(repo, locker, queryCache, publisher, logger)
	if err := commandBus.Register(commands.DeleteConversationCommand{}, pipeline.Execute(deleteHandler)); err != nil {
		return nil, err
	}

	return commandBus, nil
}

// ProvideQueryBus creates a query bus with registered handlers. Read models
// are cached when a cache is configured.
func ProvideQueryBus(
	cfg *config.Config,
	repo ports.ConversationRepository,
	completion ports.CompletionGateway,
	queryCache ports.Cache,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*querybus.QueryBus, error) {
	queryBus := querybus.NewQueryBus()

	var caching *querybus.CachingMiddleware
	if queryCache != nil {
		caching = querybus.NewCachingMiddleware(queryCache, cfg.CacheTTL, metrics, logger)
	}

	handler := queryhandlers.NewConversationQueryHandler(repo, completion, logger)
	if err := handler.Register(queryBus, caching); err != nil {
		return nil, err
	}

	return queryBus, nil
}
