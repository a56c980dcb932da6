// Package rest exposes the conversation backend over HTTP.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"vdchat/application/commands/bus"
	"vdchat/application/ports"
	querybus "vdchat/application/queries/bus"
	"vdchat/interfaces/http/rest/handlers"
	"vdchat/interfaces/http/rest/middleware"
	pkgerrors "vdchat/pkg/errors"
	"vdchat/pkg/observability"
	"vdchat/pkg/ratelimit"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// HealthChecker reports the status of each backing store
type HealthChecker func(ctx context.Context) map[string]string

// Options configures the router
type Options struct {
	EnableCORS    bool
	CORSOrigins   []string
	EnableMetrics bool
	Debug         bool
	MaxAudioBytes int64
	// MaxSynthesisLength caps /voice-output text in characters; 0 disables it.
	MaxSynthesisLength int
	DefaultUserID      string
	RequestTimeout     time.Duration
	// Limiter guards the routes that call providers; nil disables it.
	Limiter ratelimit.Limiter
}

// Router creates and configures the HTTP router
type Router struct {
	turns       handlers.TurnProcessor
	commandBus  *bus.CommandBus
	queryBus    *querybus.QueryBus
	synthesizer ports.SynthesisGateway
	completion  ports.CompletionGateway
	health      HealthChecker
	metrics     *observability.Collector
	tracer      *observability.Tracer
	options     Options
	logger      *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	turns handlers.TurnProcessor,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	synthesizer ports.SynthesisGateway,
	completion ports.CompletionGateway,
	health HealthChecker,
	metrics *observability.Collector,
	tracer *observability.Tracer,
	options Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		turns:       turns,
		commandBus:  commandBus,
		queryBus:    queryBus,
		synthesizer: synthesizer,
		completion:  completion,
		health:      health,
		metrics:     metrics,
		tracer:      tracer,
		options:     options,
		logger:      logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := pkgerrors.NewErrorHandler(rt.logger, rt.options.Debug)

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.StripSlashes)
	router.Use(errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	if rt.options.RequestTimeout > 0 {
		router.Use(chimiddleware.Timeout(rt.options.RequestTimeout))
	}

	if rt.options.EnableCORS {
		origins := rt.options.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", "X-User-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.options.EnableMetrics && rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	turnHandler := handlers.NewTurnHandler(rt.turns, rt.options.MaxAudioBytes, rt.options.DefaultUserID, errorHandler, rt.logger)
	speechHandler := handlers.NewSpeechHandler(rt.synthesizer, rt.completion, rt.options.MaxSynthesisLength, errorHandler, rt.logger)
	conversationHandler := handlers.NewConversationHandler(rt.commandBus, rt.queryBus, rt.options.DefaultUserID, errorHandler, rt.logger)

	var limited []func(http.Handler) http.Handler
	if rt.options.Limiter != nil {
		limited = append(limited, middleware.RateLimit(rt.options.Limiter, errorHandler, rt.logger))
	}

	router.With(limited...).Post("/voice-input", turnHandler.VoiceInput)
	router.With(limited...).Post("/chat-response", turnHandler.ChatResponse)
	router.With(limited...).Post("/voice-output", speechHandler.VoiceOutput)
	router.With(limited...).Post("/sentiment", speechHandler.Sentiment)

	router.Route("/knowledge-graph", func(r chi.Router) {
		r.Get("/", conversationHandler.ListUserSnapshots)
		r.With(limited...).Post("/", turnHandler.RebuildGraph)
		r.Get("/{conversationID}", conversationHandler.ListConversationSnapshots)
	})

	router.Route("/conversations", func(r chi.Router) {
		r.Get("/", conversationHandler.ListConversations)
		r.Get("/{conversationID}", conversationHandler.GetConversation)
		r.Delete("/{conversationID}", conversationHandler.DeleteConversation)
		r.Get("/{conversationID}/summary", conversationHandler.Summarize)
	})

	return rt.tracer.Handler(router)
}

// healthCheck handles liveness requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck pings the conversation store and the topic graph
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	body := map[string]interface{}{"status": "ready"}
	if rt.health != nil {
		checks := rt.health(ctx)
		body["checks"] = checks
		for _, state := range checks {
			if state != "healthy" {
				status = http.StatusServiceUnavailable
				body["status"] = "not_ready"
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		rt.logger.Error("Failed to encode readiness response", zap.Error(err))
	}
}
