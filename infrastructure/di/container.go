// Package di assembles the application from configuration.
package di

import (
	"context"

	"vdchat/application/commands/bus"
	"vdchat/application/ports"
	querybus "vdchat/application/queries/bus"
	"vdchat/application/sagas"
	domainconfig "vdchat/domain/config"
	"vdchat/infrastructure/config"
	"vdchat/pkg/observability"
	"vdchat/pkg/ratelimit"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config       *config.Config
	Logger       *zap.Logger
	Metrics      *observability.Collector
	Tracer       *observability.Tracer
	DomainConfig *domainconfig.DomainConfig
	Repository   ports.ConversationRepository
	TopicGraph   ports.TopicGraph
	Completion   ports.CompletionGateway
	Synthesizer  ports.SynthesisGateway
	Orchestrator *sagas.TurnOrchestrator
	CommandBus   *bus.CommandBus
	QueryBus     *querybus.QueryBus
	RateLimiter  ratelimit.Limiter
}

// Health checks every backing store the request path depends on
func (c *Container) Health(ctx context.Context) map[string]string {
	status := map[string]string{
		"conversation_store": "healthy",
		"topic_graph":        "healthy",
	}
	if err := c.Repository.Ping(ctx); err != nil {
		c.Logger.Warn("Conversation store unhealthy", zap.Error(err))
		status["conversation_store"] = "unhealthy"
	}
	if err := c.TopicGraph.Ping(ctx); err != nil {
		c.Logger.Warn("Topic graph unhealthy", zap.Error(err))
		status["topic_graph"] = "unhealthy"
	}
	return status
}
