//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"vdchat/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideMetrics,
	ProvideTracer,
	ProvideDomainConfig,
	ProvideAWSConfig,
	ProvideDatabase,
	ProvideConversationRepository,
	ProvideTopicGraph,
	ProvideLocker,
	ProvideRateLimiter,
	ProvideEventPublisher,
	ProvideCache,
	ProvideGuards,
	ProvideTranscriptionGateway,
	ProvideSynthesisGateway,
	ProvideCompletionGateway,
	ProvideGraphUpsertService,
	ProvideTurnOrchestrator,
	ProvideCommandBus,
	ProvideQueryBus,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container. The returned cleanup
// releases every client in reverse order of creation.
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil // Wire will replace this
}
