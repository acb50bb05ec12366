//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"contentforge/infrastructure/config"

	"github.com/google/wire"
)

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideBackends,
	ProvideSnapshotStore,
	ProvideWorkspaceMutex,
	ProvideStepLog,
	ProvideMailbox,
	ProvideRankingCache,
	ProvideEventBus,
	ProvideToolset,
	ProvideGenerator,
	ProvideRankingProvider,
	ProvideProjectStore,
	ProvideWorkspaceAccess,
	ProvidePlanner,
	ProvideWriter,
	ProvideContentService,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
