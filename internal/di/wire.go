//go:build wireinject
// +build wireinject

package di

import (
	"RegimeFlow/pkg/config"
	"RegimeFlow/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRecorder,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCacheService,
		ProvideKafkaProducer,

		// Repositories
		ProvideCSVStore,
		ProvideFeed,

		// Strategy and use cases
		ProvideStrategy,
		ProvideEngine,
		ProvideRunner,

		// HTTP
		ProvideReportHandler,

		// Application
		ProvideApp,
	)
	return nil, nil
}
