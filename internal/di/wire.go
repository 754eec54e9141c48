//go:build wireinject
// +build wireinject

package di

import (
	"BarForge/pkg/config"
	"BarForge/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Storage tier
		ProvideStores,

		// Pipeline stages
		ProvideConsolidator,
		ProvideResampler,
		ProvideSignalProducer,
		ProvideGoldAggregator,
		ProvidePipeline,

		// Ingestion
		ProvideIngestor,
		ProvideKafkaConsumer,
		ProvideKafkaBarsHandler,
		ProvideFeedCollector,
		ProvideBackfiller,

		// Read side
		ProvideBarsQuery,
		ProvideHTTPHandler,

		// Jobs
		ProvideJobQueue,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
