//go:build wireinject

package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/wire"
	"github.com/onkernel/kernel-ota/cmd/ota-server/api"
	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/onkernel/kernel-ota/lib/discovery"
	"github.com/onkernel/kernel-ota/lib/otel"
	"github.com/onkernel/kernel-ota/lib/paths"
	"github.com/onkernel/kernel-ota/lib/providers"
)

// application struct to hold initialized components
type application struct {
	Config         *config.Config
	Logger         *slog.Logger
	Otel           *otel.Provider
	Paths          *paths.Paths
	CatalogManager catalog.Manager
	ApiService     *api.ApiService
	Handler        http.Handler
	Announcer      *discovery.Announcer
}

// initializeApp is the injector function
func initializeApp(ctx context.Context, cfg *config.Config) (*application, func(), error) {
	panic(wire.Build(
		providers.ProvideLogConfig,
		providers.ProvideOtel,
		providers.ProvideLogger,
		providers.ProvidePaths,
		providers.ProvideCatalogManager,
		providers.ProvideChecksum,
		providers.ProvideDownloadMetrics,
		providers.ProvideHTTPMetrics,
		api.New,
		providers.ProvideRouter,
		providers.ProvideAnnouncer,
		wire.Struct(new(application), "*"),
	))
}
