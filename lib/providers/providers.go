package providers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/onkernel/kernel-ota/cmd/ota-server/api"
	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/onkernel/kernel-ota/lib/checksum"
	"github.com/onkernel/kernel-ota/lib/discovery"
	"github.com/onkernel/kernel-ota/lib/logger"
	"github.com/onkernel/kernel-ota/lib/middleware"
	"github.com/onkernel/kernel-ota/lib/otel"
	"github.com/onkernel/kernel-ota/lib/paths"
	"go.opentelemetry.io/otel/metric"
)

// Version is reported to telemetry backends.
var Version = "dev"

// ProvideLogConfig builds the handler configuration from the [log] section
func ProvideLogConfig(cfg *config.Config) (logger.Config, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return logger.Config{}, fmt.Errorf("log level: %w", err)
	}

	logCfg := logger.NewConfig()
	logCfg.Level = level
	logCfg.Format = cfg.Log.Format
	return logCfg, nil
}

// ProvideOtel initializes telemetry export; the cleanup flushes it
func ProvideOtel(ctx context.Context, cfg *config.Config) (*otel.Provider, func(), error) {
	p, err := otel.Init(ctx, otel.Config{
		Enabled:     cfg.Otel.Enabled,
		Endpoint:    cfg.Otel.Endpoint,
		ServiceName: cfg.Otel.ServiceName,
		Version:     Version,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init otel: %w", err)
	}

	cleanup := func() {
		if err := p.Shutdown(context.Background()); err != nil {
			slog.Warn("failed to shutdown otel", "error", err)
		}
	}
	return p, cleanup, nil
}

// ProvideLogger provides the cli subsystem logger and installs it as the default
func ProvideLogger(logCfg logger.Config, otelProvider *otel.Provider) *slog.Logger {
	log := logger.NewSubsystemLogger(logger.SubsystemCLI, logCfg, otelProvider.LogHandler())
	slog.SetDefault(log)
	return log
}

// ProvidePaths provides the directory layout
func ProvidePaths(cfg *config.Config) *paths.Paths {
	return paths.New(cfg.Paths.KernelsDir, cfg.Paths.MetadataDir)
}

// ProvideCatalogManager provides the catalog manager
func ProvideCatalogManager(p *paths.Paths, logCfg logger.Config, otelProvider *otel.Provider) (catalog.Manager, error) {
	log := logger.NewSubsystemLogger(logger.SubsystemCatalog, logCfg, otelProvider.LogHandler())

	var meter metric.Meter
	if otelProvider.Enabled() {
		meter = otelProvider.Meter("catalog")
	}
	return catalog.NewManager(p, log, meter)
}

// ProvideChecksum provides the digest calculator used on the download path
func ProvideChecksum(cfg *config.Config) checksum.Calculator {
	if cfg.Checksum.Cache {
		return checksum.NewCache(0, 0)
	}
	return checksum.Direct{}
}

// ProvideDownloadMetrics provides the download instruments
func ProvideDownloadMetrics(otelProvider *otel.Provider) (*otel.DownloadMetrics, error) {
	return otel.NewDownloadMetrics(otelProvider.Meter("api"))
}

// ProvideHTTPMetrics provides the HTTP request instruments, nil when telemetry is off
func ProvideHTTPMetrics(otelProvider *otel.Provider) (*middleware.HTTPMetrics, error) {
	if !otelProvider.Enabled() {
		return nil, nil
	}
	return middleware.NewHTTPMetrics(otelProvider.Meter("http"))
}

// ProvideRouter provides the HTTP handler
func ProvideRouter(svc *api.ApiService, cfg *config.Config, logCfg logger.Config, otelProvider *otel.Provider, httpMetrics *middleware.HTTPMetrics) (http.Handler, error) {
	return api.NewRouter(svc, api.RouterOptions{
		AccessLog:   middleware.NewAccessLogger(logCfg, otelProvider.LogHandler()),
		HTTPMetrics: httpMetrics,
		ServiceName: cfg.Otel.ServiceName,
	})
}

// ProvideAnnouncer provides the mDNS announcer, nil when discovery is disabled
func ProvideAnnouncer(cfg *config.Config, logCfg logger.Config, otelProvider *otel.Provider) (*discovery.Announcer, error) {
	if !cfg.Discovery.Enabled {
		return nil, nil
	}

	log := logger.NewSubsystemLogger(logger.SubsystemDiscovery, logCfg, otelProvider.LogHandler())
	return discovery.NewAnnouncer(discovery.Config{
		Instance:    cfg.Discovery.Name,
		Description: cfg.Discovery.Description,
		Port:        uint16(cfg.Server.Port),
	}, log)
}
