package api

import (
	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/onkernel/kernel-ota/lib/checksum"
	"github.com/onkernel/kernel-ota/lib/oapi"
	"github.com/onkernel/kernel-ota/lib/otel"
	"github.com/onkernel/kernel-ota/lib/paths"
)

// ApiService implements the oapi.StrictServerInterface
type ApiService struct {
	Config         *config.Config
	CatalogManager catalog.Manager
	Paths          *paths.Paths
	Checksum       checksum.Calculator
	Metrics        *otel.DownloadMetrics
}

var _ oapi.StrictServerInterface = (*ApiService)(nil)

// New creates a new ApiService
func New(
	config *config.Config,
	catalogManager catalog.Manager,
	p *paths.Paths,
	calculator checksum.Calculator,
	metrics *otel.DownloadMetrics,
) *ApiService {
	return &ApiService{
		Config:         config,
		CatalogManager: catalogManager,
		Paths:          p,
		Checksum:       calculator,
		Metrics:        metrics,
	}
}
