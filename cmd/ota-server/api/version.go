package api

import (
	"context"
	"errors"

	"github.com/onkernel/kernel-ota/lib/catalog"
	"github.com/onkernel/kernel-ota/lib/logger"
	"github.com/onkernel/kernel-ota/lib/oapi"
)

const (
	msgNoVersion       = "No version information available"
	msgInvalidMetadata = "Invalid metadata format"
)

// GetVersion returns the most recently published kernel
func (s *ApiService) GetVersion(ctx context.Context, request oapi.GetVersionRequestObject) (oapi.GetVersionResponseObject, error) {
	log := logger.FromContext(ctx)

	entry, err := s.CatalogManager.GetLatest(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return oapi.GetVersion404JSONResponse{Error: msgNoVersion}, nil
		}
		log.ErrorContext(ctx, "failed to read latest version", "error", err)
		return oapi.GetVersion500JSONResponse{Error: msgInvalidMetadata}, nil
	}

	return oapi.GetVersion200JSONResponse(entry.ToOAPI()), nil
}
