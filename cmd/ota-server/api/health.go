package api

import (
	"context"

	"github.com/onkernel/kernel-ota/lib/oapi"
)

// GetHealth reports that the server is up
func (s *ApiService) GetHealth(ctx context.Context, request oapi.GetHealthRequestObject) (oapi.GetHealthResponseObject, error) {
	return oapi.GetHealth200JSONResponse{Status: "healthy"}, nil
}
