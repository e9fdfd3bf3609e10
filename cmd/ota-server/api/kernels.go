package api

import (
	"bytes"
	"context"
	"errors"
	"os"
	"time"

	"github.com/onkernel/kernel-ota/lib/checksum"
	"github.com/onkernel/kernel-ota/lib/logger"
	"github.com/onkernel/kernel-ota/lib/oapi"
)

const (
	msgFileNotFound     = "File not found"
	msgChecksumFailed   = "Error calculating checksum"
	msgReadFailed       = "Error reading file"
	resultSuccess       = "success"
	resultNotFound      = "not_found"
	resultInternalError = "error"
)

// GetKernel serves the raw bytes of an image with a digest computed from
// the bytes on disk at request time, never from the catalog.
func (s *ApiService) GetKernel(ctx context.Context, request oapi.GetKernelRequestObject) (oapi.GetKernelResponseObject, error) {
	log := logger.FromContext(ctx)

	path, err := s.Paths.Kernel(request.Filename)
	if err != nil {
		log.WarnContext(ctx, "rejected kernel filename", "filename", request.Filename, "error", err)
		return s.kernelNotFound(ctx), nil
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil || errors.Is(err, os.ErrNotExist) {
			return s.kernelNotFound(ctx), nil
		}
		log.ErrorContext(ctx, "failed to stat kernel", "filename", request.Filename, "error", err)
		return s.kernelError(ctx, msgReadFailed), nil
	}

	start := time.Now()
	sum, err := s.Checksum.FileChecksum(path)
	s.Metrics.RecordChecksum(ctx, time.Since(start))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.kernelNotFound(ctx), nil
		}
		log.ErrorContext(ctx, "failed to calculate checksum", "filename", request.Filename, "error", err)
		return s.kernelError(ctx, msgChecksumFailed), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.kernelNotFound(ctx), nil
		}
		log.ErrorContext(ctx, "failed to read kernel", "filename", request.Filename, "error", err)
		return s.kernelError(ctx, msgReadFailed), nil
	}

	// The file may have been replaced between hashing and reading.
	if !checksum.Verify(data, sum) {
		log.WarnContext(ctx, "kernel changed while serving, rehashing", "filename", request.Filename)
		sum = checksum.ComputeBytes(data)
	}

	s.Metrics.RecordDownload(ctx, resultSuccess, int64(len(data)))
	return oapi.GetKernel200ApplicationoctetStreamResponse{
		Body:          bytes.NewReader(data),
		Headers:       oapi.GetKernel200ResponseHeaders{XChecksum: sum},
		ContentLength: int64(len(data)),
	}, nil
}

func (s *ApiService) kernelNotFound(ctx context.Context) oapi.GetKernelResponseObject {
	s.Metrics.RecordDownload(ctx, resultNotFound, 0)
	return oapi.GetKernel404JSONResponse{Error: msgFileNotFound}
}

func (s *ApiService) kernelError(ctx context.Context, msg string) oapi.GetKernelResponseObject {
	s.Metrics.RecordDownload(ctx, resultInternalError, 0)
	return oapi.GetKernel500JSONResponse{Error: msg}
}
