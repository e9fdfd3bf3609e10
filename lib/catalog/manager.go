// Package catalog maintains the persisted record of published kernel
// versions and the pointer to the most recently ingested one.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/onkernel/kernel-ota/lib/checksum"
	"github.com/onkernel/kernel-ota/lib/paths"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel/metric"
)

// Manager handles catalog ingestion and lookups
type Manager interface {
	// AddKernel publishes an image already present in the image directory
	// as version, making it the latest. An existing version is replaced in place.
	AddKernel(ctx context.Context, req AddKernelRequest) (*KernelEntry, error)

	// ListVersions returns the full catalog. A never-written catalog is
	// empty with latest "none".
	ListVersions(ctx context.Context) (*VersionHistory, error)

	// GetLatest returns the latest record.
	GetLatest(ctx context.Context) (*KernelEntry, error)
}

type manager struct {
	paths   *paths.Paths
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	// addMu serializes ingestions within the process.
	addMu sync.Mutex
}

// NewManager creates a catalog manager. meter may be nil to disable metrics.
func NewManager(p *paths.Paths, logger *slog.Logger, meter metric.Meter) (Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}

	m := &manager{
		paths:  p,
		logger: logger,
		now:    time.Now,
	}

	if meter != nil {
		metrics, err := newMetrics(meter, p)
		if err != nil {
			return nil, fmt.Errorf("create metrics: %w", err)
		}
		m.metrics = metrics
	}

	return m, nil
}

func (m *manager) AddKernel(ctx context.Context, req AddKernelRequest) (*KernelEntry, error) {
	start := time.Now()
	entry, err := m.addKernel(ctx, req)

	if m.metrics != nil {
		result := "success"
		if err != nil {
			result = "failure"
		}
		m.metrics.RecordIngestion(ctx, result, time.Since(start))
	}

	if err != nil {
		m.logger.ErrorContext(ctx, "failed to add kernel",
			"version", req.Version,
			"file", req.KernelFile,
			"error", err)
		return nil, err
	}
	return entry, nil
}

func (m *manager) addKernel(ctx context.Context, req AddKernelRequest) (*KernelEntry, error) {
	if strings.TrimSpace(req.Version) == "" {
		return nil, ErrInvalidVersion
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kernelPath, err := m.paths.Kernel(req.KernelFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrImageNotFound, req.KernelFile, err)
	}

	m.addMu.Lock()
	defer m.addMu.Unlock()

	// Read history first so a corrupt catalog fails before any hashing.
	history, err := readHistory(m.paths)
	if err != nil {
		return nil, err
	}

	size, sum, err := measure(kernelPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrImageNotFound, req.KernelFile)
		}
		return nil, fmt.Errorf("measure %s: %w", req.KernelFile, err)
	}

	entry := newEntry(req, size, sum, m.now())

	_, idx, found := lo.FindIndexOf(history.Versions, func(e KernelEntry) bool {
		return e.Version == entry.Version
	})
	if found {
		history.Versions[idx] = entry
	} else {
		history.Versions = append(history.Versions, entry)
	}
	history.Latest = entry.Version

	if err := writeCatalog(m.paths, &entry, history); err != nil {
		return nil, fmt.Errorf("write catalog for %s: %w", entry.Version, err)
	}

	m.logger.InfoContext(ctx, "kernel added",
		"version", entry.Version,
		"file", entry.KernelFile,
		"size", datasize.ByteSize(entry.FileSize).HumanReadable(),
		"checksum", entry.Checksum,
		"replaced", found)

	return &entry, nil
}

func (m *manager) ListVersions(ctx context.Context) (*VersionHistory, error) {
	return readHistory(m.paths)
}

func (m *manager) GetLatest(ctx context.Context) (*KernelEntry, error) {
	return readLatest(m.paths)
}

// measure hashes the regular file at path and returns the number of bytes
// hashed alongside the digest, so size and checksum describe the same bytes.
func measure(path string) (uint64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, "", fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, "", fmt.Errorf("not a regular file: %w", os.ErrNotExist)
	}

	counter := &countingReader{r: f}
	sum, err := checksum.ComputeReader(counter)
	if err != nil {
		return 0, "", err
	}
	return counter.n, sum, nil
}

type countingReader struct {
	r io.Reader
	n uint64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += uint64(n)
	return n, err
}
