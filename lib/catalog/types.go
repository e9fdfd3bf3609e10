package catalog

import (
	"time"

	"github.com/onkernel/kernel-ota/lib/oapi"
)

// NoVersion is reported as the latest version of an empty catalog.
const NoVersion = "none"

// KernelEntry is one published kernel version as persisted on disk.
type KernelEntry struct {
	Version     string    `json:"version"`
	KernelFile  string    `json:"kernel_file"`
	FileSize    uint64    `json:"file_size"`
	Checksum    string    `json:"checksum"`
	ReleaseDate time.Time `json:"release_date"`
	Description string    `json:"description"`
	DownloadURL string    `json:"download_url"`
}

// VersionHistory is the full catalog: every entry in first-ingestion order
// plus the version that was ingested last.
type VersionHistory struct {
	Versions []KernelEntry `json:"versions"`
	Latest   string        `json:"latest"`
}

// AddKernelRequest describes an image to publish.
type AddKernelRequest struct {
	Version     string
	KernelFile  string
	Description string
}

// DownloadPath returns the stable download reference for an image file.
func DownloadPath(kernelFile string) string {
	return "/kernels/" + kernelFile
}

// newEntry builds an entry released now.
func newEntry(req AddKernelRequest, size uint64, checksum string, now time.Time) KernelEntry {
	return KernelEntry{
		Version:     req.Version,
		KernelFile:  req.KernelFile,
		FileSize:    size,
		Checksum:    checksum,
		ReleaseDate: now.UTC(),
		Description: req.Description,
		DownloadURL: DownloadPath(req.KernelFile),
	}
}

// ToOAPI projects the entry into the flattened shape clients expect, with
// the release date rendered as an RFC 3339 string.
func (e *KernelEntry) ToOAPI() oapi.KernelInfo {
	downloadURL := e.DownloadURL
	if downloadURL == "" {
		downloadURL = DownloadPath(e.KernelFile)
	}

	return oapi.KernelInfo{
		LatestVersion: e.Version,
		KernelFile:    e.KernelFile,
		FileSize:      e.FileSize,
		Checksum:      e.Checksum,
		ReleaseDate:   e.ReleaseDate.UTC().Format(time.RFC3339Nano),
		Description:   e.Description,
		DownloadUrl:   downloadURL,
	}
}

// Entry returns the entry for version, if present.
func (h *VersionHistory) Entry(version string) (KernelEntry, bool) {
	for _, e := range h.Versions {
		if e.Version == version {
			return e, true
		}
	}
	return KernelEntry{}, false
}

func emptyHistory() *VersionHistory {
	return &VersionHistory{
		Versions: []KernelEntry{},
		Latest:   NoVersion,
	}
}
