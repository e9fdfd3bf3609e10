// Package paths describes the on-disk layout of the kernel image directory and
// the catalog metadata directory.
//
//	{kernelsDir}/
//	  {image_file}            raw kernel image bytes
//	{metadataDir}/
//	  latest.json             most recently ingested entry
//	  version-history.json    every entry plus the latest pointer
package paths

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
)

const (
	latestFile  = "latest.json"
	historyFile = "version-history.json"
)

// ErrInvalidFilename is returned for image names that are not a single plain
// path element inside the image directory.
var ErrInvalidFilename = errors.New("invalid image filename")

// Paths resolves every file location the server reads or writes.
type Paths struct {
	kernelsDir  string
	metadataDir string
}

// New creates a Paths rooted at the given directories.
func New(kernelsDir, metadataDir string) *Paths {
	return &Paths{
		kernelsDir:  filepath.Clean(kernelsDir),
		metadataDir: filepath.Clean(metadataDir),
	}
}

// KernelsDir returns the image directory.
func (p *Paths) KernelsDir() string {
	return p.kernelsDir
}

// MetadataDir returns the metadata directory.
func (p *Paths) MetadataDir() string {
	return p.metadataDir
}

// LatestMetadata returns the path of the latest entry record.
func (p *Paths) LatestMetadata() string {
	return filepath.Join(p.metadataDir, latestFile)
}

// VersionHistory returns the path of the full history record.
func (p *Paths) VersionHistory() string {
	return filepath.Join(p.metadataDir, historyFile)
}

// Kernel resolves an untrusted image name to a path that is guaranteed to
// stay within the image directory, symlinks included.
func (p *Paths) Kernel(name string) (string, error) {
	if err := ValidateFilename(name); err != nil {
		return "", err
	}

	path, err := securejoin.SecureJoin(p.kernelsDir, name)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidFilename, err)
	}
	return path, nil
}

// ValidateFilename rejects empty names, dot segments, separators and NUL bytes.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return nil
}
