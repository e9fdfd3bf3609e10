package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nrednav/cuid2"
	"github.com/onkernel/kernel-ota/lib/paths"
	"github.com/samber/lo"
)

// stagedFile is a fully written and synced temp file waiting to be renamed
// over its final path.
type stagedFile struct {
	temp  string
	final string
}

// stageJSON writes v as indented JSON to a uniquely named temp file next to
// final. Readers never see the temp file under the final name.
func stageJSON(final string, v any) (*stagedFile, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", filepath.Base(final), err)
	}

	tempPath := filepath.Join(filepath.Dir(final), "."+filepath.Base(final)+"."+cuid2.Generate()+".tmp")
	f, err := os.OpenFile(tempPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("create temp %s: %w", filepath.Base(final), err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("write temp %s: %w", filepath.Base(final), err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempPath)
		return nil, fmt.Errorf("sync temp %s: %w", filepath.Base(final), err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return nil, fmt.Errorf("close temp %s: %w", filepath.Base(final), err)
	}

	return &stagedFile{temp: tempPath, final: final}, nil
}

// publish atomically replaces the final file.
func (s *stagedFile) publish() error {
	if err := os.Rename(s.temp, s.final); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(s.final), err)
	}
	return nil
}

func (s *stagedFile) discard() {
	os.Remove(s.temp)
}

// writeCatalog publishes both records for one ingestion. Both are staged
// before either is renamed, so a marshal or write failure leaves the catalog
// untouched. If the latest record cannot be renamed after history already
// was, ErrInconsistentState is returned.
func writeCatalog(p *paths.Paths, latest *KernelEntry, history *VersionHistory) error {
	if err := os.MkdirAll(p.MetadataDir(), 0755); err != nil {
		return fmt.Errorf("create metadata directory: %w", err)
	}

	stagedHistory, err := stageJSON(p.VersionHistory(), history)
	if err != nil {
		return err
	}

	stagedLatest, err := stageJSON(p.LatestMetadata(), latest)
	if err != nil {
		stagedHistory.discard()
		return err
	}

	if err := stagedHistory.publish(); err != nil {
		stagedHistory.discard()
		stagedLatest.discard()
		return err
	}

	if err := stagedLatest.publish(); err != nil {
		stagedLatest.discard()
		return fmt.Errorf("%w: history lists %s as latest but latest record was not updated: %w",
			ErrInconsistentState, latest.Version, err)
	}

	return nil
}

// readLatest reads the latest record.
func readLatest(p *paths.Paths) (*KernelEntry, error) {
	data, err := os.ReadFile(p.LatestMetadata())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read latest metadata: %w", err)
	}

	var entry KernelEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: latest: %v", ErrInvalidMetadata, err)
	}
	if err := entry.validate(); err != nil {
		return nil, fmt.Errorf("latest: %w", err)
	}

	return &entry, nil
}

// readHistory reads the history record. A missing record is an empty catalog.
func readHistory(p *paths.Paths) (*VersionHistory, error) {
	data, err := os.ReadFile(p.VersionHistory())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return emptyHistory(), nil
		}
		return nil, fmt.Errorf("read version history: %w", err)
	}

	var history VersionHistory
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("%w: version history: %v", ErrInvalidMetadata, err)
	}

	if history.Versions == nil {
		history.Versions = []KernelEntry{}
	}
	for i := range history.Versions {
		if err := history.Versions[i].validate(); err != nil {
			return nil, fmt.Errorf("version history entry %d: %w", i, err)
		}
	}
	if len(history.Versions) == 0 && history.Latest == "" {
		history.Latest = NoVersion
	}
	if history.Latest != NoVersion && !lo.ContainsBy(history.Versions, func(e KernelEntry) bool {
		return e.Version == history.Latest
	}) {
		return nil, fmt.Errorf("%w: version history latest %q is not a listed version", ErrInvalidMetadata, history.Latest)
	}

	return &history, nil
}

// validate rejects records missing the fields every entry is written with.
func (e *KernelEntry) validate() error {
	switch {
	case e.Version == "":
		return fmt.Errorf("%w: missing version", ErrInvalidMetadata)
	case e.KernelFile == "":
		return fmt.Errorf("%w: missing kernel_file", ErrInvalidMetadata)
	case e.Checksum == "":
		return fmt.Errorf("%w: missing checksum", ErrInvalidMetadata)
	case e.ReleaseDate.IsZero():
		return fmt.Errorf("%w: missing release_date", ErrInvalidMetadata)
	}
	return nil
}
