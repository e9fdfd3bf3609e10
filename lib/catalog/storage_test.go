package catalog

import (
	"os"
	"testing"
	"time"

	"github.com/onkernel/kernel-ota/lib/paths"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHistoryNullVersions(t *testing.T) {
	p := paths.New(t.TempDir(), t.TempDir())
	require.NoError(t, os.WriteFile(p.VersionHistory(), []byte(`{"versions":null}`), 0644))

	history, err := readHistory(p)
	require.NoError(t, err)
	assert.NotNil(t, history.Versions)
	assert.Equal(t, NoVersion, history.Latest)
}

func TestReadHistoryInvalidEntry(t *testing.T) {
	p := paths.New(t.TempDir(), t.TempDir())
	require.NoError(t, os.WriteFile(p.VersionHistory(), []byte(`{"versions":[{"version":"1.0.0"}],"latest":"1.0.0"}`), 0644))

	_, err := readHistory(p)
	require.ErrorIs(t, err, ErrInvalidMetadata)
}

func TestWriteCatalogCreatesMetadataDir(t *testing.T) {
	root := t.TempDir()
	p := paths.New(root+"/kernels", root+"/nested/metadata")

	entry := newEntry(AddKernelRequest{Version: "1.0.0", KernelFile: "zImage"}, 10, digestOf(zImage), time.Now())
	history := &VersionHistory{Versions: []KernelEntry{entry}, Latest: entry.Version}
	require.NoError(t, writeCatalog(p, &entry, history))

	latest, err := readLatest(p)
	require.NoError(t, err)
	assert.Equal(t, entry.Checksum, latest.Checksum)

	got, err := readHistory(p)
	require.NoError(t, err)
	assert.Equal(t, "1.0.0", got.Latest)
	require.Len(t, got.Versions, 1)
	assert.True(t, entry.ReleaseDate.Equal(got.Versions[0].ReleaseDate))

	entries, err := os.ReadDir(p.MetadataDir())
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestStageJSONLeavesFinalUntouched(t *testing.T) {
	p := paths.New(t.TempDir(), t.TempDir())
	require.NoError(t, os.WriteFile(p.LatestMetadata(), []byte("old"), 0644))

	staged, err := stageJSON(p.LatestMetadata(), map[string]string{"version": "new"})
	require.NoError(t, err)

	data, err := os.ReadFile(p.LatestMetadata())
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	staged.discard()
	_, err = os.Stat(staged.temp)
	assert.True(t, os.IsNotExist(err))
}

func TestReadHistoryLatestMustBeListed(t *testing.T) {
	entry := `{"version":"1.0.0","kernel_file":"zImage","file_size":10,"checksum":"sha256:abc","release_date":"2024-01-01T00:00:00Z","description":"","download_url":"/kernels/zImage"}`

	tests := []struct {
		name    string
		content string
		wantErr bool
	}{
		{"empty with dangling latest", `{"versions":[],"latest":"9.9"}`, true},
		{"entries with empty latest", `{"versions":[` + entry + `],"latest":""}`, true},
		{"entries with unknown latest", `{"versions":[` + entry + `],"latest":"2.0.0"}`, true},
		{"entries with listed latest", `{"versions":[` + entry + `],"latest":"1.0.0"}`, false},
		{"empty with none", `{"versions":[],"latest":"none"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := paths.New(t.TempDir(), t.TempDir())
			require.NoError(t, os.WriteFile(p.VersionHistory(), []byte(tt.content), 0644))

			_, err := readHistory(p)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMetadata)
				return
			}
			require.NoError(t, err)
		})
	}
}
