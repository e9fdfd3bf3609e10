package checksum

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const helloWorldDigest = "sha256:b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func TestVerify(t *testing.T) {
	assert.True(t, Verify([]byte("hello world"), helloWorldDigest))
}

func TestVerifyRejects(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"missing prefix", strings.TrimPrefix(helloWorldDigest, Prefix)},
		{"other algorithm", "sha512:" + strings.TrimPrefix(helloWorldDigest, Prefix)},
		{"uppercase hex", Prefix + strings.ToUpper(strings.TrimPrefix(helloWorldDigest, Prefix))},
		{"truncated", helloWorldDigest[:len(helloWorldDigest)-1]},
		{"different content", ComputeBytes([]byte("hello world!"))},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, Verify([]byte("hello world"), tt.expected))
		})
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	inputs := [][]byte{
		{},
		[]byte("a"),
		bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 5000),
	}

	for i, data := range inputs {
		t.Run(fmt.Sprintf("input-%d", i), func(t *testing.T) {
			sum := ComputeBytes(data)
			require.True(t, strings.HasPrefix(sum, Prefix))
			assert.True(t, Verify(data, sum))
		})
	}
}

func TestCompute(t *testing.T) {
	dir := t.TempDir()

	// Larger than one chunk so the streaming loop runs more than once.
	data := bytes.Repeat([]byte("0123456789"), 3*chunkSize/10+7)
	path := writeFile(t, dir, "zImage", data)

	sum, err := Compute(path)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("sha256:%x", sha256.Sum256(data)), sum)
	assert.True(t, Verify(data, sum))
}

func TestComputeMissingFile(t *testing.T) {
	sum, err := Compute(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Empty(t, sum)
}

type failingReader struct {
	reads int
}

func (r *failingReader) Read(p []byte) (int, error) {
	r.reads++
	if r.reads > 2 {
		return 0, errors.New("device went away")
	}
	return copy(p, "partial"), nil
}

func TestComputeReaderFailsPartway(t *testing.T) {
	sum, err := ComputeReader(&failingReader{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device went away")
	assert.Empty(t, sum)
}

func TestCacheReturnsFreshDigestAfterReplace(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "zImage", []byte("first content"))

	cache := NewCache(0, 0)

	first, err := cache.FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, ComputeBytes([]byte("first content")), first)
	assert.Equal(t, 1, cache.Len())

	again, err := cache.FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// Same size, different bytes: only the modification time changes.
	require.NoError(t, os.WriteFile(path, []byte("other content"), 0644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	replaced, err := cache.FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, ComputeBytes([]byte("other content")), replaced)
}

func TestCacheMissingFile(t *testing.T) {
	cache := NewCache(time.Minute, 4)
	_, err := cache.FileChecksum(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	assert.Equal(t, 0, cache.Len())
}

func TestDirect(t *testing.T) {
	path := writeFile(t, t.TempDir(), "img", []byte("hello world"))

	var calc Calculator = Direct{}
	sum, err := calc.FileChecksum(path)
	require.NoError(t, err)
	assert.Equal(t, helloWorldDigest, sum)
}
