// Package checksum computes and verifies the content digests attached to
// kernel images, both in the catalog and on every download response.
package checksum

import (
	_ "crypto/sha256"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

// Prefix tags every digest produced by this package.
const Prefix = "sha256:"

// chunkSize is the read buffer used when streaming files into the hash.
const chunkSize = 8 * 1024

// Calculator produces the digest of a file on disk.
type Calculator interface {
	FileChecksum(path string) (string, error)
}

// Direct recomputes the digest from disk on every call.
type Direct struct{}

// FileChecksum implements Calculator.
func (Direct) FileChecksum(path string) (string, error) {
	return Compute(path)
}

// Compute streams the file at path through SHA-256 and returns "sha256:<hex>".
// On any error the partial hash state is discarded and "" is returned.
func Compute(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return ComputeReader(f)
}

// ComputeReader hashes everything read from r.
func ComputeReader(r io.Reader) (string, error) {
	digester := digest.SHA256.Digester()
	buf := make([]byte, chunkSize)

	hash := digester.Hash()
	for {
		n, err := r.Read(buf)
		if n > 0 {
			hash.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
	}

	return digester.Digest().String(), nil
}

// ComputeBytes returns the digest of an in-memory byte slice.
func ComputeBytes(data []byte) string {
	return digest.SHA256.FromBytes(data).String()
}

// Verify reports whether expected is the sha256 digest of data. It never
// errors: an untagged, malformed or mismatching digest yields false.
func Verify(data []byte, expected string) bool {
	if !strings.HasPrefix(expected, Prefix) {
		return false
	}

	d, err := digest.Parse(expected)
	if err != nil {
		return false
	}

	return d == digest.SHA256.FromBytes(data)
}
