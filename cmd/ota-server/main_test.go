package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/onkernel/kernel-ota/cmd/ota-server/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a config pointing at fresh directories and returns its path.
func writeTestConfig(t *testing.T) (string, string) {
	t.Helper()

	root := t.TempDir()
	kernels := filepath.Join(root, "kernels")
	content := fmt.Sprintf(`
[server]
host = "127.0.0.1"
port = 8080

[paths]
kernels_dir = %q
metadata_dir = %q

[discovery]
enabled = false
`, kernels, filepath.Join(root, "metadata"))

	path := filepath.Join(root, "server.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path, kernels
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddKernelAndList(t *testing.T) {
	cfgPath, kernels := writeTestConfig(t)
	require.NoError(t, os.MkdirAll(kernels, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(kernels, "zImage"), []byte("0123456789"), 0644))

	out, err := runCLI(t, "add-kernel", "--config", cfgPath,
		"--version", "1.0.0", "--file", "zImage", "--description", "initial release")
	require.NoError(t, err)
	assert.Equal(t, "Successfully added kernel version: 1.0.0\n", out)

	out, err = runCLI(t, "list", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Available kernel versions:\nLatest: 1.0.0\n")
	assert.Contains(t, out, "Version: 1.0.0")
	assert.Contains(t, out, "  File: zImage\n")
	assert.Contains(t, out, "  Size: 10 bytes")
	assert.Contains(t, out, " UTC\n")
	assert.Contains(t, out, "  Description: initial release\n")
}

func TestListEmpty(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	out, err := runCLI(t, "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "Available kernel versions:\nLatest: none\n\n", out)
}

func TestAddKernelMissingFile(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	_, err := runCLI(t, "add-kernel", "--config", cfgPath, "--version", "1.0.0", "--file", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kernel file not found")
}

func TestAddKernelRequiresConfig(t *testing.T) {
	_, err := runCLI(t, "add-kernel", "--config", filepath.Join(t.TempDir(), "missing.toml"),
		"--version", "1.0.0", "--file", "zImage")
	require.ErrorIs(t, err, config.ErrConfigNotFound)
}

func TestAddKernelRequiresFlags(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)

	_, err := runCLI(t, "add-kernel", "--config", cfgPath, "--file", "zImage")
	require.Error(t, err)
}

func TestServe(t *testing.T) {
	cfg := config.Default()
	cfg.Discovery.Enabled = false
	cfg.Paths.KernelsDir = t.TempDir()
	cfg.Paths.MetadataDir = t.TempDir()

	app, cleanup, err := initializeApp(context.Background(), cfg)
	require.NoError(t, err)
	defer cleanup()
	app.Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	assert.Nil(t, app.Announcer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, app, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
