package server

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/surugaya-watcher/internal/config"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Watch: config.WatchConfig{
			IntervalMinutes: 15,
			Topics:          []watch.Topic{{Keyword: "figure"}},
		},
		Catalog: config.CatalogConfig{Origin: "https://www.suruga-ya.com", SearchPath: "/en/products"},
		Crawler: config.CrawlerConfig{Command: "python", TimeoutSeconds: 60},
		Webhook: config.WebhookConfig{URL: "https://discord.com/api/webhooks/1/abc", BatchSize: 10, TimeoutSeconds: 5},
		State:   config.StateConfig{Backend: "memory"},
	}
}

func TestBuildWithMemoryBackend(t *testing.T) {
	t.Parallel()

	app, err := build(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, app.Scheduler())
	require.Len(t, app.Scheduler().Topics(), 1)
	app.Close()
}

func TestBuildCreatesLocalStateDir(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: "local", Dir: filepath.Join(t.TempDir(), "state")}

	app, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	info, err := os.Stat(cfg.State.Dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}

func TestBuildFailsOnUnusableStateDir(t *testing.T) {
	t.Parallel()

	file := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	cfg := testConfig(t)
	cfg.State = config.StateConfig{Backend: "local", Dir: file}

	_, err := build(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, watch.ErrStorage)
}

func TestBuildRejectsUnknownBackend(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	cfg.State.Backend = "redis"
	_, err := build(context.Background(), cfg, zap.NewNop())
	require.ErrorIs(t, err, watch.ErrInvalidConfig)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	// A crawler that always fails keeps the test hermetic; bootstrap logs and moves on.
	cfg.Crawler.Command = filepath.Join(t.TempDir(), "missing-crawler")
	cfg.Crawler.VirtualEnv = ""
	app, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	require.Eventually(t, app.Scheduler().Ready, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop after cancel")
	}
}

func TestRunFailsWhenPortIsTaken(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", ":0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig(t)
	cfg.Crawler.Command = filepath.Join(t.TempDir(), "missing-crawler")
	cfg.Crawler.VirtualEnv = ""
	cfg.Server = config.ServerConfig{Enabled: true, Port: ln.Addr().(*net.TCPAddr).Port}
	app, err := build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- app.Run(context.Background()) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "http server")
	case <-time.After(5 * time.Second):
		t.Fatal("app kept running after the http server failed")
	}
}
