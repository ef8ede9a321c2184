// Package subprocess implements watch.Fetcher by running the external crawler.
package subprocess

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// waitDelay bounds how long output pipes may stay open after the crawler is killed.
const waitDelay = 5 * time.Second

// URLPlaceholder is replaced in every crawler argument by the target URL.
const URLPlaceholder = "{url}"

// Config controls how the crawler is launched.
type Config struct {
	Origin     string
	SearchPath string

	Command string
	Args    []string
	WorkDir string
	// VirtualEnv points at the crawler's isolated dependency environment. When set,
	// VIRTUAL_ENV is exported and its bin directory is put first on PATH.
	VirtualEnv string
	// Env holds extra KEY=VALUE entries appended to the child environment.
	Env              []string
	InheritParentEnv bool

	Timeout         time.Duration
	MinInterval     time.Duration
	StderrTailBytes int
}

// Fetcher runs one crawler process per fetch and parses its stdout.
type Fetcher struct {
	cfg     Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New builds a Fetcher, resolving the working directory and virtualenv to absolute paths.
func New(cfg Config, logger *zap.Logger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.Command) == "" {
		return nil, fmt.Errorf("crawler command is required")
	}
	if cfg.Origin == "" {
		return nil, fmt.Errorf("catalog origin is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Minute
	}
	if cfg.StderrTailBytes <= 0 {
		cfg.StderrTailBytes = 2048
	}
	var err error
	if cfg.WorkDir != "" {
		if cfg.WorkDir, err = filepath.Abs(cfg.WorkDir); err != nil {
			return nil, fmt.Errorf("resolve crawler work dir: %w", err)
		}
	}
	if cfg.VirtualEnv != "" {
		if cfg.VirtualEnv, err = filepath.Abs(cfg.VirtualEnv); err != nil {
			return nil, fmt.Errorf("resolve crawler virtualenv: %w", err)
		}
	}
	limit := rate.Inf
	if cfg.MinInterval > 0 {
		limit = rate.Every(cfg.MinInterval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger,
	}, nil
}

// Fetch crawls the topic's listing and returns the parsed snapshot. Any non-zero exit,
// timeout, or unparsable output is reported as watch.ErrFetch.
func (f *Fetcher) Fetch(ctx context.Context, topic watch.Topic) (watch.ProductMap, error) {
	target := SearchURL(f.cfg.Origin, f.cfg.SearchPath, topic)
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: wait for crawl slot: %w", watch.ErrFetch, err)
	}

	runCtx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, f.command(), f.args(target)...)
	cmd.Dir = f.cfg.WorkDir
	cmd.Env = f.environ()
	cmd.WaitDelay = waitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	f.logger.Info("fetching", zap.String("url", target))
	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)
	if err != nil {
		tail := tailString(stderr.Bytes(), f.cfg.StderrTailBytes)
		switch {
		case ctx.Err() != nil:
			return nil, fmt.Errorf("%w: crawl canceled: %w", watch.ErrFetch, ctx.Err())
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: crawler timed out after %s: %s", watch.ErrFetch, f.cfg.Timeout, tail)
		default:
			return nil, fmt.Errorf("%w: run crawler: %w: %s", watch.ErrFetch, err, tail)
		}
	}

	products, skipped, err := Parse(stdout.Bytes(), f.cfg.Origin)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", watch.ErrFetch, err)
	}
	if skipped > 0 {
		f.logger.Warn("crawler emitted products without id", zap.Int("skipped", skipped), zap.String("url", target))
	}
	f.logger.Debug("fetched",
		zap.String("url", target),
		zap.Int("products", len(products)),
		zap.Int("stdout_bytes", stdout.Len()),
		zap.Duration("elapsed", elapsed),
	)
	return products, nil
}

// command prefers the virtualenv's copy of a bare command name, the way a shell with the
// child's PATH would resolve it.
func (f *Fetcher) command() string {
	name := f.cfg.Command
	if f.cfg.VirtualEnv == "" || strings.ContainsRune(name, filepath.Separator) {
		return name
	}
	candidate := filepath.Join(f.cfg.VirtualEnv, "bin", name)
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate
	}
	return name
}

func (f *Fetcher) args(target string) []string {
	out := make([]string, len(f.cfg.Args))
	for i, arg := range f.cfg.Args {
		out[i] = strings.ReplaceAll(arg, URLPlaceholder, target)
	}
	return out
}

func (f *Fetcher) environ() []string {
	var env []string
	if f.cfg.InheritParentEnv {
		env = append(env, os.Environ()...)
	}
	path := os.Getenv("PATH")
	if f.cfg.VirtualEnv != "" {
		env = append(env, "VIRTUAL_ENV="+f.cfg.VirtualEnv)
		path = filepath.Join(f.cfg.VirtualEnv, "bin") + string(os.PathListSeparator) + path
	}
	env = append(env, "PATH="+path)
	return append(env, f.cfg.Env...)
}

func tailString(b []byte, limit int) string {
	b = bytes.TrimSpace(b)
	if len(b) > limit {
		b = b[len(b)-limit:]
	}
	return string(b)
}
