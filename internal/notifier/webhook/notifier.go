package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/surugaya-watcher/internal/metrics"
	"github.com/JakeFAU/surugaya-watcher/internal/watch"
)

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Config controls webhook delivery.
type Config struct {
	URL       string
	BatchSize int
	Timeout   time.Duration
	// PostsPerSecond paces consecutive POSTs; zero or less disables pacing.
	PostsPerSecond float64
	Branding       Branding
}

// Notifier posts cards to the webhook, one batch at a time.
type Notifier struct {
	cfg     Config
	client  *http.Client
	clock   watch.Clock
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ watch.Notifier = (*Notifier)(nil)

// New wires a Notifier. A nil client gets one with cfg.Timeout.
func New(cfg Config, client *http.Client, clock watch.Clock, logger *zap.Logger) (*Notifier, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be > 0")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := rate.Inf
	if cfg.PostsPerSecond > 0 {
		limit = rate.Limit(cfg.PostsPerSecond)
	}
	return &Notifier{
		cfg:     cfg,
		client:  client,
		clock:   clock,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("webhook"),
	}, nil
}

// Notify formats products and posts them in order. The first failed batch aborts the rest and
// is reported as a *watch.DeliveryError; batches already sent stay sent.
func (n *Notifier) Notify(ctx context.Context, products []watch.Product) error {
	if len(products) == 0 {
		return nil
	}
	now := n.clock.Now()
	embeds := make([]Embed, len(products))
	for i, p := range products {
		embeds[i] = Format(p, n.cfg.Branding, now)
	}

	batches := Batch(embeds, n.cfg.BatchSize)
	delivered := 0
	for i, batch := range batches {
		if err := n.limiter.Wait(ctx); err != nil {
			return &watch.DeliveryError{Batch: i, Batches: len(batches), Delivered: delivered, Err: err}
		}
		status, err := n.post(ctx, batch)
		if err != nil {
			metrics.ObserveWebhookBatch("failed")
			n.logger.Warn("webhook batch failed",
				zap.Int("batch", i+1),
				zap.Int("batches", len(batches)),
				zap.Int("delivered", delivered),
				zap.Int("status", status),
				zap.Error(err),
			)
			return &watch.DeliveryError{Batch: i, Batches: len(batches), Delivered: delivered, Status: status, Err: err}
		}
		metrics.ObserveWebhookBatch("delivered")
		delivered += len(batch)
		n.logger.Debug("webhook batch delivered",
			zap.Int("batch", i+1),
			zap.Int("batches", len(batches)),
			zap.Int("cards", len(batch)),
		)
	}
	return nil
}

func (n *Notifier) post(ctx context.Context, batch []Embed) (int, error) {
	body, err := json.Marshal(Message{Embeds: batch, Attachments: []string{}})
	if err != nil {
		return 0, fmt.Errorf("marshal message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("post webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("unexpected status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return resp.StatusCode, nil
}
