package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"studyrag/internal/providers"
	"studyrag/internal/util"

	"golang.org/x/sync/errgroup"
)

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	MaxChars   int
	Dimension  int
}

type Client struct {
	provider providers.EmbeddingProvider
	opts     Options
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

func NewClient(provider providers.EmbeddingProvider, opts Options, logger *slog.Logger) *Client {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = 0
	}
	if opts.MaxChars <= 0 {
		opts.MaxChars = 8000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{provider: provider, opts: opts, logger: logger, sleep: sleepCtx}
}

// Embed returns one vector per input, in input order. A position is nil when
// that item failed; the error is non-nil only when ctx ends.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += c.opts.BatchSize {
		if start > 0 && c.opts.BatchDelay > 0 {
			if err := c.sleep(ctx, c.opts.BatchDelay); err != nil {
				return out, err
			}
		}
		end := start + c.opts.BatchSize
		if end > len(texts) {
			end = len(texts)
		}

		var g errgroup.Group
		g.SetLimit(c.opts.BatchSize)
		for i := start; i < end; i++ {
			g.Go(func() error {
				vec, err := c.embed(ctx, texts[i])
				if err != nil {
					c.logger.Warn("embedding failed", "index", i, "error_type", providers.ClassifyError(err), "err", err)
					return nil
				}
				out[i] = vec
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return out, err
		}
	}
	return out, nil
}

// EmbedOne embeds a single text without any pacing.
func (c *Client) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	return c.embed(ctx, text)
}

func (c *Client) embed(ctx context.Context, text string) ([]float32, error) {
	vecs, _, err := c.provider.Embed(ctx, providers.EmbedRequest{
		Operation: "embed",
		Inputs:    []string{util.TruncateRunes(text, c.opts.MaxChars)},
		Dimension: c.opts.Dimension,
	})
	if err != nil {
		return nil, fmt.Errorf("embed text: %w", err)
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return nil, fmt.Errorf("embed text: provider returned %d vectors", len(vecs))
	}
	return vecs[0], nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
