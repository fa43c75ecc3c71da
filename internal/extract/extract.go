package extract

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrExtractionFailed means every extractor in the chain failed or produced
// no text.
var ErrExtractionFailed = errors.New("extract: no extractor produced text")

// Extractor turns raw document bytes into per-page text.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, data []byte) ([]string, error)
}

// Chain tries extractors in order and returns the first non-empty result.
// A result whose pages are all blank counts as a failure so the next
// extractor gets its turn.
type Chain struct {
	extractors []Extractor
	log        *zap.Logger
}

func NewChain(log *zap.Logger, extractors ...Extractor) *Chain {
	if log == nil {
		log = zap.NewNop()
	}
	return &Chain{extractors: extractors, log: log}
}

func (c *Chain) Extract(ctx context.Context, data []byte) ([]string, error) {
	for _, ex := range c.extractors {
		pages, err := ex.Extract(ctx, data)
		if err != nil {
			c.log.Warn("extractor failed, trying next",
				zap.String("extractor", ex.Name()),
				zap.Error(err))
			continue
		}
		if !hasText(pages) {
			c.log.Warn("extractor produced no text, trying next",
				zap.String("extractor", ex.Name()))
			continue
		}
		return pages, nil
	}
	return nil, ErrExtractionFailed
}

func hasText(pages []string) bool {
	for _, p := range pages {
		for _, r := range p {
			if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
				return true
			}
		}
	}
	return false
}
