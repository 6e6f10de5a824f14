package loader

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"semsearch/internal/domain"
)

const defaultBatchSize = 32

// Loader embeds records that lack a vector and replaces the target collection.
type Loader struct {
	embedder  domain.Embedder
	target    domain.Loader
	batchSize int
	logger    *zap.Logger
}

// New creates a loader. batchSize <= 0 selects the default.
func New(embedder domain.Embedder, target domain.Loader, batchSize int, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{embedder: embedder, target: target, batchSize: batchSize, logger: logger}
}

// Load fills in missing embeddings and replaces the collection with records.
// It returns the number of records that had to be embedded.
func (l *Loader) Load(ctx context.Context, records []domain.Record) (int, error) {
	if len(records) == 0 {
		return 0, errors.New("no records to load")
	}
	missing := missingEmbeddings(records)
	if len(missing) > 0 && l.embedder == nil {
		return 0, fmt.Errorf("%d records have no embedding and no embedder is configured", len(missing))
	}

	for start := 0; start < len(missing); start += l.batchSize {
		end := min(start+l.batchSize, len(missing))
		batch := missing[start:end]
		texts := make([]string, len(batch))
		for j, idx := range batch {
			texts[j] = EmbeddingText(records[idx].Document)
		}
		vecs, err := l.embed(ctx, texts)
		if err != nil {
			return 0, fmt.Errorf("%w: records %d-%d: %w", domain.ErrEmbedding, batch[0], batch[len(batch)-1], err)
		}
		for j, idx := range batch {
			records[idx].Vector = vecs[j]
		}
		l.logger.Info("embedded batch", zap.Int("done", end), zap.Int("total", len(missing)))
	}

	if err := l.target.Replace(ctx, records); err != nil {
		return 0, fmt.Errorf("replace collection: %w", err)
	}
	l.logger.Info("collection replaced", zap.Int("records", len(records)), zap.Int("embedded", len(missing)))
	return len(missing), nil
}

// NeedsEmbedding reports whether any record lacks a precomputed embedding.
func NeedsEmbedding(records []domain.Record) bool {
	return len(missingEmbeddings(records)) > 0
}

func missingEmbeddings(records []domain.Record) []int {
	var missing []int
	for i := range records {
		if len(records[i].Vector) == 0 {
			missing = append(missing, i)
		}
	}
	return missing
}

func (l *Loader) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if be, ok := l.embedder.(domain.BatchEmbedder); ok {
		vecs, err := be.BatchEmbed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(vecs) != len(texts) {
			return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(vecs))
		}
		return vecs, nil
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := l.embedder.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// EmbeddingText is the text embedded for a document: its title and abstract.
func EmbeddingText(d domain.Document) string {
	var parts []string
	if d.Title != nil {
		parts = append(parts, strings.TrimSpace(*d.Title))
	}
	if d.Abstract != nil {
		parts = append(parts, strings.TrimSpace(*d.Abstract))
	}
	return strings.Join(parts, "\n")
}
