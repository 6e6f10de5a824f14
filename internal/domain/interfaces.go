package domain

import "context"

// Document is a record retrieved from the vector index. Any of the text
// fields may be absent; a nil field is rendered as a placeholder.
type Document struct {
	Title      *string
	Authors    *string
	Abstract   *string
	JournalRef *string
	Score      float64
}

// Record is a document together with its precomputed embedding, as written
// by a bulk load.
type Record struct {
	Document
	Vector []float32
}

// Embedder converts free text into a numeric vector representation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// BatchEmbedder vectorizes multiple texts in a single call.
type BatchEmbedder interface {
	BatchEmbed(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore runs approximate nearest-neighbour search over stored documents.
// Results are ordered by the store; callers must not reorder them.
type VectorStore interface {
	Search(ctx context.Context, vector []float32, numCandidates, limit int) ([]Document, error)
	Ping(ctx context.Context) error
	Close() error
}

// Loader replaces the whole collection with a new set of records.
type Loader interface {
	Replace(ctx context.Context, records []Record) error
}

// Summarizer answers a query from a block of retrieved context text.
type Summarizer interface {
	Summarize(ctx context.Context, query, context string) (string, error)
}

// StringPtr returns a pointer to s. Handy for building documents by hand.
func StringPtr(s string) *string { return &s }
