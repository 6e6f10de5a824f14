package domain

import "errors"

var (
	// ErrInvalidQuery signals an empty or whitespace-only query.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbedding signals that the embedding provider failed or returned an unusable vector.
	ErrEmbedding = errors.New("embedding failed")
	// ErrSearch signals that the vector index failed or returned an unusable result.
	ErrSearch = errors.New("search failed")
	// ErrSummarization signals that the summarization provider failed.
	ErrSummarization = errors.New("summarization failed")
	// ErrSummarizerUnavailable signals an augmented request while summarization is unavailable.
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")
	// ErrConfiguration signals invalid settings or an unreachable backing store at startup.
	ErrConfiguration = errors.New("configuration error")
)
