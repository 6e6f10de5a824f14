package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"semsearch/internal/domain"
	"semsearch/internal/metrics"
)

// RAGService embeds a query, retrieves the nearest documents and optionally
// summarizes them. Search counts are fixed for the lifetime of the service.
type RAGService struct {
	embedder      domain.Embedder
	store         domain.VectorStore
	summarization Summarization
	cfg           SearchConfig
	logger        *zap.Logger
}

// NewRAGService wires the pipeline. A nil logger is replaced with a no-op one.
func NewRAGService(embedder domain.Embedder, store domain.VectorStore, summarization Summarization, cfg SearchConfig, logger *zap.Logger) *RAGService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		embedder:      embedder,
		store:         store,
		summarization: summarization,
		cfg:           cfg,
		logger:        logger,
	}
}

// CanSummarize reports whether augmented answers can be produced.
func (s *RAGService) CanSummarize() bool { return s.summarization.IsAvailable() }

// SummarizationReason explains why CanSummarize is false. Empty otherwise.
func (s *RAGService) SummarizationReason() string { return s.summarization.Reason() }

// Config returns the search counts this service was built with.
func (s *RAGService) Config() SearchConfig { return s.cfg }

// Answer runs one request. In plain mode, or when no summarizer is configured,
// the formatted context itself is returned.
func (s *RAGService) Answer(ctx context.Context, query string, mode domain.Mode) (string, error) {
	if strings.TrimSpace(query) == "" {
		metrics.RequestsTotal.WithLabelValues(mode.String(), "invalid").Inc()
		return "", domain.ErrInvalidQuery
	}

	answer, err := s.answer(ctx, query, mode)
	if err != nil {
		metrics.RequestsTotal.WithLabelValues(mode.String(), "error").Inc()
		return "", err
	}
	metrics.RequestsTotal.WithLabelValues(mode.String(), "ok").Inc()
	return answer, nil
}

func (s *RAGService) answer(ctx context.Context, query string, mode domain.Mode) (string, error) {
	var vec []float32
	err := stage(metrics.StageEmbed, func() error {
		var err error
		vec, err = s.embedder.Embed(ctx, query)
		if err != nil {
			return err
		}
		if len(vec) == 0 {
			return errors.New("empty embedding")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
	}

	var docs []domain.Document
	err = stage(metrics.StageSearch, func() error {
		var err error
		docs, err = s.store.Search(ctx, vec, s.cfg.NumCandidates, s.cfg.NumResults)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSearch, err)
	}
	s.logger.Debug("retrieved documents",
		zap.Int("count", len(docs)),
		zap.Int("num_candidates", s.cfg.NumCandidates),
		zap.Int("num_results", s.cfg.NumResults),
	)

	retrieved := FormatDocuments(docs)

	summarizer, ok := s.summarization.Summarizer()
	if mode != domain.ModeAugmented || !ok {
		return retrieved, nil
	}

	var out string
	err = stage(metrics.StageSummarize, func() error {
		var err error
		out, err = summarizer.Summarize(ctx, query, retrieved)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarization, err)
	}
	return out, nil
}

func stage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.StageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.StageErrorsTotal.WithLabelValues(name).Inc()
	}
	return err
}
