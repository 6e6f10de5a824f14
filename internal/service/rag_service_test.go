package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

// --- Stubs ---

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
	last  string
}

func (e *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	e.last = text
	return e.vec, e.err
}

type stubStore struct {
	docs          []domain.Document
	err           error
	calls         int
	numCandidates int
	limit         int
	vector        []float32
}

func (s *stubStore) Search(_ context.Context, vector []float32, numCandidates, limit int) ([]domain.Document, error) {
	s.calls++
	s.vector = vector
	s.numCandidates = numCandidates
	s.limit = limit
	return s.docs, s.err
}

func (s *stubStore) Ping(context.Context) error { return nil }
func (s *stubStore) Close() error               { return nil }

type stubSummarizer struct {
	out         string
	err         error
	calls       int
	lastQuery   string
	lastContext string
}

func (s *stubSummarizer) Summarize(_ context.Context, query, context string) (string, error) {
	s.calls++
	s.lastQuery = query
	s.lastContext = context
	return s.out, s.err
}

func newTestService(emb *stubEmbedder, st *stubStore, sum Summarization) *RAGService {
	return NewRAGService(emb, st, sum, DefaultSearchConfig(), nil)
}

// --- Tests ---

func TestAnswer_EndToEndPlain(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{0.1, 0.2}}
	st := &stubStore{docs: []domain.Document{{
		Title:    domain.StringPtr("Deep Learning"),
		Authors:  domain.StringPtr("X"),
		Abstract: domain.StringPtr("Y"),
		Score:    0.87,
	}}}
	svc := newTestService(emb, st, Unavailable("no key"))

	out, err := svc.Answer(context.Background(), "neural networks", domain.ModePlain)
	require.NoError(t, err)
	assert.Equal(t, "Title: Deep Learning\nAuthors: X\nAbstract: Y\nJournal reference: N/A\n\n", out)
	assert.Equal(t, "neural networks", emb.last)
	assert.Equal(t, []float32{0.1, 0.2}, st.vector)
}

func TestAnswer_PreservesStoreOrder(t *testing.T) {
	st := &stubStore{docs: []domain.Document{
		{Title: domain.StringPtr("A"), Score: 0.9},
		{Title: domain.StringPtr("B"), Score: 0.8},
	}}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, st, Unavailable(""))

	out, err := svc.Answer(context.Background(), "q", domain.ModePlain)
	require.NoError(t, err)

	a, b := strings.Index(out, "Title: A"), strings.Index(out, "Title: B")
	require.GreaterOrEqual(t, a, 0)
	assert.Less(t, a, b)
	// three absent fields per document
	assert.Equal(t, 6, strings.Count(out, "N/A"))
}

func TestAnswer_LowerScoredFirstIsNotResorted(t *testing.T) {
	st := &stubStore{docs: []domain.Document{
		{Title: domain.StringPtr("low"), Score: 0.1},
		{Title: domain.StringPtr("high"), Score: 0.9},
	}}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, st, Unavailable(""))

	out, err := svc.Answer(context.Background(), "q", domain.ModePlain)
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "low"), strings.Index(out, "high"))
}

func TestAnswer_PassesFixedCounts(t *testing.T) {
	st := &stubStore{}
	cfg, err := NewSearchConfig(40, 7)
	require.NoError(t, err)
	svc := NewRAGService(&stubEmbedder{vec: []float32{1}}, st, Unavailable(""), cfg, nil)

	for i := 0; i < 2; i++ {
		_, err := svc.Answer(context.Background(), "q", domain.ModePlain)
		require.NoError(t, err)
		assert.Equal(t, 40, st.numCandidates)
		assert.Equal(t, 7, st.limit)
	}
}

func TestAnswer_InvalidQuery(t *testing.T) {
	for _, q := range []string{"", " ", "\n\t  "} {
		emb := &stubEmbedder{vec: []float32{1}}
		st := &stubStore{}
		svc := newTestService(emb, st, Unavailable(""))

		_, err := svc.Answer(context.Background(), q, domain.ModePlain)
		require.ErrorIs(t, err, domain.ErrInvalidQuery, "query %q", q)
		assert.Zero(t, emb.calls)
		assert.Zero(t, st.calls)
	}
}

func TestAnswer_QueryNotTransformed(t *testing.T) {
	emb := &stubEmbedder{vec: []float32{1}}
	svc := newTestService(emb, &stubStore{}, Unavailable(""))

	_, err := svc.Answer(context.Background(), "  padded Query ", domain.ModePlain)
	require.NoError(t, err)
	assert.Equal(t, "  padded Query ", emb.last)
}

func TestAnswer_EmbeddingFailure(t *testing.T) {
	emb := &stubEmbedder{err: errors.New("connection refused")}
	st := &stubStore{}
	svc := newTestService(emb, st, Unavailable(""))

	_, err := svc.Answer(context.Background(), "q", domain.ModePlain)
	require.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, emb.calls, "no retry")
	assert.Zero(t, st.calls)
}

func TestAnswer_EmptyEmbeddingIsFailure(t *testing.T) {
	svc := newTestService(&stubEmbedder{vec: nil}, &stubStore{}, Unavailable(""))

	_, err := svc.Answer(context.Background(), "q", domain.ModePlain)
	assert.ErrorIs(t, err, domain.ErrEmbedding)
}

func TestAnswer_SearchFailure(t *testing.T) {
	sum := &stubSummarizer{}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, &stubStore{err: errors.New("timeout")}, Available(sum))

	_, err := svc.Answer(context.Background(), "q", domain.ModeAugmented)
	require.ErrorIs(t, err, domain.ErrSearch)
	assert.NotErrorIs(t, err, domain.ErrEmbedding)
	assert.Zero(t, sum.calls)
}

func TestAnswer_AugmentedReturnsSummaryVerbatim(t *testing.T) {
	sum := &stubSummarizer{out: "  The answer.\n"}
	st := &stubStore{docs: []domain.Document{{Title: domain.StringPtr("A")}}}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, st, Available(sum))

	out, err := svc.Answer(context.Background(), "what", domain.ModeAugmented)
	require.NoError(t, err)
	assert.Equal(t, "  The answer.\n", out)
	assert.Equal(t, "what", sum.lastQuery)
	assert.Equal(t, FormatDocuments(st.docs), sum.lastContext)
}

func TestAnswer_EmptyResults(t *testing.T) {
	sum := &stubSummarizer{out: "nothing found"}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, &stubStore{}, Available(sum))

	out, err := svc.Answer(context.Background(), "q", domain.ModePlain)
	require.NoError(t, err)
	assert.Equal(t, "", out)
	assert.Zero(t, sum.calls)

	out, err = svc.Answer(context.Background(), "q", domain.ModeAugmented)
	require.NoError(t, err)
	assert.Equal(t, "nothing found", out)
	assert.Equal(t, 1, sum.calls)
	assert.Equal(t, "", sum.lastContext)
}

func TestAnswer_SummarizationFailure(t *testing.T) {
	sum := &stubSummarizer{err: errors.New("rate limited")}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, &stubStore{}, Available(sum))

	_, err := svc.Answer(context.Background(), "q", domain.ModeAugmented)
	assert.ErrorIs(t, err, domain.ErrSummarization)
}

func TestAnswer_AugmentedWithoutSummarizerFallsBackToContext(t *testing.T) {
	st := &stubStore{docs: []domain.Document{{Title: domain.StringPtr("A")}}}
	svc := newTestService(&stubEmbedder{vec: []float32{1}}, st, Unavailable("no key"))

	require.False(t, svc.CanSummarize())
	assert.Equal(t, "no key", svc.SummarizationReason())
	out, err := svc.Answer(context.Background(), "q", domain.ModeAugmented)
	require.NoError(t, err)
	assert.Equal(t, FormatDocuments(st.docs), out)
}

func TestSummarization(t *testing.T) {
	var zero Summarization
	assert.False(t, zero.IsAvailable())
	assert.Equal(t, ReasonNotConfigured, zero.Reason())

	assert.False(t, Available(nil).IsAvailable())

	u := Unavailable("missing OPENAI_API_KEY")
	_, ok := u.Summarizer()
	assert.False(t, ok)
	assert.Equal(t, "missing OPENAI_API_KEY", u.Reason())

	a := Available(&stubSummarizer{})
	s, ok := a.Summarizer()
	assert.True(t, ok)
	assert.NotNil(t, s)
	assert.Empty(t, a.Reason())
}
