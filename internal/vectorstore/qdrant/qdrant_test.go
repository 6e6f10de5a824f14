package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func newServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Storage, *[]recorded) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{method: r.Method, path: r.URL.Path}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		mu.Lock()
		calls = append(calls, rec)
		mu.Unlock()
		assert.Equal(t, "secret", r.Header.Get("api-key"))
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return NewStorage(Config{URL: srv.URL + "/", APIKey: "secret"}), &calls
}

func TestSearch(t *testing.T) {
	s, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":[
			{"id":"a","score":0.91,"payload":{"title":"Attention","authors":"Vaswani","abstract":"Transformers.","journal-ref":"NeurIPS"}},
			{"id":"b","score":0.5,"payload":{"title":"Untitled draft"}}
		]}`))
	})

	docs, err := s.Search(context.Background(), []float32{0.1, 0.2}, 150, 2)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "Attention", *docs[0].Title)
	assert.Equal(t, "NeurIPS", *docs[0].JournalRef)
	assert.InDelta(t, 0.91, docs[0].Score, 1e-9)
	assert.Nil(t, docs[1].Authors)
	assert.Nil(t, docs[1].JournalRef)

	require.Len(t, *calls, 1)
	c := (*calls)[0]
	assert.Equal(t, http.MethodPost, c.method)
	assert.Equal(t, "/collections/articles/points/search", c.path)
	assert.Equal(t, float64(2), c.body["limit"])
	assert.Equal(t, true, c.body["with_payload"])
	assert.Equal(t, map[string]any{"hnsw_ef": float64(150)}, c.body["params"])
}

func TestSearch_HTTPError(t *testing.T) {
	s, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"status":{"error":"Not found: Collection"}}`, http.StatusNotFound)
	})
	_, err := s.Search(context.Background(), []float32{1}, 10, 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "Not found")
}

func TestReplace(t *testing.T) {
	s, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"result":true}`))
	})

	records := []domain.Record{
		{Document: domain.Document{Title: domain.StringPtr("A")}, Vector: []float32{1, 0, 0}},
		{Document: domain.Document{Title: domain.StringPtr("B"), JournalRef: domain.StringPtr("J")}, Vector: []float32{0, 1, 0}},
	}
	require.NoError(t, s.Replace(context.Background(), records))

	require.Len(t, *calls, 3)
	assert.Equal(t, http.MethodDelete, (*calls)[0].method)
	create := (*calls)[1]
	assert.Equal(t, http.MethodPut, create.method)
	assert.Equal(t, "/collections/articles", create.path)
	assert.Equal(t, map[string]any{"size": float64(3), "distance": "Cosine"}, create.body["vectors"])

	upsert := (*calls)[2]
	assert.Equal(t, "/collections/articles/points", upsert.path)
	points := upsert.body["points"].([]any)
	require.Len(t, points, 2)
	p := points[1].(map[string]any)
	_, err := uuid.Parse(p["id"].(string))
	assert.NoError(t, err)
	assert.Equal(t, map[string]any{"title": "B", "journal-ref": "J"}, p["payload"])
}

func TestReplace_Validation(t *testing.T) {
	s, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {})
	assert.Error(t, s.Replace(context.Background(), nil))
	assert.Error(t, s.Replace(context.Background(), []domain.Record{{}}))
	assert.Empty(t, *calls)

	err := s.Replace(context.Background(), []domain.Record{{Vector: []float32{1, 2}}, {Vector: []float32{1}}})
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	s, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"result":{}}`))
	})
	require.NoError(t, s.Ping(context.Background()))
	assert.Equal(t, "/collections/articles", (*calls)[0].path)
	assert.NoError(t, s.Close())
}
