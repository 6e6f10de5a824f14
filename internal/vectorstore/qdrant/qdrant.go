package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"semsearch/internal/domain"
)

const (
	DefaultCollection = "articles"
	upsertBatch       = 256
)

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance; Replace recreates the collection.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collection := cfg.Collection
	if collection == "" {
		collection = DefaultCollection
	}
	return &Storage{
		url:        strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

type payload struct {
	Title      *string `json:"title,omitempty"`
	Authors    *string `json:"authors,omitempty"`
	Abstract   *string `json:"abstract,omitempty"`
	JournalRef *string `json:"journal-ref,omitempty"`
}

// Search asks Qdrant for the limit nearest points. numCandidates is passed
// as hnsw_ef, the size of the HNSW candidate list.
func (s *Storage) Search(ctx context.Context, vector []float32, numCandidates, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
		"params":       map[string]any{"hnsw_ef": numCandidates},
	}
	var resp struct {
		Result []struct {
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL()+"/points/search", req, &resp); err != nil {
		return nil, err
	}
	results := make([]domain.Document, 0, len(resp.Result))
	for _, r := range resp.Result {
		results = append(results, domain.Document{
			Title:      r.Payload.Title,
			Authors:    r.Payload.Authors,
			Abstract:   r.Payload.Abstract,
			JournalRef: r.Payload.JournalRef,
			Score:      r.Score,
		})
	}
	return results, nil
}

// Replace drops the collection, recreates it sized to the records' vectors
// and upserts every record under a fresh id.
func (s *Storage) Replace(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return errors.New("no records")
	}
	dim := len(records[0].Vector)
	if dim == 0 {
		return errors.New("record 0 has no embedding")
	}
	if err := s.do(ctx, http.MethodDelete, s.collectionURL(), nil, nil); err != nil && !isNotFound(err) {
		return fmt.Errorf("drop collection: %w", err)
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	for start := 0; start < len(records); start += upsertBatch {
		end := min(start+upsertBatch, len(records))
		points := make([]point, 0, end-start)
		for i := start; i < end; i++ {
			if len(records[i].Vector) != dim {
				return fmt.Errorf("record %d: vector dimension %d, expected %d", i, len(records[i].Vector), dim)
			}
			points = append(points, point{
				ID:     uuid.NewString(),
				Vector: records[i].Vector,
				Payload: payload{
					Title:      records[i].Title,
					Authors:    records[i].Authors,
					Abstract:   records[i].Abstract,
					JournalRef: records[i].JournalRef,
				},
			})
		}
		if err := s.do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", map[string]any{"points": points}, nil); err != nil {
			return fmt.Errorf("upsert points %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

// Ping checks that the collection exists.
func (s *Storage) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, s.collectionURL(), nil, nil)
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) collectionURL() string {
	return fmt.Sprintf("%s/collections/%s", s.url, s.collection)
}

type statusError struct {
	method string
	url    string
	code   int
	status string
	body   string
}

func (e *statusError) Error() string {
	msg := fmt.Sprintf("qdrant %s %s failed: %s", e.method, e.url, e.status)
	if e.body != "" {
		msg += ": " + e.body
	}
	return msg
}

func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusNotFound
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &statusError{method: method, url: url, code: resp.StatusCode, status: resp.Status, body: strings.TrimSpace(string(msg))}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
