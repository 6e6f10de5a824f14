package memory

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"semsearch/internal/domain"
	"semsearch/internal/loader"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
// When a path is set, the collection is read from and written to a JSON-lines snapshot.
type Storage struct {
	mu      sync.RWMutex
	path    string
	records []domain.Record
}

// NewStorage creates an empty, unbacked store.
func NewStorage() *Storage { return &Storage{} }

// Open loads the snapshot at path. A missing file yields an empty store that
// will create the file on the next Replace.
func Open(path string) (*Storage, error) {
	s := &Storage{path: path}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()
	records, err := loader.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", path, err)
	}
	if err := checkDimensions(records); err != nil {
		return nil, err
	}
	s.records = records
	return s, nil
}

// Ping always succeeds.
func (s *Storage) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Storage) Close() error { return nil }

// Search scores every record, keeps the numCandidates best and returns up to
// limit of them, highest similarity first.
func (s *Storage) Search(_ context.Context, vector []float32, numCandidates, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
	}
	scores := make([]scored, 0, len(s.records))
	for i := range s.records {
		if len(s.records[i].Vector) != len(vector) {
			return nil, fmt.Errorf("vector dimension mismatch: query %d, stored %d", len(vector), len(s.records[i].Vector))
		}
		scores = append(scores, scored{i, cosine(vector, s.records[i].Vector)})
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	pool := scores[:min(len(scores), max(numCandidates, limit))]
	pool = pool[:min(len(pool), limit)]
	out := make([]domain.Document, 0, len(pool))
	for _, sc := range pool {
		doc := s.records[sc.idx].Document
		doc.Score = sc.score
		out = append(out, doc)
	}
	return out, nil
}

// Replace swaps the whole collection and rewrites the snapshot, if any.
func (s *Storage) Replace(_ context.Context, records []domain.Record) error {
	for i := range records {
		if len(records[i].Vector) == 0 {
			return fmt.Errorf("record %d has no embedding", i)
		}
	}
	if err := checkDimensions(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.path != "" {
		if err := writeSnapshot(s.path, records); err != nil {
			return err
		}
	}
	s.records = append([]domain.Record(nil), records...)
	return nil
}

// Len returns the number of stored records.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func writeSnapshot(path string, records []domain.Record) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := loader.Encode(f, records); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Atomic rename
	return os.Rename(tmp, path)
}

func checkDimensions(records []domain.Record) error {
	for i := 1; i < len(records); i++ {
		if len(records[i].Vector) != len(records[0].Vector) {
			return fmt.Errorf("record %d: vector dimension %d, expected %d", i, len(records[i].Vector), len(records[0].Vector))
		}
	}
	return nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
