package redis

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"

	"github.com/redis/rueidis"

	"semsearch/internal/domain"
)

const (
	fieldTitle      = "title"
	fieldAuthors    = "authors"
	fieldAbstract   = "abstract"
	fieldJournalRef = "journal_ref"
	fieldEmbedding  = "embedding"
	fieldScore      = "score"
)

// Search runs a KNN query via FT.SEARCH. numCandidates becomes EF_RUNTIME.
func (s *Store) Search(ctx context.Context, vector []float32, numCandidates, limit int) ([]domain.Document, error) {
	if len(vector) == 0 {
		return nil, errors.New("vector is required")
	}
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	cmd := s.b().Arbitrary("FT.SEARCH").Args(searchArgs(s.index, vector, numCandidates, limit)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, fmt.Errorf("ft.search %s: %w", s.index, err)
	}
	return parseKNNResult(raw)
}

func searchArgs(index string, vector []float32, numCandidates, limit int) []string {
	query := fmt.Sprintf("*=>[KNN %d @%s $BLOB EF_RUNTIME %d AS %s]", limit, fieldEmbedding, max(numCandidates, limit), fieldScore)
	return []string{
		index, query,
		"RETURN", "5", fieldTitle, fieldAuthors, fieldAbstract, fieldJournalRef, fieldScore,
		"SORTBY", fieldScore,
		"LIMIT", "0", strconv.Itoa(limit),
		"PARAMS", "2", "BLOB", vectorToBytes(vector),
		"DIALECT", "2",
	}
}

// parseKNNResult reads the RESP2 2-stride layout [total, key1, fields1, key2, fields2, ...].
func parseKNNResult(raw []rueidis.RedisMessage) ([]domain.Document, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	docs := make([]domain.Document, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}
		docs = append(docs, toDocument(parseFieldPairs(fields)))
	}
	sort.SliceStable(docs, func(i, j int) bool { return docs[i].Score > docs[j].Score })
	return docs, nil
}

func toDocument(m map[string]string) domain.Document {
	doc := domain.Document{
		Title:      optional(m, fieldTitle),
		Authors:    optional(m, fieldAuthors),
		Abstract:   optional(m, fieldAbstract),
		JournalRef: optional(m, fieldJournalRef),
	}
	if v, ok := m[fieldScore]; ok {
		if d, err := strconv.ParseFloat(v, 64); err == nil {
			doc.Score = max(0, 1.0-d) // cosine distance to similarity
		}
	}
	return doc
}

// optional maps a missing hash field to nil. An empty field stays "", as
// Replace only omits fields that were absent.
func optional(m map[string]string, key string) *string {
	v, ok := m[key]
	if !ok {
		return nil
	}
	return &v
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		k, err := fields[j].ToString()
		if err != nil {
			continue
		}
		v, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[k] = v
	}
	return m
}

func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
