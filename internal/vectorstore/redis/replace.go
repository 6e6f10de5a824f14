package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"semsearch/internal/domain"
)

const hsetBatch = 500

// Replace drops the index together with its documents, recreates it for the
// records' dimension and writes every record as a hash.
func (s *Store) Replace(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return errors.New("no records")
	}
	dim := len(records[0].Vector)
	if dim == 0 {
		return errors.New("record 0 has no embedding")
	}
	for i := range records {
		if len(records[i].Vector) != dim {
			return fmt.Errorf("record %d: vector dimension %d, expected %d", i, len(records[i].Vector), dim)
		}
	}

	drop := s.b().Arbitrary("FT.DROPINDEX").Args(s.index, "DD").Build()
	if err := s.do(ctx, drop).Error(); err != nil && !isRedisErr(err, "unknown index name") {
		return fmt.Errorf("drop index %s: %w", s.index, err)
	}
	create := s.b().Arbitrary("FT.CREATE").Args(createArgs(s.index, s.prefix, dim)...).Build()
	if err := s.do(ctx, create).Error(); err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}

	for start := 0; start < len(records); start += hsetBatch {
		end := min(start+hsetBatch, len(records))
		cmds := make([]rueidis.Completed, 0, end-start)
		for i := start; i < end; i++ {
			cmds = append(cmds, s.hset(s.prefix+strconv.Itoa(i), records[i]))
		}
		for j, res := range s.client.DoMulti(ctx, cmds...) {
			if err := res.Error(); err != nil {
				return fmt.Errorf("hset %s%d: %w", s.prefix, start+j, err)
			}
		}
	}
	return nil
}

func createArgs(index, prefix string, dim int) []string {
	return []string{
		index, "ON", "HASH", "PREFIX", "1", prefix,
		"SCHEMA",
		fieldTitle, "TEXT",
		fieldAuthors, "TEXT",
		fieldAbstract, "TEXT",
		fieldJournalRef, "TEXT",
		fieldEmbedding, "VECTOR", "HNSW", "6",
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(dim),
		"DISTANCE_METRIC", "COSINE",
	}
}

func (s *Store) hset(key string, r domain.Record) rueidis.Completed {
	cmd := s.b().Hset().Key(key).FieldValue().FieldValue(fieldEmbedding, vectorToBytes(r.Vector))
	for _, f := range []struct {
		name  string
		value *string
	}{
		{fieldTitle, r.Title},
		{fieldAuthors, r.Authors},
		{fieldAbstract, r.Abstract},
		{fieldJournalRef, r.JournalRef},
	} {
		if f.value != nil {
			cmd = cmd.FieldValue(f.name, *f.value)
		}
	}
	return cmd.Build()
}
