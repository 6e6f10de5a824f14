package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"semsearch/internal/domain"
)

var (
	_ domain.VectorStore = (*Store)(nil)
	_ domain.Loader      = (*Store)(nil)
)

const DefaultTable = "articles"

// Config holds the DSN and pool settings for a pgvector-enabled database.
type Config struct {
	DSN             string
	Table           string
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// Store searches a pgvector table ordered by cosine distance.
type Store struct {
	db     *sql.DB
	table  string
	logger *zap.Logger
}

// NewStore opens a connection pool. Use Ping to verify it.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if cfg.DSN == "" {
		return nil, errors.New("dsn is required")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return NewStoreWithDB(db, cfg.Table, logger), nil
}

// NewStoreWithDB wraps an existing pool.
func NewStoreWithDB(db *sql.DB, table string, logger *zap.Logger) *Store {
	if table == "" {
		table = DefaultTable
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, table: table, logger: logger}
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Search orders by cosine distance. numCandidates sets hnsw.ef_search for
// the enclosing transaction only.
func (s *Store) Search(ctx context.Context, vector []float32, numCandidates, limit int) (_ []domain.Document, err error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "SET LOCAL hnsw.ef_search = "+strconv.Itoa(max(numCandidates, limit))); err != nil {
		return nil, fmt.Errorf("set ef_search: %w", err)
	}

	q := fmt.Sprintf(`SELECT title, authors, abstract, journal_ref, 1 - (embedding <=> $1::vector) AS score
FROM %s ORDER BY embedding <=> $1::vector LIMIT $2`, pq.QuoteIdentifier(s.table))
	rows, err := tx.QueryContext(ctx, q, vectorLiteral(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		var d domain.Document
		if err = rows.Scan(&d.Title, &d.Authors, &d.Abstract, &d.JournalRef, &d.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		docs = append(docs, d)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return docs, nil
}

// Replace recreates the table sized to the records' dimension, inserts all
// records and builds an HNSW cosine index, in one transaction.
func (s *Store) Replace(ctx context.Context, records []domain.Record) (err error) {
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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	table := pq.QuoteIdentifier(s.table)
	for _, stmt := range []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		"DROP TABLE IF EXISTS " + table,
		fmt.Sprintf(`CREATE TABLE %s (
	id BIGSERIAL PRIMARY KEY,
	title TEXT,
	authors TEXT,
	abstract TEXT,
	journal_ref TEXT,
	embedding vector(%d) NOT NULL
)`, table, dim),
	} {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("prepare table: %w", err)
		}
	}

	ins, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (title, authors, abstract, journal_ref, embedding) VALUES ($1, $2, $3, $4, $5::vector)", table))
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for i, r := range records {
		if _, err = ins.ExecContext(ctx, r.Title, r.Authors, r.Abstract, r.JournalRef, vectorLiteral(r.Vector)); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}

	index := pq.QuoteIdentifier(s.table + "_embedding_idx")
	if _, err = tx.ExecContext(ctx, fmt.Sprintf("CREATE INDEX %s ON %s USING hnsw (embedding vector_cosine_ops)", index, table)); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.logger.Info("table replaced", zap.String("table", s.table), zap.Int("rows", len(records)), zap.Int("dim", dim))
	return nil
}

// vectorLiteral renders v in pgvector's text form, e.g. [0.1,-2].
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
