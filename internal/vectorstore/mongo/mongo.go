package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"semsearch/internal/domain"
)

var (
	_ domain.VectorStore = (*Store)(nil)
	_ domain.Loader      = (*Store)(nil)
)

const (
	DefaultDatabase   = "embeddings"
	DefaultCollection = "articles"
	DefaultIndex      = "vector_index"
	embeddingPath     = "embedding"
	insertBatch       = 1000
)

// Config holds the Atlas connection string and collection coordinates.
type Config struct {
	URI        string
	Database   string
	Collection string
	Index      string
	Timeout    time.Duration
}

// Store runs Atlas $vectorSearch aggregations against one collection.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
	index  string
}

// NewStore connects with the stable server API. The connection is lazy;
// call Ping to verify it.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, errors.New("connection string is required")
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerAPIOptions(options.ServerAPI(options.ServerAPIVersion1))
	if cfg.Timeout > 0 {
		opts.SetTimeout(cfg.Timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = DefaultDatabase
	}
	coll := cfg.Collection
	if coll == "" {
		coll = DefaultCollection
	}
	return newStore(client, client.Database(db).Collection(coll), cfg.Index), nil
}

func newStore(client *mongo.Client, coll *mongo.Collection, index string) *Store {
	if index == "" {
		index = DefaultIndex
	}
	return &Store{client: client, coll: coll, index: index}
}

// Ping runs the admin ping command.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Database("admin").RunCommand(ctx, bson.D{{Key: "ping", Value: 1}}).Err(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

type row struct {
	Title      *string `bson:"title,omitempty"`
	Authors    *string `bson:"authors,omitempty"`
	Abstract   *string `bson:"abstract,omitempty"`
	JournalRef *string `bson:"journal-ref,omitempty"`
	Score      float64 `bson:"score,omitempty"`
}

// Search runs $vectorSearch followed by a projection of the display fields.
func (s *Store) Search(ctx context.Context, vector []float32, numCandidates, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}
	cur, err := s.coll.Aggregate(ctx, buildPipeline(s.index, vector, numCandidates, limit))
	if err != nil {
		return nil, fmt.Errorf("aggregate: %w", err)
	}
	var rows []row
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, domain.Document{
			Title:      r.Title,
			Authors:    r.Authors,
			Abstract:   r.Abstract,
			JournalRef: r.JournalRef,
			Score:      r.Score,
		})
	}
	return docs, nil
}

func buildPipeline(index string, vector []float32, numCandidates, limit int) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$vectorSearch", Value: bson.D{
			{Key: "index", Value: index},
			{Key: "queryVector", Value: vector},
			{Key: "path", Value: embeddingPath},
			{Key: "numCandidates", Value: max(numCandidates, limit)},
			{Key: "limit", Value: limit},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "_id", Value: 0},
			{Key: "authors", Value: 1},
			{Key: "title", Value: 1},
			{Key: "journal-ref", Value: 1},
			{Key: "abstract", Value: 1},
			{Key: "score", Value: bson.D{{Key: "$meta", Value: "vectorSearchScore"}}},
		}}},
	}
}

// Replace deletes every document in the collection and inserts records.
// The Atlas search index is defined outside the collection and survives.
func (s *Store) Replace(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return errors.New("no records")
	}
	for i := range records {
		if len(records[i].Vector) == 0 {
			return fmt.Errorf("record %d has no embedding", i)
		}
	}
	if _, err := s.coll.DeleteMany(ctx, bson.D{}); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	for start := 0; start < len(records); start += insertBatch {
		end := min(start+insertBatch, len(records))
		docs := make([]any, 0, end-start)
		for i := start; i < end; i++ {
			docs = append(docs, toBSON(records[i]))
		}
		if _, err := s.coll.InsertMany(ctx, docs); err != nil {
			return fmt.Errorf("insert documents %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func toBSON(r domain.Record) bson.D {
	d := bson.D{}
	for _, f := range []struct {
		key   string
		value *string
	}{
		{"title", r.Title},
		{"authors", r.Authors},
		{"abstract", r.Abstract},
		{"journal-ref", r.JournalRef},
	} {
		if f.value != nil {
			d = append(d, bson.E{Key: f.key, Value: *f.value})
		}
	}
	return append(d, bson.E{Key: embeddingPath, Value: r.Vector})
}
