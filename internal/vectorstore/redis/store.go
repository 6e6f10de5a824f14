package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"semsearch/internal/domain"
)

var (
	_ domain.VectorStore = (*Store)(nil)
	_ domain.Loader      = (*Store)(nil)
)

const (
	DefaultIndex  = "articles_idx"
	DefaultPrefix = "article:"
)

// Config holds connection parameters for a Redis Stack / Redis 8 store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int
	Index    string
	Prefix   string
}

// Store implements vector search over RediSearch HNSW indexes via rueidis.
type Store struct {
	client rueidis.Client
	index  string
	prefix string
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, fmt.Errorf("addrs is required")
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH parsing expects the RESP2 array layout
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return newStore(client, cfg.Index, cfg.Prefix), nil
}

func newStore(client rueidis.Client, index, prefix string) *Store {
	if index == "" {
		index = DefaultIndex
	}
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, index: index, prefix: prefix}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.client.B().Ping().Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr, ignoring case.
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}
