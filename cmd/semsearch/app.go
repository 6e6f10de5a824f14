package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"semsearch/internal/config"
	"semsearch/internal/domain"
	oaembed "semsearch/internal/embedding/openai"
	"semsearch/internal/logger"
	"semsearch/internal/metrics"
	"semsearch/internal/repl"
	"semsearch/internal/service"
	"semsearch/internal/session"
	"semsearch/internal/summarizer/frequency"
	oasum "semsearch/internal/summarizer/openai"
	"semsearch/internal/tui"
	"semsearch/internal/vectorstore/memory"
	"semsearch/internal/vectorstore/mongo"
	"semsearch/internal/vectorstore/postgres"
	"semsearch/internal/vectorstore/qdrant"
	"semsearch/internal/vectorstore/redis"
)

// store is what the binary needs from a backend: search for sessions, replace for load.
type store interface {
	domain.VectorStore
	domain.Loader
}

// runInteractive wires the configured components and runs a session until
// ctx is cancelled or input ends. apiKey is the OpenAI key used by the
// summarizer and, unless the embedder has its own, by the embedder.
func runInteractive(ctx context.Context, cfg *config.AppConfig, apiKey string, in io.Reader, out io.Writer) error {
	log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	embedderKey := resolveEmbedderKey(apiKey, cfg)
	if err := checkEmbedderKey(cfg, embedderKey); err != nil {
		return err
	}
	if cfg.Summarizer.Type == "openai" && apiKey == "" {
		fmt.Fprintln(out, missingKeyWarning)
	}

	searchCfg, err := service.NewSearchConfig(cfg.Search.NumCandidates, cfg.Search.NumResults)
	if err != nil {
		return err
	}

	metrics.Register()
	if cfg.MetricsAddr != "" {
		shutdown := serveMetrics(cfg.MetricsAddr, log)
		defer shutdown()
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()
	fmt.Fprintf(out, "Successfully connected to the %s vector store!\n", cfg.VectorStore.Type)

	embedder := newEmbedder(cfg, embedderKey, log)
	summarization := newSummarization(cfg, apiKey, log)
	svc := service.NewRAGService(embedder, st, summarization, searchCfg, log)
	sess := session.New(svc, log)

	fmt.Fprintln(out, "Semantic search engine initialized!")
	log.Info("session started",
		zap.String("store", cfg.VectorStore.Type),
		zap.Int("num_candidates", searchCfg.NumCandidates),
		zap.Int("num_results", searchCfg.NumResults),
		zap.Bool("summarization", summarization.IsAvailable()),
	)

	if cfg.UI == "tui" {
		m := tui.New(ctx, sess, "Semantic search engine initialized! Tab toggles GPT summaries.")
		_, err := tea.NewProgram(m, tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	}
	return repl.Run(ctx, sess, in, out)
}

// openStore builds the configured backend and verifies connectivity.
func openStore(ctx context.Context, cfg *config.AppConfig, log *zap.Logger) (store, error) {
	var (
		st  store
		err error
	)
	vs := cfg.VectorStore
	switch vs.Type {
	case "memory":
		st, err = memory.Open(vs.Memory.Path)
	case "mongo":
		st, err = mongo.NewStore(ctx, mongo.Config{
			URI:        vs.Mongo.URI,
			Database:   vs.Mongo.Database,
			Collection: vs.Mongo.Collection,
			Index:      vs.Mongo.Index,
			Timeout:    time.Duration(vs.Mongo.TimeoutSecs) * time.Second,
		})
	case "redis":
		st, err = redis.NewStore(redis.Config{
			Addrs:    vs.Redis.Addrs,
			Username: vs.Redis.Username,
			Password: vs.Redis.Password,
			DB:       vs.Redis.DB,
			Index:    vs.Redis.Index,
			Prefix:   vs.Redis.Prefix,
		})
	case "qdrant":
		st = qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: vs.Qdrant.Collection,
			Timeout:    time.Duration(vs.Qdrant.TimeoutSecs) * time.Second,
		})
	case "postgres":
		st, err = postgres.NewStore(postgresConfig(vs.Postgres), log)
	default:
		err = fmt.Errorf("unknown vector store: %s", vs.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s store: %w", domain.ErrConfiguration, vs.Type, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := st.Ping(pingCtx); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("%w: error connecting to the %s store: %w", domain.ErrConfiguration, vs.Type, err)
	}
	return st, nil
}

func postgresConfig(pc *config.PostgresConfig) postgres.Config {
	return postgres.Config{
		DSN:             pc.DSN,
		Table:           pc.Table,
		MaxOpenConns:    pc.MaxOpenConns,
		ConnMaxLifetime: time.Duration(pc.ConnMaxLifetimeSecs) * time.Second,
	}
}

func newEmbedder(cfg *config.AppConfig, apiKey string, log *zap.Logger) *oaembed.Client {
	return oaembed.NewClient(oaembed.Config{
		APIKey:     apiKey,
		BaseURL:    cfg.Embedder.BaseURL,
		Model:      cfg.Embedder.Model,
		Dimensions: cfg.Embedder.Dimensions,
		Timeout:    time.Duration(cfg.Embedder.TimeoutSecs) * time.Second,
		Logger:     log,
	})
}

// newSummarization decides once, at startup, whether augmented answers are possible.
func newSummarization(cfg *config.AppConfig, apiKey string, log *zap.Logger) service.Summarization {
	switch cfg.Summarizer.Type {
	case "frequency":
		return service.Available(frequency.New(cfg.Summarizer.MaxSentences))
	case "openai":
		if apiKey == "" {
			return service.Unavailable(service.ReasonMissingKey)
		}
		s, err := oasum.New(oasum.Config{
			APIKey:  apiKey,
			BaseURL: cfg.Summarizer.BaseURL,
			Model:   cfg.Summarizer.Model,
			Logger:  log,
		})
		if err != nil {
			return service.Unavailable(err.Error())
		}
		return service.Available(s)
	default:
		return service.Unavailable(service.ReasonDisabled)
	}
}

func serveMetrics(addr string, log *zap.Logger) func() {
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.NewRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server failed", zap.Error(err))
		}
	}()
	log.Info("metrics server listening", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
