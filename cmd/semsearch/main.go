package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"semsearch/internal/config"
	"semsearch/internal/domain"
	oaembed "semsearch/internal/embedding/openai"
)

const openAIKeyEnv = "OPENAI_API_KEY"

const missingKeyWarning = "[WARNING] OpenAI API key was not provided in the CMD line arguments " +
	"and OPENAI_API_KEY was not found in environment variables. " +
	"The program will not be able to summarize semantic search results using GPT."

// options holds the command-line flags; zero values mean "not set".
type options struct {
	configPath    string
	openAIKey     string
	gptVersion    string
	numCandidates int
	numResults    int
	store         string
	ui            string
	logLevel      string
	metricsAddr   string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var opts options
	rootCmd := &cobra.Command{
		Use:           "semsearch",
		Short:         "Interactive semantic search over research articles with optional GPT summaries",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, &opts)
			if err != nil {
				return err
			}
			return runInteractive(cmd.Context(), cfg, resolveAPIKey(opts.openAIKey), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	f := rootCmd.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Path to YAML config file (default ./config.yaml or ~/.config/semsearch/config.yaml)")
	f.StringVar(&opts.openAIKey, "openai-key", "", "OpenAI API key (falls back to OPENAI_API_KEY)")
	f.StringVar(&opts.gptVersion, "gpt-version", "", "Chat model used for summarization (default gpt-3.5-turbo)")
	f.IntVar(&opts.numCandidates, "num-candidates", 0, "Nearest-neighbour candidates considered per query (default 150)")
	f.IntVar(&opts.numResults, "num-results", 0, "Documents returned per query (default 3)")
	f.StringVar(&opts.store, "store", "", "Vector store: memory, mongo, redis, qdrant or postgres")
	f.StringVar(&opts.ui, "ui", "", "Front end: repl or tui")
	f.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	rootCmd.AddCommand(newLoadCmd(&opts))
	return rootCmd
}

// loadConfig reads the config file, applies flags the user set and validates the result.
func loadConfig(cmd *cobra.Command, opts *options) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if opts.configPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(opts.configPath)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := applyFlags(cmd, opts, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags copies explicitly set flags over file values. A changed store
// type re-runs section defaults so the new backend gets its settings.
func applyFlags(cmd *cobra.Command, opts *options, cfg *config.AppConfig) error {
	flags := cmd.Flags()
	if flags.Changed("gpt-version") {
		cfg.Summarizer.Model = opts.gptVersion
	}
	if flags.Changed("num-candidates") {
		cfg.Search.NumCandidates = opts.numCandidates
	}
	if flags.Changed("num-results") {
		cfg.Search.NumResults = opts.numResults
	}
	if flags.Changed("ui") {
		cfg.UI = opts.ui
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("store") {
		if opts.store == "" {
			return errors.New("--store must not be empty")
		}
		cfg.VectorStore.Type = opts.store
		config.ApplyDefaults(cfg)
	}
	return nil
}

// resolveAPIKey returns the OpenAI key: the flag, then OPENAI_API_KEY.
func resolveAPIKey(flagKey string) string {
	if flagKey != "" {
		return flagKey
	}
	return os.Getenv(openAIKeyEnv)
}

// resolveEmbedderKey returns the embedder's own credential from
// embedder.api_key_env, falling back to the OpenAI key.
func resolveEmbedderKey(openAIKey string, cfg *config.AppConfig) string {
	if env := cfg.Embedder.APIKeyEnv; env != "" && env != openAIKeyEnv {
		if key := os.Getenv(env); key != "" {
			return key
		}
	}
	return openAIKey
}

// checkEmbedderKey fails when the embedder endpoint rejects unauthenticated
// requests and no key was found, so plain queries do not fail one by one.
func checkEmbedderKey(cfg *config.AppConfig, key string) error {
	if key != "" || !oaembed.RequiresKey(cfg.Embedder.BaseURL) {
		return nil
	}
	return fmt.Errorf("%w: the embedder at %s needs an API key: pass --openai-key, set %s, "+
		"or point embedder.base_url at a keyless OpenAI-compatible server such as Ollama (http://localhost:11434/v1)",
		domain.ErrConfiguration, cfg.Embedder.BaseURL, cfg.Embedder.APIKeyEnv)
}
