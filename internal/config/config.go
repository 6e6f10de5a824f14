package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"semsearch/internal/domain"
)

// SearchConfig holds the per-query retrieval counts.
type SearchConfig struct {
	NumCandidates int `yaml:"num_candidates" validate:"gte=1"`
	NumResults    int `yaml:"num_results" validate:"gte=1,ltefield=NumCandidates"`
}

// EmbedderConfig holds configuration for the OpenAI-compatible embedder.
// The hosted OpenAI endpoint needs the key named by APIKeyEnv (or the
// OpenAI key); a self-hosted server such as Ollama at
// http://localhost:11434/v1 works without one.
type EmbedderConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions" validate:"gte=0"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
	BatchSize   int    `yaml:"batch_size" validate:"gte=0"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type" validate:"oneof=memory mongo redis qdrant postgres"`
	Memory   *MemoryConfig   `yaml:"memory,omitempty"`
	Mongo    *MongoConfig    `yaml:"mongo,omitempty"`
	Redis    *RedisConfig    `yaml:"redis,omitempty"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty"`
	Postgres *PostgresConfig `yaml:"postgres,omitempty"`
}

// MemoryConfig points the in-process store at its JSON-lines snapshot.
type MemoryConfig struct {
	Path string `yaml:"path"`
}

// MongoConfig contains Atlas connection details.
type MongoConfig struct {
	URI         string `yaml:"uri"`
	Database    string `yaml:"database"`
	Collection  string `yaml:"collection"`
	Index       string `yaml:"index"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// RedisConfig contains connection details for a RediSearch-capable server.
type RedisConfig struct {
	Addrs    []string `yaml:"addrs"`
	Username string   `yaml:"username"`
	Password string   `yaml:"password"`
	DB       int      `yaml:"db" validate:"gte=0"`
	Index    string   `yaml:"index"`
	Prefix   string   `yaml:"prefix"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"omitempty,url"`
	APIKey      string `yaml:"api_key"`
	Collection  string `yaml:"collection"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// PostgresConfig contains the DSN of a pgvector-enabled database and its pool limits.
type PostgresConfig struct {
	DSN                 string `yaml:"dsn"`
	Table               string `yaml:"table"`
	MaxOpenConns        int    `yaml:"max_open_conns" validate:"gte=0"`
	ConnMaxLifetimeSecs int    `yaml:"conn_max_lifetime_secs" validate:"gte=0"`
}

// SummarizerConfig selects and configures the summarizer. BaseURL defaults to
// the hosted OpenAI API and is independent of the embedder endpoint.
type SummarizerConfig struct {
	Type         string `yaml:"type" validate:"oneof=openai frequency none"`
	BaseURL      string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	Model        string `yaml:"model"`
	MaxSentences int    `yaml:"max_sentences" validate:"gte=0"`
}

// LoggingConfig selects the zap preset and level.
type LoggingConfig struct {
	Env   string `yaml:"env" validate:"omitempty,oneof=local dev prod"`
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Search      SearchConfig      `yaml:"search"`
	Embedder    EmbedderConfig    `yaml:"embedder"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Logging     LoggingConfig     `yaml:"logging"`
	UI          string            `yaml:"ui" validate:"oneof=repl tui"`
	MetricsAddr string            `yaml:"metrics_addr"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := defaultConfig()
			ApplyDefaults(cfg)
			return cfg, nil
		}
		return nil, err
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(expandEnvVars(data), cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", domain.ErrConfiguration, path, err)
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/semsearch/config.yaml.
// If neither exists, it writes defaults to ~/.config/semsearch/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := defaultConfig()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	ApplyDefaults(cfg)
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "semsearch", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Search:      SearchConfig{NumCandidates: 150, NumResults: 3},
		Embedder:    EmbedderConfig{APIKeyEnv: "OPENAI_API_KEY"},
		VectorStore: VectorStoreConfig{Type: "mongo"},
		Summarizer:  SummarizerConfig{Type: "openai"},
		Logging:     LoggingConfig{Env: "local"},
		UI:          "repl",
	}
}

// ApplyDefaults fills unset fields, including the section of the selected store.
func ApplyDefaults(cfg *AppConfig) {
	if cfg.Embedder.BaseURL == "" {
		cfg.Embedder.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Embedder.APIKeyEnv == "" {
		cfg.Embedder.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Embedder.Model == "" {
		cfg.Embedder.Model = "text-embedding-3-small"
	}
	if cfg.Embedder.TimeoutSecs == 0 {
		cfg.Embedder.TimeoutSecs = 30
	}
	if cfg.Embedder.BatchSize == 0 {
		cfg.Embedder.BatchSize = 32
	}
	if cfg.Summarizer.Model == "" {
		cfg.Summarizer.Model = "gpt-3.5-turbo"
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}

	vs := &cfg.VectorStore
	switch vs.Type {
	case "memory":
		if vs.Memory == nil {
			vs.Memory = &MemoryConfig{}
		}
		if vs.Memory.Path == "" {
			vs.Memory.Path = "articles.jsonl"
		}
	case "mongo":
		if vs.Mongo == nil {
			vs.Mongo = &MongoConfig{}
		}
		if vs.Mongo.URI == "" {
			vs.Mongo.URI = os.Getenv("MONGO_CONNECTION_STRING")
		}
		if vs.Mongo.TimeoutSecs == 0 {
			vs.Mongo.TimeoutSecs = 15
		}
	case "redis":
		if vs.Redis == nil {
			vs.Redis = &RedisConfig{}
		}
		if len(vs.Redis.Addrs) == 0 {
			vs.Redis.Addrs = []string{"localhost:6379"}
		}
	case "qdrant":
		if vs.Qdrant == nil {
			vs.Qdrant = &QdrantConfig{}
		}
		if vs.Qdrant.URL == "" {
			vs.Qdrant.URL = "http://localhost:6333"
		}
		if vs.Qdrant.TimeoutSecs == 0 {
			vs.Qdrant.TimeoutSecs = 15
		}
	case "postgres":
		if vs.Postgres == nil {
			vs.Postgres = &PostgresConfig{}
		}
		if vs.Postgres.DSN == "" {
			vs.Postgres.DSN = os.Getenv("DATABASE_URL")
		}
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks field constraints and that the selected store has the
// settings it needs. Every failure wraps domain.ErrConfiguration.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	vs := c.VectorStore
	var missing string
	switch vs.Type {
	case "mongo":
		if vs.Mongo == nil || vs.Mongo.URI == "" {
			missing = "vector_store.mongo.uri (or MONGO_CONNECTION_STRING)"
		}
	case "postgres":
		if vs.Postgres == nil || vs.Postgres.DSN == "" {
			missing = "vector_store.postgres.dsn (or DATABASE_URL)"
		}
	}
	if missing != "" {
		return fmt.Errorf("%w: %s is required for the %s store", domain.ErrConfiguration, missing, vs.Type)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "AppConfig.")
	switch fe.Tag() {
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "ltefield":
		return fmt.Sprintf("%s must not exceed %s", field, strings.TrimSuffix(field, fe.Field())+fieldTag(fe.Param()))
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
	}
}

// fieldTag maps a Go field name used as a validator param to its yaml key.
func fieldTag(name string) string {
	if f, ok := reflect.TypeOf(SearchConfig{}).FieldByName(name); ok {
		if tag, _, _ := strings.Cut(f.Tag.Get("yaml"), ","); tag != "" {
			return tag
		}
	}
	return name
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
