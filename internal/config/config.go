// Package config provides configuration loading and structs for the copilot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Generation GenerationConfig `yaml:"generation"`
	Guard      GuardConfig      `yaml:"guard"`
	Policy     PolicyConfig     `yaml:"policy"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Eval       EvalConfig       `yaml:"eval"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// RequestTimeout bounds a whole request. It should exceed the generation timeout.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// StorageConfig holds paths for the database and indices.
type StorageConfig struct {
	DatabasePath    string `yaml:"database_path"`
	VectorIndexPath string `yaml:"vector_index_path"`
	BleveIndexPath  string `yaml:"bleve_index_path"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	CacheSize   int    `yaml:"cache_size"`
	ModelPath   string `yaml:"model_path"`
	VocabPath   string `yaml:"vocab_path"`
	LibraryPath string `yaml:"library_path"`
	MaxTokens   int    `yaml:"max_tokens"`
	OllamaURL   string `yaml:"ollama_url"`
	BatchSize   int    `yaml:"batch_size"`
}

// RetrievalConfig holds retriever and relevance gate settings.
type RetrievalConfig struct {
	Backend      string   `yaml:"backend"`
	Relevance    string   `yaml:"relevance"`
	MinRelevance *float64 `yaml:"min_relevance"`
	DefaultTopK  int      `yaml:"default_top_k"`
	MaxTopK      int      `yaml:"max_top_k"`
}

// Threshold returns the relevance gate threshold; defaults to 0.35 when unset.
func (r *RetrievalConfig) Threshold() float64 {
	if r.MinRelevance != nil {
		return *r.MinRelevance
	}
	return 0.35
}

// GenerationConfig holds the local model endpoint.
type GenerationConfig struct {
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// GuardConfig extends the credential keyword list.
type GuardConfig struct {
	ExtraKeywords []string `yaml:"extra_keywords"`
}

// PolicyConfig shapes the answers returned to callers.
type PolicyConfig struct {
	RefusalCitations []string `yaml:"refusal_citations"`
	PassageChars     int      `yaml:"passage_chars"`
	PreviewChars     int      `yaml:"preview_chars"`
}

// IngestConfig holds corpus and chunking settings.
type IngestConfig struct {
	CorpusDir    string        `yaml:"corpus_dir"`
	Extensions   []string      `yaml:"extensions"`
	ChunkSize    int           `yaml:"chunk_size"`
	ChunkOverlap int           `yaml:"chunk_overlap"`
	Debounce     time.Duration `yaml:"debounce"`
}

// EvalConfig holds evaluation harness settings.
type EvalConfig struct {
	BaseURL     string        `yaml:"base_url"`
	QueriesPath string        `yaml:"queries_path"`
	ReportPath  string        `yaml:"report_path"`
	TopK        int           `yaml:"top_k"`
	Timeout     time.Duration `yaml:"timeout"`
	Retries     int           `yaml:"retries"`
}

// Load reads and parses the config file at path, overlays the environment, expands paths,
// and applies defaults. A .env file next to the config is loaded first if present.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}
	if err := ApplyEnv(&cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.VectorIndexPath = expandPath(cfg.Storage.VectorIndexPath, configDir)
	cfg.Storage.BleveIndexPath = expandPath(cfg.Storage.BleveIndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	cfg.Embedding.VocabPath = expandPath(cfg.Embedding.VocabPath, configDir)
	cfg.Ingest.CorpusDir = expandPath(cfg.Ingest.CorpusDir, configDir)
	cfg.Eval.QueriesPath = expandPath(cfg.Eval.QueriesPath, configDir)
	cfg.Eval.ReportPath = expandPath(cfg.Eval.ReportPath, configDir)

	return &cfg, nil
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if th := c.Retrieval.Threshold(); th < 0 || th > 1 {
		errs = append(errs, fmt.Errorf("retrieval.min_relevance must be within [0,1], got %v", th))
	}
	if c.Retrieval.MaxTopK < c.Retrieval.DefaultTopK {
		errs = append(errs, fmt.Errorf("retrieval.max_top_k (%d) is below default_top_k (%d)", c.Retrieval.MaxTopK, c.Retrieval.DefaultTopK))
	}
	switch c.Retrieval.Backend {
	case "vector", "keyword":
	default:
		errs = append(errs, fmt.Errorf("retrieval.backend must be vector or keyword, got %q", c.Retrieval.Backend))
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		errs = append(errs, fmt.Errorf("ingest.chunk_overlap (%d) must be below chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize))
	}
	if c.Policy.PassageChars <= 0 || c.Policy.PreviewChars <= 0 {
		errs = append(errs, errors.New("policy.passage_chars and policy.preview_chars must be positive"))
	}
	if c.Generation.Timeout <= 0 {
		errs = append(errs, errors.New("generation.timeout must be positive"))
	}
	return errors.Join(errs...)
}

// loadDotEnv loads path into the process environment. Variables already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays COPILOT_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	if v, ok := os.LookupEnv("COPILOT_OLLAMA_URL"); ok && v != "" {
		cfg.Generation.BaseURL = v
	}
	if v, ok := os.LookupEnv("COPILOT_OLLAMA_MODEL"); ok && v != "" {
		cfg.Generation.Model = v
	}
	if v, ok := os.LookupEnv("COPILOT_MIN_RELEVANCE"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("COPILOT_MIN_RELEVANCE: %w", err)
		}
		cfg.Retrieval.MinRelevance = &f
	}
	if v, ok := os.LookupEnv("COPILOT_HTTP_PORT"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("COPILOT_HTTP_PORT: %w", err)
		}
		cfg.Server.Port = n
	}
	if v, ok := os.LookupEnv("COPILOT_DEBUG"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("COPILOT_DEBUG: %w", err)
		}
		cfg.Debug = b
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
