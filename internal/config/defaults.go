package config

import "time"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Generation.BaseURL == "" {
		cfg.Generation.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Generation.Model == "" {
		cfg.Generation.Model = "llama3.2:3b"
	}
	if cfg.Generation.Timeout == 0 {
		cfg.Generation.Timeout = 180 * time.Second
	}
	if cfg.Server.RequestTimeout == 0 {
		cfg.Server.RequestTimeout = cfg.Generation.Timeout + 10*time.Second
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "./data/copilot.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "./data/vectors.bin"
	}
	if cfg.Storage.BleveIndexPath == "" {
		cfg.Storage.BleveIndexPath = "./data/bleve"
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "all-MiniLM-L6-v2"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 384
	}
	if cfg.Embedding.MaxTokens == 0 {
		cfg.Embedding.MaxTokens = 256
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 1000
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "./data/models/all-MiniLM-L6-v2.onnx"
	}
	if cfg.Embedding.VocabPath == "" {
		cfg.Embedding.VocabPath = "./data/models/vocab.txt"
	}
	if cfg.Embedding.OllamaURL == "" {
		cfg.Embedding.OllamaURL = cfg.Generation.BaseURL
	}
	if cfg.Retrieval.Backend == "" {
		cfg.Retrieval.Backend = "vector"
	}
	if cfg.Retrieval.Relevance == "" {
		cfg.Retrieval.Relevance = "euclidean"
	}
	if cfg.Retrieval.MinRelevance == nil {
		th := cfg.Retrieval.Threshold()
		cfg.Retrieval.MinRelevance = &th
	}
	if cfg.Retrieval.DefaultTopK == 0 {
		cfg.Retrieval.DefaultTopK = 4
	}
	if cfg.Retrieval.MaxTopK == 0 {
		cfg.Retrieval.MaxTopK = 20
	}
	if cfg.Policy.RefusalCitations == nil {
		cfg.Policy.RefusalCitations = []string{"corpus/policy_pii_handling.md", "corpus/sop/sop_account_takeover.md"}
	}
	if cfg.Policy.PassageChars == 0 {
		cfg.Policy.PassageChars = 1500
	}
	if cfg.Policy.PreviewChars == 0 {
		cfg.Policy.PreviewChars = 600
	}
	if cfg.Ingest.CorpusDir == "" {
		cfg.Ingest.CorpusDir = "./corpus"
	}
	if cfg.Ingest.Extensions == nil {
		cfg.Ingest.Extensions = []string{".md"}
	}
	if cfg.Ingest.ChunkSize == 0 {
		cfg.Ingest.ChunkSize = 800
	}
	if cfg.Ingest.ChunkOverlap == 0 {
		cfg.Ingest.ChunkOverlap = 120
	}
	if cfg.Ingest.Debounce == 0 {
		cfg.Ingest.Debounce = 2 * time.Second
	}
	if cfg.Eval.BaseURL == "" {
		cfg.Eval.BaseURL = "http://127.0.0.1:8000"
	}
	if cfg.Eval.QueriesPath == "" {
		cfg.Eval.QueriesPath = "./eval/queries.json"
	}
	if cfg.Eval.ReportPath == "" {
		cfg.Eval.ReportPath = "./eval/report.md"
	}
	if cfg.Eval.TopK == 0 {
		cfg.Eval.TopK = cfg.Retrieval.DefaultTopK
	}
	if cfg.Eval.Timeout == 0 {
		cfg.Eval.Timeout = cfg.Generation.Timeout
	}
	if cfg.Eval.Retries == 0 {
		cfg.Eval.Retries = 2
	}
}
