package embedding

import "fmt"

// Provider names.
const (
	ProviderONNX   = "onnx"
	ProviderOllama = "ollama"
	ProviderMock   = "mock"
)

// Config selects and configures an embedding provider.
type Config struct {
	Provider   string
	Model      string
	Dimensions int
	CacheSize  int
	ONNX       ONNXConfig
	Ollama     OllamaConfig
}

// New builds the configured embedder, wrapped in a query cache when CacheSize is positive,
// and returns the manifest that identifies its embedding space.
func New(cfg Config) (Embedder, Manifest, error) {
	var (
		e   Embedder
		err error
	)
	switch cfg.Provider {
	case ProviderMock, "":
		cfg.Provider = ProviderMock
		e = NewMockEmbedder(cfg.Dimensions)
	case ProviderONNX:
		oc := cfg.ONNX
		oc.Dimensions = cfg.Dimensions
		e, err = NewONNXEmbedder(oc)
	case ProviderOllama:
		oc := cfg.Ollama
		oc.Model = cfg.Model
		oc.Dimensions = cfg.Dimensions
		e, err = NewOllamaEmbedder(oc)
	default:
		return nil, Manifest{}, fmt.Errorf("unknown embedding provider: %s (supported: onnx, ollama, mock)", cfg.Provider)
	}
	if err != nil {
		return nil, Manifest{}, err
	}

	manifest := Manifest{Provider: cfg.Provider, Model: cfg.Model, Dimensions: e.Dimensions()}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedEmbedder(e, cfg.CacheSize)
		if err != nil {
			_ = e.Close()
			return nil, Manifest{}, err
		}
		e = cached
	}
	return e, manifest, nil
}
