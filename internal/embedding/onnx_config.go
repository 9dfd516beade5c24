package embedding

// ONNXConfig configures the ONNX embedding provider.
type ONNXConfig struct {
	ModelPath   string
	VocabPath   string
	LibraryPath string
	OutputName  string
	Dimensions  int
	MaxTokens   int
}

func (c ONNXConfig) withDefaults() ONNXConfig {
	if c.OutputName == "" {
		c.OutputName = "last_hidden_state"
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 384
	}
	if c.MaxTokens <= 0 {
		c.MaxTokens = 256
	}
	return c
}

// meanPool averages the token vectors in hidden ([tokens x dims], row-major) whose
// attention mask is set.
func meanPool(hidden []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	var n float32
	for t, m := range mask {
		if m == 0 {
			continue
		}
		row := hidden[t*dims : (t+1)*dims]
		for i, v := range row {
			out[i] += v
		}
		n++
	}
	if n > 0 {
		for i := range out {
			out[i] /= n
		}
	}
	return out
}
