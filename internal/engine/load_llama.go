//go:build llama

package engine

import (
	"errors"
	"strings"
	"sync"
)

// backendOnce guards the process-wide llama backend initialization. It is
// called defensively before every load; teardown is deliberately omitted
// (process-lifetime resource).
var backendOnce sync.Once

// Load parses a GGUF model file and allocates an inference context over it.
// contextWindow <= 0 is normalized to DefaultContextWindow; the batch size
// is clamped to min(512, contextWindow). On any failure the partially
// acquired resources are released and a nil handle is returned.
func Load(path string, contextWindow int) (*Handle, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("engine: model path is empty")
	}
	backendOnce.Do(backendInit)

	if contextWindow <= 0 {
		contextWindow = DefaultContextWindow
	}
	batch := maxBatch
	if contextWindow < batch {
		batch = contextWindow
	}

	model, err := loadModelFile(path)
	if err != nil {
		return nil, err
	}
	lctx, err := newLlamaContext(model, contextWindow, batch)
	if err != nil {
		model.free()
		return nil, err
	}

	lb := &llamaBackend{model: model, lctx: lctx}
	return NewHandle(lb, lb, contextWindow), nil
}
