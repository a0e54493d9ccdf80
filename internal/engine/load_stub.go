//go:build !llama

package engine

// This file provides a no-CGO stub for the engine loader. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real loader lives in load_llama.go (tagged 'llama').

// Load fails fast: the llama runtime is not available in this build. This
// avoids any mocked inference behavior in binaries built without CGO support.
func Load(path string, contextWindow int) (*Handle, error) {
	return nil, ErrUnavailable("llama support not built (missing 'llama' build tag)")
}
