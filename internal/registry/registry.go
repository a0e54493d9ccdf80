package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"llmrun/internal/common/fsutil"
	"llmrun/pkg/types"
)

// quantRe matches common GGUF quantization suffixes in filenames,
// e.g. Q4_K_M, Q8_0, IQ2_XS, F16.
var quantRe = regexp.MustCompile(`(?i)\b(i?q[0-9]+(?:_[a-z0-9]+)*|f16|f32|bf16)\b`)

// LoadDir scans a directory for *.gguf files and builds a registry from
// filenames. ID is the full filename (including extension); Path is the
// absolute file path; Quant is parsed from the filename when recognizable.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".gguf") {
			continue
		}
		models = append(models, types.Model{
			ID:    name,
			Name:  name,
			Path:  filepath.Join(abs, name),
			Quant: sniffQuant(name),
		})
	}
	return models, nil
}

// Resolve maps a model reference to an absolute file path. The reference is
// either an explicit path to a .gguf file or a registry id, with or without
// the .gguf suffix.
func Resolve(models []types.Model, ref string) (string, error) {
	if ref == "" {
		return "", modelNotFoundError{id: ref}
	}
	// Explicit path wins when the file exists.
	if strings.ContainsRune(ref, os.PathSeparator) || strings.HasPrefix(ref, "~") {
		p, err := fsutil.ExpandHome(ref)
		if err != nil {
			return "", err
		}
		if fsutil.PathExists(p) {
			return filepath.Abs(p)
		}
		return "", modelNotFoundError{id: ref}
	}
	for _, m := range models {
		if m.ID == ref || m.ID == ref+".gguf" {
			return m.Path, nil
		}
	}
	return "", modelNotFoundError{id: ref}
}

func sniffQuant(name string) string {
	m := quantRe.FindString(strings.TrimSuffix(name, filepath.Ext(name)))
	return strings.ToUpper(m)
}

// modelNotFoundError signals that a requested model reference is not present.
type modelNotFoundError struct{ id string }

func (e modelNotFoundError) Error() string { return "model not found: " + e.id }

// IsModelNotFound reports whether the error indicates a missing model reference.
func IsModelNotFound(err error) bool {
	_, ok := err.(modelNotFoundError)
	return ok
}
