package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestLoadYAML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "models_dir: /tmp\nctx_window: 4096\nmax_tokens: 64\ntemperature: 0.5\ntop_p: 0.9\ndefault_model: m1\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.ModelsDir != "/tmp" || cfg.CtxWindow != 4096 || cfg.MaxTokens != 64 || cfg.Temperature != 0.5 || cfg.TopP != 0.9 || cfg.DefaultModel != "m1" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadJSON(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.json", `{"models_dir":"/m","ctx_window":256,"threads":4,"seed":42,"diag_addr":":9090"}`)
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.ModelsDir != "/m" || cfg.CtxWindow != 256 || cfg.Threads != 4 || cfg.Seed != 42 || cfg.DiagAddr != ":9090" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadTOML(t *testing.T) {
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.toml", "models_dir=\"/x\"\nctx_window=512\nmax_queue_depth=8\nmax_wait_ms=100\nlog_level=\"debug\"\n")
	cfg, err := Load(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.ModelsDir != "/x" || cfg.CtxWindow != 512 || cfg.MaxQueueDepth != 8 || cfg.MaxWaitMs != 100 || cfg.LogLevel != "debug" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	if _, err := Load(""); err == nil { t.Fatalf("expected error on empty path") }
	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.txt", "not supported")
	if _, err := Load(p); err == nil { t.Fatalf("expected unsupported extension error") }
	p = writeTempFile(t, d, "bad.yaml", "top_p: 1.5\n")
	if _, err := Load(p); err == nil { t.Fatalf("expected top_p range error") }
	p = writeTempFile(t, d, "neg.json", `{"temperature":-1}`)
	if _, err := Load(p); err == nil { t.Fatalf("expected temperature range error") }
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg != Default() { t.Fatalf("expected defaults, got %+v", cfg) }

	d := t.TempDir()
	p := writeTempFile(t, d, "cfg.yaml", "ctx_window: 1024\n")
	cfg, err = LoadOrDefault(p)
	if err != nil { t.Fatalf("load: %v", err) }
	if cfg.CtxWindow != 1024 { t.Fatalf("ctx_window=%d", cfg.CtxWindow) }
	// unset fields fall back to defaults
	if cfg.MaxTokens != Default().MaxTokens || cfg.TopP != Default().TopP || cfg.Seed != -1 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestDefaultValidates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}
