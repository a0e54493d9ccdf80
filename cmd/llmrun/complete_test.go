package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newPromptCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "x", RunE: func(cmd *cobra.Command, args []string) error { return nil }}
	cmd.Flags().String("prompt-file", "", "")
	return cmd
}

func TestPromptFromArgs(t *testing.T) {
	got, err := promptFrom(newPromptCmd(), []string{"write", "a", "haiku"})
	if err != nil {
		t.Fatalf("promptFrom: %v", err)
	}
	if got != "write a haiku" {
		t.Fatalf("got %q", got)
	}
}

func TestPromptFromFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "prompt.txt")
	if err := os.WriteFile(p, []byte("from file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cmd := newPromptCmd()
	if err := cmd.Flags().Set("prompt-file", p); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	got, err := promptFrom(cmd, nil)
	if err != nil {
		t.Fatalf("promptFrom: %v", err)
	}
	if got != "from file" {
		t.Fatalf("got %q", got)
	}
}

func TestPromptFromNothing(t *testing.T) {
	if _, err := promptFrom(newPromptCmd(), nil); err == nil {
		t.Fatalf("expected error without prompt")
	}
	cmd := newPromptCmd()
	_ = cmd.Flags().Set("prompt-file", filepath.Join(t.TempDir(), "missing.txt"))
	if _, err := promptFrom(cmd, nil); err == nil {
		t.Fatalf("expected error for missing prompt file")
	}
}

func TestRootCommandTree(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"complete", "repl", "models", "completion"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd == nil || cmd.Name() != name {
			t.Fatalf("missing subcommand %q: %v", name, err)
		}
	}
}
