package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"llmrun/internal/config"
	"llmrun/internal/diag"
	"llmrun/internal/engine"
	"llmrun/internal/registry"
	"llmrun/internal/session"
	"llmrun/pkg/types"
)

// app carries the merged configuration and logger across subcommands.
type app struct {
	cfgPath string
	cfg     config.Config
	log     zerolog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: config.Default()}

	root := &cobra.Command{
		Use:           "llmrun",
		Short:         "Single-turn completions against a local GGUF model",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgPath, "config", "", "Config file (.yaml/.yml, .json, .toml)")
	pf.String("models-dir", a.cfg.ModelsDir, "Directory to scan for *.gguf model files")
	pf.String("log-level", a.cfg.LogLevel, "Log level: debug|info|warn|error")
	pf.String("diag-addr", a.cfg.DiagAddr, "Address for the diagnostics HTTP endpoint (empty = off)")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadOrDefault(a.cfgPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
		// Flags win over file values.
		if f := cmd.Flags().Lookup("models-dir"); f != nil && f.Changed {
			a.cfg.ModelsDir = f.Value.String()
		}
		if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
			a.cfg.LogLevel = f.Value.String()
		}
		if f := cmd.Flags().Lookup("diag-addr"); f != nil && f.Changed {
			a.cfg.DiagAddr = f.Value.String()
		}

		lvl, err := zerolog.ParseLevel(a.cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q", a.cfg.LogLevel)
		}
		a.log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(lvl).With().Timestamp().Logger()
		session.SetLogger(a.log)
		diag.SetLogger(a.log)
		return nil
	}

	root.AddCommand(newCompleteCmd(a), newReplCmd(a), newModelsCmd(a), newCompletionCmd(root))
	return root
}

// newCompletionCmd mirrors the standard shell-completion generators.
func newCompletionCmd(root *cobra.Command) *cobra.Command {
	c := &cobra.Command{Use: "completion", Short: "Generate the autocompletion script for the specified shell"}
	c.AddCommand(&cobra.Command{Use: "bash", Short: "Bash completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenBashCompletion(os.Stdout) }})
	c.AddCommand(&cobra.Command{Use: "zsh", Short: "Zsh completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenZshCompletion(os.Stdout) }})
	c.AddCommand(&cobra.Command{Use: "fish", Short: "Fish completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenFishCompletion(os.Stdout, true) }})
	c.AddCommand(&cobra.Command{Use: "powershell", Short: "PowerShell completion", RunE: func(cmd *cobra.Command, args []string) error { return root.GenPowerShellCompletionWithDesc(os.Stdout) }})
	return c
}

// openSession scans the registry, resolves ref, loads the model, and binds
// the session. The returned cleanup shuts down the diag server (when
// configured) and closes the handle.
func openSession(a *app, ref string, ctxWindow int) (*session.Session, func(), error) {
	if ref == "" {
		ref = a.cfg.DefaultModel
	}
	if ref == "" {
		return nil, nil, fmt.Errorf("no model given: pass --model or set default_model in the config")
	}

	models, err := registry.LoadDir(a.cfg.ModelsDir)
	if err != nil {
		// A direct path reference works without a scannable models dir.
		a.log.Debug().Err(err).Str("dir", a.cfg.ModelsDir).Msg("models dir scan failed")
		models = nil
	}
	path, err := registry.Resolve(models, ref)
	if err != nil {
		return nil, nil, err
	}

	if ctxWindow <= 0 {
		ctxWindow = a.cfg.CtxWindow
	}
	h, err := engine.Load(path, ctxWindow)
	if err != nil {
		return nil, nil, fmt.Errorf("load model: %w", err)
	}

	model := types.Model{ID: ref, Name: ref, Path: path}
	for _, m := range models {
		if m.Path == path {
			model = m
			break
		}
	}
	lane := session.NewLane(a.cfg.MaxQueueDepth, time.Duration(a.cfg.MaxWaitMs)*time.Millisecond)
	sess := session.New(h, lane, model, models, a.cfg.Threads)

	stopDiag := startDiag(a, sess)
	cleanup := func() {
		stopDiag()
		if err := sess.Close(); err != nil {
			a.log.Warn().Err(err).Msg("close session")
		}
	}
	return sess, cleanup, nil
}

// startDiag serves the diagnostics endpoint when configured. The returned
// stop func is a no-op otherwise.
func startDiag(a *app, svc diag.Service) func() {
	if a.cfg.DiagAddr == "" {
		return func() {}
	}
	srv := &http.Server{Addr: a.cfg.DiagAddr, Handler: diag.NewMux(svc)}
	go func() {
		a.log.Info().Str("addr", a.cfg.DiagAddr).Msg("diag endpoint listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error().Err(err).Msg("diag server error")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("diag shutdown")
		}
	}
}

// completionRequest assembles the per-call parameters from flags, falling
// back to the merged config for flags the caller left untouched.
func completionRequest(cmd *cobra.Command, a *app, prompt string) types.CompletionRequest {
	req := types.CompletionRequest{
		Prompt:        prompt,
		Threads:       a.cfg.Threads,
		MaxTokens:     a.cfg.MaxTokens,
		Temperature:   a.cfg.Temperature,
		TopP:          a.cfg.TopP,
		Seed:          a.cfg.Seed,
		RepeatPenalty: a.cfg.RepeatPenalty,
	}
	fl := cmd.Flags()
	if fl.Changed("threads") {
		req.Threads, _ = fl.GetInt("threads")
	}
	if fl.Changed("max-tokens") {
		req.MaxTokens, _ = fl.GetInt("max-tokens")
	}
	if fl.Changed("temperature") {
		req.Temperature, _ = fl.GetFloat64("temperature")
	}
	if fl.Changed("top-p") {
		req.TopP, _ = fl.GetFloat64("top-p")
	}
	if fl.Changed("seed") {
		req.Seed, _ = fl.GetInt64("seed")
	}
	if fl.Changed("repeat-penalty") {
		req.RepeatPenalty, _ = fl.GetFloat64("repeat-penalty")
	}
	return req
}

// addGenerationFlags registers the per-call sampling flags shared by
// complete and repl.
func addGenerationFlags(cmd *cobra.Command, a *app) {
	fl := cmd.Flags()
	fl.String("model", "", "Model id or path to a .gguf file")
	fl.Int("ctx-window", 0, "Context window size in tokens (0 = config default)")
	fl.Int("threads", a.cfg.Threads, "Engine threads (<=0 auto)")
	fl.Int("max-tokens", a.cfg.MaxTokens, "Maximum new tokens to generate")
	fl.Float64("temperature", a.cfg.Temperature, "Sampling temperature (0 = greedy)")
	fl.Float64("top-p", a.cfg.TopP, "Nucleus sampling probability (0 = default 0.95)")
	fl.Int64("seed", a.cfg.Seed, "Random seed (<0 = fresh per request)")
	fl.Float64("repeat-penalty", a.cfg.RepeatPenalty, "Repetition penalty (<=0 or 1 = off)")
}
