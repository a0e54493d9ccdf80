package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newCompleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete [prompt...]",
		Short: "Run one single-turn completion and print the text",
		Example: "  llmrun complete --model tinyllama.Q4_K_M.gguf \"2+2=\"\n" +
			"  llmrun complete --model ~/models/llm/phi-2.gguf --max-tokens 64 --temperature 0 \"def fib(n):\"",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt, err := promptFrom(cmd, args)
			if err != nil {
				return err
			}
			ref, _ := cmd.Flags().GetString("model")
			ctxWindow, _ := cmd.Flags().GetInt("ctx-window")

			sess, cleanup, err := openSession(a, ref, ctxWindow)
			if err != nil {
				return err
			}
			defer cleanup()

			text, err := sess.Complete(cmd.Context(), completionRequest(cmd, a, prompt))
			if err != nil {
				return err
			}
			// An empty result is still a success: the failure signal is
			// diagnostics-only by design.
			fmt.Println(text)
			return nil
		},
	}
	addGenerationFlags(cmd, a)
	cmd.Flags().String("prompt-file", "", "Read the prompt from a file instead of the arguments")
	return cmd
}

func promptFrom(cmd *cobra.Command, args []string) (string, error) {
	if file, _ := cmd.Flags().GetString("prompt-file"); file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("prompt file: %w", err)
		}
		return string(b), nil
	}
	if len(args) == 0 {
		return "", fmt.Errorf("no prompt given: pass it as arguments or via --prompt-file")
	}
	return strings.Join(args, " "), nil
}
