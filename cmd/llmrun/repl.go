package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newReplCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Read prompts line by line and run each as an independent completion",
		Long: "Each line is a fresh single-turn completion against the same loaded model.\n" +
			"Engine state is reset per request; there is no conversation memory.\n" +
			"Exit with /quit or EOF.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ref, _ := cmd.Flags().GetString("model")
			ctxWindow, _ := cmd.Flags().GetInt("ctx-window")

			sess, cleanup, err := openSession(a, ref, ctxWindow)
			if err != nil {
				return err
			}
			defer cleanup()

			in := bufio.NewScanner(os.Stdin)
			out := cmd.OutOrStdout()
			for {
				fmt.Fprint(out, "> ")
				if !in.Scan() {
					break
				}
				line := in.Text()
				if line == "/quit" {
					break
				}
				if line == "" {
					continue
				}
				if err := cmd.Context().Err(); err != nil {
					break
				}
				text, err := sess.Complete(cmd.Context(), completionRequest(cmd, a, line))
				if err != nil {
					return err
				}
				fmt.Fprintln(out, text)
			}
			return in.Err()
		},
	}
	addGenerationFlags(cmd, a)
	return cmd
}
