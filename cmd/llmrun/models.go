package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"llmrun/internal/registry"
	"llmrun/pkg/types"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the *.gguf files found in the models directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := registry.LoadDir(a.cfg.ModelsDir)
			if err != nil {
				return err
			}
			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(types.ModelsResponse{Models: models})
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tQUANT\tPATH")
			for _, m := range models {
				fmt.Fprintf(w, "%s\t%s\t%s\n", m.ID, m.Quant, m.Path)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "Print the registry as JSON")
	return cmd
}
