package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	toolsMCP  []string
	toolsJSON bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the planner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context(), cfg, toolsMCP)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if toolsJSON {
			fmt.Fprintln(out, a.registry.Catalog())
			return nil
		}
		for _, e := range a.registry.Entries() {
			fmt.Fprintf(out, "%-16s %s\n", e.Name, e.Description)
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().StringArrayVar(&toolsMCP, "mcp", nil, "external tool server command")
	toolsCmd.Flags().BoolVar(&toolsJSON, "json", false, "print the catalog the planner sees")
}
