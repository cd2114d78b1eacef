package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.1.0"

var (
	flagConfig    string
	flagBackend   string
	flagModel     string
	flagWorkspace string
	flagLogFile   string
	flagEngine    string
	flagVerbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "taskpilot",
	Short: "An autonomous mission runner powered by a local LLM",
	Long: `taskpilot turns a natural-language objective into a plan, then solves each step
either with a tool or by generating Python code and running it in a sandbox
until a critic accepts the output.`,
	Version:      Version,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "config file (default taskpilot.yaml)")
	pf.StringVar(&flagBackend, "backend", "", "LLM backend: ollama or gemini")
	pf.StringVarP(&flagModel, "model", "m", "", "default model for every role")
	pf.StringVarP(&flagWorkspace, "workspace", "w", "", "folder shared with the sandbox")
	pf.StringVar(&flagLogFile, "log-file", "", "log file path")
	pf.StringVar(&flagEngine, "engine", "", "sandbox engine: docker or dagger")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(runCmd, chatCmd, serveCmd, toolsCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
