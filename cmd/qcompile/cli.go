package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lattice-ql/qcompiler/session"
)

// Exit codes, mirroring the pack's convention of a small fixed set rather
// than letting every error path improvise its own code.
const (
	ExitSuccess = 0
	ExitUsage   = 1
	ExitCompile = 2
	ExitInternal = 3
)

// CLI holds the root command and the global flags every subcommand reads.
type CLI struct {
	rootCmd *cobra.Command

	configPath  string
	catalogPath string
	useColor    bool
}

// New builds the qcompile CLI.
func New() *CLI {
	c := &CLI{}
	c.rootCmd = c.newRootCmd()
	return c
}

// Execute runs the CLI and returns the process exit code.
func (c *CLI) Execute() int {
	if err := c.rootCmd.Execute(); err != nil {
		return ExitInternal
	}
	return ExitSuccess
}

func (c *CLI) newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qcompile",
		Short: "Compile SQL into a map/reduce task plan",
		Long: `qcompile compiles a single SQL SELECT statement through the
analysis -> operator-tree -> map/reduce task planning pipeline and prints
the resulting plan.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "session config file (default: built-in defaults)")
	cmd.PersistentFlags().StringVar(&c.catalogPath, "catalog", "", "JSON file describing the tables available to the query (required)")
	cmd.PersistentFlags().BoolVar(&c.useColor, "color", false, "colorize EXPLAIN output")

	cmd.AddCommand(c.newCompileCmd())
	cmd.AddCommand(c.newExplainCmd())

	return cmd
}

func (c *CLI) loadSession() (*session.Session, error) {
	cfg, err := session.LoadConfig(c.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return session.NewSession(cfg)
}

func (c *CLI) fail(format string, args ...interface{}) error {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return fmt.Errorf(format, args...)
}
