// Package cli implements the medcheck command line interface. Commands talk
// to a running API server through pkg/client; only migrate works against the
// database directly.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/medcheck/MedCheck-Engine/pkg/client"
)

// Build-time variables injected via ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

const defaultServerAddr = "http://localhost:8080"

// RootOptions holds the global CLI flags.
type RootOptions struct {
	ServerAddr   string
	ConfigPath   string
	OutputFormat string
	Timeout      time.Duration
	NoColor      bool
}

// cliContextKey carries the resolved cliContext through cobra's context.
type cliContextKey struct{}

// cliContext is built once in the root PersistentPreRunE and shared by every
// subcommand.
type cliContext struct {
	opts   *RootOptions
	client *client.Client
}

// NewRootCommand creates the medcheck root command with all global flags.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "medcheck",
		Short:   "MedCheck CLI - counterfeit medicine verification against regulator alerts",
		Long:    "MedCheck verifies pharmaceutical products against the NAFDAC alert corpus.\nSubmit a product name, batch number and packaging photos to receive a\ncounterfeit risk verdict.",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.NoColor {
				color.NoColor = true
			}
			c, err := client.New(opts.ServerAddr, client.WithTimeout(opts.Timeout))
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, &cliContext{
				opts:   opts,
				client: c,
			}))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.ServerAddr, "server", "s", defaultServerAddr, "API server address")
	pf.StringVarP(&opts.ConfigPath, "config", "c", "", "config file path (migrate only)")
	pf.StringVarP(&opts.OutputFormat, "output", "o", "text", "output format (text, json)")
	pf.DurationVar(&opts.Timeout, "timeout", 60*time.Second, "request timeout")
	pf.BoolVar(&opts.NoColor, "no-color", false, "disable colored output")

	cmd.AddCommand(
		NewVerifyCmd(),
		NewAlertsCmd(),
		NewMigrateCmd(),
	)
	return cmd
}

// getCLIContext extracts the shared context built by the root command.
func getCLIContext(cmd *cobra.Command) (*cliContext, error) {
	cc, ok := cmd.Context().Value(cliContextKey{}).(*cliContext)
	if !ok {
		return nil, fmt.Errorf("command context is not initialized")
	}
	return cc, nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}
