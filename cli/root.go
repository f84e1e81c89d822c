// Package cli wires mongosrv's cobra command tree: "serve" runs the wire
// server (and, when enabled, the CDC ingester) until interrupted,
// "createuser" seeds a SCRAM credential into a credentials store, and
// "version" prints the build version. Structured the way the teacher
// project's cli package composes persistent flags and per-command
// RunE closures over a shared *zap.Logger and *config.Config.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mongobridge/mongosrv/config"
)

var rootExample = `
  Start the server:
    mongosrvd serve --port 27017

  Start with TLS and a CDC ingester enabled:
    mongosrvd serve --config /etc/mongosrvd.yaml

  Bootstrap an additional user:
    mongosrvd createuser --username alice --password s3cret
`

// Root builds the top-level "mongosrvd" command.
func Root(logger *zap.Logger, version string) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:     "mongosrvd",
		Short:   "A MongoDB-wire-protocol-compatible server with a CDC pipeline into a columnar store",
		Example: rootExample,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file, merged over built-in defaults")

	loadConfig := func() (*config.Config, error) {
		return config.Load(configPath)
	}

	root.AddCommand(newServeCommand(logger, loadConfig))
	root.AddCommand(newCreateUserCommand(logger, loadConfig))
	root.AddCommand(newVersionCommand(version))

	return root
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the mongosrvd version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	}
}
