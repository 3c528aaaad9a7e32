// Command hostbridge runs the HostBridge tool-dispatch server: a single
// binary exposing the REST/WebSocket API and the MCP endpoint over one
// listener, backed by a SQLite-persisted audit log, memory graph, and
// HITL/plan state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "hostbridge",
		Short: "HostBridge tool-dispatch server",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the YAML config file")

	root.AddCommand(newServeCmd(&configPath))
	root.AddCommand(newSecretCmd(&configPath))
	root.AddCommand(newConfigCmd(&configPath))
	return root
}
