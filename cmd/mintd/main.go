// Command mintd runs the mint daemon: it bootstraps the denomination
// ladder, starts the key-rotation scheduler, and serves the HTTP API.
//
// Grounded on cmd/rivined's cobra-based main/commands split: main wires
// the root command and its subcommands, commands.go holds the command
// bodies, daemon.go holds the actual startup sequence.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chaumint/mintd/config"
)

// findConfigFlag does a minimal manual scan for -c/--config so the file
// it names can be loaded before the rest of the flag set is registered,
// giving the override order config.go documents: defaults, then file,
// then explicit flags.
func findConfigFlag(args []string) string {
	for i, a := range args {
		if a == "-c" || a == "--config" {
			if i+1 < len(args) {
				return args[i+1]
			}
		}
	}
	return ""
}

func main() {
	cfg, err := config.Load(findConfigFlag(os.Args[1:]))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cmds := &commands{cfg: cfg}

	root := &cobra.Command{
		Use:   "mintd",
		Short: "mintd runs the mint daemon",
		Long:  "mintd issues, verifies, redeems and splits Chaumian blind-signature tokens over an HTTP API.",
		Run:   cmds.rootCommand,
	}
	root.Flags().StringVarP(&cmds.configPath, "config", "c", "", "path to a mintd.toml config file")
	cmds.cfg.RegisterAsFlags(root.Flags())

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "print version information",
		Run:   cmds.versionCommand,
	}
	root.AddCommand(versionCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
