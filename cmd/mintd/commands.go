package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/chaumint/mintd/build"
	"github.com/chaumint/mintd/config"
)

type commands struct {
	cfg        config.Config
	configPath string
}

func (cmds *commands) rootCommand(*cobra.Command, []string) {
	if err := cmds.cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := runDaemon(cmds.cfg); err != nil {
		fmt.Fprintln(os.Stderr, "daemon failed:", err)
		os.Exit(1)
	}
}

func (cmds *commands) versionCommand(*cobra.Command, []string) {
	fmt.Printf("mintd v%s\r\n", build.Version.String())
	fmt.Println()
	fmt.Printf("Go Version   v%s\r\n", runtime.Version()[2:])
	fmt.Printf("GOOS         %s\r\n", runtime.GOOS)
	fmt.Printf("GOARCH       %s\r\n", runtime.GOARCH)
}
