// Command mintctl is a thin command-line client for a running mintd,
// issuing JSON requests against its HTTP API via api.HttpGET/HttpPOST.
//
// Grounded on cmd/rivinec's cobra-based CLI client shape, trimmed down
// from a full wallet/blockchain client to a handful of subcommands
// mirroring the API's own operation surface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var addr, apiKey string

	root := &cobra.Command{
		Use:   "mintctl",
		Short: "mintctl talks to a running mintd over its HTTP API",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "http://localhost:8420", "mintd API base address")
	root.PersistentFlags().StringVar(&apiKey, "api-key", "", "shared secret for the X-API-Key header")

	client := func() *apiClient { return newClient(addr, apiKey) }

	root.AddCommand(
		listDenominationsCommand(client),
		issueCommand(client),
		verifyCommand(client),
		redeemCommand(client),
		splitCommand(client),
		remintCommand(client),
		outstandingCommand(client),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
