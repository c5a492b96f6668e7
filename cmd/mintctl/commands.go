package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func dieOnError(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	b, err := json.MarshalIndent(v, "", "  ")
	dieOnError(err)
	fmt.Println(string(b))
}

func listDenominationsCommand(client func() *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "list-denominations",
		Short: "list the active denomination ladder",
		Run: func(*cobra.Command, []string) {
			var out interface{}
			dieOnError(client().get("/denominations", &out))
			printJSON(out)
		},
	}
}

func issueCommand(client func() *apiClient) *cobra.Command {
	var value, totalAmount uint64
	var currency, batchID, denominationID string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "issue a token, either a single denomination or a decomposed total amount",
		Run: func(*cobra.Command, []string) {
			req := map[string]interface{}{
				"denomination_id": denominationID,
				"value":           value,
				"currency":        currency,
				"total_amount":    totalAmount,
				"batch_id":        batchID,
			}
			var out interface{}
			dieOnError(client().post("/issue", req, &out))
			printJSON(out)
		},
	}
	cmd.Flags().StringVar(&denominationID, "denomination-id", "", "select by denomination id")
	cmd.Flags().Uint64Var(&value, "value", 0, "select by denomination value")
	cmd.Flags().StringVar(&currency, "currency", "SATS", "currency tag")
	cmd.Flags().Uint64Var(&totalAmount, "total-amount", 0, "issue a decomposed total amount instead of a single token")
	cmd.Flags().StringVar(&batchID, "batch-id", "", "tag this issue under a batch id")
	return cmd
}

func tokenFlag(cmd *cobra.Command) *string {
	var tokenJSON string
	cmd.Flags().StringVar(&tokenJSON, "token", "", "a token as a JSON object (as produced by `mintctl issue`)")
	return &tokenJSON
}

func parseToken(tokenJSON string) (interface{}, error) {
	if tokenJSON == "" {
		return nil, fmt.Errorf("--token is required")
	}
	var tok interface{}
	if err := json.Unmarshal([]byte(tokenJSON), &tok); err != nil {
		return nil, fmt.Errorf("invalid --token JSON: %w", err)
	}
	return tok, nil
}

func verifyCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "verify", Short: "verify a token without spending it"}
	tokenJSON := tokenFlag(cmd)
	cmd.Run = func(*cobra.Command, []string) {
		tok, err := parseToken(*tokenJSON)
		dieOnError(err)
		var out interface{}
		dieOnError(client().post("/verify", map[string]interface{}{"token": tok}, &out))
		printJSON(out)
	}
	return cmd
}

func redeemCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "redeem", Short: "redeem a token"}
	tokenJSON := tokenFlag(cmd)
	cmd.Run = func(*cobra.Command, []string) {
		tok, err := parseToken(*tokenJSON)
		dieOnError(err)
		var out interface{}
		dieOnError(client().post("/redeem", map[string]interface{}{"token": tok}, &out))
		printJSON(out)
	}
	return cmd
}

func splitCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "split", Short: "redeem part of a token's value, receiving change"}
	tokenJSON := tokenFlag(cmd)
	var redeemValue uint64
	cmd.Flags().Uint64Var(&redeemValue, "redeem-value", 0, "value to redeem now, strictly less than the token's denomination")
	cmd.Run = func(*cobra.Command, []string) {
		tok, err := parseToken(*tokenJSON)
		dieOnError(err)
		var out interface{}
		dieOnError(client().post("/split", map[string]interface{}{"token": tok, "redeem_value": redeemValue}, &out))
		printJSON(out)
	}
	return cmd
}

func remintCommand(client func() *apiClient) *cobra.Command {
	cmd := &cobra.Command{Use: "remint", Short: "exchange a token for a fresh one of the same denomination"}
	tokenJSON := tokenFlag(cmd)
	cmd.Run = func(*cobra.Command, []string) {
		tok, err := parseToken(*tokenJSON)
		dieOnError(err)
		var out interface{}
		dieOnError(client().post("/remint", map[string]interface{}{"token": tok}, &out))
		printJSON(out)
	}
	return cmd
}

func outstandingCommand(client func() *apiClient) *cobra.Command {
	var batchID, currency string
	cmd := &cobra.Command{
		Use:   "outstanding",
		Short: "report outstanding minted/redeemed value",
		Run: func(*cobra.Command, []string) {
			path := "/outstanding?currency=" + currency
			if batchID != "" {
				path += "&batch_id=" + batchID
			}
			var out interface{}
			dieOnError(client().get(path, &out))
			printJSON(out)
		},
	}
	cmd.Flags().StringVar(&batchID, "batch-id", "", "restrict to a single batch")
	cmd.Flags().StringVar(&currency, "currency", "SATS", "currency tag")
	return cmd
}
