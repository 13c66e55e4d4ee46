package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/microgrid-dispatch/api/client"
	"github.com/kilianp07/microgrid-dispatch/auth"
	"github.com/kilianp07/microgrid-dispatch/core/firelog"
	"github.com/kilianp07/microgrid-dispatch/core/model"
	"github.com/kilianp07/microgrid-dispatch/pkg/export"
)

var (
	apiServer   string
	apiToken    string
	oauthConf   auth.Conf
	microgridID uint64
	nextCount   int
	firingCount int
	firingsCSV  bool
)

var dispatchesCmd = &cobra.Command{
	Use:   "dispatches",
	Short: "Manage dispatches on a running service",
}

var dispatchesListCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the dispatches of a microgrid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, err := apiClient().List(cmd.Context(), microgridID, model.DispatchFilter{})
		if err != nil {
			return err
		}
		return printJSON(cmd, out)
	},
}

var dispatchesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one dispatch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("dispatch id: %w", err)
		}
		dd, err := apiClient().Get(cmd.Context(), microgridID, id)
		if err != nil {
			return err
		}
		return printJSON(cmd, dd)
	},
}

var dispatchesCreateCmd = &cobra.Command{
	Use:   "create <dispatch.json>",
	Short: "Create a dispatch from a JSON document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var d model.Dispatch
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		dd, err := apiClient().Create(cmd.Context(), microgridID, d)
		if err != nil {
			return err
		}
		return printJSON(cmd, dd)
	},
}

var dispatchesDeleteCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a dispatch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("dispatch id: %w", err)
		}
		return apiClient().Delete(cmd.Context(), microgridID, id)
	},
}

var dispatchesNextCmd = &cobra.Command{
	Use:   "next <id>",
	Short: "Show the upcoming occurrences of a stored dispatch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("dispatch id: %w", err)
		}
		occ, err := apiClient().Occurrences(cmd.Context(), microgridID, id, time.Now(), nextCount)
		if err != nil {
			return err
		}
		for _, t := range occ {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), t.Format(time.RFC3339)); err != nil {
				return err
			}
		}
		return nil
	},
}

var firingsCmd = &cobra.Command{
	Use:   "firings",
	Short: "Show recent firings of a microgrid",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		recs, err := apiClient().Firings(cmd.Context(), firelog.LogQuery{
			MicrogridID: microgridID,
			Start:       time.Now().Add(-24 * time.Hour),
			Limit:       firingCount,
		})
		if err != nil {
			return err
		}
		if firingsCSV {
			return export.WriteCSV(cmd.OutOrStdout(), recs)
		}
		return printJSON(cmd, recs)
	},
}

func init() {
	pf := dispatchesCmd.PersistentFlags()
	pf.StringVar(&apiServer, "server", "http://localhost:8080", "dispatch API base URL")
	pf.StringVar(&apiToken, "token", os.Getenv("DISPATCH_TOKEN"), "static bearer token")
	pf.StringVar(&oauthConf.ClientID, "client-id", "", "OAuth2 client id")
	pf.StringVar(&oauthConf.ClientSecret, "client-secret", os.Getenv("DISPATCH_CLIENT_SECRET"), "OAuth2 client secret")
	pf.StringVar(&oauthConf.TokenURL, "token-url", "", "OAuth2 token endpoint")
	pf.Uint64VarP(&microgridID, "microgrid", "m", 0, "microgrid id")
	_ = dispatchesCmd.MarkPersistentFlagRequired("microgrid")
	dispatchesNextCmd.Flags().IntVarP(&nextCount, "limit", "n", 10, "number of occurrences")
	firingsCmd.Flags().IntVarP(&firingCount, "limit", "n", 50, "number of records")
	firingsCmd.Flags().BoolVar(&firingsCSV, "csv", false, "print CSV instead of JSON")

	dispatchesCmd.AddCommand(dispatchesListCmd, dispatchesGetCmd, dispatchesCreateCmd,
		dispatchesDeleteCmd, dispatchesNextCmd, firingsCmd)
	rootCmd.AddCommand(dispatchesCmd)
}

func apiClient() *client.Client {
	return client.New(apiServer, auth.New(oauthConf, apiToken), nil)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
