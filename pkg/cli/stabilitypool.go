package cli

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/threefoldtech/stabilitypool/modules"
	"github.com/threefoldtech/stabilitypool/pkg/client"
	"github.com/threefoldtech/stabilitypool/types"
)

// NewRootCmd builds the spguardianc command tree, grounded on the
// teacher's pkg/client/gatewaycmd.go one-GET-per-subcommand shape. The
// --addr/--password persistent flags populate the same HTTPClient every
// subcommand closes over, so they take effect before any command's Run.
func NewRootCmd() *cobra.Command {
	httpClient := &client.HTTPClient{RootURL: "localhost:23110"}

	root := &cobra.Command{
		Use:   "spguardianc",
		Short: "Stability pool guardian client",
		Long:  "spguardianc queries a stability pool guardian daemon's read-only API.",
	}
	root.PersistentFlags().StringVarP(&httpClient.RootURL, "addr", "a", httpClient.RootURL, "which host:port the daemon's API listens on")
	root.PersistentFlags().StringVar(&httpClient.Password, "password", "", "API password, if the daemon has --authenticate-api set")

	root.AddCommand(
		averageFeeRateCmd(httpClient),
		activeDepositsCmd(httpClient),
		activeProvidesCmd(httpClient),
		liquidityStatsCmd(httpClient),
		unlockStatusCmd(httpClient),
		historyCmd(httpClient),
		auditCmd(httpClient),
	)
	return root
}

func averageFeeRateCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "average-fee-rate [n]",
		Short: "Print the average fee rate of the last n cycles",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				Die("invalid n:", err)
			}
			var resp struct {
				FeeRatePPB types.FeeRatePPB `json:"feerateppb"`
			}
			if err := c.GetWithResponse(fmt.Sprintf("/stabilitypool/average-fee-rate?n=%d", n), &resp); err != nil {
				DieWithError("could not fetch average fee rate", err)
			}
			fmt.Println("Average fee rate (ppb):", resp.FeeRatePPB)
		},
	}
}

func activeDepositsCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "active-deposits [accountid]",
		Short: "Print an account's staged and locked seeks",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var deposits modules.ActiveDeposits
			if err := c.GetWithResponse("/stabilitypool/active-deposits/"+args[0], &deposits); err != nil {
				DieWithError("could not fetch active deposits", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Kind\tAmount (msat)")
			for _, s := range deposits.Staged {
				fmt.Fprintf(w, "staged\t%v\n", s.Amount)
			}
			for _, s := range deposits.Locked {
				fmt.Fprintf(w, "locked\t%v\n", s.Amount)
			}
			w.Flush()
		},
	}
}

func activeProvidesCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "active-provides [accountid]",
		Short: "Print an account's staged and locked provides",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var provides modules.ActiveProvides
			if err := c.GetWithResponse("/stabilitypool/active-provides/"+args[0], &provides); err != nil {
				DieWithError("could not fetch active provides", err)
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Kind\tAmount (msat)\tMin fee rate (ppb)")
			for _, p := range provides.Staged {
				fmt.Fprintf(w, "staged\t%v\t%v\n", p.Amount, p.Meta)
			}
			for _, p := range provides.Locked {
				fmt.Fprintf(w, "locked\t%v\t%v\n", p.Amount, p.Meta)
			}
			w.Flush()
		},
	}
}

func liquidityStatsCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "liquidity-stats",
		Short: "Print federation-wide liquidity totals",
		Run: func(_ *cobra.Command, _ []string) {
			var stats modules.LiquidityStats
			if err := c.GetWithResponse("/stabilitypool/liquidity-stats", &stats); err != nil {
				DieWithError("could not fetch liquidity stats", err)
			}
			fmt.Println("Locked seeks (msat):   ", stats.LockedSeeksSum)
			fmt.Println("Locked provides (msat):", stats.LockedProvidesSum)
			fmt.Println("Staged seeks (msat):   ", stats.StagedSeeksSum)
			fmt.Println("Staged provides (msat):", stats.StagedProvidesSum)
		},
	}
}

func unlockStatusCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "unlock-status [accountid]",
		Short: "Print an account's unlock request status",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var status modules.UnlockRequestStatus
			if err := c.GetWithResponse("/stabilitypool/unlock-request-status/"+args[0], &status); err != nil {
				DieWithError("could not fetch unlock request status", err)
			}
			if status.Pending {
				fmt.Println("Pending: next cycle starts at", status.NextCycleStartTimeUnixNano)
				return
			}
			fmt.Println("No pending unlock request. Idle balance (msat):", status.IdleBalance)
		},
	}
}

func historyCmd(c *client.HTTPClient) *cobra.Command {
	var start uint64
	var limit int
	cmd := &cobra.Command{
		Use:   "history [accountid]",
		Short: "Print an account's history",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			var resp struct {
				Items []types.AccountHistoryItem `json:"items"`
			}
			call := fmt.Sprintf("/stabilitypool/history/%s?start=%d&limit=%d", args[0], start, limit)
			if err := c.GetWithResponse(call, &resp); err != nil {
				DieWithError("could not fetch account history", err)
			}
			if len(resp.Items) == 0 {
				fmt.Println("No history entries to show.")
				return
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "Sequence\tKind\tAmount (msat)")
			for _, item := range resp.Items {
				fmt.Fprintf(w, "%v\t%v\t%v\n", item.Sequence, item.Kind, item.Amount)
			}
			w.Flush()
		},
	}
	cmd.Flags().Uint64Var(&start, "start", 0, "history counter to start from")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of entries to return (0 = unbounded)")
	return cmd
}

func auditCmd(c *client.HTTPClient) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "Print the federation's total reported liabilities",
		Run: func(_ *cobra.Command, _ []string) {
			var result modules.AuditResult
			if err := c.GetWithResponse("/stabilitypool/audit", &result); err != nil {
				DieWithError("could not fetch audit result", err)
			}
			fmt.Println("Liabilities (msat):", result.LiabilitiesMsat)
		},
	}
}
