package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dex-trader/pkg/chain"
	"dex-trader/pkg/history"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a submitted transaction",
	Long: `Check whether an approval or order transaction has been mined. Transactions
sent by this client are matched against the local journal, which is updated
with the outcome.

Examples:
  dex-trader status 0x1234...abcd
  dex-trader status 0x1234...abcd --watch
  dex-trader status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the transaction is mined")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

type statusOutput struct {
	*chain.TxInfo
	Explorer string         `json:"explorer,omitempty"`
	Entry    *history.Entry `json:"entry,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if !isTxHash(args[0]) {
		printError(fmt.Errorf("invalid transaction hash %q", args[0]))
		os.Exit(1)
	}
	hash := common.HexToHash(args[0])

	var period time.Duration
	if watchStatus {
		p, err := watchPeriod(watchInterval)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		period = p
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if watchStatus {
		watchTxStatus(ctx, a, hash, period, jsonOutput)
	} else {
		checkTxStatus(ctx, a, hash, jsonOutput)
	}
}

func checkTxStatus(ctx context.Context, a *app, hash common.Hash, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	out, err := lookupStatus(ctx, a, hash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(out)
	}
}

func watchTxStatus(ctx context.Context, a *app, hash common.Hash, period time.Duration, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s\n", color.CyanString(hash.Hex()))
	fmt.Printf("Checking every %s. Press Ctrl+C to stop.\n\n", period)

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		out, err := lookupStatus(ctx, a, hash)
		if err != nil {
			color.Red("Error: %v", err)
		} else {
			displayStatus(out)
			if out.Mined {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// lookupStatus fetches the transaction and settles a matching pending journal entry.
func lookupStatus(ctx context.Context, a *app, hash common.Hash) (*statusOutput, error) {
	info, err := a.client.TransactionInfo(ctx, hash)
	if err != nil {
		return nil, err
	}

	out := &statusOutput{TxInfo: info, Explorer: a.cfg.TxURL(info.Hash)}

	entry, ok := a.journal.FindByHash(info.Hash)
	if !ok {
		return out, nil
	}

	if info.Mined && entry.Status == history.StatusPending {
		status, reason := history.StatusConfirmed, ""
		if !info.Success {
			status, reason = history.StatusFailed, "transaction reverted"
		}
		if err := a.journal.SetStatus(entry.ID, status, reason); err != nil {
			a.logger.Warn("failed to update history", zap.String("id", entry.ID), zap.Error(err))
		} else {
			entry.Status = status
			entry.Reason = reason
		}
	}
	out.Entry = entry

	return out, nil
}

func displayStatus(out *statusOutput) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                     TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Hash:            %s\n", color.CyanString(out.Hash))
	fmt.Printf("  Status:          %s\n", getColoredStatus(txState(out.TxInfo)))
	if out.From != "" {
		fmt.Printf("  From:            %s\n", out.From)
	}
	fmt.Printf("  To:              %s\n", out.To)
	fmt.Printf("  Nonce:           %d\n", out.Nonce)
	if out.Mined {
		fmt.Printf("  Block:           %d\n", out.BlockNumber)
		fmt.Printf("  Gas Used:        %d / %d\n", out.GasUsed, out.GasLimit)
	}

	if e := out.Entry; e != nil {
		fmt.Printf("  Order:           %s %s\n", e.OrderType, e.Stage)
		fmt.Printf("  Amount:          %s %s\n", e.Amount, e.Token)
		if e.Pair != "" {
			fmt.Printf("  Pair:            %s\n", e.Pair)
		}
		if e.Reason != "" {
			fmt.Printf("  Reason:          %s\n", color.RedString(e.Reason))
		}
	}

	if out.Explorer != "" {
		fmt.Printf("  Explorer:        %s\n", color.HiBlackString(out.Explorer))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func txState(info *chain.TxInfo) string {
	switch {
	case !info.Mined:
		return "pending"
	case info.Success:
		return "confirmed"
	default:
		return "failed"
	}
}

// watchPeriod converts the --interval flag, which must be positive.
func watchPeriod(seconds int) (time.Duration, error) {
	if seconds <= 0 {
		return 0, fmt.Errorf("--interval must be a positive number of seconds, got %d", seconds)
	}
	return time.Duration(seconds) * time.Second, nil
}

func isTxHash(s string) bool {
	b, err := hexutil.Decode(s)
	return err == nil && len(b) == common.HashLength
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "CONFIRMED", "SUCCESS":
		return color.GreenString(status)
	case "PENDING", "CONFIRMING":
		return color.YellowString(status)
	case "FAILED", "REVERTED":
		return color.RedString(status)
	default:
		return status
	}
}
