package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-trader/pkg/catalog"
	"dex-trader/pkg/intent"
	"dex-trader/pkg/order"
	"dex-trader/pkg/parser"
	"dex-trader/pkg/types"
)

var (
	tradeFee      uint32
	tradePrice    string
	tradeTrigger  string
	tradeLeverage int
	noConfirm     bool
	continueOrder bool
	noWait        bool
)

var tradeCmd = &cobra.Command{
	Use:   "trade <market|limit|stop-loss|margin> <amount> <source-token> to <dest-token>",
	Short: "Place an order on the market contract",
	Long: `Place a market, limit, stop-loss or margin order.

When the market contract may not yet spend the requested amount, the first run
sends an approval for exactly that amount and stops. Run the same command again
(or pass --continue) to place the order once the approval is confirmed.

Examples:
  # Market order
  dex-trader trade market 10 WETH to USDC

  # Limit order at 1800 USDC per WETH, approving and placing in one run
  dex-trader trade limit 1 WETH to USDC --price 1800 --continue

  # Stop-loss triggered at 1200
  dex-trader trade stop-loss 1 WETH to USDC --trigger 1200

  # 5x margin position on the 0.05% pool
  dex-trader trade margin 0.5 WETH to USDC --leverage 5 --fee 500 --yes`,
	Args: cobra.MinimumNArgs(2),
	Run:  runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)

	tradeCmd.Flags().Uint32Var(&tradeFee, "fee", 0, "Pool fee tier (500, 3000, 10000); default from config")
	tradeCmd.Flags().StringVar(&tradePrice, "price", "", "Limit price in destination tokens per source token (limit orders)")
	tradeCmd.Flags().StringVar(&tradeTrigger, "trigger", "", "Trigger price (stop-loss orders)")
	tradeCmd.Flags().IntVar(&tradeLeverage, "leverage", 1, "Leverage (margin orders)")
	addSubmitFlags(tradeCmd)
}

func addSubmitFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	cmd.Flags().BoolVar(&continueOrder, "continue", false, "Place the order right after a confirmed approval")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Return after broadcast without waiting for confirmation")
}

func runTrade(cmd *cobra.Command, args []string) {
	kind, err := intent.ParseKind(args[0])
	if err != nil || kind == intent.Deposit {
		printError(fmt.Errorf("unknown order type %q (want market, limit, stop-loss or margin)", args[0]))
		os.Exit(1)
	}

	req, err := parser.ParseTradeCommand(strings.Join(args[1:], " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parser.ValidateTradeRequest(req); err != nil {
		printError(err)
		os.Exit(1)
	}

	in := intent.Input{
		Amount:       req.Amount,
		LimitPrice:   tradePrice,
		TriggerPrice: tradeTrigger,
		Leverage:     tradeLeverage,
	}

	runOrder(cmd, kind, req, tradeFee, in)
}

// runOrder drives one order form through at most an approval and an action.
func runOrder(cmd *cobra.Command, kind intent.Kind, req *types.TradeRequest, fee uint32, in intent.Input) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if _, err := a.account(); err != nil {
		printError(err)
		os.Exit(1)
	}

	pair, err := resolvePair(a.catalog, kind, req, fee)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	machine := a.engine.NewMachine(kind, pair)

	if kind.SwapLike() && !jsonOutput {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Fetching quote..."
		s.Start()
		est, qerr := machine.Quote(ctx, in.Amount)
		s.Stop()
		if qerr != nil {
			color.Yellow("\nQuote unavailable: %v", qerr)
		} else {
			displayQuote(types.NewQuoteDisplay(in.Amount, est))
		}
	}

	needs, err := machine.NeedsApproval(ctx, in)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if !jsonOutput {
		displayOrder(kind, pair, in, needs)
	}

	if !noConfirm && !jsonOutput {
		prompt := "Send order?"
		if needs {
			prompt = fmt.Sprintf("Approve %s %s?", in.Amount, pair.From.Symbol)
		}
		if !confirmPrompt(prompt) {
			fmt.Println("\nOrder cancelled.")
			os.Exit(0)
		}
	}

	var statuses []types.TxStatus
	for {
		h, err := machine.Submit(ctx, in)
		if h == nil && err != nil {
			printError(err)
			os.Exit(1)
		}

		status := awaitHandle(ctx, a, machine, h, jsonOutput)
		statuses = append(statuses, status)

		snap := machine.Snapshot()
		if snap.State == order.ApprovalConfirmed && continueOrder && ctx.Err() == nil {
			if !jsonOutput {
				color.Green("\nApproval confirmed, placing the order...")
			}
			continue
		}
		break
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(statuses, "", "  ")
		fmt.Println(string(jsonData))
	}

	if last := statuses[len(statuses)-1]; last.Status == order.StatusFailed.String() {
		os.Exit(1)
	}
}

func resolvePair(cat *catalog.Catalog, kind intent.Kind, req *types.TradeRequest, fee uint32) (catalog.Pair, error) {
	if kind == intent.Deposit {
		token, err := cat.Token(req.SourceToken)
		if err != nil {
			return catalog.Pair{}, err
		}
		return catalog.Pair{From: token}, nil
	}
	return cat.Pair(req.SourceToken, req.DestToken, fee)
}

// awaitHandle reports the broadcast and, unless --no-wait, waits for the receipt.
func awaitHandle(ctx context.Context, a *app, machine *order.Machine, h *order.Handle, jsonOutput bool) types.TxStatus {
	snap := machine.Snapshot()
	status := types.TxStatus{
		OrderType: snap.Kind.String(),
		Stage:     string(h.Stage()),
	}

	hash, broadcast := h.Hash()
	if broadcast {
		status.TxHash = hash.Hex()
		status.Explorer = a.cfg.TxURL(hash.Hex())
		if !jsonOutput {
			fmt.Printf("\n  %s transaction sent: %s\n", stageLabel(h.Stage()), color.CyanString(shortHash(hash.Hex())))
			if status.Explorer != "" {
				fmt.Printf("  %s\n", color.HiBlackString(status.Explorer))
			}
		}
	}

	if broadcast && !noWait {
		waitWithSpinner(ctx, h, jsonOutput)
	}

	snap = machine.Snapshot()
	status.State = snap.State.String()
	status.Status = h.Status().String()
	status.Reason = h.Reason()

	switch {
	case h.Status() == order.StatusFailed:
		if !jsonOutput {
			color.Red("\n✗ %s failed: %s", stageLabel(h.Stage()), h.Reason())
		}
	case h.Status() == order.StatusConfirmed && h.Stage() == order.StageApproval:
		status.Next = "run the same command again to place the order"
		if !jsonOutput {
			color.Green("\n✓ Approval confirmed")
			if !continueOrder {
				fmt.Println("\nRun the same command again (or add --continue) to place the order.")
			}
		}
	case h.Status() == order.StatusConfirmed:
		if !jsonOutput {
			printSuccess(color.GreenString("✓ Order confirmed"))
		}
	default:
		status.Next = "dex-trader status " + status.TxHash
		if !jsonOutput {
			fmt.Println("\nYou can monitor the transaction using:")
			color.Cyan("  dex-trader status %s --watch\n", status.TxHash)
		}
	}

	return status
}

// waitWithSpinner blocks until h is terminal or the user interrupts. The
// transaction is not affected by an interrupt.
func waitWithSpinner(ctx context.Context, h *order.Handle, jsonOutput bool) {
	started := time.Now()

	var s *spinner.Spinner
	if !jsonOutput {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Suffix = " Waiting for confirmation..."
		s.Start()
		defer s.Stop()
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.Done():
			return
		case <-ctx.Done():
			if s != nil {
				s.Stop()
				color.Yellow("\nStopped waiting. The transaction is still pending on chain.")
			}
			return
		case <-ticker.C:
			if s != nil {
				elapsed := time.Since(started).Round(time.Second)
				s.Suffix = fmt.Sprintf(" Still waiting for confirmation (%s)...", elapsed)
			}
		}
	}
}

func displayQuote(q types.QuoteDisplay) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                       ESTIMATE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", q.SourceAmount, color.YellowString(q.SourceToken))
	if q.Known {
		fmt.Printf("  To:                ~%s %s\n", q.DestAmount, color.YellowString(q.DestToken))
		fmt.Printf("  Rate:              1 %s = %s %s\n", q.SourceToken, q.Rate, q.DestToken)
	} else {
		fmt.Printf("  To:                %s\n", color.HiBlackString("unavailable"))
	}
	fmt.Printf("  Pool Fee:          %s\n", q.Fee)

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func displayOrder(kind intent.Kind, pair catalog.Pair, in intent.Input, needsApproval bool) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                       %s ORDER", strings.ToUpper(kind.String()))
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Amount:            %s %s\n", in.Amount, color.YellowString(pair.From.Symbol))
	if kind.SwapLike() {
		fmt.Printf("  For:               %s\n", color.YellowString(pair.To.Symbol))
		fmt.Printf("  Pool Fee:          %s\n", pair.FeeTier.Label)
	}
	switch kind {
	case intent.Limit:
		fmt.Printf("  Limit Price:       %s\n", in.LimitPrice)
	case intent.StopLoss:
		fmt.Printf("  Trigger Price:     %s\n", in.TriggerPrice)
	case intent.Margin:
		fmt.Printf("  Leverage:          %dx\n", in.Leverage)
	case intent.Market:
		fmt.Printf("  Minimum Output:    %s\n", color.HiBlackString("none (estimate is informational)"))
	}

	if needsApproval {
		fmt.Printf("  Next Step:         %s\n", color.MagentaString("approve %s %s", in.Amount, pair.From.Symbol))
	} else {
		fmt.Printf("  Next Step:         %s\n", color.CyanString("send order"))
	}

	fmt.Println("\n" + strings.Repeat("=", 60))
}

func confirmPrompt(question string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", question)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func stageLabel(s order.Stage) string {
	if s == order.StageApproval {
		return "Approval"
	}
	return "Order"
}
