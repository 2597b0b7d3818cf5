package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"dex-trader/pkg/intent"
	"dex-trader/pkg/parser"
	"dex-trader/pkg/types"
)

var (
	quoteFee     uint32
	quoteReverse bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Estimate the output of a trade",
	Long: `Estimate how much of the destination token an amount buys at the
price feed's latest price. Nothing is sent to the chain.

Examples:
  dex-trader quote 2 WETH to USDC
  dex-trader quote 1000 USDC to WETH --fee 500
  dex-trader quote 1 WETH to USDC --reverse`,
	Args: cobra.MinimumNArgs(4),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().Uint32Var(&quoteFee, "fee", 0, "Pool fee tier (500, 3000, 10000); default from config")
	quoteCmd.Flags().BoolVar(&quoteReverse, "reverse", false, "Quote the reversed pair")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseTradeCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := parser.ValidateTradeRequest(req); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx := context.Background()
	a, err := newApp(ctx, cmd)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	pair, err := a.catalog.Pair(req.SourceToken, req.DestToken, quoteFee)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	machine := a.engine.NewMachine(intent.Market, pair)
	if quoteReverse {
		machine.Switch()
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching price..."
		s.Start()
	}

	est, err := machine.Quote(ctx, req.Amount)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	display := types.NewQuoteDisplay(req.Amount, est)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(display, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayQuote(display)
	if display.InverseRate != "" {
		fmt.Printf("\n  1 %s = %s %s\n\n", display.DestToken, display.InverseRate, display.SourceToken)
	}
}
