package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"dex-trader/pkg/intent"
	"dex-trader/pkg/parser"
)

var depositCmd = &cobra.Command{
	Use:   "deposit <amount> <token>",
	Short: "Deposit tokens into the token's liquidity pool",
	Long: `Deposit an amount of a token into the liquidity pool the market contract
registers for it. The pool receives the approval, and the configured account
receives the pool shares.

Examples:
  dex-trader deposit 100 USDC
  dex-trader deposit 0.5 WETH --continue --yes`,
	Args: cobra.MinimumNArgs(2),
	Run:  runDeposit,
}

func init() {
	rootCmd.AddCommand(depositCmd)

	addSubmitFlags(depositCmd)
}

func runDeposit(cmd *cobra.Command, args []string) {
	req, err := parser.ParseDepositCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	runOrder(cmd, intent.Deposit, req, 0, intent.Input{Amount: req.Amount})
}
