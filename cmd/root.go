package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "dex-trader",
	Short: "A CLI for trading against the market contracts on Sepolia",
	Long: `dex-trader places market, limit, stop-loss and margin orders and liquidity
deposits on the market contracts. Each run advances an order by one on-chain
call: an exact-amount token approval when the allowance is short, otherwise
the order itself.

Examples:
  dex-trader quote 2 WETH to USDC
  dex-trader trade market 10 WETH to USDC
  dex-trader trade limit 1 WETH to USDC --price 1800 --continue
  dex-trader deposit 100 USDC
  dex-trader history
  dex-trader status <tx-hash>`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}

// shortHash renders 0x1234...abcd
func shortHash(hash string) string {
	if len(hash) <= 14 {
		return hash
	}
	return hash[:6] + "..." + hash[len(hash)-4:]
}
