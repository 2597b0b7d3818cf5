package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-trader/pkg/allowance"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/units"
)

var (
	allowanceAmount string
	allowancePool   bool
)

var allowanceCmd = &cobra.Command{
	Use:   "allowance <token>",
	Short: "Show how much the market contract may spend",
	Long: `Show the ERC20 allowance the configured account has granted to the market
contract (or, with --pool, to the token's liquidity pool). With --amount the
command also reports whether an order of that size needs an approval first.

Examples:
  dex-trader allowance USDC
  dex-trader allowance WETH --amount 1.5
  dex-trader allowance USDC --pool --amount 100`,
	Args: cobra.ExactArgs(1),
	Run:  runAllowance,
}

func init() {
	rootCmd.AddCommand(allowanceCmd)

	allowanceCmd.Flags().StringVar(&allowanceAmount, "amount", "", "Amount to check against the allowance")
	allowanceCmd.Flags().BoolVar(&allowancePool, "pool", false, "Check the allowance of the token's liquidity pool")
}

type allowanceOutput struct {
	Token         string `json:"token"`
	Owner         string `json:"owner"`
	Spender       string `json:"spender"`
	Allowance     string `json:"allowance"`
	AllowanceBase string `json:"allowance_base"`
	Amount        string `json:"amount,omitempty"`
	NeedsApproval bool   `json:"needs_approval"`
}

func runAllowance(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	ctx := context.Background()
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
	owner, _ := a.client.Account()

	token, err := a.catalog.Token(args[0])
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	spender := a.cfg.Market()
	if allowancePool {
		pool, err := chain.ReadAddress(ctx, a.client, chain.LiquidityPoolFor(a.cfg.Market(), token.Address))
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if pool == (common.Address{}) {
			printError(fmt.Errorf("no liquidity pool registered for %s", token.Symbol))
			os.Exit(1)
		}
		spender = pool
	}

	current, err := a.engine.Tracker().Get(ctx, allowance.Key{Owner: owner, Token: token.Address, Spender: spender})
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	out := allowanceOutput{
		Token:         token.Symbol,
		Owner:         owner.Hex(),
		Spender:       spender.Hex(),
		Allowance:     units.FromBaseUnits(current.Value, token.Decimals),
		AllowanceBase: current.String(),
	}

	if allowanceAmount != "" {
		requested, err := units.ToBaseUnits(allowanceAmount, token.Decimals)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		out.Amount = allowanceAmount
		out.NeedsApproval = allowance.NeedsApproval(requested, current)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                          ALLOWANCE")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Token:           %s\n", color.YellowString(out.Token))
	fmt.Printf("  Owner:           %s\n", color.CyanString(out.Owner))
	fmt.Printf("  Spender:         %s\n", color.CyanString(out.Spender))
	fmt.Printf("  Allowance:       %s %s\n", out.Allowance, out.Token)
	if out.Amount != "" {
		verdict := color.GreenString("no")
		if out.NeedsApproval {
			verdict = color.MagentaString("yes")
		}
		fmt.Printf("  Approve %-8s %s\n", out.Amount+":", verdict)
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
