package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-trader/config"
	"dex-trader/pkg/catalog"
)

var filterSymbol string

var tokensCmd = &cobra.Command{
	Use:     "list-tokens",
	Aliases: []string{"tokens", "ls"},
	Short:   "List the configured tokens and fee tiers",
	Long: `List the tokens and pool fee tiers this client can trade.

The catalog is static and comes from the configuration file.

Examples:
  dex-trader list-tokens
  dex-trader list-tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

type tokenOutput struct {
	Symbol   string `json:"symbol"`
	Address  string `json:"address"`
	Decimals uint8  `json:"decimals"`
}

type feeTierOutput struct {
	Value   uint32 `json:"value"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}

type catalogOutput struct {
	Tokens   []tokenOutput   `json:"tokens"`
	FeeTiers []feeTierOutput `json:"fee_tiers"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cat, err := cfg.Catalog()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := cat.Tokens()
	if filterSymbol != "" {
		var temp []catalog.Token
		for _, token := range filtered {
			if strings.Contains(token.Symbol, strings.ToUpper(filterSymbol)) {
				temp = append(temp, token)
			}
		}
		filtered = temp
	}

	if jsonOutput {
		out := catalogOutput{}
		for _, t := range filtered {
			out.Tokens = append(out.Tokens, tokenOutput{Symbol: t.Symbol, Address: t.Address.Hex(), Decimals: t.Decimals})
		}
		for _, t := range cat.FeeTiers() {
			out.FeeTiers = append(out.FeeTiers, feeTierOutput{Value: t.Value, Label: t.Label, Default: t.Value == cat.DefaultFeeTier().Value})
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayTokens(filtered, cat.FeeTiers(), cat.DefaultFeeTier())
}

func displayTokens(tokens []catalog.Token, tiers []catalog.FeeTier, def catalog.FeeTier) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Println()
	for _, token := range tokens {
		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(token.Symbol),
			token.Decimals,
			color.HiBlackString(token.Address.Hex()))
	}

	color.Cyan("\nFEE TIERS")
	fmt.Println(strings.Repeat("-", 70))
	for _, tier := range tiers {
		marker := ""
		if tier.Value == def.Value {
			marker = color.GreenString(" (default)")
		}
		fmt.Printf("  %-6d  %s%s\n", tier.Value, tier.Label, marker)
	}

	fmt.Println("\n" + strings.Repeat("=", 70))
	fmt.Printf("\nTotal: %d tokens, %d fee tiers\n\n", len(tokens), len(tiers))
}
