package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"dex-trader/config"
	"dex-trader/pkg/history"
)

var historyStatusFilter string

var historyCmd = &cobra.Command{
	Use:   "history [entry-id]",
	Short: "List submitted approvals and orders",
	Long: `List every approval and order call recorded in the local journal, newest first,
or show a single entry by id.

Examples:
  dex-trader history
  dex-trader history --status pending
  dex-trader history 5f0c3a4e-8d1b-4b7a-9c2e-1a2b3c4d5e6f
  dex-trader history --json`,
	Args: cobra.MaximumNArgs(1),
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&historyStatusFilter, "status", "", "Filter by status (pending, confirmed, failed)")
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if len(args) == 1 {
		entry, err := store.Get(args[0])
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		if jsonOutput {
			jsonData, _ := json.MarshalIndent(entry, "", "  ")
			fmt.Println(string(jsonData))
			return
		}
		displayEntry(entry)
		return
	}

	var entries []*history.Entry
	if historyStatusFilter != "" {
		status, err := history.ParseStatus(historyStatusFilter)
		if err != nil {
			printError(err)
			os.Exit(1)
		}
		entries = store.ListByStatus(status)
	} else {
		entries = store.List()
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(entries, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(entries) == 0 {
		fmt.Printf("\nNo matching transactions in %s (%d recorded).\n", store.Path(), store.Count())
		fmt.Println("\nPlace an order with: dex-trader trade market <amount> <token> to <token>")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 140))
	fmt.Printf("                                 TRANSACTIONS (%d of %d)\n", len(entries), store.Count())
	fmt.Println(strings.Repeat("=", 140))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nID\tTIME\tORDER\tSTAGE\tPAIR\tAMOUNT\tHASH\tSTATUS")
	fmt.Fprintln(w, strings.Repeat("-", 140))

	for _, e := range entries {
		hash := "-"
		if e.Hash != "" {
			hash = shortHash(e.Hash)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s %s\t%s\t%s\n",
			e.ID, e.Created.Local().Format("2006-01-02 15:04"),
			e.OrderType, e.Stage, e.Pair, e.Amount, e.Token, hash,
			getColoredStatus(string(e.Status)))
	}

	w.Flush()
	fmt.Println("\n" + strings.Repeat("=", 140) + "\n")
}

func displayEntry(e *history.Entry) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        TRANSACTION")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  ID:              %s\n", e.ID)
	fmt.Printf("  Intent:          %s\n", e.IntentID)
	fmt.Printf("  Order:           %s %s\n", e.OrderType, e.Stage)
	if e.Pair != "" {
		fmt.Printf("  Pair:            %s\n", e.Pair)
	}
	fmt.Printf("  Amount:          %s %s\n", e.Amount, e.Token)
	fmt.Printf("  Contract:        %s.%s\n", e.Target, e.Method)
	if e.Hash != "" {
		fmt.Printf("  Hash:            %s\n", color.CyanString(e.Hash))
	}
	fmt.Printf("  Status:          %s\n", getColoredStatus(string(e.Status)))
	if e.Reason != "" {
		fmt.Printf("  Reason:          %s\n", color.RedString(e.Reason))
	}
	fmt.Printf("  Created:         %s\n", e.Created.Local().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Updated:         %s\n", e.Updated.Local().Format("2006-01-02 15:04:05"))

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

