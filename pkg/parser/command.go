package parser

import (
	"fmt"
	"regexp"
	"strings"

	"dex-trader/pkg/types"
)

var (
	tradePattern   = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)\s+([A-Z0-9]+)\s+TO\s+([A-Z0-9]+)$`)
	depositPattern = regexp.MustCompile(`^(\d+\.?\d*|\.\d+)\s+([A-Z0-9]+)$`)
)

// ParseTradeCommand parses a natural language trade command
// Examples:
//   - "10 WETH to USDC"
//   - "swap 1.5 WETH to USDC"
//   - "3000 USDC to WETH"
func ParseTradeCommand(command string) (*types.TradeRequest, error) {
	command = normalize(command)

	// Remove a leading verb if present
	for _, verb := range []string{"SWAP ", "TRADE ", "BUY ", "SELL "} {
		command = strings.TrimPrefix(command, verb)
	}

	matches := tradePattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid trade command format. Expected: '<amount> <token> to <token>' (e.g., '10 WETH to USDC')")
	}

	return &types.TradeRequest{
		Amount:      matches[1],
		SourceToken: matches[2],
		DestToken:   matches[3],
	}, nil
}

// ParseDepositCommand parses "<amount> <token>", optionally prefixed with "deposit".
func ParseDepositCommand(command string) (*types.TradeRequest, error) {
	command = strings.TrimPrefix(normalize(command), "DEPOSIT ")

	matches := depositPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid deposit command format. Expected: '<amount> <token>' (e.g., '100 USDC')")
	}

	return &types.TradeRequest{
		Amount:      matches[1],
		SourceToken: matches[2],
	}, nil
}

// ValidateTradeRequest validates that a trade request has all required fields
func ValidateTradeRequest(req *types.TradeRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if NormalizeTokenSymbol(req.SourceToken) == NormalizeTokenSymbol(req.DestToken) {
		return fmt.Errorf("source and destination tokens must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}

func normalize(command string) string {
	return strings.Join(strings.Fields(strings.ToUpper(command)), " ")
}
