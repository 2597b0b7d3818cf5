package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dex-trader/pkg/types"
)

func TestParseTradeCommand(t *testing.T) {
	tests := []struct {
		command string
		want    types.TradeRequest
	}{
		{"10 WETH to USDC", types.TradeRequest{Amount: "10", SourceToken: "WETH", DestToken: "USDC"}},
		{"swap 1.5 weth to usdc", types.TradeRequest{Amount: "1.5", SourceToken: "WETH", DestToken: "USDC"}},
		{"  trade   .25  WETH   TO  USDC ", types.TradeRequest{Amount: ".25", SourceToken: "WETH", DestToken: "USDC"}},
		{"3000 USDC to WETH", types.TradeRequest{Amount: "3000", SourceToken: "USDC", DestToken: "WETH"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, err := ParseTradeCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseTradeCommand_Invalid(t *testing.T) {
	for _, command := range []string{"", "10 WETH", "WETH to USDC", "-1 WETH to USDC", "1e3 WETH to USDC", "10 WETH into USDC"} {
		_, err := ParseTradeCommand(command)
		assert.Error(t, err, command)
	}
}

func TestParseDepositCommand(t *testing.T) {
	got, err := ParseDepositCommand("deposit 100 usdc")
	require.NoError(t, err)
	assert.Equal(t, types.TradeRequest{Amount: "100", SourceToken: "USDC"}, *got)

	_, err = ParseDepositCommand("100 USDC to WETH")
	assert.Error(t, err)
}

func TestValidateTradeRequest(t *testing.T) {
	assert.NoError(t, ValidateTradeRequest(&types.TradeRequest{Amount: "1", SourceToken: "WETH", DestToken: "USDC"}))
	assert.Error(t, ValidateTradeRequest(&types.TradeRequest{SourceToken: "WETH", DestToken: "USDC"}))
	assert.Error(t, ValidateTradeRequest(&types.TradeRequest{Amount: "1", DestToken: "USDC"}))
	assert.Error(t, ValidateTradeRequest(&types.TradeRequest{Amount: "1", SourceToken: "WETH"}))
	assert.Error(t, ValidateTradeRequest(&types.TradeRequest{Amount: "1", SourceToken: "weth", DestToken: "WETH"}))
}
