package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromViper_Defaults(t *testing.T) {
	cfg, err := FromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, int64(11155111), cfg.ChainID)
	assert.Equal(t, common.HexToAddress("0x60d6cf3c5fe359dd232d0502467c0228f4026626"), cfg.Market())
	assert.Equal(t, 4*time.Second, cfg.PollInterval)
	assert.Equal(t, uint8(10), cfg.MaxLeverage)
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", cfg.TxURL("0xabc"))

	cat, err := cfg.Catalog()
	require.NoError(t, err)
	usdc, err := cat.Token("usdc")
	require.NoError(t, err)
	assert.Equal(t, uint8(6), usdc.Decimals)
	assert.Equal(t, "0.3%", cat.DefaultFeeTier().Label)
	assert.Len(t, cat.FeeTiers(), 3)
}

func TestFromViper_YAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
rpc_url: http://localhost:8545
chain_id: 31337
explorer_url: http://localhost:4000/
poll_interval: 250ms
max_leverage: 3
default_fee_tier: 500
tokens:
  - symbol: dai
    address: "0x00000000000000000000000000000000000000dd"
    decimals: 18
fee_tiers:
  - value: 500
    label: "0.05%"
`)))

	cfg, err := FromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.RPCURL)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, uint8(3), cfg.MaxLeverage)
	assert.Equal(t, "http://localhost:4000/tx/0x1", cfg.TxURL("0x1"))

	cat, err := cfg.Catalog()
	require.NoError(t, err)
	dai, err := cat.Token("DAI")
	require.NoError(t, err)
	assert.Equal(t, "DAI", dai.Symbol)
}

func TestFromViper_Environment(t *testing.T) {
	t.Setenv("DEX_TRADER_RPC_URL", "http://node:8545")
	t.Setenv("DEX_TRADER_MAX_LEVERAGE", "4")

	cfg, err := FromViper(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "http://node:8545", cfg.RPCURL)
	assert.Equal(t, uint8(4), cfg.MaxLeverage)
}

func TestFromViper_Invalid(t *testing.T) {
	tests := map[string]func(v *viper.Viper){
		"bad market":    func(v *viper.Viper) { v.Set("market_address", "0x123") },
		"bad feed":      func(v *viper.Viper) { v.Set("price_feed_address", "feed") },
		"empty rpc":     func(v *viper.Viper) { v.Set("rpc_url", "") },
		"zero chain":    func(v *viper.Viper) { v.Set("chain_id", 0) },
		"leverage":      func(v *viper.Viper) { v.Set("max_leverage", 0) },
		"poll interval": func(v *viper.Viper) { v.Set("poll_interval", "0s") },
		"token address": func(v *viper.Viper) {
			v.Set("tokens", []map[string]interface{}{{"symbol": "X", "address": "nope", "decimals": 18}})
		},
	}

	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			v := viper.New()
			mutate(v)
			_, err := FromViper(v)
			assert.Error(t, err)
		})
	}
}

func TestLoad_WithoutConfigFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DEX_TRADER_CHAIN_ID", "31337")

	first, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(31337), first.ChainID)

	t.Setenv("DEX_TRADER_CHAIN_ID", "1")
	second, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.ChainID, "each Load reads the environment afresh")
}
