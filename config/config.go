package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"dex-trader/pkg/catalog"
)

// TokenConfig is one entry of the static token catalog
type TokenConfig struct {
	Symbol   string `mapstructure:"symbol"`
	Address  string `mapstructure:"address"`
	Decimals uint8  `mapstructure:"decimals"`
}

// FeeTierConfig is one selectable pool fee
type FeeTierConfig struct {
	Value uint32 `mapstructure:"value"`
	Label string `mapstructure:"label"`
}

// Config holds the application configuration
type Config struct {
	RPCURL           string
	ChainID          int64
	PrivateKey       string
	MarketAddress    string
	PriceFeedAddress string
	ExplorerURL      string
	HistoryPath      string
	MetricsFile      string
	PollInterval     time.Duration
	GasLimit         uint64
	GasPrice         int64
	MaxLeverage      uint8
	Tokens           []TokenConfig
	FeeTiers         []FeeTierConfig
	DefaultFeeTier   uint32
}

// Sepolia deployment used when nothing is configured
var (
	defaultTokens = []map[string]interface{}{
		{"symbol": "WETH", "address": "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14", "decimals": 18},
		{"symbol": "USDC", "address": "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238", "decimals": 6},
	}
	defaultFeeTiers = []map[string]interface{}{
		{"value": 500, "label": "0.05%"},
		{"value": 3000, "label": "0.3%"},
		{"value": 10000, "label": "1%"},
	}
)

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName(".dex-trader")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME")
	v.AddConfigPath(".")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// FromViper applies defaults and environment overrides to v and decodes it.
func FromViper(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("DEX_TRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		RPCURL:           v.GetString("rpc_url"),
		ChainID:          v.GetInt64("chain_id"),
		PrivateKey:       v.GetString("private_key"),
		MarketAddress:    v.GetString("market_address"),
		PriceFeedAddress: v.GetString("price_feed_address"),
		ExplorerURL:      strings.TrimRight(v.GetString("explorer_url"), "/"),
		HistoryPath:      v.GetString("history_path"),
		MetricsFile:      v.GetString("metrics_file"),
		PollInterval:     v.GetDuration("poll_interval"),
		GasLimit:         v.GetUint64("gas_limit"),
		GasPrice:         v.GetInt64("gas_price"),
		DefaultFeeTier:   v.GetUint32("default_fee_tier"),
	}

	maxLeverage := v.GetInt("max_leverage")
	if maxLeverage < 1 || maxLeverage > 255 {
		return nil, fmt.Errorf("max_leverage must be between 1 and 255, got %d", maxLeverage)
	}
	cfg.MaxLeverage = uint8(maxLeverage)

	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return nil, fmt.Errorf("failed to decode tokens: %w", err)
	}
	if err := v.UnmarshalKey("fee_tiers", &cfg.FeeTiers); err != nil {
		return nil, fmt.Errorf("failed to decode fee tiers: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetDefaults registers the default values
func SetDefaults(v *viper.Viper) {
	v.SetDefault("rpc_url", "https://ethereum-sepolia-rpc.publicnode.com")
	v.SetDefault("chain_id", 11155111)
	v.SetDefault("market_address", "0x60d6cf3c5fe359dd232d0502467c0228f4026626")
	v.SetDefault("price_feed_address", "0x4349835161888d3c9916b73253765c84599a9d64")
	v.SetDefault("explorer_url", "https://sepolia.etherscan.io")
	v.SetDefault("poll_interval", "4s")
	v.SetDefault("max_leverage", 10)
	v.SetDefault("tokens", defaultTokens)
	v.SetDefault("fee_tiers", defaultFeeTiers)
	v.SetDefault("default_fee_tier", 3000)
}

// Validate checks addresses and required settings
func (c *Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("RPC URL not found. Please set DEX_TRADER_RPC_URL environment variable or rpc_url in .dex-trader.yaml")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("chain_id must be positive, got %d", c.ChainID)
	}
	if !common.IsHexAddress(c.MarketAddress) {
		return fmt.Errorf("invalid market_address %q", c.MarketAddress)
	}
	if !common.IsHexAddress(c.PriceFeedAddress) {
		return fmt.Errorf("invalid price_feed_address %q", c.PriceFeedAddress)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	if len(c.Tokens) == 0 {
		return fmt.Errorf("no tokens configured")
	}
	for _, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("invalid address %q for token %s", t.Address, t.Symbol)
		}
	}
	if len(c.FeeTiers) == 0 {
		return fmt.Errorf("no fee tiers configured")
	}
	return nil
}

// Market returns the market contract address
func (c *Config) Market() common.Address {
	return common.HexToAddress(c.MarketAddress)
}

// PriceFeed returns the price feed contract address
func (c *Config) PriceFeed() common.Address {
	return common.HexToAddress(c.PriceFeedAddress)
}

// Catalog builds the token and fee-tier catalog
func (c *Config) Catalog() (*catalog.Catalog, error) {
	tokens := make([]catalog.Token, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		tokens = append(tokens, catalog.Token{
			Address:  common.HexToAddress(t.Address),
			Symbol:   strings.ToUpper(strings.TrimSpace(t.Symbol)),
			Decimals: t.Decimals,
		})
	}

	tiers := make([]catalog.FeeTier, 0, len(c.FeeTiers))
	for _, t := range c.FeeTiers {
		tiers = append(tiers, catalog.FeeTier{Value: t.Value, Label: t.Label})
	}

	return catalog.New(tokens, tiers, c.DefaultFeeTier)
}

// TxURL links a transaction on the block explorer
func (c *Config) TxURL(hash string) string {
	if c.ExplorerURL == "" {
		return ""
	}
	return c.ExplorerURL + "/tx/" + hash
}
