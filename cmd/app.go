package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"dex-trader/config"
	"dex-trader/pkg/catalog"
	"dex-trader/pkg/chain"
	"dex-trader/pkg/history"
	"dex-trader/pkg/intent"
	"dex-trader/pkg/metrics"
	"dex-trader/pkg/order"
	"dex-trader/pkg/quote"
)

// app bundles the wired collaborators of one command run
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	client  *chain.Client
	catalog *catalog.Catalog
	journal *history.Store
	quoter  *quote.Quoter
	engine  *order.Engine
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}

// newApp loads configuration and connects to the RPC endpoint
func newApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	verbose, _ := cmd.Flags().GetBool("verbose")

	logger, err := newLogger(verbose)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	cat, err := cfg.Catalog()
	if err != nil {
		return nil, fmt.Errorf("invalid token catalog: %w", err)
	}

	client, err := chain.Dial(ctx, chain.Options{
		RPCURL:       cfg.RPCURL,
		ChainID:      cfg.ChainID,
		PrivateKey:   cfg.PrivateKey,
		GasLimit:     cfg.GasLimit,
		GasPrice:     cfg.GasPrice,
		PollInterval: cfg.PollInterval,
		Logger:       logger.Named("chain"),
	})
	if err != nil {
		return nil, err
	}

	journal, err := history.NewStore(cfg.HistoryPath)
	if err != nil {
		client.Close()
		return nil, err
	}

	quoter := quote.NewQuoter(client, cfg.PriceFeed(), logger.Named("quote"))

	engine, err := order.NewEngine(order.Config{
		Builder: &intent.Builder{
			Catalog:     cat,
			Market:      cfg.Market(),
			MaxLeverage: cfg.MaxLeverage,
		},
		Accounts: client,
		Reader:   client,
		Writer:   client,
		Quoter:   quoter,
		Journal:  journal,
		Logger:   logger.Named("order"),
	})
	if err != nil {
		client.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		client:  client,
		catalog: cat,
		journal: journal,
		quoter:  quoter,
		engine:  engine,
	}, nil
}

func (a *app) Close() {
	if a.cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(a.cfg.MetricsFile); err != nil {
			a.logger.Warn("failed to write metrics", zap.String("path", a.cfg.MetricsFile), zap.Error(err))
		}
	}
	a.client.Close()
	_ = a.logger.Sync()
}

// account returns the configured signer or an error explaining how to set one
func (a *app) account() (string, error) {
	addr, ok := a.client.Account()
	if !ok {
		return "", fmt.Errorf("no account configured. Please set DEX_TRADER_PRIVATE_KEY environment variable or private_key in .dex-trader.yaml")
	}
	return addr.Hex(), nil
}
