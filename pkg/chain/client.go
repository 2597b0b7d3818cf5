package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
)

const (
	DefaultPollInterval = 4 * time.Second
	fallbackGasLimit    = uint64(300000)
)

// Options configures a Client.
type Options struct {
	RPCURL       string
	ChainID      int64
	PrivateKey   string        // hex, optional; without it the client is read-only
	GasLimit     uint64        // 0 estimates per call
	GasPrice     int64         // wei, 0 asks the node
	PollInterval time.Duration // receipt polling interval
	Logger       *zap.Logger
}

// Client implements Reader, Writer and AccountProvider over a JSON-RPC endpoint.
type Client struct {
	client       *ethclient.Client
	chainID      *big.Int
	privateKey   *ecdsa.PrivateKey
	from         common.Address
	gasLimit     uint64
	gasPrice     int64
	pollInterval time.Duration
	logger       *zap.Logger
}

// TxInfo summarizes a transaction and its receipt, if mined.
type TxInfo struct {
	Hash        string `json:"hash"`
	From        string `json:"from,omitempty"`
	To          string `json:"to"`
	Nonce       uint64 `json:"nonce"`
	GasLimit    uint64 `json:"gas_limit"`
	GasPrice    string `json:"gas_price"`
	Pending     bool   `json:"pending"`
	Mined       bool   `json:"mined"`
	BlockNumber uint64 `json:"block_number,omitempty"`
	GasUsed     uint64 `json:"gas_used,omitempty"`
	Success     bool   `json:"success"`
}

// Dial connects to the RPC endpoint and loads the signing key if one is configured.
func Dial(ctx context.Context, opts Options) (*Client, error) {
	if opts.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured")
	}

	client, err := ethclient.DialContext(ctx, opts.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c := &Client{
		client:       client,
		chainID:      big.NewInt(opts.ChainID),
		gasLimit:     opts.GasLimit,
		gasPrice:     opts.GasPrice,
		pollInterval: opts.PollInterval,
		logger:       opts.Logger,
	}
	if c.pollInterval <= 0 {
		c.pollInterval = DefaultPollInterval
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	if opts.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(opts.PrivateKey, "0x"))
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		c.privateKey = key
		c.from = crypto.PubkeyToAddress(key.PublicKey)
	}

	return c, nil
}

// Account returns the address of the configured key.
func (c *Client) Account() (common.Address, bool) {
	return c.from, c.privateKey != nil
}

// Read executes a read-only call against the latest block.
func (c *Client) Read(ctx context.Context, call Call) ([]interface{}, error) {
	data, err := call.Pack()
	if err != nil {
		return nil, err
	}

	msg := ethereum.CallMsg{
		From: c.from,
		To:   &call.To,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", call.Method, err)
	}

	return call.Unpack(result)
}

// Write signs and broadcasts call from the configured account.
func (c *Client) Write(ctx context.Context, call Call) (common.Hash, error) {
	if c.privateKey == nil {
		return common.Hash{}, fmt.Errorf("no private key configured")
	}

	data, err := call.Pack()
	if err != nil {
		return common.Hash{}, err
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	gasLimit, err := c.getGasLimit(ctx, call.To, data)
	if err != nil {
		return common.Hash{}, err
	}

	tx := types.NewTransaction(nonce, call.To, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("transaction broadcast",
		zap.String("method", call.Method),
		zap.String("to", call.To.Hex()),
		zap.String("hash", signedTx.Hash().Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
	)

	return signedTx.Hash(), nil
}

// WaitConfirmed polls for the receipt until the transaction is mined. There is
// no timeout; cancel ctx to stop waiting.
func (c *Client) WaitConfirmed(ctx context.Context, hash common.Hash) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		switch {
		case err == nil:
			if receipt.Status == types.ReceiptStatusSuccessful {
				return nil
			}
			return &RevertError{Hash: hash, Reason: c.revertReason(ctx, hash, receipt)}
		case errors.Is(err, ethereum.NotFound):
			c.logger.Debug("transaction not mined yet", zap.String("hash", hash.Hex()))
		default:
			c.logger.Warn("failed to query receipt", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// TransactionInfo retrieves a transaction and, when mined, its receipt.
func (c *Client) TransactionInfo(ctx context.Context, hash common.Hash) (*TxInfo, error) {
	tx, isPending, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	info := &TxInfo{
		Hash:     tx.Hash().Hex(),
		Nonce:    tx.Nonce(),
		GasLimit: tx.Gas(),
		GasPrice: tx.GasPrice().String(),
		Pending:  isPending,
	}
	if tx.To() != nil {
		info.To = tx.To().Hex()
	}
	if from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx); err == nil {
		info.From = from.Hex()
	}

	if isPending {
		return info, nil
	}

	receipt, err := c.client.TransactionReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return info, nil
		}
		return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
	}

	info.Mined = true
	info.BlockNumber = receipt.BlockNumber.Uint64()
	info.GasUsed = receipt.GasUsed
	info.Success = receipt.Status == types.ReceiptStatusSuccessful

	return info, nil
}

// Close closes the client connection
func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *Client) getGasPrice(ctx context.Context) (*big.Int, error) {
	if c.gasPrice > 0 {
		return big.NewInt(c.gasPrice), nil
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}

	return gasPrice, nil
}

// getGasLimit estimates with a 20% buffer. A revert during estimation is returned
// as a RevertError so a doomed transaction is never broadcast.
func (c *Client) getGasLimit(ctx context.Context, to common.Address, data []byte) (uint64, error) {
	if c.gasLimit > 0 {
		return c.gasLimit, nil
	}

	estimated, err := c.client.EstimateGas(ctx, ethereum.CallMsg{
		From: c.from,
		To:   &to,
		Data: data,
	})
	if err == nil {
		return estimated * 120 / 100, nil
	}

	if reason, ok := decodeRevert(err); ok {
		return 0, &RevertError{Reason: reason}
	}

	c.logger.Warn("gas estimation failed, using fallback limit", zap.Error(err), zap.Uint64("gas_limit", fallbackGasLimit))
	return fallbackGasLimit, nil
}

// revertReason replays the reverted transaction at its block to recover the reason.
func (c *Client) revertReason(ctx context.Context, hash common.Hash, receipt *types.Receipt) string {
	const fallback = "execution reverted"

	tx, _, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return fallback
	}
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fallback
	}

	msg := ethereum.CallMsg{
		From:     from,
		To:       tx.To(),
		Gas:      tx.Gas(),
		GasPrice: tx.GasPrice(),
		Value:    tx.Value(),
		Data:     tx.Data(),
	}
	if _, err := c.client.CallContract(ctx, msg, receipt.BlockNumber); err != nil {
		if reason, ok := decodeRevert(err); ok {
			return reason
		}
		return err.Error()
	}

	return fallback
}

// decodeRevert extracts an Error(string) reason from a JSON-RPC execution error.
func decodeRevert(err error) (string, bool) {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return "", false
	}

	hexData, ok := dataErr.ErrorData().(string)
	if !ok {
		return dataErr.Error(), true
	}

	data, decodeErr := hexutil.Decode(hexData)
	if decodeErr != nil {
		return dataErr.Error(), true
	}

	reason, unpackErr := abi.UnpackRevert(data)
	if unpackErr != nil {
		return dataErr.Error(), true
	}

	return reason, true
}
