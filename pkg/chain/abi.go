package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Contract names the ABI a call is encoded with.
type Contract string

const (
	ERC20         Contract = "erc20"
	Market        Contract = "market"
	PriceFeed     Contract = "priceFeed"
	LiquidityPool Contract = "liquidityPool"
)

const erc20ABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"constant":true,"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
	{"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

const marketABI = `[
	{"inputs":[
		{"name":"tokenIn","type":"address"},
		{"name":"tokenOut","type":"address"},
		{"name":"fee","type":"uint24"},
		{"name":"isMargin","type":"bool"},
		{"name":"leverage","type":"uint8"},
		{"name":"amountIn","type":"uint256"},
		{"name":"limitPrice","type":"uint256"},
		{"name":"stopLossPrice","type":"uint256"}
	],"name":"openPosition","outputs":[],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"token","type":"address"}],"name":"getTokenToLiquidityPools","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}
]`

const priceFeedABI = `[
	{"inputs":[{"name":"tokenA","type":"address"},{"name":"tokenB","type":"address"}],"name":"getPairLatestPrice","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const liquidityPoolABI = `[
	{"inputs":[{"name":"assets","type":"uint256"},{"name":"receiver","type":"address"}],"name":"deposit","outputs":[{"name":"shares","type":"uint256"}],"stateMutability":"nonpayable","type":"function"}
]`

var abis = map[Contract]abi.ABI{
	ERC20:         mustParse(erc20ABI),
	Market:        mustParse(marketABI),
	PriceFeed:     mustParse(priceFeedABI),
	LiquidityPool: mustParse(liquidityPoolABI),
}

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("invalid contract ABI: %v", err))
	}
	return parsed
}

// ABI returns the parsed ABI for a contract.
func ABI(c Contract) (abi.ABI, error) {
	parsed, ok := abis[c]
	if !ok {
		return abi.ABI{}, fmt.Errorf("unknown contract ABI %q", c)
	}
	return parsed, nil
}
