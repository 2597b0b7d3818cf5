package types

import (
	"github.com/shopspring/decimal"

	"dex-trader/pkg/quote"
)

// TradeRequest represents a user's trade command
type TradeRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
}

// QuoteDisplay holds formatted quote information for display
type QuoteDisplay struct {
	SourceAmount string `json:"source_amount"`
	SourceToken  string `json:"source_token"`
	DestAmount   string `json:"dest_amount"` // empty when unknown
	DestToken    string `json:"dest_token"`
	Rate         string `json:"rate,omitempty"`
	InverseRate  string `json:"inverse_rate,omitempty"`
	Fee          string `json:"fee"`
	Known        bool   `json:"known"`
}

// NewQuoteDisplay formats an estimate of amount for display.
func NewQuoteDisplay(amount string, est quote.Estimate) QuoteDisplay {
	d := QuoteDisplay{
		SourceAmount: amount,
		SourceToken:  est.Pair.From.Symbol,
		DestToken:    est.Pair.To.Symbol,
		Fee:          est.Pair.FeeTier.Label,
		Known:        est.Known,
	}
	if !est.Known {
		return d
	}

	d.DestAmount = est.Formatted
	rate := PriceToDecimal(est)
	d.Rate = rate.String()
	if !rate.IsZero() {
		d.InverseRate = decimal.NewFromInt(1).DivRound(rate, 8).String()
	}
	return d
}

// PriceToDecimal converts the 18-decimal feed price of an estimate to a decimal.
func PriceToDecimal(est quote.Estimate) decimal.Decimal {
	if est.Price == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(est.Price, -quote.PriceDecimals)
}

// TxStatus represents the current state of a submitted order
type TxStatus struct {
	OrderType string `json:"order_type"`
	Stage     string `json:"stage"`
	State     string `json:"state"`
	Status    string `json:"status"`
	TxHash    string `json:"tx_hash,omitempty"`
	Explorer  string `json:"explorer,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Next      string `json:"next,omitempty"`
}
