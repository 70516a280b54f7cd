// Package chainfeed reads confirmed TRC20 transfers to the receiving address from TronGrid.
package chainfeed

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
)

// Transfer is one confirmed token transfer as reported by the feed.
type Transfer struct {
	TxID           string          `json:"transaction_id"`
	Amount         decimal.Decimal `json:"amount"`
	BlockTimestamp int64           `json:"block_timestamp"`
	From           string          `json:"from,omitempty"`
	To             string          `json:"to,omitempty"`
	Raw            json.RawMessage `json:"-"`
}

// Feed lists the most recent confirmed transfers, newest first.
type Feed interface {
	Recent(ctx context.Context) ([]Transfer, error)
}

var (
	ErrNotConfigured      = errors.New("chain_feed_not_configured")
	ErrUnexpectedStatus   = errors.New("chain_feed_unexpected_status")
	ErrMalformedResponse  = errors.New("chain_feed_malformed_response")
	ErrTransportFailure   = errors.New("chain_feed_transport_failure")
	ErrFeedRequestTimeout = errors.New("chain_feed_timeout")
)

// Reason maps a feed error to a low-cardinality label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.Is(err, ErrFeedRequestTimeout):
		return "timeout"
	case errors.Is(err, ErrUnexpectedStatus):
		return "status"
	case errors.Is(err, ErrMalformedResponse):
		return "decode"
	default:
		return "transport"
	}
}
