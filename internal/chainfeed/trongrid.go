package chainfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/tapcoin/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// USDT on TRON carries six decimals.
const tokenDecimals = 6

const maxBodyBytes = 1 << 20

type trc20Item struct {
	TransactionID  string          `json:"transaction_id"`
	Value          json.RawMessage `json:"value"`
	BlockTimestamp int64           `json:"block_timestamp"`
	From           string          `json:"from"`
	To             string          `json:"to"`
}

type trc20Response struct {
	Data    []json.RawMessage `json:"data"`
	Success *bool             `json:"success"`
	Error   string            `json:"error"`
}

// TronGrid reads the account's TRC20 transfer history.
type TronGrid struct {
	baseURL  string
	address  string
	contract string
	apiKey   string
	limit    int
	client   *http.Client
	log      *zap.Logger
}

func NewTronGrid(cfg config.Config, log *zap.Logger) *TronGrid {
	limit := cfg.Tron.FeedLimit
	if limit <= 0 {
		limit = 20
	}
	return &TronGrid{
		baseURL:  strings.TrimRight(strings.TrimSpace(cfg.Tron.BaseURL), "/"),
		address:  strings.TrimSpace(cfg.Tron.ReceiveAddress),
		contract: strings.TrimSpace(cfg.Tron.TokenContract),
		apiKey:   strings.TrimSpace(cfg.Tron.APIKey),
		limit:    limit,
		client:   &http.Client{Timeout: cfg.Tron.Timeout},
		log:      log.Named("chainfeed.trongrid"),
	}
}

// Configured reports whether a receiving address is set.
func (c *TronGrid) Configured() bool {
	return c.address != ""
}

func (c *TronGrid) Recent(ctx context.Context) ([]Transfer, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	ctx, span := otel.Tracer("tapcoin/chainfeed").Start(ctx, "trongrid.trc20_transfers")
	defer span.End()
	span.SetAttributes(attribute.Int("feed.limit", c.limit))

	transfers, err := c.fetch(ctx)
	if err != nil {
		span.SetStatus(codes.Error, Reason(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int("feed.items", len(transfers)))
	return transfers, nil
}

func (c *TronGrid) fetch(ctx context.Context) ([]Transfer, error) {
	values := url.Values{}
	values.Set("only_confirmed", "true")
	values.Set("limit", strconv.Itoa(c.limit))
	values.Set("contract_address", c.contract)
	values.Set("order_by", "block_timestamp,desc")

	endpoint := fmt.Sprintf("%s/v1/accounts/%s/transactions/trc20?%s", c.baseURL, url.PathEscape(c.address), values.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrFeedRequestTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransportFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var body trc20Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if body.Success != nil && !*body.Success {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedStatus, strings.TrimSpace(body.Error))
	}

	transfers := make([]Transfer, 0, len(body.Data))
	for _, raw := range body.Data {
		transfer, ok := c.parseItem(raw)
		if !ok {
			continue
		}
		transfers = append(transfers, transfer)
	}
	return transfers, nil
}

// parseItem skips entries missing an id, with an unusable value, or sent from the receiving address.
func (c *TronGrid) parseItem(raw json.RawMessage) (Transfer, bool) {
	var item trc20Item
	if err := json.Unmarshal(raw, &item); err != nil {
		c.log.Debug("skipping undecodable transfer", zap.Error(err))
		return Transfer{}, false
	}
	txID := strings.TrimSpace(item.TransactionID)
	if txID == "" {
		c.log.Debug("skipping transfer without id")
		return Transfer{}, false
	}
	if item.To != "" && !strings.EqualFold(item.To, c.address) {
		return Transfer{}, false
	}

	units, err := parseUnits(item.Value)
	if err != nil {
		c.log.Debug("skipping transfer with invalid value", zap.String("tx_id", txID), zap.Error(err))
		return Transfer{}, false
	}

	return Transfer{
		TxID:           txID,
		Amount:         units.Shift(-tokenDecimals),
		BlockTimestamp: item.BlockTimestamp / 1000,
		From:           item.From,
		To:             item.To,
		Raw:            raw,
	}, true
}

// parseUnits accepts the integer base-unit value as a JSON string or number.
func parseUnits(raw json.RawMessage) (decimal.Decimal, error) {
	text := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if text == "" || text == "null" {
		return decimal.Decimal{}, errors.New("empty value")
	}
	units, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if units.IsNegative() || !units.Equal(units.Truncate(0)) {
		return decimal.Decimal{}, fmt.Errorf("value %q is not a base-unit integer", text)
	}
	return units, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr interface{ Timeout() bool }
	return errors.As(err, &netErr) && netErr.Timeout()
}
