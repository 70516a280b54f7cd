package chainfeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/tapcoin/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const receiver = "TReceiverAddress000000000000000000"

func newClient(baseURL string, timeout time.Duration) *TronGrid {
	return NewTronGrid(config.Config{Tron: config.TronConfig{
		ReceiveAddress: receiver,
		TokenContract:  "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t",
		BaseURL:        baseURL,
		APIKey:         "secret-key",
		FeedLimit:      20,
		Timeout:        timeout,
	}}, zap.NewNop())
}

func TestRecentSendsQueryAndParsesItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/"+receiver+"/transactions/trc20", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "true", q.Get("only_confirmed"))
		assert.Equal(t, "20", q.Get("limit"))
		assert.Equal(t, "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t", q.Get("contract_address"))
		assert.Equal(t, "block_timestamp,desc", q.Get("order_by"))
		assert.Equal(t, "secret-key", r.Header.Get("TRON-PRO-API-KEY"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":[
			{"transaction_id":"tx-new","value":"10004200","block_timestamp":1767225600123,"to":"` + receiver + `"},
			{"transaction_id":"","value":"1","block_timestamp":1767225500000},
			{"transaction_id":"tx-bad","value":"abc","block_timestamp":1767225500000},
			{"transaction_id":"tx-out","value":"5000000","block_timestamp":1767225400000,"to":"TSomeoneElse"},
			{"transaction_id":"tx-num","value":50000000,"block_timestamp":1767225300999}
		]}`))
	}))
	defer srv.Close()

	transfers, err := newClient(srv.URL, time.Second).Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, "tx-new", transfers[0].TxID)
	assert.Equal(t, "10.0042", transfers[0].Amount.String())
	assert.Equal(t, int64(1767225600), transfers[0].BlockTimestamp)
	assert.NotEmpty(t, transfers[0].Raw)

	assert.Equal(t, "tx-num", transfers[1].TxID)
	assert.Equal(t, "50", transfers[1].Amount.String())
	assert.Equal(t, int64(1767225300), transfers[1].BlockTimestamp)
}

func TestRecentNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, time.Second).Recent(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
	assert.Equal(t, "status", Reason(err))
}

func TestRecentMalformedBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>oops`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL, time.Second).Recent(context.Background())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRecentTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := newClient(srv.URL, 50*time.Millisecond).Recent(context.Background())
	assert.ErrorIs(t, err, ErrFeedRequestTimeout)
	assert.Equal(t, "timeout", Reason(err))
}

func TestRecentRequiresReceiveAddress(t *testing.T) {
	client := NewTronGrid(config.Config{}, zap.NewNop())
	assert.False(t, client.Configured())
	_, err := client.Recent(context.Background())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseUnits(t *testing.T) {
	v, err := parseUnits([]byte(`"1000000"`))
	require.NoError(t, err)
	assert.Equal(t, "1000000", v.String())

	_, err = parseUnits([]byte(`"1.5"`))
	assert.Error(t, err)
	_, err = parseUnits([]byte(`"-3"`))
	assert.Error(t, err)
	_, err = parseUnits([]byte(`null`))
	assert.Error(t, err)
}
