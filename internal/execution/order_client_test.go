package execution

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPrivateKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testSecret     = "dGVzdC1zZWNyZXQ=" // url-safe base64 of "test-secret"
)

func liveClient(t *testing.T, baseURL string) *OrderClient {
	t.Helper()

	client, err := NewOrderClient(&OrderClientConfig{
		BaseURL:     baseURL,
		APIKey:      "test-api-key",
		Secret:      testSecret,
		Passphrase:  "test-passphrase",
		PrivateKey:  testPrivateKey,
		MaxAttempts: 3,
		Timeout:     5 * time.Second,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	return client
}

func TestOrderClient_DryRunSimulatedAck(t *testing.T) {
	client, err := NewOrderClient(&OrderClientConfig{
		DryRun: true,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	ack, err := client.PlaceOrder(context.Background(), "tok-1", "BUY", 0.34, 20, false)
	require.NoError(t, err)

	assert.True(t, ack.Simulated)
	assert.True(t, strings.HasPrefix(ack.OrderID, "sim-"))
	assert.True(t, ack.Filled())

	// Two simulated orders get distinct ids
	ack2, err := client.PlaceOrder(context.Background(), "tok-1", "BUY", 0.34, 20, false)
	require.NoError(t, err)
	assert.NotEqual(t, ack.OrderID, ack2.OrderID)
}

func TestOrderClient_RejectsInvalidPrice(t *testing.T) {
	client, err := NewOrderClient(&OrderClientConfig{DryRun: true, Logger: zap.NewNop()})
	require.NoError(t, err)

	for _, price := range []float64{0, -0.1, 1, 1.2} {
		_, err := client.PlaceOrder(context.Background(), "tok-1", "BUY", price, 20, false)
		assert.Error(t, err, "price %v", price)
	}
}

func TestOrderClient_PlaceOrderLive(t *testing.T) {
	var gotRequest types.OrderSubmissionRequest
	var gotHeaders http.Header

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/order", r.URL.Path)
		gotHeaders = r.Header.Clone()

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotRequest))

		json.NewEncoder(w).Encode(types.OrderSubmissionResponse{
			Success: true,
			OrderID: "order-123",
			Status:  "live",
		})
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)

	ack, err := client.PlaceOrder(context.Background(), "123456", "BUY", 0.62, 10, true)
	require.NoError(t, err)

	assert.Equal(t, "order-123", ack.OrderID)
	assert.Equal(t, "live", ack.Status)
	assert.False(t, ack.Simulated)

	// L2 auth headers
	assert.Equal(t, "test-api-key", gotHeaders.Get("POLY_API_KEY"))
	assert.Equal(t, "test-passphrase", gotHeaders.Get("POLY_PASSPHRASE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_SIGNATURE"))
	assert.NotEmpty(t, gotHeaders.Get("POLY_TIMESTAMP"))
	assert.Equal(t, client.Address(), gotHeaders.Get("POLY_ADDRESS"))

	// Post-only orders rest as GTC
	assert.Equal(t, "GTC", gotRequest.OrderType)
	assert.Equal(t, "test-api-key", gotRequest.Owner)
	assert.Equal(t, "BUY", gotRequest.Order.Side)
	assert.Equal(t, "123456", gotRequest.Order.TokenID)
	// BUY of 10 tokens at 0.62: 6.2 USDC maker, 10 tokens taker, raw 10^-6
	assert.Equal(t, "6200000", gotRequest.Order.MakerAmount)
	assert.Equal(t, "10000000", gotRequest.Order.TakerAmount)
	assert.True(t, strings.HasPrefix(gotRequest.Order.Signature, "0x"))
}

func TestOrderClient_MarketableOrderIsFAK(t *testing.T) {
	var gotRequest types.OrderSubmissionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &gotRequest))
		json.NewEncoder(w).Encode(types.OrderSubmissionResponse{
			Success: true,
			OrderID: "order-456",
			Status:  "matched",
		})
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)

	ack, err := client.PlaceOrder(context.Background(), "123456", "SELL", 0.41, 20, false)
	require.NoError(t, err)

	assert.Equal(t, "FAK", gotRequest.OrderType)
	assert.Equal(t, "SELL", gotRequest.Order.Side)
	// SELL of 20 tokens at 0.41: 20 tokens maker, 8.2 USDC taker
	assert.Equal(t, "20000000", gotRequest.Order.MakerAmount)
	assert.Equal(t, "8200000", gotRequest.Order.TakerAmount)
	assert.True(t, ack.Filled())
}

func TestOrderClient_ClassifiesRejections(t *testing.T) {
	tests := []struct {
		name     string
		errorMsg string
		check    func(error) bool
	}{
		{"insufficient-balance", "not enough balance: INVALID_ORDER_NOT_ENOUGH_BALANCE", types.IsInsufficientBalance},
		{"min-size", "order too small: INVALID_ORDER_MIN_SIZE", types.IsMinNotional},
		{"tick-size", "bad tick: INVALID_ORDER_MIN_TICK_SIZE", types.IsMinNotional},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				json.NewEncoder(w).Encode(types.OrderSubmissionResponse{
					Success:  false,
					ErrorMsg: tt.errorMsg,
				})
			}))
			defer srv.Close()

			client := liveClient(t, srv.URL)
			_, err := client.PlaceOrder(context.Background(), "123456", "BUY", 0.5, 10, false)
			require.Error(t, err)
			assert.True(t, tt.check(err))
		})
	}
}

func TestOrderClient_RetriesOnServerError(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(types.OrderSubmissionResponse{
			Success: true,
			OrderID: "order-789",
			Status:  "live",
		})
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	ack, err := client.PlaceOrder(context.Background(), "123456", "BUY", 0.5, 10, true)
	require.NoError(t, err)

	assert.Equal(t, "order-789", ack.OrderID)
	assert.Equal(t, int64(3), calls.Load())
}

func TestOrderClient_BacksOffBetweenRetries(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(types.OrderSubmissionResponse{
			Success: true,
			OrderID: "order-790",
			Status:  "live",
		})
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	start := time.Now()
	_, err := client.PlaceOrder(context.Background(), "123456", "BUY", 0.5, 10, true)
	require.NoError(t, err)

	// Attempts two and three wait 200ms and 400ms before going out
	assert.GreaterOrEqual(t, time.Since(start), 600*time.Millisecond)
	assert.Equal(t, int64(3), calls.Load())
}

func TestOrderClient_RetryBackoffHonorsContext(t *testing.T) {
	var calls atomic.Int64

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.PlaceOrder(ctx, "123456", "BUY", 0.5, 10, true)
	require.Error(t, err)
	assert.Equal(t, int64(1), calls.Load(), "no second attempt after cancellation")
}

func TestOrderClient_TimeoutAfterExhaustedRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	_, err := client.PlaceOrder(context.Background(), "123456", "BUY", 0.5, 10, true)
	require.Error(t, err)
	assert.True(t, types.IsTimeout(err))
}

func TestOrderClient_GetCollateralBalance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "COLLATERAL", r.URL.Query().Get("asset_type"))
		json.NewEncoder(w).Encode(types.BalanceAllowanceResponse{
			Balance: "123450000",
		})
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	balance, err := client.GetCollateralBalance(context.Background())
	require.NoError(t, err)

	// Raw 10^-6 units
	assert.InDelta(t, 123.45, balance, 1e-9)
}

func TestOrderClient_CancelOrder(t *testing.T) {
	var gotMethod, gotPath string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.Write([]byte(`{"canceled": ["order-123"]}`))
	}))
	defer srv.Close()

	client := liveClient(t, srv.URL)
	require.NoError(t, client.CancelOrder(context.Background(), "order-123"))

	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/order", gotPath)
}
