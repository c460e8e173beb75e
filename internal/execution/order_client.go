package execution

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

const zeroAddress = "0x0000000000000000000000000000000000000000"

// Retry pacing for transient submit failures.
const (
	submitBackoffInitial = 200 * time.Millisecond
	submitBackoffMax     = 5 * time.Second
)

// OrderClient signs and submits single orders to the Polymarket CLOB. In
// dry-run mode nothing leaves the process and every placement returns a
// simulated matched ack.
type OrderClient struct {
	baseURL       string
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string // EOA address (signer)
	funderAddress string // proxy address (maker) when set
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	httpClient    *http.Client
	dryRun        bool
	maxAttempts   int
	logger        *zap.Logger
}

// OrderClientConfig holds configuration for the order client.
type OrderClientConfig struct {
	BaseURL       string
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	FunderAddress string
	SignatureType int
	Timeout       time.Duration
	MaxAttempts   int
	DryRun        bool
	Logger        *zap.Logger
}

// NewOrderClient creates an order client. A private key is required only for
// live trading; dry-run clients may omit it.
func NewOrderClient(cfg *OrderClientConfig) (*OrderClient, error) {
	c := &OrderClient{
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		funderAddress: cfg.FunderAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		dryRun:        cfg.DryRun,
		maxAttempts:   cfg.MaxAttempts,
		logger:        cfg.Logger,
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 3
	}
	if cfg.Timeout <= 0 {
		c.httpClient.Timeout = 30 * time.Second
	}

	if cfg.PrivateKey != "" {
		privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		c.privateKey = privateKey

		publicKey, _ := privateKey.Public().(*ecdsa.PublicKey)
		c.address = crypto.PubkeyToAddress(*publicKey).Hex()

		c.orderBuilder = builder.NewExchangeOrderBuilderImpl(big.NewInt(137), nil)
	} else if !cfg.DryRun {
		return nil, fmt.Errorf("live trading requires a private key")
	}

	return c, nil
}

// Address returns the signing EOA address.
func (c *OrderClient) Address() string { return c.address }

// PlaceOrder signs and submits a single BUY or SELL order for one token.
// Post-only orders rest as GTC limits; marketable orders go out as FAK so
// any unfilled remainder is cancelled by the venue.
func (c *OrderClient) PlaceOrder(ctx context.Context, tokenID, side string, price, size float64, postOnly bool) (*types.OrderAck, error) {
	if price <= 0 || price >= 1 {
		return nil, &types.OrderError{
			Kind:    types.OrderErrRejected,
			Code:    "INVALID_PRICE",
			Message: fmt.Sprintf("price %.4f outside (0,1)", price),
			TokenID: tokenID,
		}
	}

	if c.dryRun {
		ack := &types.OrderAck{
			OrderID:   "sim-" + uuid.New().String(),
			Status:    "matched",
			Simulated: true,
		}
		OrdersPlacedTotal.WithLabelValues("simulated", strings.ToLower(side)).Inc()
		c.logger.Info("order-simulated",
			zap.String("token-id", tokenID),
			zap.String("side", side),
			zap.Float64("price", price),
			zap.Float64("size", size),
			zap.String("order-id", ack.OrderID))
		return ack, nil
	}

	signedOrder, err := c.buildOrder(tokenID, side, price, size)
	if err != nil {
		return nil, fmt.Errorf("build order: %w", err)
	}

	orderType := "FAK"
	if postOnly {
		orderType = "GTC"
	}

	resp, err := c.submitOrder(ctx, signedOrder, orderType, tokenID)
	if err != nil {
		return nil, err
	}

	OrdersPlacedTotal.WithLabelValues("live", strings.ToLower(side)).Inc()
	c.logger.Info("order-placed",
		zap.String("token-id", tokenID),
		zap.String("side", side),
		zap.Float64("price", price),
		zap.Float64("size", size),
		zap.String("order-id", resp.OrderID),
		zap.String("status", resp.Status),
		zap.String("order-type", orderType))

	return &types.OrderAck{OrderID: resp.OrderID, Status: resp.Status}, nil
}

// buildOrder constructs and signs the EIP-712 order. Amounts are raw 10^-6
// units: a BUY spends USDC for tokens, a SELL spends tokens for USDC.
func (c *OrderClient) buildOrder(tokenID, side string, price, size float64) (*model.SignedOrder, error) {
	makerAddress := c.address
	if c.funderAddress != "" {
		makerAddress = c.funderAddress
	}

	var orderSide model.Side
	var makerAmount, takerAmount string
	switch side {
	case "BUY":
		orderSide = model.BUY
		makerAmount = toRawAmount(price * size)
		takerAmount = toRawAmount(size)
	case "SELL":
		orderSide = model.SELL
		makerAmount = toRawAmount(size)
		takerAmount = toRawAmount(price * size)
	default:
		return nil, fmt.Errorf("unknown side %q", side)
	}

	orderData := &model.OrderData{
		Maker:         makerAddress,
		Taker:         zeroAddress,
		TokenId:       tokenID,
		MakerAmount:   makerAmount,
		TakerAmount:   takerAmount,
		Side:          orderSide,
		FeeRateBps:    "0",
		Nonce:         "0",
		Signer:        c.address,
		Expiration:    "0",
		SignatureType: c.signatureType,
	}

	return c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
}

func (c *OrderClient) submitOrder(ctx context.Context, order *model.SignedOrder, orderType, tokenID string) (*types.OrderSubmissionResponse, error) {
	sideStr := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		sideStr = "SELL"
	}

	request := types.OrderSubmissionRequest{
		Order: types.SignedOrderJSON{
			Salt:          order.Salt.Int64(),
			Maker:         order.Maker.Hex(),
			Signer:        order.Signer.Hex(),
			Taker:         order.Taker.Hex(),
			TokenID:       order.TokenId.String(),
			MakerAmount:   order.MakerAmount.String(),
			TakerAmount:   order.TakerAmount.String(),
			Side:          sideStr,
			Expiration:    order.Expiration.String(),
			Nonce:         order.Nonce.String(),
			FeeRateBps:    order.FeeRateBps.String(),
			SignatureType: int(order.SignatureType.Int64()),
			Signature:     "0x" + common.Bytes2Hex(order.Signature),
		},
		Owner:     c.apiKey,
		OrderType: orderType,
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	backoff := submitBackoffInitial
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > submitBackoffMax {
				backoff = submitBackoffMax
			}
		}

		body, status, err := c.signedRequest(ctx, http.MethodPost, "/order", reqBody)
		if err != nil {
			lastErr = err
			OrderRetriesTotal.Inc()
			c.logger.Warn("order-submit-retrying",
				zap.Int("attempt", attempt),
				zap.Error(err))
			continue
		}

		if status >= 500 {
			lastErr = fmt.Errorf("venue error: status %d: %s", status, string(body))
			OrderRetriesTotal.Inc()
			continue
		}

		var resp types.OrderSubmissionResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("parse response: %w", err)
		}

		if status != http.StatusOK && status != http.StatusCreated || !resp.Success && resp.ErrorMsg != "" {
			// Venue rejections are final, no retry
			OrderRejectionsTotal.Inc()
			return nil, &types.OrderError{
				Kind:    classifyVenueMessage(resp.ErrorMsg),
				Code:    resp.ErrorMsg,
				Message: fmt.Sprintf("order rejected (status %d)", status),
				TokenID: tokenID,
			}
		}

		return &resp, nil
	}

	OrderTimeoutsTotal.Inc()
	return nil, &types.OrderError{
		Kind:    types.OrderErrTimeout,
		Code:    "SUBMIT_EXHAUSTED",
		Message: fmt.Sprintf("order submit failed after %d attempts: %v", c.maxAttempts, lastErr),
		TokenID: tokenID,
	}
}

// classifyVenueMessage maps a venue error message onto an error kind by the
// code it embeds.
func classifyVenueMessage(msg string) types.OrderErrorKind {
	for _, code := range []string{
		types.ErrNotEnoughBalance,
		types.ErrInvalidMinTickSize,
		types.ErrInvalidMinSize,
	} {
		if strings.Contains(msg, code) {
			return types.ClassifyOrderCode(code)
		}
	}
	return types.OrderErrRejected
}

// CancelOrder cancels a resting order by id.
func (c *OrderClient) CancelOrder(ctx context.Context, orderID string) error {
	if c.dryRun {
		c.logger.Info("cancel-simulated", zap.String("order-id", orderID))
		return nil
	}

	reqBody, err := json.Marshal(map[string]string{"orderID": orderID})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	body, status, err := c.signedRequest(ctx, http.MethodDelete, "/order", reqBody)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("cancel order: status %d: %s", status, string(body))
	}

	OrdersCancelledTotal.Inc()
	return nil
}

// CancelAll cancels every resting order for the account.
func (c *OrderClient) CancelAll(ctx context.Context) error {
	if c.dryRun {
		c.logger.Info("cancel-all-simulated")
		return nil
	}

	body, status, err := c.signedRequest(ctx, http.MethodDelete, "/cancel-all", nil)
	if err != nil {
		return fmt.Errorf("cancel all: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("cancel all: status %d: %s", status, string(body))
	}
	return nil
}

// GetOrder queries the status of an order.
func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (*types.OrderQueryResponse, error) {
	body, status, err := c.signedRequest(ctx, http.MethodGet, "/data/order/"+orderID, nil)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("get order: status %d: %s", status, string(body))
	}

	var resp types.OrderQueryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return &resp, nil
}

// GetCollateralBalance returns the spendable USDC balance in whole units.
// The venue reports raw 10^-6 amounts.
func (c *OrderClient) GetCollateralBalance(ctx context.Context) (float64, error) {
	body, status, err := c.signedRequest(ctx, http.MethodGet, "/balance-allowance?asset_type=COLLATERAL", nil)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("get balance: status %d: %s", status, string(body))
	}

	var resp types.BalanceAllowanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}

	raw, ok := new(big.Float).SetString(resp.Balance)
	if !ok {
		return 0, fmt.Errorf("parse balance %q", resp.Balance)
	}
	balance, _ := new(big.Float).Quo(raw, big.NewFloat(1e6)).Float64()
	return balance, nil
}

// GetTokenBalance returns the spendable balance of one outcome token in
// whole units.
func (c *OrderClient) GetTokenBalance(ctx context.Context, tokenID string) (float64, error) {
	path := "/balance-allowance?asset_type=CONDITIONAL&token_id=" + tokenID
	body, status, err := c.signedRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("get token balance: %w", err)
	}
	if status != http.StatusOK {
		return 0, fmt.Errorf("get token balance: status %d: %s", status, string(body))
	}

	var resp types.BalanceAllowanceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("parse response: %w", err)
	}

	raw, ok := new(big.Float).SetString(resp.Balance)
	if !ok {
		return 0, fmt.Errorf("parse balance %q", resp.Balance)
	}
	balance, _ := new(big.Float).Quo(raw, big.NewFloat(1e6)).Float64()
	return balance, nil
}

// signedRequest performs one L2-authenticated request. The HMAC covers
// timestamp, method, path, and body, with URL-safe base64 on both legs.
func (c *OrderClient) signedRequest(ctx context.Context, method, requestPath string, body []byte) ([]byte, int, error) {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	payload := timestamp + method + requestPath + string(body)

	secretBytes, err := base64.URLEncoding.DecodeString(c.secret)
	if err != nil {
		return nil, 0, fmt.Errorf("decode secret: %w", err)
	}
	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	var reader io.Reader
	if body != nil {
		reader = strings.NewReader(string(body))
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("POLY_API_KEY", c.apiKey)
	req.Header.Set("POLY_SIGNATURE", signature)
	req.Header.Set("POLY_TIMESTAMP", timestamp)
	req.Header.Set("POLY_PASSPHRASE", c.passphrase)
	req.Header.Set("POLY_ADDRESS", c.address)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	RequestDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, 0, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

func toRawAmount(units float64) string {
	return fmt.Sprintf("%d", int64(units*1e6+0.5))
}
