package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Polygon mainnet addresses. USDC.e is the collateral token the CTF
// exchange settles in.
const (
	polygonUSDC        = "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174"
	polygonCTFExchange = "0x4bFb41d5B3570DeFd03C39a9A4D8dE6Bd8B8982E"
	dataAPIBaseURL     = "https://data-api.polymarket.com"
)

const erc20ViewABI = `[
	{"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"type":"function"}
]`

// Client reads wallet state from the Polygon chain and the Polymarket Data
// API. It holds no keys and never sends transactions.
type Client struct {
	rpcURL     string
	dataAPIURL string
	erc20      abi.ABI
	httpClient *http.Client
	logger     *zap.Logger
}

// Balances holds the on-chain balances the scalper cares about: gas, trading
// collateral, and how much of that collateral the exchange may pull.
type Balances struct {
	MATIC         *big.Int // wei
	USDC          *big.Int // 10^-6 units
	USDCAllowance *big.Int // 10^-6 units, granted to the CTF exchange
}

// Position is one Data API position row reduced to what the CLI and tracker
// display.
type Position struct {
	MarketSlug   string
	Outcome      string
	Size         float64
	Value        float64 // current USD value
	InitialValue float64 // cost basis USD
	CashPnL      float64
	PercentPnL   float64
}

// NewClient creates a wallet client against the given Polygon RPC endpoint.
func NewClient(rpcURL string, logger *zap.Logger) (*Client, error) {
	if rpcURL == "" {
		return nil, errors.New("rpcURL cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	parsed, err := abi.JSON(strings.NewReader(erc20ViewABI))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 ABI: %w", err)
	}

	return &Client{
		rpcURL:     rpcURL,
		dataAPIURL: dataAPIBaseURL,
		erc20:      parsed,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}, nil
}

// GetBalances fetches MATIC, USDC, and the exchange allowance in one pass.
// The RPC connection is dialed per call; the breaker polls every 30 s and a
// held connection just goes stale between polls.
func (c *Client) GetBalances(ctx context.Context, address common.Address) (*Balances, error) {
	client, err := ethclient.DialContext(ctx, c.rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial RPC: %w", err)
	}
	defer client.Close()

	matic, err := client.BalanceAt(ctx, address, nil)
	if err != nil {
		return nil, fmt.Errorf("get MATIC balance: %w", err)
	}

	usdc, err := c.erc20Call(ctx, client, "balanceOf", address)
	if err != nil {
		return nil, fmt.Errorf("get USDC balance: %w", err)
	}

	allowance, err := c.erc20Call(ctx, client, "allowance", address, common.HexToAddress(polygonCTFExchange))
	if err != nil {
		return nil, fmt.Errorf("get USDC allowance: %w", err)
	}

	return &Balances{
		MATIC:         matic,
		USDC:          usdc,
		USDCAllowance: allowance,
	}, nil
}

// erc20Call performs a read-only call against the USDC contract and decodes
// the single uint256 result.
func (c *Client) erc20Call(ctx context.Context, client *ethclient.Client, method string, args ...interface{}) (*big.Int, error) {
	data, err := c.erc20.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	token := common.HexToAddress(polygonUSDC)
	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	return new(big.Int).SetBytes(result), nil
}

// dataAPIPosition mirrors the Data API /positions response shape.
type dataAPIPosition struct {
	Size         float64 `json:"size"`
	InitialValue float64 `json:"initialValue"`
	CurrentValue float64 `json:"currentValue"`
	CashPnL      float64 `json:"cashPnl"`
	PercentPnL   float64 `json:"percentPnl"`
	Slug         string  `json:"slug"`
	Outcome      string  `json:"outcome"`
}

// GetPositions fetches non-dust positions for the address from the Data API.
func (c *Client) GetPositions(ctx context.Context, address string) ([]Position, error) {
	url := fmt.Sprintf("%s/positions?user=%s&sizeThreshold=0.01", c.dataAPIURL, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d", resp.StatusCode)
	}

	var rows []dataAPIPosition
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	positions := make([]Position, 0, len(rows))
	for _, row := range rows {
		if row.Size <= 0 {
			continue
		}
		positions = append(positions, Position{
			MarketSlug:   row.Slug,
			Outcome:      row.Outcome,
			Size:         row.Size,
			Value:        row.CurrentValue,
			InitialValue: row.InitialValue,
			CashPnL:      row.CashPnL,
			PercentPnL:   row.PercentPnL,
		})
	}

	return positions, nil
}
