package types

// OrderSubmissionResponse represents the response from POST /order.
// This is different from OrderQueryResponse (GET /order).
type OrderSubmissionResponse struct {
	Success      bool     `json:"success"`      // Server-side success indicator
	ErrorMsg     string   `json:"errorMsg"`     // Error message if success=false
	OrderID      string   `json:"orderId"`      // Note: lowercase 'd' per API spec
	OrderHashes  []string `json:"orderHashes"`  // Settlement transaction hashes
	Status       string   `json:"status"`       // matched, live, delayed, unmatched
	TakingAmount string   `json:"takingAmount"` // Amount being taken (as string)
	MakingAmount string   `json:"makingAmount"` // Amount being made (as string)
}

// SignedOrderJSON represents a signed order in the format expected by the
// CLOB API. Fields match the EIP-712 order structure after signing.
type SignedOrderJSON struct {
	Salt          int64  `json:"salt"`          // Integer per API spec (not string)
	Maker         string `json:"maker"`         // Funder address
	Signer        string `json:"signer"`        // Signing address (EOA)
	Taker         string `json:"taker"`         // Operator address (0x0000... for public)
	TokenID       string `json:"tokenId"`       // ERC1155 token ID
	MakerAmount   string `json:"makerAmount"`   // Raw amount (6 decimals for USDC)
	TakerAmount   string `json:"takerAmount"`   // Raw token amount
	Side          string `json:"side"`          // "BUY" or "SELL"
	Expiration    string `json:"expiration"`    // Unix timestamp (0 for no expiry)
	Nonce         string `json:"nonce"`         // Nonce value
	FeeRateBps    string `json:"feeRateBps"`    // Fee rate in basis points
	SignatureType int    `json:"signatureType"` // 0=EOA, 1=POLY_PROXY, 2=GNOSIS_SAFE
	Signature     string `json:"signature"`     // Hex-encoded signature with 0x prefix
}

// OrderSubmissionRequest wraps a signed order with owner/type metadata.
type OrderSubmissionRequest struct {
	Order     SignedOrderJSON `json:"order"`     // Signed order data
	Owner     string          `json:"owner"`     // API key (not maker address!)
	OrderType string          `json:"orderType"` // GTC, FOK, GTD, or FAK
}

// OrderQueryResponse represents the response from GET /order.
type OrderQueryResponse struct {
	OrderID      string  `json:"orderID"` // Capital D in GET endpoint
	Status       string  `json:"status"`
	TokenID      string  `json:"asset_id"`
	Price        float64 `json:"price,string"`
	Size         float64 `json:"original_size,string"`
	SizeFilled   float64 `json:"size_matched,string"`
	Side         string  `json:"side"` // "BUY" or "SELL"
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
	OrderType    string  `json:"type"` // GTC, FOK, GTD, FAK
	MarketID     string  `json:"market"`
	Outcome      string  `json:"outcome"`
	Owner        string  `json:"owner"`
	MakerAddress string  `json:"maker_address"`
	Message      string  `json:"message,omitempty"`
	Error        string  `json:"error,omitempty"`
}

// BalanceAllowanceResponse represents GET /balance-allowance for the
// collateral asset. Amounts are raw strings in 10^-6 units.
type BalanceAllowanceResponse struct {
	Balance    string            `json:"balance"`
	Allowances map[string]string `json:"allowances,omitempty"`
}

// DataAPIPosition is one row from the data-api /positions endpoint, used for
// periodic reconciliation against the local ledger.
type DataAPIPosition struct {
	ConditionID string  `json:"conditionId"`
	AssetID     string  `json:"asset"`
	Size        float64 `json:"size"`
	AvgPrice    float64 `json:"avgPrice"`
	Outcome     string  `json:"outcome"`
	Title       string  `json:"title"`
}
