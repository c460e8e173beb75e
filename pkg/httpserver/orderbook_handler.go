package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// OrderbookHandler serves top-of-book data for subscribed markets.
type OrderbookHandler struct {
	books    *orderbook.Manager
	registry *markets.Registry
	logger   *zap.Logger
}

// NewOrderbookHandler creates a new orderbook handler.
func NewOrderbookHandler(books *orderbook.Manager, registry *markets.Registry, logger *zap.Logger) *OrderbookHandler {
	return &OrderbookHandler{
		books:    books,
		registry: registry,
		logger:   logger,
	}
}

// TokenOrderbook is the top of one token's book.
type TokenOrderbook struct {
	Outcome      string    `json:"outcome"`
	TokenID      string    `json:"token_id"`
	BestBidPrice float64   `json:"best_bid_price"`
	BestBidSize  float64   `json:"best_bid_size"`
	BestAskPrice float64   `json:"best_ask_price"`
	BestAskSize  float64   `json:"best_ask_size"`
	LastUpdated  time.Time `json:"last_updated"`
}

// OrderbookResponse is the GET /api/orderbook payload.
type OrderbookResponse struct {
	MarketID   string           `json:"market_id"`
	MarketSlug string           `json:"market_slug"`
	Question   string           `json:"question"`
	Books      []TokenOrderbook `json:"books"`
}

// HandleOrderbook handles GET /api/orderbook?slug=<market-slug> requests.
func (h *OrderbookHandler) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	slug := r.URL.Query().Get("slug")
	if slug == "" {
		h.writeError(w, "missing required query parameter: slug", http.StatusBadRequest)
		return
	}

	h.logger.Debug("orderbook-request-received", zap.String("slug", slug))

	var sub *types.MarketSubscription
	for _, s := range h.registry.All() {
		if s.MarketSlug == slug {
			sub = s
			break
		}
	}
	if sub == nil {
		h.writeError(w, "market not found or not subscribed", http.StatusNotFound)
		return
	}

	books := make([]TokenOrderbook, 0, 2)
	for _, tok := range []struct {
		outcome string
		tokenID string
	}{
		{"YES", sub.TokenIDYes},
		{"NO", sub.TokenIDNo},
	} {
		top, found := h.books.GetTop(tok.tokenID)
		if !found {
			h.logger.Debug("orderbook-not-available",
				zap.String("token-id", tok.tokenID),
				zap.String("outcome", tok.outcome))
			continue
		}

		books = append(books, TokenOrderbook{
			Outcome:      tok.outcome,
			TokenID:      tok.tokenID,
			BestBidPrice: top.BestBidPrice,
			BestBidSize:  top.BestBidSize,
			BestAskPrice: top.BestAskPrice,
			BestAskSize:  top.BestAskSize,
			LastUpdated:  top.LastUpdated,
		})
	}

	response := OrderbookResponse{
		MarketID:   sub.MarketID,
		MarketSlug: sub.MarketSlug,
		Question:   sub.Question,
		Books:      books,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *OrderbookHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
