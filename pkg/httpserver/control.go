package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// EngineControl is the slice of the trading engine the control API drives.
type EngineControl interface {
	Stats() types.SessionStats
	Summaries() []types.PositionSummary
	RemoveMarket(marketID string) bool
	EmergencyUnwind(marketID string) bool
}

// AddMarketFunc resolves a market slug and brings it under management.
type AddMarketFunc func(ctx context.Context, slug string) error

// ControlHandler serves the operator API: session status, risk-control
// pause/resume, manual market admission, and per-market removal and
// emergency unwind.
type ControlHandler struct {
	engine     EngineControl
	killSwitch *risk.KillSwitch
	breaker    *risk.BalanceBreaker
	registry   *markets.Registry
	addMarket  AddMarketFunc
	logger     *zap.Logger
}

// NewControlHandler creates a control handler.
func NewControlHandler(engine EngineControl, ks *risk.KillSwitch,
	breaker *risk.BalanceBreaker, registry *markets.Registry,
	addMarket AddMarketFunc, logger *zap.Logger) *ControlHandler {

	return &ControlHandler{
		engine:     engine,
		killSwitch: ks,
		breaker:    breaker,
		registry:   registry,
		addMarket:  addMarket,
		logger:     logger,
	}
}

// StatusResponse is the GET /api/status payload.
type StatusResponse struct {
	Uptime        string                  `json:"uptime"`
	RoundTrips    int                     `json:"round_trips"`
	Wins          int                     `json:"wins"`
	Losses        int                     `json:"losses"`
	RealizedPnL   float64                 `json:"realized_pnl"`
	ActiveMarkets int                     `json:"active_markets"`
	KillSwitch    *risk.KillSwitchStatus  `json:"kill_switch,omitempty"`
	Breaker       *risk.BreakerStatus     `json:"balance_breaker,omitempty"`
	Positions     []types.PositionSummary `json:"positions"`
}

// MarketInfo is one entry of the GET /api/markets payload.
type MarketInfo struct {
	MarketID   string    `json:"market_id"`
	MarketSlug string    `json:"market_slug"`
	Question   string    `json:"question"`
	EndDate    time.Time `json:"end_date"`
	Resolved   bool      `json:"resolved"`
}

// ActionResponse acknowledges a control action.
type ActionResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleStatus handles GET /api/status.
func (h *ControlHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()

	resp := StatusResponse{
		Uptime:      time.Since(stats.StartedAt).String(),
		RoundTrips:  stats.RoundTrips,
		Wins:        stats.Wins,
		Losses:      stats.Losses,
		RealizedPnL: stats.RealizedPnL,
		Positions:   h.engine.Summaries(),
	}
	if h.registry != nil {
		resp.ActiveMarkets = h.registry.ActiveCount(time.Now())
	}
	if h.killSwitch != nil {
		status := h.killSwitch.Status()
		resp.KillSwitch = &status
	}
	if h.breaker != nil {
		status := h.breaker.Status()
		resp.Breaker = &status
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}

// HandleMarkets handles GET /api/markets.
func (h *ControlHandler) HandleMarkets(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	subs := h.registry.All()

	out := make([]MarketInfo, 0, len(subs))
	for _, sub := range subs {
		out = append(out, MarketInfo{
			MarketID:   sub.MarketID,
			MarketSlug: sub.MarketSlug,
			Question:   sub.Question,
			EndDate:    sub.EndDate,
			Resolved:   !sub.EndDate.After(now),
		})
	}

	writeJSON(w, h.logger, http.StatusOK, out)
}

type addMarketRequest struct {
	Slug string `json:"slug"`
	URL  string `json:"url"`
}

// slug returns the market slug, derived from the event URL when only that
// was given.
func (r *addMarketRequest) slug() string {
	if r.Slug != "" {
		return r.Slug
	}
	trimmed := strings.TrimRight(r.URL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// HandleAddMarket handles POST /api/markets. The body carries either a slug
// or a full polymarket.com event URL.
func (h *ControlHandler) HandleAddMarket(w http.ResponseWriter, r *http.Request) {
	var req addMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, h.logger, http.StatusBadRequest,
			ErrorResponse{Error: "invalid request body"})
		return
	}

	slug := req.slug()
	if slug == "" {
		writeJSON(w, h.logger, http.StatusBadRequest,
			ErrorResponse{Error: "slug or url required"})
		return
	}

	if err := h.addMarket(r.Context(), slug); err != nil {
		h.logger.Warn("add-market-via-api-failed",
			zap.String("slug", slug),
			zap.Error(err))
		writeJSON(w, h.logger, http.StatusBadGateway,
			ErrorResponse{Error: err.Error()})
		return
	}

	h.logger.Info("market-added-via-api", zap.String("slug", slug))
	writeJSON(w, h.logger, http.StatusOK, ActionResponse{OK: true, Message: "market added"})
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

// HandlePause handles POST /api/pause. Paused trading blocks new entries
// only; exits and take-profit management keep running.
func (h *ControlHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if req.Reason == "" {
		req.Reason = "manual pause"
	}

	h.killSwitch.Pause(req.Reason)
	h.logger.Info("trading-paused-via-api", zap.String("reason", req.Reason))

	writeJSON(w, h.logger, http.StatusOK, ActionResponse{OK: true, Message: "trading paused"})
}

// HandleResume handles POST /api/resume.
func (h *ControlHandler) HandleResume(w http.ResponseWriter, r *http.Request) {
	h.killSwitch.Resume()
	h.logger.Info("trading-resumed-via-api")

	writeJSON(w, h.logger, http.StatusOK, ActionResponse{OK: true, Message: "trading resumed"})
}

// HandleUnwind handles POST /api/markets/{marketID}/unwind.
func (h *ControlHandler) HandleUnwind(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	if !h.engine.EmergencyUnwind(marketID) {
		writeJSON(w, h.logger, http.StatusNotFound,
			ErrorResponse{Error: "market not found"})
		return
	}

	h.logger.Warn("emergency-unwind-via-api", zap.String("market-id", marketID))
	writeJSON(w, h.logger, http.StatusOK, ActionResponse{OK: true, Message: "unwind executed"})
}

// HandleRemove handles DELETE /api/markets/{marketID}.
func (h *ControlHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	if !h.engine.RemoveMarket(marketID) {
		writeJSON(w, h.logger, http.StatusNotFound,
			ErrorResponse{Error: "market not found"})
		return
	}

	h.logger.Info("market-removed-via-api", zap.String("market-id", marketID))
	writeJSON(w, h.logger, http.StatusOK, ActionResponse{OK: true, Message: "market removed"})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
