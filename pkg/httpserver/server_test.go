package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/polyquant/polyscalp/internal/markets"
	"github.com/polyquant/polyscalp/internal/orderbook"
	"github.com/polyquant/polyscalp/internal/risk"
	"github.com/polyquant/polyscalp/pkg/healthprobe"
	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeEngine struct {
	stats     types.SessionStats
	summaries []types.PositionSummary
	known     map[string]bool
	unwound   []string
	removed   []string
}

func (f *fakeEngine) Stats() types.SessionStats          { return f.stats }
func (f *fakeEngine) Summaries() []types.PositionSummary { return f.summaries }

func (f *fakeEngine) RemoveMarket(marketID string) bool {
	if !f.known[marketID] {
		return false
	}
	f.removed = append(f.removed, marketID)
	return true
}

func (f *fakeEngine) EmergencyUnwind(marketID string) bool {
	if !f.known[marketID] {
		return false
	}
	f.unwound = append(f.unwound, marketID)
	return true
}

func testSubscription(id, slug string) *types.MarketSubscription {
	return &types.MarketSubscription{
		MarketID:   id,
		MarketSlug: slug,
		Question:   "Bitcoin Up or Down - 3:15PM ET",
		EndDate:    time.Now().Add(10 * time.Minute),
		TokenIDYes: id + "-yes",
		TokenIDNo:  id + "-no",
	}
}

func newTestServer(t *testing.T) (*Server, *fakeEngine, *risk.KillSwitch, *markets.Registry, chan *types.OrderbookMessage) {
	t.Helper()
	logger := zap.NewNop()

	hc := healthprobe.New()
	hc.SetReady(true)

	msgs := make(chan *types.OrderbookMessage, 8)
	books := orderbook.New(&orderbook.Config{Logger: logger, MessageChannel: msgs})
	require.NoError(t, books.Start(context.Background()))

	registry := markets.NewRegistry(10, logger)
	ks := risk.NewKillSwitch(100, logger)
	eng := &fakeEngine{
		stats: types.SessionStats{
			RoundTrips:  3,
			Wins:        2,
			Losses:      1,
			RealizedPnL: 1.25,
			StartedAt:   time.Now().Add(-time.Hour),
		},
		known: map[string]bool{"mkt-1": true},
	}

	srv := New(&Config{
		Port:          "0",
		Logger:        logger,
		HealthChecker: hc,
		Engine:        eng,
		KillSwitch:    ks,
		Registry:      registry,
		Books:         books,
	})

	return srv, eng, ks, registry, msgs
}

func doRequest(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthAndReady(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Status(t *testing.T) {
	srv, _, _, registry, _ := newTestServer(t)
	require.NoError(t, registry.Register(testSubscription("mkt-1", "bitcoin-up-or-down-315pm")))

	rec := doRequest(srv, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.RoundTrips)
	assert.Equal(t, 2, resp.Wins)
	assert.InDelta(t, 1.25, resp.RealizedPnL, 1e-9)
	assert.Equal(t, 1, resp.ActiveMarkets)
	require.NotNil(t, resp.KillSwitch)
	assert.True(t, resp.KillSwitch.TradingAllowed)
}

func TestServer_PauseAndResume(t *testing.T) {
	srv, _, ks, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/pause", `{"reason":"maintenance"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, ks.TradingAllowed())

	status := ks.Status()
	assert.Equal(t, "maintenance", status.Reason)

	rec = doRequest(srv, http.MethodPost, "/api/resume", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, ks.TradingAllowed())
}

func TestServer_MarketList(t *testing.T) {
	srv, _, _, registry, _ := newTestServer(t)
	require.NoError(t, registry.Register(testSubscription("mkt-1", "bitcoin-up-or-down-315pm")))

	rec := doRequest(srv, http.MethodGet, "/api/markets", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp []MarketInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "mkt-1", resp[0].MarketID)
	assert.False(t, resp[0].Resolved)
}

func TestServer_AddMarket(t *testing.T) {
	logger := zap.NewNop()

	var added []string
	addMarket := func(_ context.Context, slug string) error {
		if slug == "nope" {
			return fmt.Errorf("market %q not found", slug)
		}
		added = append(added, slug)
		return nil
	}

	srv := New(&Config{
		Port:          "0",
		Logger:        logger,
		HealthChecker: healthprobe.New(),
		Engine:        &fakeEngine{},
		KillSwitch:    risk.NewKillSwitch(100, logger),
		Registry:      markets.NewRegistry(10, logger),
		AddMarket:     addMarket,
	})

	rec := doRequest(srv, http.MethodPost, "/api/markets", `{"slug":"bitcoin-up-or-down-330pm"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	// A full event URL resolves to its trailing slug
	rec = doRequest(srv, http.MethodPost, "/api/markets",
		`{"url":"https://polymarket.com/event/bitcoin-up-or-down-345pm"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"bitcoin-up-or-down-330pm", "bitcoin-up-or-down-345pm"}, added)

	rec = doRequest(srv, http.MethodPost, "/api/markets", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/markets", `{"slug":"nope"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestServer_EmergencyUnwind(t *testing.T) {
	srv, eng, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodPost, "/api/markets/mkt-1/unwind", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mkt-1"}, eng.unwound)

	rec = doRequest(srv, http.MethodPost, "/api/markets/unknown/unwind", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_RemoveMarket(t *testing.T) {
	srv, eng, _, _, _ := newTestServer(t)

	rec := doRequest(srv, http.MethodDelete, "/api/markets/mkt-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"mkt-1"}, eng.removed)

	rec = doRequest(srv, http.MethodDelete, "/api/markets/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_Orderbook(t *testing.T) {
	srv, _, _, registry, msgs := newTestServer(t)
	sub := testSubscription("mkt-1", "bitcoin-up-or-down-315pm")
	require.NoError(t, registry.Register(sub))

	rec := doRequest(srv, http.MethodGet, "/api/orderbook", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/orderbook?slug=unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	msgs <- &types.OrderbookMessage{
		EventType: "book",
		AssetID:   sub.TokenIDYes,
		Market:    sub.MarketID,
		Bids:      []types.PriceLevel{{Price: "0.40", Size: "100"}},
		Asks:      []types.PriceLevel{{Price: "0.42", Size: "50"}},
	}

	require.Eventually(t, func() bool {
		rec := doRequest(srv, http.MethodGet,
			fmt.Sprintf("/api/orderbook?slug=%s", sub.MarketSlug), "")
		if rec.Code != http.StatusOK {
			return false
		}
		var resp OrderbookResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			return false
		}
		return len(resp.Books) == 1 &&
			resp.Books[0].Outcome == "YES" &&
			resp.Books[0].BestAskPrice == 0.42
	}, time.Second, 5*time.Millisecond)
}
