package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/polyquant/polyscalp/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRoundTrip() *types.RoundTrip {
	entered := time.Date(2025, 6, 2, 15, 3, 0, 0, time.UTC)
	return &types.RoundTrip{
		MarketID:   "mkt-1",
		MarketSlug: "bitcoin-up-or-down-315pm",
		Side:       types.SideYes,
		Class:      types.ClassLevel,
		Size:       20,
		AvgEntry:   0.29,
		ExitPrice:  0.62,
		PnL:        1.8,
		EnteredAt:  entered,
		ExitedAt:   entered.Add(4 * time.Minute),
		Unwound:    true,
	}
}

func TestPostgresStorage_StoreRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zap.NewNop()}
	rt := sampleRoundTrip()

	mock.ExpectExec("INSERT INTO round_trips").
		WithArgs(
			rt.MarketID,
			rt.MarketSlug,
			"YES",
			"LEVEL",
			rt.Size,
			rt.AvgEntry,
			rt.ExitPrice,
			rt.PnL,
			rt.EnteredAt,
			rt.ExitedAt,
			rt.Unwound,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.StoreRoundTrip(context.Background(), rt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_StoreRoundTripError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("INSERT INTO round_trips").
		WillReturnError(errors.New("connection lost"))

	err = store.StoreRoundTrip(context.Background(), sampleRoundTrip())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert round trip")
}

func TestPostgresStorage_Close(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	store := &PostgresStorage{db: db, logger: zap.NewNop()}
	mock.ExpectClose()

	require.NoError(t, store.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConsoleStorage_StoreRoundTrip(t *testing.T) {
	store := NewConsoleStorage(zap.NewNop())

	require.NoError(t, store.StoreRoundTrip(context.Background(), sampleRoundTrip()))

	loss := sampleRoundTrip()
	loss.PnL = -0.4
	loss.Unwound = false
	require.NoError(t, store.StoreRoundTrip(context.Background(), loss))

	require.NoError(t, store.Close())
}
