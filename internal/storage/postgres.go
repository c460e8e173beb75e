package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/polyquant/polyscalp/pkg/types"
	"go.uber.org/zap"
)

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-storage-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreRoundTrip inserts a completed round trip.
func (p *PostgresStorage) StoreRoundTrip(ctx context.Context, rt *types.RoundTrip) error {
	query := `
		INSERT INTO round_trips (
			market_id, market_slug, side, class, size,
			avg_entry, exit_price, pnl, entered_at, exited_at, unwound
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11
		)
	`

	_, err := p.db.ExecContext(ctx, query,
		rt.MarketID,
		rt.MarketSlug,
		string(rt.Side),
		string(rt.Class),
		rt.Size,
		rt.AvgEntry,
		rt.ExitPrice,
		rt.PnL,
		rt.EnteredAt,
		rt.ExitedAt,
		rt.Unwound,
	)
	if err != nil {
		return fmt.Errorf("insert round trip: %w", err)
	}

	p.logger.Debug("round-trip-stored",
		zap.String("market-slug", rt.MarketSlug),
		zap.String("side", string(rt.Side)),
		zap.Float64("pnl", rt.PnL))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
