package storage

import (
	"context"

	"github.com/polyquant/polyscalp/pkg/types"
)

// Storage persists completed round trips.
type Storage interface {
	// StoreRoundTrip records one completed entry/exit pair.
	StoreRoundTrip(ctx context.Context, rt *types.RoundTrip) error

	// Close closes the storage connection.
	Close() error
}
