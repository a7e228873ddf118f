package storage

import (
	"context"

	"github.com/roman-kulish/anemometer/internal/history"
)

// Store persists finished measurement sessions and their retained points.
// All operations that write to the database are atomic.
type Store interface {
	// StoreSession saves a session together with its retained points in a
	// single transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - session: Session summary, its ID must be unique
	//   - points: Retained points in time order, may be empty
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreSession(ctx context.Context, session history.Session, points []history.Point) error

	// Session retrieves a session by its ID.
	//
	// Returns ErrSessionNotFound when no session has the given ID.
	Session(ctx context.Context, id string) (*history.Session, error)

	// Sessions returns all sessions ordered by start time in ascending order.
	Sessions(ctx context.Context) ([]*history.Session, error)

	// Close releases all database connections and resources.
	// It is safe to call Close multiple times.
	Close() error
}
