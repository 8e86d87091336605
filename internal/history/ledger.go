package history

import "context"

// Ledger is the score history store.
type Ledger interface {
	// Append chains a new entry after the current tip.
	Append(ctx context.Context, rec Record) (*Entry, error)

	// Latest returns the most recent entry for a customer scope, or
	// ErrNotFound.
	Latest(ctx context.Context, customerID, kind, scope string) (*Entry, error)

	// List returns up to limit entries for a customer scope, newest first.
	// A limit of zero or less returns all of them.
	List(ctx context.Context, customerID, kind, scope string, limit int) ([]*Entry, error)

	// Verify walks the whole chain. It returns nil when the chain is intact.
	Verify(ctx context.Context) error
}
