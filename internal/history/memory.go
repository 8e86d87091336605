package history

import (
	"context"
	"sync"
	"time"
)

// MemoryLedger is a thread-safe in-process Ledger.
type MemoryLedger struct {
	mu      sync.RWMutex
	entries []*Entry
	now     func() time.Time
}

// NewMemory creates a MemoryLedger holding only the genesis entry.
func NewMemory() *MemoryLedger {
	l := &MemoryLedger{now: func() time.Time { return time.Now().UTC() }}
	l.entries = append(l.entries, &Entry{
		RecordedAt: l.now(),
		PrevHash:   GenesisHash,
		Hash:       GenesisHash,
	})
	return l
}

// Append implements Ledger.
func (l *MemoryLedger) Append(_ context.Context, rec Record) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.entries[len(l.entries)-1]
	entry := &Entry{
		Index:      len(l.entries),
		RecordedAt: l.now(),
		Record:     rec,
		PrevHash:   prev.Hash,
	}
	entry.Hash = hashEntry(entry)
	l.entries = append(l.entries, entry)

	out := *entry
	return &out, nil
}

// Latest implements Ledger.
func (l *MemoryLedger) Latest(_ context.Context, customerID, kind, scope string) (*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for i := len(l.entries) - 1; i > 0; i-- {
		if e := l.entries[i]; e.matches(customerID, kind, scope) {
			out := *e
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// List implements Ledger.
func (l *MemoryLedger) List(_ context.Context, customerID, kind, scope string, limit int) ([]*Entry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []*Entry
	for i := len(l.entries) - 1; i > 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		if e := l.entries[i]; e.matches(customerID, kind, scope) {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Verify implements Ledger.
func (l *MemoryLedger) Verify(_ context.Context) error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var prev *Entry
	for _, curr := range l.entries {
		if err := verifyLink(prev, curr); err != nil {
			return err
		}
		prev = curr
	}
	return nil
}

// Len returns the number of entries including genesis.
func (l *MemoryLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
