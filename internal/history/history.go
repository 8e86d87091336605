// Package history keeps an append-only, hash-chained record of computed
// scores so that trends can be reported and tampering detected.
//
// The chain begins with a genesis entry whose Hash equals GenesisHash.
// Every later entry stores the hash of its predecessor; Verify walks the
// chain and reports the first inconsistency.
//
// Two Ledger implementations are provided:
//   - MemoryLedger: in-process, for tests and one-shot CLI runs.
//   - PostgresLedger: durable, backed by the score_history table.
package history

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// GenesisHash is the hash of the genesis entry.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrNotFound is returned by Latest when no entry exists for the scope.
var ErrNotFound = errors.New("no score history for scope")

// Record is the data appended for one computed score.
type Record struct {
	RunID      string    `json:"run_id"`
	CustomerID string    `json:"customer_id"`
	Kind       string    `json:"kind"`
	Scope      string    `json:"scope"`
	FinalScore int       `json:"final_score"`
	Grade      string    `json:"grade"`
	PeriodFrom time.Time `json:"period_from"`
	PeriodTo   time.Time `json:"period_to"`
}

// Entry is a Record placed in the chain.
type Entry struct {
	Index      int       `json:"index"`
	RecordedAt time.Time `json:"recorded_at"`
	Record
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// matches reports whether the entry belongs to the given customer scope.
func (e *Entry) matches(customerID, kind, scope string) bool {
	return e.Index > 0 && e.CustomerID == customerID && e.Kind == kind && e.Scope == scope
}

func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%d|%s|%s|%s|%s",
		e.Index, e.RecordedAt.Format(time.RFC3339Nano),
		e.RunID, e.CustomerID, e.Kind, e.Scope, e.FinalScore, e.Grade,
		e.PeriodFrom.Format(time.DateOnly), e.PeriodTo.Format(time.DateOnly),
		e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

// verifyLink checks curr against its predecessor. prev is nil for the
// genesis entry.
func verifyLink(prev, curr *Entry) error {
	if prev == nil {
		if curr.Hash != GenesisHash {
			return fmt.Errorf("genesis entry has wrong hash: got %q", curr.Hash)
		}
		return nil
	}
	if curr.PrevHash != prev.Hash {
		return fmt.Errorf("hash chain broken at index %d", curr.Index)
	}
	if curr.Hash != hashEntry(curr) {
		return fmt.Errorf("entry %d has invalid hash", curr.Index)
	}
	return nil
}
