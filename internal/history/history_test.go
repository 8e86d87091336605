package history

import (
	"context"
	"errors"
	"testing"
	"time"
)

var ctx = context.Background()

func record(scope string, score int) Record {
	return Record{
		RunID:      "run-" + scope,
		CustomerID: "ACME",
		Kind:       "brand",
		Scope:      scope,
		FinalScore: score,
		Grade:      "B",
		PeriodFrom: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		PeriodTo:   time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	}
}

func TestNewMemory_genesisEntry(t *testing.T) {
	l := NewMemory()
	if l.Len() != 1 {
		t.Fatalf("expected 1 genesis entry, got %d", l.Len())
	}
	if l.entries[0].Hash != GenesisHash {
		t.Errorf("genesis hash = %q", l.entries[0].Hash)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("fresh ledger should verify: %v", err)
	}
}

func TestAppend_chainsCorrectly(t *testing.T) {
	l := NewMemory()

	e1, err := l.Append(ctx, record("Acme", 700))
	if err != nil {
		t.Fatal(err)
	}
	e2, err := l.Append(ctx, record("Globex", 900))
	if err != nil {
		t.Fatal(err)
	}

	if e1.PrevHash != GenesisHash {
		t.Errorf("e1.PrevHash = %q, want genesis", e1.PrevHash)
	}
	if e2.PrevHash != e1.Hash {
		t.Errorf("chain broken: e2.PrevHash=%q, want %q", e2.PrevHash, e1.Hash)
	}
	if e2.Index != 2 {
		t.Errorf("e2.Index = %d, want 2", e2.Index)
	}
	if err := l.Verify(ctx); err != nil {
		t.Errorf("Verify: %v", err)
	}
}

func TestLatestAndList_filterByScope(t *testing.T) {
	l := NewMemory()
	for _, r := range []Record{
		record("Acme", 600),
		record("Globex", 900),
		record("Acme", 650),
		record("Acme", 700),
	} {
		if _, err := l.Append(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	latest, err := l.Latest(ctx, "ACME", "brand", "Acme")
	if err != nil {
		t.Fatal(err)
	}
	if latest.FinalScore != 700 {
		t.Errorf("latest score = %d, want 700", latest.FinalScore)
	}

	list, err := l.List(ctx, "ACME", "brand", "Acme", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].FinalScore != 700 || list[1].FinalScore != 650 {
		t.Errorf("list = %+v", list)
	}

	all, _ := l.List(ctx, "ACME", "brand", "Acme", 0)
	if len(all) != 3 {
		t.Errorf("len(all) = %d, want 3", len(all))
	}

	if _, err := l.Latest(ctx, "ACME", "tenant", "ACME"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := l.Latest(ctx, "OTHER", "brand", "Acme"); !errors.Is(err, ErrNotFound) {
		t.Errorf("other customer: expected ErrNotFound, got %v", err)
	}
}

func TestVerify_detectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		tamper func(l *MemoryLedger)
	}{
		{"score rewritten", func(l *MemoryLedger) { l.entries[1].FinalScore = 1000 }},
		{"link rewritten", func(l *MemoryLedger) { l.entries[2].PrevHash = GenesisHash }},
		{"genesis rewritten", func(l *MemoryLedger) { l.entries[0].Hash = "beef" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l := NewMemory()
			for _, s := range []string{"Acme", "Globex"} {
				if _, err := l.Append(ctx, record(s, 800)); err != nil {
					t.Fatal(err)
				}
			}
			tc.tamper(l)
			if err := l.Verify(ctx); err == nil {
				t.Error("expected verification failure")
			}
		})
	}
}

func TestAppend_returnsCopy(t *testing.T) {
	l := NewMemory()
	e, _ := l.Append(ctx, record("Acme", 500))
	e.FinalScore = 0
	if err := l.Verify(ctx); err != nil {
		t.Errorf("mutating a returned entry must not affect the ledger: %v", err)
	}
}
