package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/domain/ledger"
)

type ledgerRepo struct{ s *Store }

func (r *ledgerRepo) Append(ctx context.Context, entry ledger.Entry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := entry.AccountID.String()
	r.s.ledgerEntries[key] = append(r.s.ledgerEntries[key], entry)
	return nil
}

func (r *ledgerRepo) FindByAccountID(ctx context.Context, accountID uuid.UUID, page ledger.Page) ([]ledger.Entry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	page = page.Clamped()

	all := r.s.ledgerEntries[accountID.String()]
	// Newest first, matching the keyset cursor semantics (entries with
	// ID < Before).
	ordered := make([]ledger.Entry, len(all))
	copy(ordered, all)
	sortEntriesByIDDesc(ordered)

	var windowed []ledger.Entry
	started := page.Before == nil
	for _, e := range ordered {
		if !started {
			if e.ID.String() < page.Before.String() {
				started = true
			} else {
				continue
			}
		}
		windowed = append(windowed, e)
		if len(windowed) == page.PerPage {
			break
		}
	}
	return windowed, nil
}

func (r *ledgerRepo) ComputedBalance(ctx context.Context, accountID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var total int64
	for _, e := range r.s.ledgerEntries[accountID.String()] {
		total += e.SignedAmount()
	}
	return total, nil
}

func (r *ledgerRepo) LatestBalanceAfter(ctx context.Context, accountID uuid.UUID) (int64, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	entries := r.s.ledgerEntries[accountID.String()]
	if len(entries) == 0 {
		return 0, false, nil
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if e.OccurredAt.After(latest.OccurredAt) {
			latest = e
		}
	}
	return latest.BalanceAfterMinorUnits, true, nil
}

func sortEntriesByIDDesc(items []ledger.Entry) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].ID.String() > items[j-1].ID.String(); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
