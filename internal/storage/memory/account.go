package memory

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/account"
)

type accountRepo struct{ s *Store }

func (r *accountRepo) Save(ctx context.Context, a *account.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.accounts[a.ID.String()]; ok {
		if existing.Version != a.Version-1 {
			return apperrors.New(apperrors.ConcurrencyConflict,
				"account "+a.ID.String()+" version mismatch on save")
		}
	}
	cp := *a
	r.s.accounts[a.ID.String()] = &cp
	return nil
}

func (r *accountRepo) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id.String()]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *accountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id.String()]
	if !ok {
		return nil, apperrors.New(apperrors.AccountNotFound, "account "+id.String()+" not found")
	}
	cp := *a
	return &cp, nil
}

// GetByIDForUpdate has no separate locking story here: Store.Transactional
// already holds the store's mutex for the whole unit of work, so any load
// inside a transaction is already exclusive.
func (r *accountRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return r.GetByID(ctx, id)
}

func (r *accountRepo) ListPage(ctx context.Context, afterID *uuid.UUID, limit int) ([]*account.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := make([]string, 0, len(r.s.accounts))
	for id := range r.s.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	start := 0
	if afterID != nil {
		cursor := afterID.String()
		for i, id := range ids {
			if id > cursor {
				start = i
				break
			}
			start = i + 1
		}
	}

	end := start + limit
	if end > len(ids) {
		end = len(ids)
	}
	if start >= end {
		return nil, nil
	}

	out := make([]*account.Account, 0, end-start)
	for _, id := range ids[start:end] {
		cp := *r.s.accounts[id]
		out = append(out, &cp)
	}
	return out, nil
}
