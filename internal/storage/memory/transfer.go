package memory

import (
	"context"

	"github.com/google/uuid"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/transfer"
)

type transferRepo struct{ s *Store }

func refKey(sourceAccountID uuid.UUID, ref transfer.Reference) string {
	return sourceAccountID.String() + "|" + string(ref)
}

func (r *transferRepo) Save(ctx context.Context, t *transfer.Transfer) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := refKey(t.SourceAccountID, t.Reference)
	if existingID, ok := r.s.referenceIndex[key]; ok && existingID != t.ID.String() {
		return apperrors.New(apperrors.DuplicateTransferRef,
			"reference "+string(t.Reference)+" already used for source account "+t.SourceAccountID.String())
	}
	cp := *t
	r.s.transfers[t.ID.String()] = &cp
	r.s.referenceIndex[key] = t.ID.String()
	return nil
}

func (r *transferRepo) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transfers[id.String()]
	if !ok {
		return nil, apperrors.New(apperrors.TransferNotFound, "transfer "+id.String()+" not found")
	}
	cp := *t
	return &cp, nil
}

func (r *transferRepo) FindByReference(ctx context.Context, sourceAccountID uuid.UUID, reference transfer.Reference) (*transfer.Transfer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.referenceIndex[refKey(sourceAccountID, reference)]
	if !ok {
		return nil, nil
	}
	t := r.s.transfers[id]
	if t == nil {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *transferRepo) FindByFilters(ctx context.Context, filter transfer.Filter, page transfer.Page) (transfer.Paginated, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	page = page.Clamped()
	var matches []*transfer.Transfer
	for _, t := range r.s.transfers {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.AccountID != nil && t.SourceAccountID != *filter.AccountID && t.DestinationAccountID != *filter.AccountID {
			continue
		}
		cp := *t
		matches = append(matches, &cp)
	}
	sortTransfersByCreatedAt(matches)

	total := len(matches)
	start := (page.Page - 1) * page.PerPage
	if start > total {
		start = total
	}
	end := start + page.PerPage
	if end > total {
		end = total
	}

	return transfer.Paginated{
		Transfers: matches[start:end],
		Total:     total,
		Page:      page.Page,
		PerPage:   page.PerPage,
	}, nil
}

func sortTransfersByCreatedAt(items []*transfer.Transfer) {
	for i := 1; i < len(items); i++ {
		for j := i; j > 0 && items[j].CreatedAt.Before(items[j-1].CreatedAt); j-- {
			items[j], items[j-1] = items[j-1], items[j]
		}
	}
}
