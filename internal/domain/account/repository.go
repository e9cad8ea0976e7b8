package account

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the Account aggregate's storage port.
type Repository interface {
	Save(ctx context.Context, a *Account) error
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetByID fails with apperrors.AccountNotFound on a miss.
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	// GetByIDForUpdate acquires a pessimistic row lock; callers must already
	// be inside a transaction (SPEC_FULL §4.4 step 5 and §9's uniformity
	// resolution -- every mutating engine operation uses this, not GetByID).
	// ctx must carry the active transaction for the lock to hold past the
	// single statement.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Account, error)
	// ListPage walks the account table in ascending ID order, afterID-keyed
	// so a long reconciliation pass never re-reads a row it already
	// classified and holds no cursor state between pages. A nil afterID
	// starts from the beginning; an empty result means the walk is done.
	ListPage(ctx context.Context, afterID *uuid.UUID, limit int) ([]*Account, error)
}
