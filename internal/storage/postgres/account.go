package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/account"
	"github.com/coreledger/engine/internal/domain/money"
)

type AccountRepo struct{ s *Store }

// Save upserts the row, enforcing the optimistic version check on update via
// a WHERE version = $previous clause, the same pattern the teacher's
// AtomicTransfer uses for its balance UPDATE.
func (r *AccountRepo) Save(ctx context.Context, a *account.Account) error {
	if a.Version == 0 {
		const insert = `
			INSERT INTO accounts (id, owner_name, amount_minor_units, currency, status, created_at, updated_at, closed_at, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		`
		_, err := r.s.db(ctx).Exec(ctx, insert,
			a.ID, a.OwnerName, a.Balance.AmountMinorUnits, string(a.Balance.Currency),
			string(a.Status), a.CreatedAt, a.UpdatedAt, a.ClosedAt, a.Version)
		if err != nil {
			return apperrors.Wrap(apperrors.ConcurrencyConflict, "insert account", err)
		}
		return nil
	}

	const update = `
		UPDATE accounts
		SET amount_minor_units = $1, status = $2, updated_at = $3, closed_at = $4, version = $5
		WHERE id = $6 AND version = $7
	`
	tag, err := r.s.db(ctx).Exec(ctx, update,
		a.Balance.AmountMinorUnits, string(a.Status), a.UpdatedAt, a.ClosedAt, a.Version,
		a.ID, a.Version-1)
	if err != nil {
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "update account", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.ConcurrencyConflict,
			"account "+a.ID.String()+" version mismatch on save")
	}
	return nil
}

const selectAccount = `
	SELECT id, owner_name, amount_minor_units, currency, status, created_at, updated_at, closed_at, version
	FROM accounts WHERE id = $1
`

func scanAccount(row pgx.Row) (*account.Account, error) {
	var (
		id               uuid.UUID
		ownerName        string
		amountMinorUnits int64
		currency         string
		status           string
		createdAt        time.Time
		updatedAt        time.Time
		closedAt         *time.Time
		version          int
	)
	if err := row.Scan(&id, &ownerName, &amountMinorUnits, &currency, &status, &createdAt, &updatedAt, &closedAt, &version); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	balance := money.Balance{AmountMinorUnits: amountMinorUnits, Currency: money.Currency(currency)}
	return account.Hydrate(id, ownerName, balance, account.Status(status), createdAt, updatedAt, closedAt, version), nil
}

func (r *AccountRepo) FindByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	a, err := scanAccount(r.s.db(ctx).QueryRow(ctx, selectAccount, id))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AccountNotFound, "find account "+id.String(), err)
	}
	return a, nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	a, err := scanAccount(r.s.db(ctx).QueryRow(ctx, selectAccount, id))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AccountNotFound, "get account "+id.String(), err)
	}
	if a == nil {
		return nil, apperrors.New(apperrors.AccountNotFound, "account "+id.String()+" not found")
	}
	return a, nil
}

// GetByIDForUpdate acquires the pessimistic row lock the engine relies on
// to serialize concurrent debits/credits against the same account
// (SPEC_FULL §4.4 step 5). Callers must already be inside Transactional --
// a FOR UPDATE issued on the bare pool would hold the lock for exactly one
// statement and release it immediately, which defeats the point.
func (r *AccountRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	const query = selectAccount + " FOR UPDATE"
	a, err := scanAccount(r.s.db(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.AccountNotFound, "lock account "+id.String(), err)
	}
	if a == nil {
		return nil, apperrors.New(apperrors.AccountNotFound, "account "+id.String()+" not found")
	}
	return a, nil
}

// ListPage walks accounts in ascending ID order for the reconciliation
// pass. "id > $1" rather than an OFFSET keeps every page an index seek
// regardless of how far into the table the cursor has advanced.
func (r *AccountRepo) ListPage(ctx context.Context, afterID *uuid.UUID, limit int) ([]*account.Account, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if afterID != nil {
		rows, err = r.s.db(ctx).Query(ctx,
			"SELECT id, owner_name, amount_minor_units, currency, status, created_at, updated_at, closed_at, version "+
				"FROM accounts WHERE id > $1 ORDER BY id ASC LIMIT $2", *afterID, limit)
	} else {
		rows, err = r.s.db(ctx).Query(ctx,
			"SELECT id, owner_name, amount_minor_units, currency, status, created_at, updated_at, closed_at, version "+
				"FROM accounts ORDER BY id ASC LIMIT $1", limit)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ConcurrencyConflict, "list accounts", err)
	}
	defer rows.Close()

	var out []*account.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
