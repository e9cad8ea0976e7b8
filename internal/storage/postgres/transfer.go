package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/coreledger/engine/internal/apperrors"
	"github.com/coreledger/engine/internal/domain/money"
	"github.com/coreledger/engine/internal/domain/transfer"
)

type TransferRepo struct{ s *Store }

func (r *TransferRepo) Save(ctx context.Context, t *transfer.Transfer) error {
	const upsert = `
		INSERT INTO transfers (id, reference, source_account_id, destination_account_id, amount_minor_units,
		                        currency, description, status, failure_code, failure_reason,
		                        created_at, updated_at, completed_at, failed_at, reversed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, failure_code = EXCLUDED.failure_code, failure_reason = EXCLUDED.failure_reason,
			updated_at = EXCLUDED.updated_at, completed_at = EXCLUDED.completed_at,
			failed_at = EXCLUDED.failed_at, reversed_at = EXCLUDED.reversed_at
	`
	_, err := r.s.db(ctx).Exec(ctx, upsert,
		t.ID, string(t.Reference), t.SourceAccountID, t.DestinationAccountID, t.Amount.AmountMinorUnits,
		string(t.Amount.Currency), t.Description, string(t.Status), string(t.FailureCode), t.FailureReason,
		t.CreatedAt, t.UpdatedAt, t.CompletedAt, t.FailedAt, t.ReversedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 is unique_violation -- the (source_account_id, reference)
		// constraint, matching the in-memory adapter's DuplicateTransferRef.
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperrors.New(apperrors.DuplicateTransferRef,
				"reference "+string(t.Reference)+" already used for source account "+t.SourceAccountID.String())
		}
		return apperrors.Wrap(apperrors.ConcurrencyConflict, "save transfer", err)
	}
	return nil
}

const selectTransfer = `
	SELECT id, reference, source_account_id, destination_account_id, amount_minor_units, currency,
	       description, status, failure_code, failure_reason, created_at, updated_at, completed_at, failed_at, reversed_at
	FROM transfers
`

func scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
	var (
		id                   uuid.UUID
		reference            string
		sourceAccountID      uuid.UUID
		destinationAccountID uuid.UUID
		amountMinorUnits     int64
		currency             string
		description          string
		status               string
		failureCode          string
		failureReason        string
		createdAt            time.Time
		updatedAt            time.Time
		completedAt          *time.Time
		failedAt             *time.Time
		reversedAt           *time.Time
	)
	if err := row.Scan(&id, &reference, &sourceAccountID, &destinationAccountID, &amountMinorUnits, &currency,
		&description, &status, &failureCode, &failureReason, &createdAt, &updatedAt, &completedAt, &failedAt, &reversedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	amount := money.Balance{AmountMinorUnits: amountMinorUnits, Currency: money.Currency(currency)}
	return transfer.Hydrate(id, transfer.Reference(reference), sourceAccountID, destinationAccountID, amount,
		description, transfer.Status(status), apperrors.Kind(failureCode), failureReason,
		createdAt, updatedAt, completedAt, failedAt, reversedAt), nil
}

func (r *TransferRepo) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	t, err := scanTransfer(r.s.db(ctx).QueryRow(ctx, selectTransfer+" WHERE id = $1", id))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransferNotFound, "get transfer "+id.String(), err)
	}
	if t == nil {
		return nil, apperrors.New(apperrors.TransferNotFound, "transfer "+id.String()+" not found")
	}
	return t, nil
}

func (r *TransferRepo) FindByReference(ctx context.Context, sourceAccountID uuid.UUID, reference transfer.Reference) (*transfer.Transfer, error) {
	t, err := scanTransfer(r.s.db(ctx).QueryRow(ctx,
		selectTransfer+" WHERE source_account_id = $1 AND reference = $2", sourceAccountID, string(reference)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.TransferNotFound, "find transfer by reference", err)
	}
	return t, nil
}

// FindByFilters runs the listing query and a COUNT(*) of the same predicate
// for the total, mirroring the offset pagination the teacher's listing
// endpoints use (SPEC_FULL §6 caps perPage at 100 via Page.Clamped).
func (r *TransferRepo) FindByFilters(ctx context.Context, filter transfer.Filter, page transfer.Page) (transfer.Paginated, error) {
	page = page.Clamped()

	where := "WHERE ($1::text IS NULL OR status = $1) AND ($2::uuid IS NULL OR source_account_id = $2 OR destination_account_id = $2)"
	var statusArg interface{}
	if filter.Status != nil {
		statusArg = string(*filter.Status)
	}
	var accountArg interface{}
	if filter.AccountID != nil {
		accountArg = *filter.AccountID
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM transfers " + where
	if err := r.s.db(ctx).QueryRow(ctx, countQuery, statusArg, accountArg).Scan(&total); err != nil {
		return transfer.Paginated{}, apperrors.Wrap(apperrors.ConcurrencyConflict, "count transfers", err)
	}

	listQuery := selectTransfer + " " + where + " ORDER BY created_at ASC LIMIT $3 OFFSET $4"
	offset := (page.Page - 1) * page.PerPage
	rows, err := r.s.db(ctx).Query(ctx, listQuery, statusArg, accountArg, page.PerPage, offset)
	if err != nil {
		return transfer.Paginated{}, apperrors.Wrap(apperrors.ConcurrencyConflict, "list transfers", err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return transfer.Paginated{}, err
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return transfer.Paginated{}, err
	}

	return transfer.Paginated{Transfers: transfers, Total: total, Page: page.Page, PerPage: page.PerPage}, nil
}
