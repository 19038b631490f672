package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/ccoveille/go-safecast"
	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

const accountColumns = `id, user_id, COALESCE(username, ''), role, status,
	default_wallet_id, display_currency, withdraw_fee, created_at`

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id,
	)
	a, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return a, nil
}

// Unlocked yields every account that is not locked, oldest first. Iteration
// stops at the first error, which is yielded with a zero account.
func (r *AccountRepository) Unlocked(ctx context.Context) iter.Seq2[domain.Account, error] {
	return func(yield func(domain.Account, error) bool) {
		rows, err := r.db.QueryContext(ctx,
			`SELECT `+accountColumns+` FROM accounts
			WHERE status <> $1 ORDER BY created_at, id`, domain.AccountStatusLocked,
		)
		if err != nil {
			yield(domain.Account{}, fmt.Errorf("Unlocked: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			a, err := scanAccount(rows)
			if err != nil {
				yield(domain.Account{}, fmt.Errorf("Unlocked: scan: %w", err))
				return
			}
			if !yield(*a, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.Account{}, fmt.Errorf("Unlocked: rows: %w", err))
		}
	}
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	var withdrawFee *int64
	if a.WithdrawFee != nil {
		fee, err := safecast.ToInt64(*a.WithdrawFee)
		if err != nil {
			return fmt.Errorf("Create: withdraw fee: %w", err)
		}
		withdrawFee = &fee
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO accounts (
			id, user_id, username, role, status,
			default_wallet_id, display_currency, withdraw_fee, created_at
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9)`,
		a.ID, nullUUID(a.UserID), a.Username, a.Role, a.Status,
		nullUUID(a.DefaultWalletID), a.DisplayCurrency, withdrawFee, a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *AccountRepository) SetDefaultWallet(ctx context.Context, accountID, walletID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET default_wallet_id = $1 WHERE id = $2`, walletID, accountID,
	)
	if err != nil {
		return fmt.Errorf("SetDefaultWallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetDefaultWallet: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("SetDefaultWallet: %w", domain.ErrAccountNotFound)
	}
	return nil
}

func scanAccount(s scanner) (*domain.Account, error) {
	var (
		a             domain.Account
		userID        uuid.NullUUID
		defaultWallet uuid.NullUUID
		withdrawFee   sql.NullInt64
	)
	err := s.Scan(
		&a.ID, &userID, &a.Username, &a.Role, &a.Status,
		&defaultWallet, &a.DisplayCurrency, &withdrawFee, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.UserID = userID.UUID
	a.DefaultWalletID = defaultWallet.UUID
	if withdrawFee.Valid {
		fee, err := safecast.ToUint64(withdrawFee.Int64)
		if err != nil {
			return nil, fmt.Errorf("withdraw fee: %w", err)
		}
		a.WithdrawFee = &fee
	}
	return &a, nil
}

func nullUUID(id uuid.UUID) uuid.NullUUID {
	return uuid.NullUUID{UUID: id, Valid: id != uuid.Nil}
}
