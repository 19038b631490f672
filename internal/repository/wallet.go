package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

const walletColumns = `w.id, w.account_id, w.type, w.currency,
	COALESCE((SELECT array_agg(a.address ORDER BY a.created_at, a.address)
		FROM wallet_addresses a WHERE a.wallet_id = w.id), '{}'),
	w.created_at`

type WalletRepository struct {
	db *sql.DB
}

func NewWalletRepository(db *sql.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets w WHERE w.id = $1`, id,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrWalletNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return w, nil
}

// FindByAddress returns the wallet that owns an on-chain address, or
// domain.ErrNotFound when the address is not ours.
func (r *WalletRepository) FindByAddress(ctx context.Context, address string) (*domain.Wallet, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets w
		JOIN wallet_addresses wa ON wa.wallet_id = w.id
		WHERE wa.address = $1`, address,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindByAddress: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindByAddress: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets w
		WHERE w.account_id = $1 ORDER BY w.created_at, w.id`, accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByAccountID: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByAccountID: scan: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByAccountID: rows: %w", err)
	}
	return wallets, nil
}

func (r *WalletRepository) Create(ctx context.Context, w *domain.Wallet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("Create: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (id, account_id, type, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		w.ID, w.AccountID, w.Type, w.Currency, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	for _, addr := range w.OnChainAddresses {
		if err := addAddress(ctx, tx, w.ID, addr); err != nil {
			return fmt.Errorf("Create: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("Create: commit: %w", err)
	}
	return nil
}

func (r *WalletRepository) AddAddress(ctx context.Context, walletID uuid.UUID, address string) error {
	if err := addAddress(ctx, r.db, walletID, address); err != nil {
		return fmt.Errorf("AddAddress: %w", err)
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func addAddress(ctx context.Context, db execer, walletID uuid.UUID, address string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO wallet_addresses (address, wallet_id) VALUES ($1, $2)`,
		address, walletID,
	)
	return err
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(
		&w.ID, &w.AccountID, &w.Type, &w.Currency,
		pq.Array(&w.OnChainAddresses),
		&w.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
