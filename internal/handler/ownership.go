package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/josh-kwaku/btc-wallet-core/internal/domain"
)

type accountLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)
}

type walletLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListByAccountID(ctx context.Context, accountID uuid.UUID) ([]domain.Wallet, error)
}

func pathUUID(r *http.Request, name string) (uuid.UUID, *AppError) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, ErrResourceNotFound
	}
	return id, nil
}

// ownedWallet loads the wallet and its owning account. A wallet that belongs
// to a different account reads as not found.
func ownedWallet(ctx context.Context, accounts accountLookup, wallets walletLookup, accountID, walletID uuid.UUID) (*domain.Account, *domain.Wallet, error) {
	account, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	wallet, err := wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, nil, err
	}
	if wallet.AccountID != account.ID {
		return nil, nil, domain.ErrWalletNotFound
	}
	return account, wallet, nil
}
