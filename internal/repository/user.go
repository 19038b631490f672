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

const userColumns = `id, language, device_tokens, created_at`

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id,
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetByID: %w", domain.ErrUserNotFound)
		}
		return nil, fmt.Errorf("GetByID: %w", err)
	}
	return u, nil
}

func (r *UserRepository) Create(ctx context.Context, u *domain.User) error {
	tokens := u.DeviceTokens
	if tokens == nil {
		tokens = []string{}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, language, device_tokens, created_at) VALUES ($1, $2, $3, $4)`,
		u.ID, u.Language, pq.Array(tokens), u.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	err := s.Scan(&u.ID, &u.Language, pq.Array(&u.DeviceTokens), &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
