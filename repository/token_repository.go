package repository

import (
	"context"
	"fmt"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type TokenRepository interface {
	Create(ctx context.Context, t *models.AuthToken) error
	GetByHash(ctx context.Context, kind models.TokenKind, secretHash string) (*models.AuthToken, error)
	MarkUsed(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string, kind models.TokenKind) error
	DeleteExpired(ctx context.Context) (int64, error)
	WithTx(tx database.Querier) TokenRepository
}

type tokenRepository struct {
	db *database.DB
	tx database.Querier
}

func NewTokenRepository(db *database.DB) TokenRepository {
	return &tokenRepository{db: db}
}

func (r *tokenRepository) WithTx(tx database.Querier) TokenRepository {
	return &tokenRepository{db: r.db, tx: tx}
}

func (r *tokenRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

func (r *tokenRepository) Create(ctx context.Context, t *models.AuthToken) error {
	query := `INSERT INTO auth_tokens (id, user_id, kind, secret_hash, expires_at, created_at)
	          VALUES ($1, $2, $3, $4, $5, NOW())`

	_, err := r.getQuerier().Exec(ctx, query, t.ID, t.UserID, t.Kind, t.SecretHash, t.ExpiresAt)
	if err != nil {
		return fmt.Errorf("creating auth token: %w", err)
	}
	return nil
}

func (r *tokenRepository) GetByHash(ctx context.Context, kind models.TokenKind, secretHash string) (*models.AuthToken, error) {
	var t models.AuthToken
	query := `SELECT id, user_id, kind, secret_hash, expires_at, used_at, revoked_at, created_at
	          FROM auth_tokens WHERE kind = $1 AND secret_hash = $2`

	err := r.getQuerier().QueryRow(ctx, query, kind, secretHash).Scan(
		&t.ID, &t.UserID, &t.Kind, &t.SecretHash, &t.ExpiresAt, &t.UsedAt, &t.RevokedAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("getting auth token: %w", err)
	}
	return &t, nil
}

func (r *tokenRepository) MarkUsed(ctx context.Context, id string) error {
	query := `UPDATE auth_tokens SET used_at = NOW() WHERE id = $1 AND used_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("marking auth token used: %w", err)
	}
	return nil
}

func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userID string, kind models.TokenKind) error {
	query := `UPDATE auth_tokens SET revoked_at = NOW() WHERE user_id = $1 AND kind = $2 AND revoked_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, userID, kind)
	if err != nil {
		return fmt.Errorf("revoking auth tokens: %w", err)
	}
	return nil
}

func (r *tokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM auth_tokens WHERE expires_at < NOW()`

	tag, err := r.getQuerier().Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("deleting expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
