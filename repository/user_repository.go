package repository

import (
	"context"
	"fmt"
	"time"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	UpdateProfile(ctx context.Context, id, displayName string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	RequestDeletion(ctx context.Context, id string, at time.Time) error
	CancelDeletion(ctx context.Context, id string) error
	ListDeletionDue(ctx context.Context, before time.Time) ([]models.User, error)
	Anonymize(ctx context.Context, id string) error
	WithTx(tx database.Querier) UserRepository
}

type userRepository struct {
	db *database.DB
	tx database.Querier
}

func NewUserRepository(db *database.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) WithTx(tx database.Querier) UserRepository {
	return &userRepository{db: r.db, tx: tx}
}

func (r *userRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const userColumns = `id, email, display_name, password_hash, deletion_requested_at, deleted_at, created_at, updated_at`

func scanUser(row interface{ Scan(...interface{}) error }, u *models.User) error {
	return row.Scan(
		&u.ID, &u.Email, &u.DisplayName, &u.PasswordHash,
		&u.DeletionRequestedAt, &u.DeletedAt, &u.CreatedAt, &u.UpdatedAt,
	)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	if err := scanUser(r.getQuerier().QueryRow(ctx, query, id), &user); err != nil {
		return nil, fmt.Errorf("getting user by id: %w", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1) AND deleted_at IS NULL`

	if err := scanUser(r.getQuerier().QueryRow(ctx, query, email), &user); err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &user, nil
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query, user.ID, user.Email, user.DisplayName, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("creating user: %w", err)
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id, displayName string) error {
	query := `UPDATE users SET display_name = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, displayName, id)
	if err != nil {
		return fmt.Errorf("updating user profile: %w", err)
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, passwordHash, id)
	if err != nil {
		return fmt.Errorf("updating user password: %w", err)
	}
	return nil
}

func (r *userRepository) RequestDeletion(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE users SET deletion_requested_at = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("requesting user deletion: %w", err)
	}
	return nil
}

func (r *userRepository) CancelDeletion(ctx context.Context, id string) error {
	query := `UPDATE users SET deletion_requested_at = NULL, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("cancelling user deletion: %w", err)
	}
	return nil
}

func (r *userRepository) ListDeletionDue(ctx context.Context, before time.Time) ([]models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
	          WHERE deletion_requested_at IS NOT NULL AND deletion_requested_at <= $1 AND deleted_at IS NULL
	          ORDER BY deletion_requested_at`

	rows, err := r.getQuerier().Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("listing deletion-due users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var u models.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	return users, nil
}

// Anonymize strips PII in place so expense and settlement history keeps its
// referential integrity.
func (r *userRepository) Anonymize(ctx context.Context, id string) error {
	query := `UPDATE users SET email = NULL, display_name = 'Deleted User', password_hash = '',
	          deleted_at = NOW(), updated_at = NOW()
	          WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("anonymizing user: %w", err)
	}
	return nil
}
