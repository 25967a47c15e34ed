package repository

import (
	"context"
	"fmt"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	CreateBatch(ctx context.Context, ns []models.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID string) (bool, error)
	MarkAllRead(ctx context.Context, userID string) error
	WithTx(tx database.Querier) NotificationRepository
}

type notificationRepository struct {
	db *database.DB
	tx database.Querier
}

func NewNotificationRepository(db *database.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) WithTx(tx database.Querier) NotificationRepository {
	return &notificationRepository{db: r.db, tx: tx}
}

func (r *notificationRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const notificationInsert = `INSERT INTO notifications (id, user_id, type, ref_type, ref_id, amount_minor, currency, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

func (r *notificationRepository) Create(ctx context.Context, n *models.Notification) error {
	_, err := r.getQuerier().Exec(ctx, notificationInsert,
		n.ID, n.UserID, n.Type, n.RefType, n.RefID, n.AmountMinor, n.Currency)
	if err != nil {
		return fmt.Errorf("creating notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) CreateBatch(ctx context.Context, ns []models.Notification) error {
	for i := range ns {
		if err := r.Create(ctx, &ns[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	query := `SELECT id, user_id, type, ref_type, ref_id, amount_minor, currency, read_at, created_at
	          FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.getQuerier().Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.RefType, &n.RefID,
			&n.AmountMinor, &n.Currency, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning notification: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// MarkRead returns false when the notification does not exist or belongs to
// another user.
func (r *notificationRepository) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	query := `UPDATE notifications SET read_at = NOW() WHERE id = $1 AND user_id = $2 AND read_at IS NULL`

	tag, err := r.getQuerier().Exec(ctx, query, id, userID)
	if err != nil {
		return false, fmt.Errorf("marking notification read: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	query := `UPDATE notifications SET read_at = NOW() WHERE user_id = $1 AND read_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}
