package repository

import (
	"context"
	"fmt"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type SettlementRepository interface {
	GetByID(ctx context.Context, id string) (*models.Settlement, error)
	ListByGroup(ctx context.Context, groupID string, status *models.SettlementStatus) ([]models.Settlement, error)
	ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Settlement, error)
	Create(ctx context.Context, s *models.Settlement) error
	UpdateStatusIfPending(ctx context.Context, id string, to models.SettlementStatus) (bool, error)
	WithTx(tx database.Querier) SettlementRepository
}

type settlementRepository struct {
	db *database.DB
	tx database.Querier
}

func NewSettlementRepository(db *database.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

func (r *settlementRepository) WithTx(tx database.Querier) SettlementRepository {
	return &settlementRepository{db: r.db, tx: tx}
}

func (r *settlementRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const settlementColumns = `id, group_id, payer_member_id, payee_member_id, amount_minor, currency,
	status, note, resolved_at, created_at, updated_at`

func scanSettlement(row interface{ Scan(...interface{}) error }, s *models.Settlement) error {
	return row.Scan(
		&s.ID, &s.GroupID, &s.PayerMemberID, &s.PayeeMemberID, &s.AmountMinor, &s.Currency,
		&s.Status, &s.Note, &s.ResolvedAt, &s.CreatedAt, &s.UpdatedAt,
	)
}

func (r *settlementRepository) GetByID(ctx context.Context, id string) (*models.Settlement, error) {
	var s models.Settlement
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE id = $1`

	if err := scanSettlement(r.getQuerier().QueryRow(ctx, query, id), &s); err != nil {
		return nil, fmt.Errorf("getting settlement by id: %w", err)
	}
	return &s, nil
}

func (r *settlementRepository) ListByGroup(ctx context.Context, groupID string, status *models.SettlementStatus) ([]models.Settlement, error) {
	query := `SELECT ` + settlementColumns + ` FROM settlements WHERE group_id = $1`
	args := []interface{}{groupID}
	if status != nil {
		args = append(args, *status)
		query += ` AND status = $2`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.getQuerier().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing settlements: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var s models.Settlement
		if err := scanSettlement(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

func (r *settlementRepository) ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Settlement, error) {
	if len(memberIDs) == 0 {
		return []models.Settlement{}, nil
	}
	query := `SELECT ` + settlementColumns + ` FROM settlements
	          WHERE payer_member_id = ANY($1) OR payee_member_id = ANY($1)
	          ORDER BY created_at DESC
	          LIMIT $2`

	rows, err := r.getQuerier().Query(ctx, query, memberIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("listing settlements by member: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var s models.Settlement
		if err := scanSettlement(rows, &s); err != nil {
			return nil, fmt.Errorf("scanning settlement: %w", err)
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

func (r *settlementRepository) Create(ctx context.Context, s *models.Settlement) error {
	query := `INSERT INTO settlements (id, group_id, payer_member_id, payee_member_id, amount_minor,
	          currency, status, note, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, 'pending', $7, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query,
		s.ID, s.GroupID, s.PayerMemberID, s.PayeeMemberID, s.AmountMinor, s.Currency, s.Note)
	if err != nil {
		return fmt.Errorf("creating settlement: %w", err)
	}
	return nil
}

// UpdateStatusIfPending transitions the settlement in a single compare-and-set
// statement. It returns false when the row was not pending, so concurrent
// resolvers cannot both win.
func (r *settlementRepository) UpdateStatusIfPending(ctx context.Context, id string, to models.SettlementStatus) (bool, error) {
	query := `UPDATE settlements SET status = $1, resolved_at = NOW(), updated_at = NOW()
	          WHERE id = $2 AND status = 'pending'`

	tag, err := r.getQuerier().Exec(ctx, query, to, id)
	if err != nil {
		return false, fmt.Errorf("updating settlement status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
