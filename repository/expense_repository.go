package repository

import (
	"context"
	"fmt"
	"time"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

// ExpenseFilter narrows ListByGroup. Zero values mean "no filter".
type ExpenseFilter struct {
	From          *time.Time
	To            *time.Time
	Category      *string
	PayerMemberID *string
	Limit         int
	Offset        int
}

type ExpenseRepository interface {
	GetByID(ctx context.Context, id string) (*models.Expense, error)
	ListByGroup(ctx context.Context, groupID string, filter ExpenseFilter) ([]models.Expense, error)
	ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Expense, error)
	Create(ctx context.Context, expense *models.Expense) error
	Update(ctx context.Context, expense *models.Expense) error
	SoftDelete(ctx context.Context, id string) error
	ExistsForRuleOccurrence(ctx context.Context, ruleID string, occurrence time.Time) (bool, error)
	WithTx(tx database.Querier) ExpenseRepository
}

type expenseRepository struct {
	db *database.DB
	tx database.Querier
}

func NewExpenseRepository(db *database.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) WithTx(tx database.Querier) ExpenseRepository {
	return &expenseRepository{db: r.db, tx: tx}
}

func (r *expenseRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const expenseColumns = `id, group_id, created_by_member_id, name, category, currency, subtotal_minor,
	expense_date, recurring_rule_id, deleted_at, created_at, updated_at`

func scanExpense(row interface{ Scan(...interface{}) error }, e *models.Expense) error {
	return row.Scan(
		&e.ID, &e.GroupID, &e.CreatedByMemberID, &e.Name, &e.Category, &e.Currency,
		&e.SubtotalMinor, &e.ExpenseDate, &e.RecurringRuleID, &e.DeletedAt, &e.CreatedAt, &e.UpdatedAt,
	)
}

func (r *expenseRepository) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	var expense models.Expense
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE id = $1 AND deleted_at IS NULL`

	if err := scanExpense(r.getQuerier().QueryRow(ctx, query, id), &expense); err != nil {
		return nil, fmt.Errorf("getting expense by id: %w", err)
	}

	if err := r.loadChildren(ctx, []*models.Expense{&expense}); err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) ListByGroup(ctx context.Context, groupID string, filter ExpenseFilter) ([]models.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE group_id = $1 AND deleted_at IS NULL`
	args := []interface{}{groupID}

	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(` AND expense_date >= $%d`, len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(` AND expense_date <= $%d`, len(args))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		query += fmt.Sprintf(` AND category = $%d`, len(args))
	}
	if filter.PayerMemberID != nil {
		args = append(args, *filter.PayerMemberID)
		query += fmt.Sprintf(` AND id IN (SELECT expense_id FROM expense_payers WHERE member_id = $%d)`, len(args))
	}

	query += ` ORDER BY expense_date DESC, created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.getQuerier().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	ptrs := make([]*models.Expense, len(expenses))
	for i := range expenses {
		ptrs[i] = &expenses[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return expenses, nil
}

// ListByMember returns expenses any of the member rows participated in, as
// payer or split party. Used by the data export.
func (r *expenseRepository) ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Expense, error) {
	if len(memberIDs) == 0 {
		return []models.Expense{}, nil
	}
	query := `SELECT DISTINCT ` + expenseColumns + ` FROM expenses
	          WHERE deleted_at IS NULL AND (
	              id IN (SELECT expense_id FROM expense_payers WHERE member_id = ANY($1))
	              OR id IN (
	                  SELECT i.expense_id FROM expense_items i
	                  JOIN expense_item_splits s ON s.item_id = i.id
	                  WHERE s.member_id = ANY($1)
	              )
	          )
	          ORDER BY expense_date DESC, created_at DESC
	          LIMIT $2`

	rows, err := r.getQuerier().Query(ctx, query, memberIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("listing expenses by member: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		var e models.Expense
		if err := scanExpense(rows, &e); err != nil {
			return nil, fmt.Errorf("scanning expense: %w", err)
		}
		expenses = append(expenses, e)
	}

	ptrs := make([]*models.Expense, len(expenses))
	for i := range expenses {
		ptrs[i] = &expenses[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (r *expenseRepository) loadChildren(ctx context.Context, expenses []*models.Expense) error {
	if len(expenses) == 0 {
		return nil
	}
	ids := make([]string, len(expenses))
	byID := make(map[string]*models.Expense, len(expenses))
	for i, e := range expenses {
		ids[i] = e.ID
		byID[e.ID] = e
	}

	payerQuery := `SELECT id, expense_id, member_id, amount_minor FROM expense_payers
	               WHERE expense_id = ANY($1) ORDER BY id`
	pRows, err := r.getQuerier().Query(ctx, payerQuery, ids)
	if err != nil {
		return fmt.Errorf("loading expense payers: %w", err)
	}
	defer pRows.Close()
	for pRows.Next() {
		var p models.ExpensePayer
		if err := pRows.Scan(&p.ID, &p.ExpenseID, &p.MemberID, &p.AmountMinor); err != nil {
			return fmt.Errorf("scanning expense payer: %w", err)
		}
		byID[p.ExpenseID].Payers = append(byID[p.ExpenseID].Payers, p)
	}

	itemQuery := `SELECT id, expense_id, name, quantity, unit_value_minor FROM expense_items
	              WHERE expense_id = ANY($1) ORDER BY id`
	iRows, err := r.getQuerier().Query(ctx, itemQuery, ids)
	if err != nil {
		return fmt.Errorf("loading expense items: %w", err)
	}
	defer iRows.Close()

	itemByID := make(map[string]*models.ExpenseItem)
	itemIDs := make([]string, 0)
	for iRows.Next() {
		var it models.ExpenseItem
		if err := iRows.Scan(&it.ID, &it.ExpenseID, &it.Name, &it.Quantity, &it.UnitValueMinor); err != nil {
			return fmt.Errorf("scanning expense item: %w", err)
		}
		e := byID[it.ExpenseID]
		e.Items = append(e.Items, it)
		itemByID[it.ID] = &e.Items[len(e.Items)-1]
		itemIDs = append(itemIDs, it.ID)
	}

	if len(itemIDs) == 0 {
		return nil
	}

	splitQuery := `SELECT id, item_id, member_id, share_mode, weight, exact_amount_minor, owed_minor
	               FROM expense_item_splits WHERE item_id = ANY($1) ORDER BY id`
	sRows, err := r.getQuerier().Query(ctx, splitQuery, itemIDs)
	if err != nil {
		return fmt.Errorf("loading item splits: %w", err)
	}
	defer sRows.Close()
	for sRows.Next() {
		var s models.ExpenseItemSplit
		if err := sRows.Scan(&s.ID, &s.ItemID, &s.MemberID, &s.ShareMode, &s.Weight, &s.ExactAmountMinor, &s.OwedMinor); err != nil {
			return fmt.Errorf("scanning item split: %w", err)
		}
		itemByID[s.ItemID].Splits = append(itemByID[s.ItemID].Splits, s)
	}
	return nil
}

func (r *expenseRepository) Create(ctx context.Context, expense *models.Expense) error {
	query := `INSERT INTO expenses (id, group_id, created_by_member_id, name, category, currency,
	          subtotal_minor, expense_date, recurring_rule_id, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query,
		expense.ID, expense.GroupID, expense.CreatedByMemberID, expense.Name, expense.Category,
		expense.Currency, expense.SubtotalMinor, expense.ExpenseDate, expense.RecurringRuleID)
	if err != nil {
		return fmt.Errorf("creating expense: %w", err)
	}

	return r.insertChildren(ctx, expense)
}

// Update rewrites the expense row and replaces payers, items and splits
// wholesale. Callers run it inside a transaction.
func (r *expenseRepository) Update(ctx context.Context, expense *models.Expense) error {
	query := `UPDATE expenses SET name = $1, category = $2, currency = $3, subtotal_minor = $4,
	          expense_date = $5, updated_at = NOW()
	          WHERE id = $6 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query,
		expense.Name, expense.Category, expense.Currency, expense.SubtotalMinor,
		expense.ExpenseDate, expense.ID)
	if err != nil {
		return fmt.Errorf("updating expense: %w", err)
	}

	if _, err := r.getQuerier().Exec(ctx,
		`DELETE FROM expense_item_splits WHERE item_id IN (SELECT id FROM expense_items WHERE expense_id = $1)`,
		expense.ID); err != nil {
		return fmt.Errorf("clearing item splits: %w", err)
	}
	if _, err := r.getQuerier().Exec(ctx, `DELETE FROM expense_items WHERE expense_id = $1`, expense.ID); err != nil {
		return fmt.Errorf("clearing expense items: %w", err)
	}
	if _, err := r.getQuerier().Exec(ctx, `DELETE FROM expense_payers WHERE expense_id = $1`, expense.ID); err != nil {
		return fmt.Errorf("clearing expense payers: %w", err)
	}

	return r.insertChildren(ctx, expense)
}

func (r *expenseRepository) insertChildren(ctx context.Context, expense *models.Expense) error {
	for _, p := range expense.Payers {
		_, err := r.getQuerier().Exec(ctx,
			`INSERT INTO expense_payers (id, expense_id, member_id, amount_minor) VALUES ($1, $2, $3, $4)`,
			p.ID, expense.ID, p.MemberID, p.AmountMinor)
		if err != nil {
			return fmt.Errorf("inserting expense payer: %w", err)
		}
	}
	for _, it := range expense.Items {
		_, err := r.getQuerier().Exec(ctx,
			`INSERT INTO expense_items (id, expense_id, name, quantity, unit_value_minor) VALUES ($1, $2, $3, $4, $5)`,
			it.ID, expense.ID, it.Name, it.Quantity, it.UnitValueMinor)
		if err != nil {
			return fmt.Errorf("inserting expense item: %w", err)
		}
		for _, s := range it.Splits {
			_, err := r.getQuerier().Exec(ctx,
				`INSERT INTO expense_item_splits (id, item_id, member_id, share_mode, weight, exact_amount_minor, owed_minor)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				s.ID, it.ID, s.MemberID, s.ShareMode, s.Weight, s.ExactAmountMinor, s.OwedMinor)
			if err != nil {
				return fmt.Errorf("inserting item split: %w", err)
			}
		}
	}
	return nil
}

func (r *expenseRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE expenses SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft deleting expense: %w", err)
	}
	return nil
}

func (r *expenseRepository) ExistsForRuleOccurrence(ctx context.Context, ruleID string, occurrence time.Time) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM expenses WHERE recurring_rule_id = $1 AND expense_date = $2)`

	if err := r.getQuerier().QueryRow(ctx, query, ruleID, occurrence).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking rule occurrence: %w", err)
	}
	return exists, nil
}
