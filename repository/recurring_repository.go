package repository

import (
	"context"
	"fmt"
	"time"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type RecurringRepository interface {
	GetByID(ctx context.Context, id string) (*models.RecurringRule, error)
	ListByGroup(ctx context.Context, groupID string, activeOnly bool) ([]models.RecurringRule, error)
	ListDue(ctx context.Context, now time.Time) ([]models.RecurringRule, error)
	Create(ctx context.Context, rule *models.RecurringRule) error
	Update(ctx context.Context, rule *models.RecurringRule) error
	Deactivate(ctx context.Context, id string) error
	AdvanceIfUnchanged(ctx context.Context, id string, from, to time.Time, generatedAt time.Time) (bool, error)
	WithTx(tx database.Querier) RecurringRepository
}

type recurringRepository struct {
	db *database.DB
	tx database.Querier
}

func NewRecurringRepository(db *database.DB) RecurringRepository {
	return &recurringRepository{db: db}
}

func (r *recurringRepository) WithTx(tx database.Querier) RecurringRepository {
	return &recurringRepository{db: r.db, tx: tx}
}

func (r *recurringRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const ruleColumns = `id, group_id, created_by_member_id, name, category, amount_minor, currency,
	frequency, day_of_week, day_of_month, month_of_year, start_date, end_date,
	next_occurrence, last_generated_at, is_active, created_at, updated_at`

func scanRule(row interface{ Scan(...interface{}) error }, rule *models.RecurringRule) error {
	return row.Scan(
		&rule.ID, &rule.GroupID, &rule.CreatedByMemberID, &rule.Name, &rule.Category,
		&rule.AmountMinor, &rule.Currency, &rule.Frequency, &rule.DayOfWeek, &rule.DayOfMonth,
		&rule.MonthOfYear, &rule.StartDate, &rule.EndDate, &rule.NextOccurrence,
		&rule.LastGeneratedAt, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	)
}

func (r *recurringRepository) GetByID(ctx context.Context, id string) (*models.RecurringRule, error) {
	var rule models.RecurringRule
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE id = $1`

	if err := scanRule(r.getQuerier().QueryRow(ctx, query, id), &rule); err != nil {
		return nil, fmt.Errorf("getting recurring rule by id: %w", err)
	}
	if err := r.loadChildren(ctx, []*models.RecurringRule{&rule}); err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *recurringRepository) ListByGroup(ctx context.Context, groupID string, activeOnly bool) ([]models.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules WHERE group_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at`

	rows, err := r.getQuerier().Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("listing recurring rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RecurringRule
	for rows.Next() {
		var rule models.RecurringRule
		if err := scanRule(rows, &rule); err != nil {
			return nil, fmt.Errorf("scanning recurring rule: %w", err)
		}
		rules = append(rules, rule)
	}

	ptrs := make([]*models.RecurringRule, len(rules))
	for i := range rules {
		ptrs[i] = &rules[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return rules, nil
}

// ListDue returns active rules whose next occurrence is at or before now,
// oldest first so catch-up generation is fair across groups.
func (r *recurringRepository) ListDue(ctx context.Context, now time.Time) ([]models.RecurringRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM recurring_rules
	          WHERE is_active = TRUE AND next_occurrence <= $1
	          ORDER BY next_occurrence`

	rows, err := r.getQuerier().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("listing due rules: %w", err)
	}
	defer rows.Close()

	var rules []models.RecurringRule
	for rows.Next() {
		var rule models.RecurringRule
		if err := scanRule(rows, &rule); err != nil {
			return nil, fmt.Errorf("scanning due rule: %w", err)
		}
		rules = append(rules, rule)
	}

	ptrs := make([]*models.RecurringRule, len(rules))
	for i := range rules {
		ptrs[i] = &rules[i]
	}
	if err := r.loadChildren(ctx, ptrs); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *recurringRepository) loadChildren(ctx context.Context, rules []*models.RecurringRule) error {
	if len(rules) == 0 {
		return nil
	}
	ids := make([]string, len(rules))
	byID := make(map[string]*models.RecurringRule, len(rules))
	for i, rule := range rules {
		ids[i] = rule.ID
		byID[rule.ID] = rule
	}

	pRows, err := r.getQuerier().Query(ctx,
		`SELECT id, rule_id, member_id, amount_minor FROM recurring_payers WHERE rule_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("loading recurring payers: %w", err)
	}
	defer pRows.Close()
	for pRows.Next() {
		var p models.RecurringPayer
		if err := pRows.Scan(&p.ID, &p.RuleID, &p.MemberID, &p.AmountMinor); err != nil {
			return fmt.Errorf("scanning recurring payer: %w", err)
		}
		byID[p.RuleID].Payers = append(byID[p.RuleID].Payers, p)
	}

	sRows, err := r.getQuerier().Query(ctx,
		`SELECT id, rule_id, member_id, share_mode, weight, exact_amount_minor
		 FROM recurring_splits WHERE rule_id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return fmt.Errorf("loading recurring splits: %w", err)
	}
	defer sRows.Close()
	for sRows.Next() {
		var s models.RecurringSplit
		if err := sRows.Scan(&s.ID, &s.RuleID, &s.MemberID, &s.ShareMode, &s.Weight, &s.ExactAmountMinor); err != nil {
			return fmt.Errorf("scanning recurring split: %w", err)
		}
		byID[s.RuleID].Splits = append(byID[s.RuleID].Splits, s)
	}
	return nil
}

func (r *recurringRepository) Create(ctx context.Context, rule *models.RecurringRule) error {
	query := `INSERT INTO recurring_rules (id, group_id, created_by_member_id, name, category,
	          amount_minor, currency, frequency, day_of_week, day_of_month, month_of_year,
	          start_date, end_date, next_occurrence, is_active, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, TRUE, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query,
		rule.ID, rule.GroupID, rule.CreatedByMemberID, rule.Name, rule.Category,
		rule.AmountMinor, rule.Currency, rule.Frequency, rule.DayOfWeek, rule.DayOfMonth,
		rule.MonthOfYear, rule.StartDate, rule.EndDate, rule.NextOccurrence)
	if err != nil {
		return fmt.Errorf("creating recurring rule: %w", err)
	}
	return r.insertChildren(ctx, rule)
}

func (r *recurringRepository) Update(ctx context.Context, rule *models.RecurringRule) error {
	query := `UPDATE recurring_rules SET name = $1, category = $2, amount_minor = $3,
	          frequency = $4, day_of_week = $5, day_of_month = $6, month_of_year = $7,
	          end_date = $8, next_occurrence = $9, is_active = $10, updated_at = NOW()
	          WHERE id = $11`

	_, err := r.getQuerier().Exec(ctx, query,
		rule.Name, rule.Category, rule.AmountMinor, rule.Frequency, rule.DayOfWeek,
		rule.DayOfMonth, rule.MonthOfYear, rule.EndDate, rule.NextOccurrence, rule.IsActive, rule.ID)
	if err != nil {
		return fmt.Errorf("updating recurring rule: %w", err)
	}

	if _, err := r.getQuerier().Exec(ctx, `DELETE FROM recurring_payers WHERE rule_id = $1`, rule.ID); err != nil {
		return fmt.Errorf("clearing recurring payers: %w", err)
	}
	if _, err := r.getQuerier().Exec(ctx, `DELETE FROM recurring_splits WHERE rule_id = $1`, rule.ID); err != nil {
		return fmt.Errorf("clearing recurring splits: %w", err)
	}
	return r.insertChildren(ctx, rule)
}

func (r *recurringRepository) insertChildren(ctx context.Context, rule *models.RecurringRule) error {
	for _, p := range rule.Payers {
		_, err := r.getQuerier().Exec(ctx,
			`INSERT INTO recurring_payers (id, rule_id, member_id, amount_minor) VALUES ($1, $2, $3, $4)`,
			p.ID, rule.ID, p.MemberID, p.AmountMinor)
		if err != nil {
			return fmt.Errorf("inserting recurring payer: %w", err)
		}
	}
	for _, s := range rule.Splits {
		_, err := r.getQuerier().Exec(ctx,
			`INSERT INTO recurring_splits (id, rule_id, member_id, share_mode, weight, exact_amount_minor)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			s.ID, rule.ID, s.MemberID, s.ShareMode, s.Weight, s.ExactAmountMinor)
		if err != nil {
			return fmt.Errorf("inserting recurring split: %w", err)
		}
	}
	return nil
}

func (r *recurringRepository) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE recurring_rules SET is_active = FALSE, updated_at = NOW() WHERE id = $1`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("deactivating recurring rule: %w", err)
	}
	return nil
}

// AdvanceIfUnchanged moves next_occurrence forward only when it still equals
// the value the caller read. Racing workers observe zero rows affected and
// skip the occurrence.
func (r *recurringRepository) AdvanceIfUnchanged(ctx context.Context, id string, from, to time.Time, generatedAt time.Time) (bool, error) {
	query := `UPDATE recurring_rules SET next_occurrence = $1, last_generated_at = $2, updated_at = NOW()
	          WHERE id = $3 AND next_occurrence = $4 AND is_active = TRUE`

	tag, err := r.getQuerier().Exec(ctx, query, to, generatedAt, id, from)
	if err != nil {
		return false, fmt.Errorf("advancing recurring rule: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
