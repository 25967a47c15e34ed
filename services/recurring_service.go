package services

import (
	"context"
	"time"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/money"
	"splitbase-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type RecurringRuleInput struct {
	Name        string              `json:"name"`
	Category    *string             `json:"category,omitempty"`
	Amount      string              `json:"amount"`
	Frequency   models.Frequency    `json:"frequency"`
	DayOfWeek   *int                `json:"day_of_week,omitempty"`
	DayOfMonth  *int                `json:"day_of_month,omitempty"`
	MonthOfYear *int                `json:"month_of_year,omitempty"`
	StartDate   time.Time           `json:"start_date"`
	EndDate     *time.Time          `json:"end_date,omitempty"`
	Payers      []ExpensePayerInput `json:"payers"`
	Splits      []ExpenseSplitInput `json:"splits"`
}

type RecurringService interface {
	GetByID(ctx context.Context, ruleID, userID string) (*models.RecurringRule, error)
	ListByGroup(ctx context.Context, groupID, userID string) ([]models.RecurringRule, error)
	Create(ctx context.Context, groupID, userID string, input *RecurringRuleInput) (*models.RecurringRule, error)
	Update(ctx context.Context, ruleID, userID string, input *RecurringRuleInput) (*models.RecurringRule, error)
	Deactivate(ctx context.Context, ruleID, userID string) error
	GenerateDue(ctx context.Context, now time.Time) ([]models.SweepOutcome, error)
}

type recurringService struct {
	recurringRepo repository.RecurringRepository
	expenseRepo   repository.ExpenseRepository
	groupRepo     repository.GroupRepository
	balances      BalanceService
	db            *database.DB
}

func NewRecurringService(recurringRepo repository.RecurringRepository, expenseRepo repository.ExpenseRepository, groupRepo repository.GroupRepository, balances BalanceService, db *database.DB) RecurringService {
	return &recurringService{
		recurringRepo: recurringRepo,
		expenseRepo:   expenseRepo,
		groupRepo:     groupRepo,
		balances:      balances,
		db:            db,
	}
}

func (s *recurringService) GetByID(ctx context.Context, ruleID, userID string) (*models.RecurringRule, error) {
	rule, err := s.recurringRepo.GetByID(ctx, ruleID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.RecurringRuleNotFound()
		}
		return nil, apperrors.DatabaseError("getting recurring rule", err)
	}

	if _, err := RequireGroupMembership(ctx, s.groupRepo, rule.GroupID, userID); err != nil {
		return nil, err
	}

	rule.FormatAmounts()
	return rule, nil
}

func (s *recurringService) ListByGroup(ctx context.Context, groupID, userID string) ([]models.RecurringRule, error) {
	if _, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}

	rules, err := s.recurringRepo.ListByGroup(ctx, groupID, false)
	if err != nil {
		zap.L().Error("Failed to list recurring rules", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("listing recurring rules", err)
	}

	if rules == nil {
		rules = []models.RecurringRule{}
	}
	for i := range rules {
		rules[i].FormatAmounts()
	}
	return rules, nil
}

func (s *recurringService) Create(ctx context.Context, groupID, userID string, input *RecurringRuleInput) (*models.RecurringRule, error) {
	member, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleMember)
	if err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	rule, err := s.buildRule(group, member.ID, input)
	if err != nil {
		return nil, err
	}
	rule.ID = uuid.New().String()
	for i := range rule.Payers {
		rule.Payers[i].ID = uuid.New().String()
		rule.Payers[i].RuleID = rule.ID
	}
	for i := range rule.Splits {
		rule.Splits[i].ID = uuid.New().String()
		rule.Splits[i].RuleID = rule.ID
	}

	if err := s.recurringRepo.Create(ctx, rule); err != nil {
		zap.L().Error("Failed to create recurring rule", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("creating recurring rule", err)
	}

	zap.L().Info("Recurring rule created",
		zap.String("rule_id", rule.ID),
		zap.String("group_id", groupID),
		zap.String("frequency", string(rule.Frequency)))

	return s.GetByID(ctx, rule.ID, userID)
}

func (s *recurringService) Update(ctx context.Context, ruleID, userID string, input *RecurringRuleInput) (*models.RecurringRule, error) {
	existing, err := s.recurringRepo.GetByID(ctx, ruleID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.RecurringRuleNotFound()
		}
		return nil, apperrors.DatabaseError("getting recurring rule", err)
	}

	member, err := RequireGroupMembership(ctx, s.groupRepo, existing.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if existing.CreatedByMemberID != member.ID && !member.Role.AtLeast(models.RoleAdmin) {
		return nil, apperrors.Forbidden("Only the creator or a group admin can edit this rule.")
	}

	group, err := s.groupRepo.GetByID(ctx, existing.GroupID)
	if err != nil {
		return nil, apperrors.DatabaseError("getting group", err)
	}

	rule, err := s.buildRule(group, existing.CreatedByMemberID, input)
	if err != nil {
		return nil, err
	}
	rule.ID = ruleID
	rule.IsActive = existing.IsActive
	// An already-advanced schedule keeps its position unless the start moved.
	if !existing.NextOccurrence.Before(rule.StartDate) {
		rule.NextOccurrence = existing.NextOccurrence
	}
	for i := range rule.Payers {
		rule.Payers[i].ID = uuid.New().String()
		rule.Payers[i].RuleID = ruleID
	}
	for i := range rule.Splits {
		rule.Splits[i].ID = uuid.New().String()
		rule.Splits[i].RuleID = ruleID
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.recurringRepo.WithTx(q).Update(ctx, rule); err != nil {
			return apperrors.DatabaseError("updating recurring rule", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Recurring rule updated", zap.String("rule_id", ruleID))
	return s.GetByID(ctx, ruleID, userID)
}

func (s *recurringService) Deactivate(ctx context.Context, ruleID, userID string) error {
	existing, err := s.recurringRepo.GetByID(ctx, ruleID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.RecurringRuleNotFound()
		}
		return apperrors.DatabaseError("getting recurring rule", err)
	}

	member, err := RequireGroupMembership(ctx, s.groupRepo, existing.GroupID, userID)
	if err != nil {
		return err
	}
	if existing.CreatedByMemberID != member.ID && !member.Role.AtLeast(models.RoleAdmin) {
		return apperrors.Forbidden("Only the creator or a group admin can deactivate this rule.")
	}

	if err := s.recurringRepo.Deactivate(ctx, ruleID); err != nil {
		return apperrors.DatabaseError("deactivating recurring rule", err)
	}

	zap.L().Info("Recurring rule deactivated", zap.String("rule_id", ruleID))
	return nil
}

func (s *recurringService) buildRule(group *models.Group, creatorMemberID string, input *RecurringRuleInput) (*models.RecurringRule, error) {
	if input.Name == "" {
		return nil, apperrors.MissingRequiredField("name")
	}
	if !input.Frequency.Valid() {
		return nil, apperrors.InvalidRequest("Unknown frequency: " + string(input.Frequency))
	}
	if input.StartDate.IsZero() {
		return nil, apperrors.MissingRequiredField("start_date")
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		return nil, apperrors.InvalidRequest("End date must not precede the start date.")
	}
	if len(input.Payers) == 0 {
		return nil, apperrors.MissingRequiredField("payers")
	}
	if len(input.Splits) == 0 {
		return nil, apperrors.MissingRequiredField("splits")
	}
	if input.DayOfWeek != nil && (*input.DayOfWeek < 0 || *input.DayOfWeek > 6) {
		return nil, apperrors.InvalidFieldFormat("day_of_week", "0-6")
	}
	if input.DayOfMonth != nil && (*input.DayOfMonth < 1 || *input.DayOfMonth > 31) {
		return nil, apperrors.InvalidFieldFormat("day_of_month", "1-31")
	}
	if input.MonthOfYear != nil && (*input.MonthOfYear < 1 || *input.MonthOfYear > 12) {
		return nil, apperrors.InvalidFieldFormat("month_of_year", "1-12")
	}

	currency := group.DefaultCurrency
	amount, err := money.Parse(input.Amount, currency)
	if err != nil {
		return nil, apperrors.InvalidAmount("Invalid rule amount: " + input.Amount)
	}
	if amount <= 0 {
		return nil, apperrors.InvalidAmount("Rule amount must be positive.")
	}

	active := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		if m.Status == models.MembershipActive {
			active[m.ID] = true
		}
	}

	rule := &models.RecurringRule{
		GroupID:           group.ID,
		CreatedByMemberID: creatorMemberID,
		Name:              input.Name,
		Category:          input.Category,
		AmountMinor:       amount,
		Currency:          currency,
		Frequency:         input.Frequency,
		DayOfWeek:         input.DayOfWeek,
		DayOfMonth:        input.DayOfMonth,
		MonthOfYear:       input.MonthOfYear,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		NextOccurrence:    input.StartDate,
		IsActive:          true,
	}

	var paidTotal int64
	for _, p := range input.Payers {
		if !active[p.MemberID] {
			return nil, apperrors.InvalidRequest("Payer is not an active member of the group.")
		}
		payerAmount, err := money.Parse(p.Amount, currency)
		if err != nil || payerAmount <= 0 {
			return nil, apperrors.InvalidAmount("Invalid payer amount: " + p.Amount)
		}
		paidTotal += payerAmount
		rule.Payers = append(rule.Payers, models.RecurringPayer{
			MemberID:    p.MemberID,
			AmountMinor: payerAmount,
		})
	}
	if paidTotal != amount {
		return nil, apperrors.AmountMismatch(money.Format(paidTotal, currency), money.Format(amount, currency), "payer")
	}

	seen := make(map[string]bool, len(input.Splits))
	for _, sp := range input.Splits {
		if !active[sp.MemberID] {
			return nil, apperrors.InvalidRequest("Split member is not an active member of the group.")
		}
		if seen[sp.MemberID] {
			return nil, apperrors.InvalidRequest("Duplicate split member in rule.")
		}
		seen[sp.MemberID] = true
		if !sp.ShareMode.Valid() {
			return nil, apperrors.InvalidRequest("Unknown share mode: " + string(sp.ShareMode))
		}
		split := models.RecurringSplit{
			MemberID:  sp.MemberID,
			ShareMode: sp.ShareMode,
			Weight:    sp.Weight,
		}
		switch sp.ShareMode {
		case models.ShareExact:
			if sp.ExactAmount == nil {
				return nil, apperrors.MissingRequiredField("exact_amount")
			}
			exact, err := money.Parse(*sp.ExactAmount, currency)
			if err != nil || exact < 0 {
				return nil, apperrors.InvalidAmount("Invalid exact split amount.")
			}
			split.ExactAmountMinor = &exact
		case models.ShareWeighted:
			if sp.Weight == nil || *sp.Weight <= 0 {
				return nil, apperrors.InvalidAmount("Split weights must be positive.")
			}
		}
		rule.Splits = append(rule.Splits, split)
	}

	// Dry-run the split so impossible rules fail at write time, not at
	// generation time.
	if _, err := materializeSplits(rule); err != nil {
		return nil, err
	}

	return rule, nil
}

// GenerateDue materializes one expense per due occurrence of every active
// rule. Each occurrence runs in its own transaction with a compare-and-set
// advance, so concurrent sweepers generate each occurrence at most once.
// Errors are collected per rule and do not stop the sweep.
func (s *recurringService) GenerateDue(ctx context.Context, now time.Time) ([]models.SweepOutcome, error) {
	rules, err := s.recurringRepo.ListDue(ctx, now)
	if err != nil {
		return nil, apperrors.DatabaseError("listing due rules", err)
	}

	outcomes := make([]models.SweepOutcome, 0, len(rules))
	for i := range rules {
		if ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
		outcomes = append(outcomes, s.generateForRule(ctx, &rules[i], now))
	}
	return outcomes, nil
}

func (s *recurringService) generateForRule(ctx context.Context, rule *models.RecurringRule, now time.Time) models.SweepOutcome {
	outcome := models.SweepOutcome{RuleID: rule.ID}

	if rule.EndDate != nil && rule.EndDate.Before(now) {
		if err := s.recurringRepo.Deactivate(ctx, rule.ID); err != nil {
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Skipped = true
		zap.L().Info("Recurring rule expired", zap.String("rule_id", rule.ID))
		return outcome
	}

	next := rule.NextOccurrence
	for !next.After(now) && outcome.Generated < MaxCatchUpPerRule {
		advanced, err := s.generateOccurrence(ctx, rule, next, now)
		if err != nil {
			outcome.Error = err.Error()
			zap.L().Error("Failed to generate recurring occurrence",
				zap.String("rule_id", rule.ID),
				zap.Time("occurrence", next),
				zap.Error(err))
			return outcome
		}
		if !advanced {
			// Another worker already took this occurrence.
			outcome.Skipped = true
			return outcome
		}
		outcome.Generated++
		next = advance(rule, next)
	}

	if outcome.Generated > 0 {
		s.balances.Invalidate(rule.GroupID)
	}
	return outcome
}

func (s *recurringService) generateOccurrence(ctx context.Context, rule *models.RecurringRule, occurrence, now time.Time) (bool, error) {
	advanced := false
	err := s.db.WithTx(ctx, func(q database.Querier) error {
		txExpenses := s.expenseRepo.WithTx(q)
		txRules := s.recurringRepo.WithTx(q)

		exists, err := txExpenses.ExistsForRuleOccurrence(ctx, rule.ID, occurrence)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		ok, err := txRules.AdvanceIfUnchanged(ctx, rule.ID, occurrence, advance(rule, occurrence), now)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		expense, err := s.expenseFromRule(rule, occurrence)
		if err != nil {
			return err
		}
		if err := txExpenses.Create(ctx, expense); err != nil {
			return err
		}
		advanced = true
		return nil
	})
	return advanced, err
}

// expenseFromRule materializes one expense: a single item carrying the rule's
// amount, with owed shares computed from the rule's splits.
func (s *recurringService) expenseFromRule(rule *models.RecurringRule, occurrence time.Time) (*models.Expense, error) {
	owed, err := materializeSplits(rule)
	if err != nil {
		return nil, err
	}

	ruleID := rule.ID
	expense := &models.Expense{
		ID:                uuid.New().String(),
		GroupID:           rule.GroupID,
		CreatedByMemberID: rule.CreatedByMemberID,
		Name:              rule.Name,
		Category:          rule.Category,
		Currency:          rule.Currency,
		SubtotalMinor:     rule.AmountMinor,
		ExpenseDate:       occurrence,
		RecurringRuleID:   &ruleID,
	}

	for _, p := range rule.Payers {
		expense.Payers = append(expense.Payers, models.ExpensePayer{
			ID:          uuid.New().String(),
			ExpenseID:   expense.ID,
			MemberID:    p.MemberID,
			AmountMinor: p.AmountMinor,
		})
	}

	item := models.ExpenseItem{
		ID:             uuid.New().String(),
		ExpenseID:      expense.ID,
		Name:           rule.Name,
		Quantity:       1,
		UnitValueMinor: rule.AmountMinor,
	}
	for i, sp := range rule.Splits {
		split := models.ExpenseItemSplit{
			ID:        uuid.New().String(),
			ItemID:    item.ID,
			MemberID:  sp.MemberID,
			ShareMode: sp.ShareMode,
			Weight:    sp.Weight,
			OwedMinor: owed[i],
		}
		if sp.ShareMode == models.ShareExact {
			v := owed[i]
			split.ExactAmountMinor = &v
		}
		item.Splits = append(item.Splits, split)
	}
	expense.Items = []models.ExpenseItem{item}
	return expense, nil
}

// materializeSplits computes the owed amount per rule split, indexed in the
// order the splits are stored.
func materializeSplits(rule *models.RecurringRule) ([]int64, error) {
	var exactIdx, otherIdx []int
	var exactAmounts, otherWeights []int64
	equalOnly := true
	for i, sp := range rule.Splits {
		switch sp.ShareMode {
		case models.ShareExact:
			if sp.ExactAmountMinor == nil {
				return nil, apperrors.MissingRequiredField("exact_amount")
			}
			equalOnly = false
			exactIdx = append(exactIdx, i)
			exactAmounts = append(exactAmounts, *sp.ExactAmountMinor)
		case models.ShareWeighted:
			if sp.Weight == nil || *sp.Weight <= 0 {
				return nil, apperrors.InvalidAmount("Split weights must be positive.")
			}
			equalOnly = false
			otherIdx = append(otherIdx, i)
			otherWeights = append(otherWeights, *sp.Weight)
		default:
			otherIdx = append(otherIdx, i)
			otherWeights = append(otherWeights, 1)
		}
	}

	if equalOnly {
		shares, err := money.SplitEven(rule.AmountMinor, len(rule.Splits))
		if err != nil {
			return nil, apperrors.InvalidAmount("Rule splits do not cover the amount: " + err.Error())
		}
		return shares, nil
	}

	exactOut, otherOut, err := money.SplitExactPlusRemainder(rule.AmountMinor, exactAmounts, otherWeights)
	if err != nil {
		return nil, apperrors.InvalidAmount("Rule splits do not cover the amount: " + err.Error())
	}

	owed := make([]int64, len(rule.Splits))
	for k, i := range exactIdx {
		owed[i] = exactOut[k]
	}
	for k, i := range otherIdx {
		owed[i] = otherOut[k]
	}
	return owed, nil
}

// advance computes the occurrence after from according to the rule's
// frequency, snapping to the configured day fields and clamping to month
// length where needed.
func advance(rule *models.RecurringRule, from time.Time) time.Time {
	switch rule.Frequency {
	case models.FrequencyDaily:
		return from.AddDate(0, 0, 1)
	case models.FrequencyWeekly:
		return snapToWeekday(from.AddDate(0, 0, 7), rule.DayOfWeek)
	case models.FrequencyBiweekly:
		return snapToWeekday(from.AddDate(0, 0, 14), rule.DayOfWeek)
	case models.FrequencyMonthly:
		next := addMonthsClamped(from, 1)
		if rule.DayOfMonth != nil {
			next = clampToDay(next, *rule.DayOfMonth)
		}
		return next
	case models.FrequencyYearly:
		next := from.AddDate(1, 0, 0)
		if rule.MonthOfYear != nil {
			next = time.Date(next.Year(), time.Month(*rule.MonthOfYear), 1,
				next.Hour(), next.Minute(), next.Second(), next.Nanosecond(), next.Location())
			day := from.Day()
			if rule.DayOfMonth != nil {
				day = *rule.DayOfMonth
			}
			next = clampToDay(next, day)
		} else if rule.DayOfMonth != nil {
			next = clampToDay(next, *rule.DayOfMonth)
		}
		return next
	default:
		return from.AddDate(0, 0, 1)
	}
}

func snapToWeekday(t time.Time, dayOfWeek *int) time.Time {
	if dayOfWeek == nil {
		return t
	}
	delta := (*dayOfWeek - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, delta)
}

// addMonthsClamped adds months without Go's day-overflow normalization:
// Jan 31 + 1 month is Feb 28/29, not Mar 2/3.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	firstOfTarget := time.Date(year, month+time.Month(months), 1,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	last := lastDayOfMonth(firstOfTarget)
	if day > last {
		day = last
	}
	return firstOfTarget.AddDate(0, 0, day-1)
}

func clampToDay(t time.Time, day int) time.Time {
	last := lastDayOfMonth(t)
	if day > last {
		day = last
	}
	return time.Date(t.Year(), t.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func lastDayOfMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location()).Day()
}
