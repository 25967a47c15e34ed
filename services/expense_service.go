package services

import (
	"context"
	"sort"
	"time"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/money"
	"splitbase-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ExpensePayerInput and friends carry wire-format decimal strings; the
// service converts them to minor units and rejects anything the currency
// cannot represent.
type ExpensePayerInput struct {
	MemberID string `json:"member_id"`
	Amount   string `json:"amount"`
}

type ExpenseSplitInput struct {
	MemberID    string           `json:"member_id"`
	ShareMode   models.ShareMode `json:"share_mode"`
	Weight      *int64           `json:"weight,omitempty"`
	ExactAmount *string          `json:"exact_amount,omitempty"`
}

type ExpenseItemInput struct {
	Name      string              `json:"name"`
	Quantity  int64               `json:"quantity"`
	UnitValue string              `json:"unit_value"`
	Splits    []ExpenseSplitInput `json:"splits"`
}

type ExpenseInput struct {
	Name        string              `json:"name"`
	Category    *string             `json:"category,omitempty"`
	Currency    string              `json:"currency"`
	ExpenseDate time.Time           `json:"expense_date"`
	Payers      []ExpensePayerInput `json:"payers"`
	Items       []ExpenseItemInput  `json:"items"`
}

type ExpenseService interface {
	GetByID(ctx context.Context, expenseID, userID string) (*models.Expense, error)
	ListByGroup(ctx context.Context, groupID, userID string, filter repository.ExpenseFilter) ([]models.Expense, error)
	Create(ctx context.Context, groupID, userID string, input *ExpenseInput) (*models.Expense, error)
	Update(ctx context.Context, expenseID, userID string, input *ExpenseInput) (*models.Expense, error)
	Delete(ctx context.Context, expenseID, userID string) error
}

type expenseService struct {
	expenseRepo      repository.ExpenseRepository
	groupRepo        repository.GroupRepository
	notificationRepo repository.NotificationRepository
	balances         BalanceService
	db               *database.DB
}

func NewExpenseService(expenseRepo repository.ExpenseRepository, groupRepo repository.GroupRepository, notificationRepo repository.NotificationRepository, balances BalanceService, db *database.DB) ExpenseService {
	return &expenseService{
		expenseRepo:      expenseRepo,
		groupRepo:        groupRepo,
		notificationRepo: notificationRepo,
		balances:         balances,
		db:               db,
	}
}

func (s *expenseService) GetByID(ctx context.Context, expenseID, userID string) (*models.Expense, error) {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ExpenseNotFound()
		}
		zap.L().Error("Failed to get expense", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, apperrors.DatabaseError("getting expense", err)
	}

	if _, err := RequireGroupMembership(ctx, s.groupRepo, expense.GroupID, userID); err != nil {
		return nil, err
	}

	expense.FormatAmounts()
	return expense, nil
}

func (s *expenseService) ListByGroup(ctx context.Context, groupID, userID string, filter repository.ExpenseFilter) ([]models.Expense, error) {
	if _, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}

	if filter.Limit <= 0 || filter.Limit > MaxListLimit {
		filter.Limit = DefaultListLimit
	}

	expenses, err := s.expenseRepo.ListByGroup(ctx, groupID, filter)
	if err != nil {
		zap.L().Error("Failed to list expenses", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("listing expenses", err)
	}

	if expenses == nil {
		expenses = []models.Expense{}
	}
	for i := range expenses {
		expenses[i].FormatAmounts()
	}
	return expenses, nil
}

func (s *expenseService) Create(ctx context.Context, groupID, userID string, input *ExpenseInput) (*models.Expense, error) {
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

	expense, err := s.buildExpense(group, member.ID, input)
	if err != nil {
		return nil, err
	}
	expense.ID = uuid.New().String()
	for i := range expense.Payers {
		expense.Payers[i].ID = uuid.New().String()
		expense.Payers[i].ExpenseID = expense.ID
	}
	for i := range expense.Items {
		expense.Items[i].ID = uuid.New().String()
		expense.Items[i].ExpenseID = expense.ID
		for j := range expense.Items[i].Splits {
			expense.Items[i].Splits[j].ID = uuid.New().String()
			expense.Items[i].Splits[j].ItemID = expense.Items[i].ID
		}
	}

	notifications := s.participantNotifications(group.Members, expense, member.ID)

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.expenseRepo.WithTx(q).Create(ctx, expense); err != nil {
			return apperrors.DatabaseError("creating expense", err)
		}
		if err := s.notificationRepo.WithTx(q).CreateBatch(ctx, notifications); err != nil {
			return apperrors.DatabaseError("creating expense notifications", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to create expense transactionally", zap.String("group_id", groupID), zap.Error(err))
		return nil, err
	}

	s.balances.Invalidate(groupID)
	zap.L().Info("Expense created",
		zap.String("expense_id", expense.ID),
		zap.String("group_id", groupID),
		zap.Int64("subtotal_minor", expense.SubtotalMinor))

	return s.GetByID(ctx, expense.ID, userID)
}

func (s *expenseService) Update(ctx context.Context, expenseID, userID string, input *ExpenseInput) (*models.Expense, error) {
	existing, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.ExpenseNotFound()
		}
		return nil, apperrors.DatabaseError("getting expense", err)
	}

	member, err := RequireGroupMembership(ctx, s.groupRepo, existing.GroupID, userID)
	if err != nil {
		return nil, err
	}
	if existing.CreatedByMemberID != member.ID && !member.Role.AtLeast(models.RoleAdmin) {
		return nil, apperrors.Forbidden("Only the creator or a group admin can edit this expense.")
	}

	group, err := s.groupRepo.GetByID(ctx, existing.GroupID)
	if err != nil {
		return nil, apperrors.DatabaseError("getting group", err)
	}

	expense, err := s.buildExpense(group, existing.CreatedByMemberID, input)
	if err != nil {
		return nil, err
	}
	expense.ID = expenseID
	expense.RecurringRuleID = existing.RecurringRuleID
	for i := range expense.Payers {
		expense.Payers[i].ID = uuid.New().String()
		expense.Payers[i].ExpenseID = expenseID
	}
	for i := range expense.Items {
		expense.Items[i].ID = uuid.New().String()
		expense.Items[i].ExpenseID = expenseID
		for j := range expense.Items[i].Splits {
			expense.Items[i].Splits[j].ID = uuid.New().String()
			expense.Items[i].Splits[j].ItemID = expense.Items[i].ID
		}
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.expenseRepo.WithTx(q).Update(ctx, expense); err != nil {
			return apperrors.DatabaseError("updating expense", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to update expense transactionally", zap.String("expense_id", expenseID), zap.Error(err))
		return nil, err
	}

	s.balances.Invalidate(existing.GroupID)
	zap.L().Info("Expense updated",
		zap.String("expense_id", expenseID),
		zap.Int64("subtotal_minor", expense.SubtotalMinor))

	return s.GetByID(ctx, expenseID, userID)
}

func (s *expenseService) Delete(ctx context.Context, expenseID, userID string) error {
	expense, err := s.expenseRepo.GetByID(ctx, expenseID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.ExpenseNotFound()
		}
		return apperrors.DatabaseError("getting expense", err)
	}

	member, err := RequireGroupMembership(ctx, s.groupRepo, expense.GroupID, userID)
	if err != nil {
		return err
	}
	if expense.CreatedByMemberID != member.ID && !member.Role.AtLeast(models.RoleAdmin) {
		return apperrors.Forbidden("Only the creator or a group admin can delete this expense.")
	}

	if err := s.expenseRepo.SoftDelete(ctx, expenseID); err != nil {
		zap.L().Error("Failed to delete expense", zap.String("expense_id", expenseID), zap.Error(err))
		return apperrors.DatabaseError("deleting expense", err)
	}

	s.balances.Invalidate(expense.GroupID)
	zap.L().Info("Expense deleted", zap.String("expense_id", expenseID))
	return nil
}

// buildExpense validates the input against the group and converts it into a
// fully-computed expense: minor units everywhere, per-split owed amounts
// resolved, payer and item sums reconciled against the subtotal.
func (s *expenseService) buildExpense(group *models.Group, creatorMemberID string, input *ExpenseInput) (*models.Expense, error) {
	if input.Name == "" {
		return nil, apperrors.MissingRequiredField("name")
	}
	if len(input.Payers) == 0 {
		return nil, apperrors.MissingRequiredField("payers")
	}
	if len(input.Items) == 0 {
		return nil, apperrors.MissingRequiredField("items")
	}
	if !money.SameCurrency(input.Currency, group.DefaultCurrency) {
		return nil, apperrors.CurrencyMismatch(input.Currency, group.DefaultCurrency)
	}

	active := make(map[string]bool, len(group.Members))
	for _, m := range group.Members {
		if m.Status == models.MembershipActive {
			active[m.ID] = true
		}
	}

	currency := group.DefaultCurrency
	expense := &models.Expense{
		GroupID:           group.ID,
		CreatedByMemberID: creatorMemberID,
		Name:              input.Name,
		Category:          input.Category,
		Currency:          currency,
		ExpenseDate:       input.ExpenseDate,
	}
	if expense.ExpenseDate.IsZero() {
		expense.ExpenseDate = time.Now()
	}

	var subtotal int64
	for _, it := range input.Items {
		if it.Quantity <= 0 {
			return nil, apperrors.InvalidAmount("Item quantity must be positive.")
		}
		unitValue, err := money.Parse(it.UnitValue, currency)
		if err != nil {
			return nil, apperrors.InvalidAmount("Invalid item unit value: " + it.UnitValue)
		}
		if unitValue < 0 {
			return nil, apperrors.InvalidAmount("Item unit value must not be negative.")
		}
		item, err := s.buildItem(it, unitValue, currency, active)
		if err != nil {
			return nil, err
		}
		expense.Items = append(expense.Items, *item)
		subtotal += item.TotalMinor()
	}
	expense.SubtotalMinor = subtotal

	var paidTotal int64
	for _, p := range input.Payers {
		if !active[p.MemberID] {
			return nil, apperrors.InvalidRequest("Payer is not an active member of the group.")
		}
		amount, err := money.Parse(p.Amount, currency)
		if err != nil {
			return nil, apperrors.InvalidAmount("Invalid payer amount: " + p.Amount)
		}
		if amount <= 0 {
			return nil, apperrors.InvalidAmount("Payer amount must be positive.")
		}
		paidTotal += amount
		expense.Payers = append(expense.Payers, models.ExpensePayer{
			MemberID:    p.MemberID,
			AmountMinor: amount,
		})
	}
	if paidTotal != subtotal {
		return nil, apperrors.AmountMismatch(money.Format(paidTotal, currency), money.Format(subtotal, currency), "payer")
	}

	return expense, nil
}

func (s *expenseService) buildItem(input ExpenseItemInput, unitValue int64, currency string, active map[string]bool) (*models.ExpenseItem, error) {
	if len(input.Splits) == 0 {
		return nil, apperrors.MissingRequiredField("item splits")
	}
	if len(input.Splits) > MaxMembersPerExpense {
		return nil, apperrors.InvalidRequest("Too many split members on a single item.")
	}

	item := &models.ExpenseItem{
		Name:           input.Name,
		Quantity:       input.Quantity,
		UnitValueMinor: unitValue,
	}
	itemTotal := item.TotalMinor()

	// Splits are ordered by member id so remainder allocation lands on the
	// same members every time the expense is recomputed.
	splits := make([]ExpenseSplitInput, len(input.Splits))
	copy(splits, input.Splits)
	sort.SliceStable(splits, func(i, j int) bool { return splits[i].MemberID < splits[j].MemberID })

	seen := make(map[string]bool, len(splits))
	var exactIdx, otherIdx []int
	var exactAmounts []int64
	var otherWeights []int64
	equalOnly := true
	for i, sp := range splits {
		if !active[sp.MemberID] {
			return nil, apperrors.InvalidRequest("Split member is not an active member of the group.")
		}
		if seen[sp.MemberID] {
			return nil, apperrors.InvalidRequest("Duplicate split member in item.")
		}
		seen[sp.MemberID] = true
		if !sp.ShareMode.Valid() {
			return nil, apperrors.InvalidRequest("Unknown share mode: " + string(sp.ShareMode))
		}
		switch sp.ShareMode {
		case models.ShareExact:
			if sp.ExactAmount == nil {
				return nil, apperrors.MissingRequiredField("exact_amount")
			}
			amount, err := money.Parse(*sp.ExactAmount, currency)
			if err != nil || amount < 0 {
				return nil, apperrors.InvalidAmount("Invalid exact split amount.")
			}
			equalOnly = false
			exactIdx = append(exactIdx, i)
			exactAmounts = append(exactAmounts, amount)
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
		shares, err := money.SplitEven(itemTotal, len(splits))
		if err != nil {
			return nil, apperrors.InvalidAmount("Item splits do not cover the item total: " + err.Error())
		}
		for i, sp := range splits {
			item.Splits = append(item.Splits, models.ExpenseItemSplit{
				MemberID:  sp.MemberID,
				ShareMode: sp.ShareMode,
				OwedMinor: shares[i],
			})
		}
		return item, nil
	}

	exactOut, otherOut, err := money.SplitExactPlusRemainder(itemTotal, exactAmounts, otherWeights)
	if err != nil {
		return nil, apperrors.InvalidAmount("Item splits do not cover the item total: " + err.Error())
	}

	owed := make([]int64, len(splits))
	for k, i := range exactIdx {
		owed[i] = exactOut[k]
	}
	for k, i := range otherIdx {
		owed[i] = otherOut[k]
	}

	for i, sp := range splits {
		split := models.ExpenseItemSplit{
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
	return item, nil
}

// participantNotifications builds an expense_added notification for every
// split or payer member other than the creator.
func (s *expenseService) participantNotifications(members []models.Member, expense *models.Expense, creatorMemberID string) []models.Notification {
	userByMember := make(map[string]string, len(members))
	for _, m := range members {
		userByMember[m.ID] = m.UserID
	}

	notified := make(map[string]bool)
	var notifications []models.Notification
	add := func(memberID string) {
		if memberID == creatorMemberID {
			return
		}
		userID, ok := userByMember[memberID]
		if !ok || notified[userID] {
			return
		}
		notified[userID] = true
		amount := expense.SubtotalMinor
		currency := expense.Currency
		notifications = append(notifications, models.Notification{
			ID:          uuid.New().String(),
			UserID:      userID,
			Type:        models.NotificationExpenseAdded,
			RefType:     "expense",
			RefID:       expense.ID,
			AmountMinor: &amount,
			Currency:    &currency,
		})
	}

	for _, p := range expense.Payers {
		add(p.MemberID)
	}
	for _, it := range expense.Items {
		for _, sp := range it.Splits {
			add(sp.MemberID)
		}
	}
	return notifications
}
