package services

import (
	"context"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/money"
	"splitbase-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SettlementInput struct {
	PayerMemberID string  `json:"payer_member_id"`
	PayeeMemberID string  `json:"payee_member_id"`
	Amount        string  `json:"amount"`
	Note          *string `json:"note,omitempty"`
}

type SettlementService interface {
	GetByID(ctx context.Context, settlementID, userID string) (*models.Settlement, error)
	ListByGroup(ctx context.Context, groupID, userID string, status *models.SettlementStatus) ([]models.Settlement, error)
	Create(ctx context.Context, groupID, userID string, input *SettlementInput) (*models.Settlement, error)
	Confirm(ctx context.Context, settlementID, userID string) (*models.Settlement, error)
	Reject(ctx context.Context, settlementID, userID string) (*models.Settlement, error)
	Cancel(ctx context.Context, settlementID, userID string) (*models.Settlement, error)
}

type settlementService struct {
	settlementRepo   repository.SettlementRepository
	groupRepo        repository.GroupRepository
	notificationRepo repository.NotificationRepository
	balances         BalanceService
	db               *database.DB
}

func NewSettlementService(settlementRepo repository.SettlementRepository, groupRepo repository.GroupRepository, notificationRepo repository.NotificationRepository, balances BalanceService, db *database.DB) SettlementService {
	return &settlementService{
		settlementRepo:   settlementRepo,
		groupRepo:        groupRepo,
		notificationRepo: notificationRepo,
		balances:         balances,
		db:               db,
	}
}

func (s *settlementService) GetByID(ctx context.Context, settlementID, userID string) (*models.Settlement, error) {
	settlement, err := s.settlementRepo.GetByID(ctx, settlementID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.SettlementNotFound()
		}
		return nil, apperrors.DatabaseError("getting settlement", err)
	}

	if _, err := RequireGroupMembership(ctx, s.groupRepo, settlement.GroupID, userID); err != nil {
		return nil, err
	}

	settlement.FormatAmounts()
	return settlement, nil
}

func (s *settlementService) ListByGroup(ctx context.Context, groupID, userID string, status *models.SettlementStatus) ([]models.Settlement, error) {
	if _, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}

	settlements, err := s.settlementRepo.ListByGroup(ctx, groupID, status)
	if err != nil {
		zap.L().Error("Failed to list settlements", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("listing settlements", err)
	}

	if settlements == nil {
		settlements = []models.Settlement{}
	}
	for i := range settlements {
		settlements[i].FormatAmounts()
	}
	return settlements, nil
}

func (s *settlementService) Create(ctx context.Context, groupID, userID string, input *SettlementInput) (*models.Settlement, error) {
	caller, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleMember)
	if err != nil {
		return nil, err
	}

	if input.PayerMemberID == input.PayeeMemberID {
		return nil, apperrors.CannotSettleToSelf()
	}
	// Only the payer records a settlement on their own behalf.
	if caller.ID != input.PayerMemberID {
		return nil, apperrors.Forbidden("Settlements can only be created by the payer.")
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	var payee *models.Member
	for i := range group.Members {
		if group.Members[i].ID == input.PayeeMemberID && group.Members[i].Status == models.MembershipActive {
			payee = &group.Members[i]
			break
		}
	}
	if payee == nil {
		return nil, apperrors.InvalidRequest("Payee is not an active member of the group.")
	}

	amount, err := money.Parse(input.Amount, group.DefaultCurrency)
	if err != nil {
		return nil, apperrors.InvalidAmount("Invalid settlement amount: " + input.Amount)
	}
	if amount <= 0 {
		return nil, apperrors.InvalidAmount("Settlement amount must be positive.")
	}

	settlement := &models.Settlement{
		ID:            uuid.New().String(),
		GroupID:       groupID,
		PayerMemberID: input.PayerMemberID,
		PayeeMemberID: input.PayeeMemberID,
		AmountMinor:   amount,
		Currency:      group.DefaultCurrency,
		Status:        models.SettlementPending,
		Note:          input.Note,
	}

	notification := models.Notification{
		ID:          uuid.New().String(),
		UserID:      payee.UserID,
		Type:        models.NotificationSettlementRequested,
		RefType:     "settlement",
		RefID:       settlement.ID,
		AmountMinor: &amount,
		Currency:    &settlement.Currency,
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.settlementRepo.WithTx(q).Create(ctx, settlement); err != nil {
			return apperrors.DatabaseError("creating settlement", err)
		}
		if err := s.notificationRepo.WithTx(q).Create(ctx, &notification); err != nil {
			return apperrors.DatabaseError("creating settlement notification", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to create settlement", zap.String("group_id", groupID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Settlement requested",
		zap.String("settlement_id", settlement.ID),
		zap.String("group_id", groupID),
		zap.Int64("amount_minor", amount))

	return s.GetByID(ctx, settlement.ID, userID)
}

func (s *settlementService) Confirm(ctx context.Context, settlementID, userID string) (*models.Settlement, error) {
	return s.resolve(ctx, settlementID, userID, models.SettlementConfirmed)
}

func (s *settlementService) Reject(ctx context.Context, settlementID, userID string) (*models.Settlement, error) {
	return s.resolve(ctx, settlementID, userID, models.SettlementRejected)
}

func (s *settlementService) Cancel(ctx context.Context, settlementID, userID string) (*models.Settlement, error) {
	return s.resolve(ctx, settlementID, userID, models.SettlementCancelled)
}

// resolve runs one state-machine transition. The status update is a
// compare-and-set on pending, so two racing resolvers cannot both succeed;
// the loser gets InvalidTransition.
func (s *settlementService) resolve(ctx context.Context, settlementID, userID string, to models.SettlementStatus) (*models.Settlement, error) {
	settlement, err := s.settlementRepo.GetByID(ctx, settlementID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.SettlementNotFound()
		}
		return nil, apperrors.DatabaseError("getting settlement", err)
	}

	caller, err := RequireGroupMembership(ctx, s.groupRepo, settlement.GroupID, userID)
	if err != nil {
		return nil, err
	}

	switch to {
	case models.SettlementConfirmed, models.SettlementRejected:
		if caller.ID != settlement.PayeeMemberID {
			return nil, apperrors.Forbidden("Only the payee can confirm or reject a settlement.")
		}
	case models.SettlementCancelled:
		if caller.ID != settlement.PayerMemberID {
			return nil, apperrors.Forbidden("Only the payer can cancel a settlement.")
		}
	}

	if settlement.Status.Terminal() {
		return nil, apperrors.InvalidTransition(string(settlement.Status), string(to))
	}

	var notification *models.Notification
	if to == models.SettlementConfirmed || to == models.SettlementRejected {
		payer, err := s.groupRepo.GetMemberByID(ctx, settlement.PayerMemberID)
		if err != nil {
			return nil, apperrors.DatabaseError("getting payer member", err)
		}
		nType := models.NotificationSettlementConfirmed
		if to == models.SettlementRejected {
			nType = models.NotificationSettlementRejected
		}
		amount := settlement.AmountMinor
		currency := settlement.Currency
		notification = &models.Notification{
			ID:          uuid.New().String(),
			UserID:      payer.UserID,
			Type:        nType,
			RefType:     "settlement",
			RefID:       settlement.ID,
			AmountMinor: &amount,
			Currency:    &currency,
		}
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		moved, err := s.settlementRepo.WithTx(q).UpdateStatusIfPending(ctx, settlementID, to)
		if err != nil {
			return apperrors.DatabaseError("transitioning settlement", err)
		}
		if !moved {
			return apperrors.InvalidTransition(string(models.SettlementPending), string(to))
		}
		if notification != nil {
			if err := s.notificationRepo.WithTx(q).Create(ctx, notification); err != nil {
				return apperrors.DatabaseError("creating transition notification", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if to == models.SettlementConfirmed {
		s.balances.Invalidate(settlement.GroupID)
	}

	zap.L().Info("Settlement transitioned",
		zap.String("settlement_id", settlementID),
		zap.String("to", string(to)))

	return s.GetByID(ctx, settlementID, userID)
}
