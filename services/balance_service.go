package services

import (
	"context"
	"time"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"

	"go.uber.org/zap"
)

type BalanceService interface {
	GetGroupBalances(ctx context.Context, groupID, userID string, skipCache bool) (*models.GroupBalances, error)
	Invalidate(groupID string)
}

type balanceService struct {
	groupRepo      repository.GroupRepository
	expenseRepo    repository.ExpenseRepository
	settlementRepo repository.SettlementRepository
	cache          *BalanceCache
}

func NewBalanceService(groupRepo repository.GroupRepository, expenseRepo repository.ExpenseRepository, settlementRepo repository.SettlementRepository, cache *BalanceCache) BalanceService {
	return &balanceService{
		groupRepo:      groupRepo,
		expenseRepo:    expenseRepo,
		settlementRepo: settlementRepo,
		cache:          cache,
	}
}

// GetGroupBalances reads through the cache. skipCache forces a fresh
// computation but still repopulates the cache with the result.
func (s *balanceService) GetGroupBalances(ctx context.Context, groupID, userID string, skipCache bool) (*models.GroupBalances, error) {
	if _, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}

	if !skipCache {
		if cached, ok := s.cache.Get(groupID); ok {
			zap.L().Debug("Balance cache hit", zap.String("group_id", groupID))
			return cached, nil
		}
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	expenses, err := s.expenseRepo.ListByGroup(ctx, groupID, repository.ExpenseFilter{})
	if err != nil {
		zap.L().Error("Failed to load expenses for balances", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("loading expenses", err)
	}

	confirmed := models.SettlementConfirmed
	settlements, err := s.settlementRepo.ListByGroup(ctx, groupID, &confirmed)
	if err != nil {
		zap.L().Error("Failed to load settlements for balances", zap.String("group_id", groupID), zap.Error(err))
		return nil, apperrors.DatabaseError("loading settlements", err)
	}

	balances := ComputeBalances(group, group.Members, expenses, settlements, time.Now())
	s.cache.Put(groupID, balances)

	zap.L().Debug("Balances computed",
		zap.String("group_id", groupID),
		zap.Int("members", len(balances.Members)),
		zap.Int("debt_edges", len(balances.Debts)))
	return balances, nil
}

func (s *balanceService) Invalidate(groupID string) {
	s.cache.Invalidate(groupID)
}
