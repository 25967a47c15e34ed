package services

import (
	"context"
	"strings"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type GroupInput struct {
	Name            string  `json:"name"`
	Label           *string `json:"label,omitempty"`
	DefaultCurrency string  `json:"default_currency"`
}

type GroupService interface {
	GetByID(ctx context.Context, groupID, userID string) (*models.Group, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Group, error)
	Create(ctx context.Context, userID string, input *GroupInput) (*models.Group, error)
	Update(ctx context.Context, groupID, userID string, input *GroupInput) (*models.Group, error)
	UpdateDefaultCurrency(ctx context.Context, groupID, userID, currency string) (*models.Group, error)
	RotateJoinCode(ctx context.Context, groupID, userID string) (*models.Group, error)
	Delete(ctx context.Context, groupID, userID string) error
	JoinByCode(ctx context.Context, userID, code string) (*models.Group, error)
	Leave(ctx context.Context, groupID, userID string) error
	RemoveMember(ctx context.Context, groupID, userID, targetMemberID string) error
	UpdateMemberRole(ctx context.Context, groupID, userID, targetMemberID string, role models.MemberRole) error
	TransferOwnership(ctx context.Context, groupID, userID, targetMemberID string) error
}

type groupService struct {
	groupRepo        repository.GroupRepository
	notificationRepo repository.NotificationRepository
	balances         BalanceService
	db               *database.DB
}

func NewGroupService(groupRepo repository.GroupRepository, notificationRepo repository.NotificationRepository, balances BalanceService, db *database.DB) GroupService {
	return &groupService{
		groupRepo:        groupRepo,
		notificationRepo: notificationRepo,
		balances:         balances,
		db:               db,
	}
}

func (s *groupService) GetByID(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if _, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID); err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}
	return group, nil
}

func (s *groupService) GetByUserID(ctx context.Context, userID string) ([]models.Group, error) {
	groups, err := s.groupRepo.GetByUserID(ctx, userID)
	if err != nil {
		zap.L().Error("Failed to get user groups", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.DatabaseError("getting groups", err)
	}
	if groups == nil {
		groups = []models.Group{}
	}
	return groups, nil
}

func (s *groupService) Create(ctx context.Context, userID string, input *GroupInput) (*models.Group, error) {
	name := strings.TrimSpace(input.Name)
	if len(name) < MinGroupNameLength || len(name) > MaxGroupNameLength {
		return nil, apperrors.InvalidFieldFormat("name", "2-50 characters")
	}
	currency := strings.ToUpper(strings.TrimSpace(input.DefaultCurrency))
	if currency == "" {
		currency = "USD"
	}
	if len(currency) != 3 {
		return nil, apperrors.InvalidFieldFormat("default_currency", "ISO 4217 code")
	}

	code, err := generateJoinCode(ctx, s.groupRepo)
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		ID:              uuid.New().String(),
		Name:            name,
		Label:           input.Label,
		OwnerUserID:     userID,
		JoinCode:        code,
		DefaultCurrency: currency,
	}
	member := &models.Member{
		ID:      uuid.New().String(),
		GroupID: group.ID,
		UserID:  userID,
		Role:    models.RoleOwner,
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		txRepo := s.groupRepo.WithTx(q)
		if err := txRepo.Create(ctx, group); err != nil {
			if apperrors.IsDuplicateError(err) {
				return apperrors.DuplicateEntry("Group")
			}
			return apperrors.DatabaseError("creating group", err)
		}
		if err := txRepo.AddMember(ctx, member); err != nil {
			return apperrors.DatabaseError("adding owner membership", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to create group", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	zap.L().Info("Group created", zap.String("group_id", group.ID), zap.String("owner_user_id", userID))
	return s.groupRepo.GetByID(ctx, group.ID)
}

func (s *groupService) Update(ctx context.Context, groupID, userID string, input *GroupInput) (*models.Group, error) {
	if _, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleAdmin); err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	if input.Name != "" {
		name := strings.TrimSpace(input.Name)
		if len(name) < MinGroupNameLength || len(name) > MaxGroupNameLength {
			return nil, apperrors.InvalidFieldFormat("name", "2-50 characters")
		}
		group.Name = name
	}
	if input.Label != nil {
		group.Label = input.Label
	}

	if err := s.groupRepo.Update(ctx, group); err != nil {
		return nil, apperrors.DatabaseError("updating group", err)
	}

	zap.L().Info("Group updated", zap.String("group_id", groupID))
	return s.groupRepo.GetByID(ctx, groupID)
}

// UpdateDefaultCurrency changes the arithmetic currency of the whole group.
// Existing amounts are not converted, so cached balances must be dropped.
func (s *groupService) UpdateDefaultCurrency(ctx context.Context, groupID, userID, currency string) (*models.Group, error) {
	if _, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleAdmin); err != nil {
		return nil, err
	}

	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, apperrors.InvalidFieldFormat("default_currency", "ISO 4217 code")
	}

	if err := s.groupRepo.UpdateDefaultCurrency(ctx, groupID, currency); err != nil {
		return nil, apperrors.DatabaseError("updating default currency", err)
	}

	s.balances.Invalidate(groupID)
	zap.L().Info("Group currency updated", zap.String("group_id", groupID), zap.String("currency", currency))
	return s.groupRepo.GetByID(ctx, groupID)
}

func (s *groupService) RotateJoinCode(ctx context.Context, groupID, userID string) (*models.Group, error) {
	if _, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleAdmin); err != nil {
		return nil, err
	}

	group, err := s.groupRepo.GetByID(ctx, groupID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.GroupNotFound()
		}
		return nil, apperrors.DatabaseError("getting group", err)
	}

	code, err := generateJoinCode(ctx, s.groupRepo)
	if err != nil {
		return nil, err
	}
	group.JoinCode = code

	if err := s.groupRepo.UpdateJoinCode(ctx, groupID, code); err != nil {
		return nil, apperrors.DatabaseError("rotating join code", err)
	}

	zap.L().Info("Join code rotated", zap.String("group_id", groupID))
	return group, nil
}

func (s *groupService) Delete(ctx context.Context, groupID, userID string) error {
	if _, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleOwner); err != nil {
		return err
	}

	members, err := s.groupRepo.GetActiveMembers(ctx, groupID)
	if err != nil {
		return apperrors.DatabaseError("getting members", err)
	}

	notifications := make([]models.Notification, 0, len(members))
	for _, m := range members {
		notifications = append(notifications, models.Notification{
			ID:      uuid.New().String(),
			UserID:  m.UserID,
			Type:    models.NotificationGroupDeleted,
			RefType: "group",
			RefID:   groupID,
		})
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.groupRepo.WithTx(q).SoftDelete(ctx, groupID); err != nil {
			return apperrors.DatabaseError("deleting group", err)
		}
		if err := s.notificationRepo.WithTx(q).CreateBatch(ctx, notifications); err != nil {
			return apperrors.DatabaseError("creating deletion notifications", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to delete group", zap.String("group_id", groupID), zap.Error(err))
		return err
	}

	s.balances.Invalidate(groupID)
	zap.L().Info("Group deleted", zap.String("group_id", groupID))
	return nil
}

// JoinByCode adds the caller to the group the code belongs to. A returning
// member gets their original membership row reactivated rather than a new
// insert.
func (s *groupService) JoinByCode(ctx context.Context, userID, code string) (*models.Group, error) {
	normalized, ok := normalizeJoinCode(code)
	if !ok {
		return nil, apperrors.InvalidJoinCode()
	}

	group, err := s.groupRepo.GetByJoinCode(ctx, normalized)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.InvalidJoinCode()
		}
		return nil, apperrors.DatabaseError("looking up join code", err)
	}

	existing, err := s.groupRepo.GetMember(ctx, group.ID, userID)
	if err != nil && !apperrors.IsNotFoundError(err) {
		return nil, apperrors.DatabaseError("checking membership", err)
	}

	switch {
	case existing != nil && existing.Status == models.MembershipActive:
		return nil, apperrors.AlreadyMember()
	case existing != nil:
		if err := s.groupRepo.ReactivateMember(ctx, existing.ID, models.RoleMember); err != nil {
			return nil, apperrors.DatabaseError("reactivating membership", err)
		}
	default:
		member := &models.Member{
			ID:      uuid.New().String(),
			GroupID: group.ID,
			UserID:  userID,
			Role:    models.RoleMember,
		}
		if err := s.groupRepo.AddMember(ctx, member); err != nil {
			if apperrors.IsDuplicateError(err) {
				return nil, apperrors.AlreadyMember()
			}
			return nil, apperrors.DatabaseError("adding member", err)
		}
	}

	s.balances.Invalidate(group.ID)
	zap.L().Info("Member joined group", zap.String("group_id", group.ID), zap.String("user_id", userID))
	return s.groupRepo.GetByID(ctx, group.ID)
}

func (s *groupService) Leave(ctx context.Context, groupID, userID string) error {
	member, err := RequireGroupMembership(ctx, s.groupRepo, groupID, userID)
	if err != nil {
		return err
	}

	if member.Role == models.RoleOwner {
		owners, err := s.groupRepo.CountActiveByRole(ctx, groupID, models.RoleOwner)
		if err != nil {
			return apperrors.DatabaseError("counting owners", err)
		}
		if owners <= 1 {
			return apperrors.SoleOwnerCannotLeave()
		}
	}

	if err := s.groupRepo.MarkMemberLeft(ctx, member.ID); err != nil {
		return apperrors.DatabaseError("leaving group", err)
	}

	s.balances.Invalidate(groupID)
	zap.L().Info("Member left group", zap.String("group_id", groupID), zap.String("member_id", member.ID))
	return nil
}

func (s *groupService) RemoveMember(ctx context.Context, groupID, userID, targetMemberID string) error {
	caller, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if caller.ID == targetMemberID {
		return apperrors.CannotSelfAction("remove")
	}

	target, err := s.groupRepo.GetMemberByID(ctx, targetMemberID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.NotFound("Member")
		}
		return apperrors.DatabaseError("getting member", err)
	}
	if target.GroupID != groupID || target.Status != models.MembershipActive {
		return apperrors.NotFound("Member")
	}
	// Admins cannot remove the owner or each other.
	if !caller.Role.AtLeast(target.Role) || (caller.Role == target.Role && caller.Role != models.RoleOwner) {
		return apperrors.InsufficientRole(string(models.RoleOwner))
	}

	if err := s.groupRepo.MarkMemberLeft(ctx, targetMemberID); err != nil {
		return apperrors.DatabaseError("removing member", err)
	}

	s.balances.Invalidate(groupID)
	zap.L().Info("Member removed",
		zap.String("group_id", groupID),
		zap.String("member_id", targetMemberID),
		zap.String("removed_by", caller.ID))
	return nil
}

func (s *groupService) UpdateMemberRole(ctx context.Context, groupID, userID, targetMemberID string, role models.MemberRole) error {
	if !role.Valid() || role == models.RoleOwner {
		return apperrors.InvalidRequest("Role must be admin, member or viewer.")
	}

	caller, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleAdmin)
	if err != nil {
		return err
	}
	if caller.ID == targetMemberID {
		return apperrors.CannotSelfAction("change the role of")
	}

	target, err := s.groupRepo.GetMemberByID(ctx, targetMemberID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.NotFound("Member")
		}
		return apperrors.DatabaseError("getting member", err)
	}
	if target.GroupID != groupID || target.Status != models.MembershipActive {
		return apperrors.NotFound("Member")
	}
	if target.Role == models.RoleOwner {
		return apperrors.InsufficientRole(string(models.RoleOwner))
	}

	if err := s.groupRepo.UpdateMemberRole(ctx, targetMemberID, role); err != nil {
		return apperrors.DatabaseError("updating member role", err)
	}

	zap.L().Info("Member role updated",
		zap.String("group_id", groupID),
		zap.String("member_id", targetMemberID),
		zap.String("role", string(role)))
	return nil
}

// TransferOwnership promotes the target to owner and downgrades the previous
// owner to admin, both in one transaction.
func (s *groupService) TransferOwnership(ctx context.Context, groupID, userID, targetMemberID string) error {
	caller, err := RequireGroupRole(ctx, s.groupRepo, groupID, userID, models.RoleOwner)
	if err != nil {
		return err
	}
	if caller.ID == targetMemberID {
		return apperrors.CannotSelfAction("transfer ownership to")
	}

	target, err := s.groupRepo.GetMemberByID(ctx, targetMemberID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return apperrors.NotFound("Member")
		}
		return apperrors.DatabaseError("getting member", err)
	}
	if target.GroupID != groupID || target.Status != models.MembershipActive {
		return apperrors.NotFound("Member")
	}

	err = s.db.WithTx(ctx, func(q database.Querier) error {
		txRepo := s.groupRepo.WithTx(q)
		if err := txRepo.UpdateMemberRole(ctx, target.ID, models.RoleOwner); err != nil {
			return apperrors.DatabaseError("promoting new owner", err)
		}
		if err := txRepo.UpdateMemberRole(ctx, caller.ID, models.RoleAdmin); err != nil {
			return apperrors.DatabaseError("demoting previous owner", err)
		}
		if err := txRepo.UpdateOwner(ctx, groupID, target.UserID); err != nil {
			return apperrors.DatabaseError("updating group owner", err)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("Failed to transfer ownership", zap.String("group_id", groupID), zap.Error(err))
		return err
	}

	zap.L().Info("Ownership transferred",
		zap.String("group_id", groupID),
		zap.String("from_member", caller.ID),
		zap.String("to_member", target.ID))
	return nil
}
