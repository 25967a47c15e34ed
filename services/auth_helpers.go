package services

import (
	"context"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"
)

// RequireGroupMembership returns the caller's active membership row, or a
// NotGroupMember error. Left members fail the check.
func RequireGroupMembership(ctx context.Context, groupRepo repository.GroupRepository, groupID, userID string) (*models.Member, error) {
	member, err := groupRepo.GetMember(ctx, groupID, userID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.NotGroupMember()
		}
		return nil, apperrors.DatabaseError("checking membership", err)
	}
	if member.Status != models.MembershipActive {
		return nil, apperrors.NotGroupMember()
	}
	return member, nil
}

// RequireGroupRole is RequireGroupMembership plus a minimum-role check.
func RequireGroupRole(ctx context.Context, groupRepo repository.GroupRepository, groupID, userID string, required models.MemberRole) (*models.Member, error) {
	member, err := RequireGroupMembership(ctx, groupRepo, groupID, userID)
	if err != nil {
		return nil, err
	}
	if !member.Role.AtLeast(required) {
		return nil, apperrors.InsufficientRole(string(required))
	}
	return member, nil
}
