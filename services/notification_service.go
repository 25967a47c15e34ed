package services

import (
	"context"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"

	"go.uber.org/zap"
)

type NotificationService interface {
	List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, notificationID, userID string) error
	MarkAllRead(ctx context.Context, userID string) error
}

type notificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) NotificationService {
	return &notificationService{notificationRepo: notificationRepo}
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	notifications, err := s.notificationRepo.ListByUser(ctx, userID, unreadOnly, NotificationLimit)
	if err != nil {
		zap.L().Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, apperrors.DatabaseError("listing notifications", err)
	}
	if notifications == nil {
		notifications = []models.Notification{}
	}
	for i := range notifications {
		notifications[i].FormatAmounts()
	}
	return notifications, nil
}

func (s *notificationService) MarkRead(ctx context.Context, notificationID, userID string) error {
	ok, err := s.notificationRepo.MarkRead(ctx, notificationID, userID)
	if err != nil {
		return apperrors.DatabaseError("marking notification read", err)
	}
	if !ok {
		return apperrors.NotFound("Notification")
	}
	return nil
}

func (s *notificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.notificationRepo.MarkAllRead(ctx, userID); err != nil {
		return apperrors.DatabaseError("marking notifications read", err)
	}
	return nil
}
