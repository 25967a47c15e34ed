package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/mail"
	"strings"
	"time"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type RegisterInput struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

type UserService interface {
	Register(ctx context.Context, input *RegisterInput) (*models.User, *TokenPair, error)
	Login(ctx context.Context, input *LoginInput) (*models.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	GetByID(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error)
	RequestDeletion(ctx context.Context, userID string) error
	CancelDeletion(ctx context.Context, userID string) error
	AnonymizeDue(ctx context.Context, now time.Time) (int, error)
	Export(ctx context.Context, userID string) (*models.UserExport, error)
}

type userService struct {
	userRepo         repository.UserRepository
	tokenRepo        repository.TokenRepository
	groupRepo        repository.GroupRepository
	expenseRepo      repository.ExpenseRepository
	settlementRepo   repository.SettlementRepository
	notificationRepo repository.NotificationRepository
	db               *database.DB
	jwtSecret        []byte
}

func NewUserService(userRepo repository.UserRepository, tokenRepo repository.TokenRepository, groupRepo repository.GroupRepository, expenseRepo repository.ExpenseRepository, settlementRepo repository.SettlementRepository, notificationRepo repository.NotificationRepository, db *database.DB, jwtSecret string) UserService {
	return &userService{
		userRepo:         userRepo,
		tokenRepo:        tokenRepo,
		groupRepo:        groupRepo,
		expenseRepo:      expenseRepo,
		settlementRepo:   settlementRepo,
		notificationRepo: notificationRepo,
		db:               db,
		jwtSecret:        []byte(jwtSecret),
	}
}

func (s *userService) Register(ctx context.Context, input *RegisterInput) (*models.User, *TokenPair, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, nil, apperrors.InvalidFieldFormat("email", "a valid email address")
	}
	displayName := strings.TrimSpace(input.DisplayName)
	if len(displayName) < MinNameLength || len(displayName) > MaxNameLength {
		return nil, nil, apperrors.InvalidFieldFormat("display_name", "1-100 characters")
	}
	if len(input.Password) < MinPasswordLength {
		return nil, nil, apperrors.InvalidFieldFormat("password", "at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, apperrors.InternalError(err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Email:        &email,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if apperrors.IsDuplicateError(err) {
			return nil, nil, apperrors.DuplicateEntry("Account")
		}
		zap.L().Error("Failed to create user", zap.Error(err))
		return nil, nil, apperrors.DatabaseError("creating user", err)
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("User registered", zap.String("user_id", user.ID))
	return user, pair, nil
}

func (s *userService) Login(ctx context.Context, input *LoginInput) (*models.User, *TokenPair, error) {
	user, err := s.userRepo.GetByEmail(ctx, strings.TrimSpace(input.Email))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			// Same response as a bad password so emails cannot be probed.
			return nil, nil, apperrors.InvalidCredentials()
		}
		return nil, nil, apperrors.DatabaseError("getting user", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		return nil, nil, apperrors.InvalidCredentials()
	}

	pair, err := s.issueTokens(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	zap.L().Info("User logged in", zap.String("user_id", user.ID))
	return user, pair, nil
}

// Refresh rotates the refresh token: the presented one is marked used and a
// fresh pair is issued. A reused token fails the used_at check.
func (s *userService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	token, err := s.tokenRepo.GetByHash(ctx, models.TokenRefresh, hashSecret(refreshToken))
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.TokenInvalid()
		}
		return nil, apperrors.DatabaseError("getting refresh token", err)
	}
	if token.UsedAt != nil || token.RevokedAt != nil {
		return nil, apperrors.TokenInvalid()
	}
	if time.Now().After(token.ExpiresAt) {
		return nil, apperrors.TokenExpired()
	}

	var pair *TokenPair
	err = s.db.WithTx(ctx, func(q database.Querier) error {
		if err := s.tokenRepo.WithTx(q).MarkUsed(ctx, token.ID); err != nil {
			return apperrors.DatabaseError("marking token used", err)
		}
		var issueErr error
		pair, issueErr = s.issueTokensTx(ctx, s.tokenRepo.WithTx(q), token.UserID)
		return issueErr
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *userService) issueTokens(ctx context.Context, userID string) (*TokenPair, error) {
	return s.issueTokensTx(ctx, s.tokenRepo, userID)
}

func (s *userService) issueTokensTx(ctx context.Context, tokenRepo repository.TokenRepository, userID string) (*TokenPair, error) {
	now := time.Now()
	expiresIn := int64(AccessTokenTTLMinutes * 60)
	claims := jwt.MapClaims{
		"sub": userID,
		"iat": now.Unix(),
		"exp": now.Add(time.Duration(AccessTokenTTLMinutes) * time.Minute).Unix(),
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	refresh, err := randomSecret()
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	record := &models.AuthToken{
		ID:         uuid.New().String(),
		UserID:     userID,
		Kind:       models.TokenRefresh,
		SecretHash: hashSecret(refresh),
		ExpiresAt:  now.AddDate(0, 0, RefreshTokenTTLDays),
	}
	if err := tokenRepo.Create(ctx, record); err != nil {
		return nil, apperrors.DatabaseError("storing refresh token", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    expiresIn,
	}, nil
}

func (s *userService) GetByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if apperrors.IsNotFoundError(err) {
			return nil, apperrors.UserNotFound()
		}
		return nil, apperrors.DatabaseError("getting user", err)
	}
	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, userID, displayName string) (*models.User, error) {
	displayName = strings.TrimSpace(displayName)
	if len(displayName) < MinNameLength || len(displayName) > MaxNameLength {
		return nil, apperrors.InvalidFieldFormat("display_name", "1-100 characters")
	}

	if err := s.userRepo.UpdateProfile(ctx, userID, displayName); err != nil {
		return nil, apperrors.DatabaseError("updating profile", err)
	}
	return s.GetByID(ctx, userID)
}

func (s *userService) RequestDeletion(ctx context.Context, userID string) error {
	if err := s.userRepo.RequestDeletion(ctx, userID, time.Now()); err != nil {
		return apperrors.DatabaseError("requesting deletion", err)
	}
	zap.L().Info("Account deletion requested", zap.String("user_id", userID))
	return nil
}

func (s *userService) CancelDeletion(ctx context.Context, userID string) error {
	if err := s.userRepo.CancelDeletion(ctx, userID); err != nil {
		return apperrors.DatabaseError("cancelling deletion", err)
	}
	zap.L().Info("Account deletion cancelled", zap.String("user_id", userID))
	return nil
}

// AnonymizeDue strips accounts whose deletion request has aged past the grace
// period: PII is cleared in place and refresh tokens revoked, keeping the
// member rows referenced by expense history.
func (s *userService) AnonymizeDue(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.AddDate(0, 0, -DeletionGraceDays)
	due, err := s.userRepo.ListDeletionDue(ctx, cutoff)
	if err != nil {
		return 0, apperrors.DatabaseError("listing deletion-due users", err)
	}

	count := 0
	for _, user := range due {
		if ctx.Err() != nil {
			return count, ctx.Err()
		}
		err := s.db.WithTx(ctx, func(q database.Querier) error {
			if err := s.userRepo.WithTx(q).Anonymize(ctx, user.ID); err != nil {
				return err
			}
			return s.tokenRepo.WithTx(q).RevokeAllForUser(ctx, user.ID, models.TokenRefresh)
		})
		if err != nil {
			zap.L().Error("Failed to anonymize user", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		count++
		zap.L().Info("User anonymized", zap.String("user_id", user.ID))
	}
	return count, nil
}

func (s *userService) Export(ctx context.Context, userID string) (*models.UserExport, error) {
	user, err := s.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberships, err := s.groupRepo.GetMemberships(ctx, userID)
	if err != nil {
		return nil, apperrors.DatabaseError("getting memberships", err)
	}
	memberIDs := make([]string, 0, len(memberships))
	for _, m := range memberships {
		memberIDs = append(memberIDs, m.ID)
	}

	expenses, err := s.expenseRepo.ListByMember(ctx, memberIDs, ExportRecordLimit)
	if err != nil {
		return nil, apperrors.DatabaseError("exporting expenses", err)
	}
	for i := range expenses {
		expenses[i].FormatAmounts()
	}

	settlements, err := s.settlementRepo.ListByMember(ctx, memberIDs, ExportRecordLimit)
	if err != nil {
		return nil, apperrors.DatabaseError("exporting settlements", err)
	}
	for i := range settlements {
		settlements[i].FormatAmounts()
	}

	notifications, err := s.notificationRepo.ListByUser(ctx, userID, false, ExportRecordLimit)
	if err != nil {
		return nil, apperrors.DatabaseError("exporting notifications", err)
	}
	for i := range notifications {
		notifications[i].FormatAmounts()
	}

	return &models.UserExport{
		User:          *user,
		Memberships:   memberships,
		Expenses:      expenses,
		Settlements:   settlements,
		Notifications: notifications,
		GeneratedAt:   time.Now(),
	}, nil
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
