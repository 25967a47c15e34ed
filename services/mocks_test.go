package services

import (
	"context"
	"testing"
	"time"

	"splitbase-backend/database"
	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
	"splitbase-backend/repository"

	"github.com/jackc/pgx/v5"
)

func assertCode(t *testing.T, err error, code apperrors.ErrorCode) {
	t.Helper()
	appErr, ok := apperrors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError with code %s, got %v", code, err)
	}
	if appErr.Code != code {
		t.Errorf("expected code %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

type mockGroupRepo struct {
	group       *models.Group
	members     map[string]*models.Member // keyed "groupID/userID"
	membersByID map[string]*models.Member
	ownerCount  int
	joinCodes   map[string]bool

	left        []string
	reactivated []string
	added       []*models.Member
	roleUpdates map[string]models.MemberRole
}

func newMockGroupRepo(group *models.Group) *mockGroupRepo {
	r := &mockGroupRepo{
		group:       group,
		members:     make(map[string]*models.Member),
		membersByID: make(map[string]*models.Member),
		joinCodes:   make(map[string]bool),
		roleUpdates: make(map[string]models.MemberRole),
	}
	if group != nil {
		r.joinCodes[group.JoinCode] = true
		for i := range group.Members {
			m := &group.Members[i]
			r.members[m.GroupID+"/"+m.UserID] = m
			r.membersByID[m.ID] = m
			if m.Role == models.RoleOwner && m.Status == models.MembershipActive {
				r.ownerCount++
			}
		}
	}
	return r
}

func (r *mockGroupRepo) GetByID(ctx context.Context, id string) (*models.Group, error) {
	if r.group == nil || r.group.ID != id {
		return nil, pgx.ErrNoRows
	}
	return r.group, nil
}

func (r *mockGroupRepo) GetByJoinCode(ctx context.Context, code string) (*models.Group, error) {
	if r.group == nil || r.group.JoinCode != code {
		return nil, pgx.ErrNoRows
	}
	return r.group, nil
}

func (r *mockGroupRepo) GetByUserID(ctx context.Context, userID string) ([]models.Group, error) {
	return nil, nil
}
func (r *mockGroupRepo) Create(ctx context.Context, group *models.Group) error { return nil }
func (r *mockGroupRepo) Update(ctx context.Context, group *models.Group) error { return nil }
func (r *mockGroupRepo) UpdateDefaultCurrency(ctx context.Context, groupID, currency string) error {
	return nil
}
func (r *mockGroupRepo) UpdateOwner(ctx context.Context, groupID, ownerUserID string) error {
	return nil
}
func (r *mockGroupRepo) UpdateJoinCode(ctx context.Context, groupID, code string) error {
	if r.group != nil && r.group.ID == groupID {
		r.group.JoinCode = code
	}
	return nil
}
func (r *mockGroupRepo) SoftDelete(ctx context.Context, id string) error { return nil }

func (r *mockGroupRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	return r.joinCodes[code], nil
}

func (r *mockGroupRepo) AddMember(ctx context.Context, member *models.Member) error {
	r.added = append(r.added, member)
	return nil
}

func (r *mockGroupRepo) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	m, ok := r.members[groupID+"/"+userID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *m
	return &copied, nil
}

func (r *mockGroupRepo) GetMemberByID(ctx context.Context, memberID string) (*models.Member, error) {
	m, ok := r.membersByID[memberID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *m
	return &copied, nil
}

func (r *mockGroupRepo) GetActiveMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	var active []models.Member
	if r.group != nil {
		for _, m := range r.group.Members {
			if m.Status == models.MembershipActive {
				active = append(active, m)
			}
		}
	}
	return active, nil
}

func (r *mockGroupRepo) GetMemberships(ctx context.Context, userID string) ([]models.Member, error) {
	return nil, nil
}

func (r *mockGroupRepo) UpdateMemberRole(ctx context.Context, memberID string, role models.MemberRole) error {
	r.roleUpdates[memberID] = role
	return nil
}

func (r *mockGroupRepo) MarkMemberLeft(ctx context.Context, memberID string) error {
	r.left = append(r.left, memberID)
	return nil
}

func (r *mockGroupRepo) ReactivateMember(ctx context.Context, memberID string, role models.MemberRole) error {
	r.reactivated = append(r.reactivated, memberID)
	return nil
}

func (r *mockGroupRepo) CountActiveByRole(ctx context.Context, groupID string, role models.MemberRole) (int, error) {
	if role == models.RoleOwner {
		return r.ownerCount, nil
	}
	return 0, nil
}

func (r *mockGroupRepo) WithTx(tx database.Querier) repository.GroupRepository { return r }

type mockExpenseRepo struct {
	byID map[string]*models.Expense
}

func (r *mockExpenseRepo) GetByID(ctx context.Context, id string) (*models.Expense, error) {
	if e, ok := r.byID[id]; ok {
		return e, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockExpenseRepo) ListByGroup(ctx context.Context, groupID string, filter repository.ExpenseFilter) ([]models.Expense, error) {
	return nil, nil
}
func (r *mockExpenseRepo) ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Expense, error) {
	return nil, nil
}
func (r *mockExpenseRepo) Create(ctx context.Context, expense *models.Expense) error { return nil }
func (r *mockExpenseRepo) Update(ctx context.Context, expense *models.Expense) error { return nil }
func (r *mockExpenseRepo) SoftDelete(ctx context.Context, id string) error           { return nil }
func (r *mockExpenseRepo) ExistsForRuleOccurrence(ctx context.Context, ruleID string, occurrence time.Time) (bool, error) {
	return false, nil
}
func (r *mockExpenseRepo) WithTx(tx database.Querier) repository.ExpenseRepository { return r }

type mockSettlementRepo struct {
	byID map[string]*models.Settlement
}

func (r *mockSettlementRepo) GetByID(ctx context.Context, id string) (*models.Settlement, error) {
	if s, ok := r.byID[id]; ok {
		copied := *s
		return &copied, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockSettlementRepo) ListByGroup(ctx context.Context, groupID string, status *models.SettlementStatus) ([]models.Settlement, error) {
	return nil, nil
}
func (r *mockSettlementRepo) ListByMember(ctx context.Context, memberIDs []string, limit int) ([]models.Settlement, error) {
	return nil, nil
}
func (r *mockSettlementRepo) Create(ctx context.Context, s *models.Settlement) error { return nil }
func (r *mockSettlementRepo) UpdateStatusIfPending(ctx context.Context, id string, to models.SettlementStatus) (bool, error) {
	s, ok := r.byID[id]
	if !ok || s.Status != models.SettlementPending {
		return false, nil
	}
	s.Status = to
	return true, nil
}
func (r *mockSettlementRepo) WithTx(tx database.Querier) repository.SettlementRepository { return r }

type mockNotificationRepo struct {
	created []models.Notification
}

func (r *mockNotificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.created = append(r.created, *n)
	return nil
}
func (r *mockNotificationRepo) CreateBatch(ctx context.Context, ns []models.Notification) error {
	r.created = append(r.created, ns...)
	return nil
}
func (r *mockNotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	return nil, nil
}
func (r *mockNotificationRepo) MarkRead(ctx context.Context, id, userID string) (bool, error) {
	return true, nil
}
func (r *mockNotificationRepo) MarkAllRead(ctx context.Context, userID string) error { return nil }
func (r *mockNotificationRepo) WithTx(tx database.Querier) repository.NotificationRepository {
	return r
}

type mockRecurringRepo struct {
	byID        map[string]*models.RecurringRule
	due         []models.RecurringRule
	created     []*models.RecurringRule
	deactivated []string
}

func (r *mockRecurringRepo) GetByID(ctx context.Context, id string) (*models.RecurringRule, error) {
	if rule, ok := r.byID[id]; ok {
		return rule, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockRecurringRepo) ListByGroup(ctx context.Context, groupID string, activeOnly bool) ([]models.RecurringRule, error) {
	return nil, nil
}
func (r *mockRecurringRepo) ListDue(ctx context.Context, now time.Time) ([]models.RecurringRule, error) {
	return r.due, nil
}
func (r *mockRecurringRepo) Create(ctx context.Context, rule *models.RecurringRule) error {
	if r.byID == nil {
		r.byID = make(map[string]*models.RecurringRule)
	}
	r.byID[rule.ID] = rule
	r.created = append(r.created, rule)
	return nil
}
func (r *mockRecurringRepo) Update(ctx context.Context, rule *models.RecurringRule) error {
	return nil
}
func (r *mockRecurringRepo) Deactivate(ctx context.Context, id string) error {
	r.deactivated = append(r.deactivated, id)
	return nil
}
func (r *mockRecurringRepo) AdvanceIfUnchanged(ctx context.Context, id string, from, to time.Time, generatedAt time.Time) (bool, error) {
	return true, nil
}
func (r *mockRecurringRepo) WithTx(tx database.Querier) repository.RecurringRepository { return r }

type mockUserRepo struct {
	byID    map[string]*models.User
	byEmail map[string]*models.User
}

func (r *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if r.byID == nil {
		r.byID = make(map[string]*models.User)
	}
	if r.byEmail == nil {
		r.byEmail = make(map[string]*models.User)
	}
	r.byID[user.ID] = user
	if user.Email != nil {
		r.byEmail[*user.Email] = user
	}
	return nil
}
func (r *mockUserRepo) UpdateProfile(ctx context.Context, id, displayName string) error  { return nil }
func (r *mockUserRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error { return nil }
func (r *mockUserRepo) RequestDeletion(ctx context.Context, id string, at time.Time) error {
	return nil
}
func (r *mockUserRepo) CancelDeletion(ctx context.Context, id string) error { return nil }
func (r *mockUserRepo) ListDeletionDue(ctx context.Context, before time.Time) ([]models.User, error) {
	return nil, nil
}
func (r *mockUserRepo) Anonymize(ctx context.Context, id string) error          { return nil }
func (r *mockUserRepo) WithTx(tx database.Querier) repository.UserRepository { return r }

type mockTokenRepo struct {
	byHash  map[string]*models.AuthToken
	created []*models.AuthToken
}

func (r *mockTokenRepo) Create(ctx context.Context, t *models.AuthToken) error {
	if r.byHash == nil {
		r.byHash = make(map[string]*models.AuthToken)
	}
	r.byHash[t.SecretHash] = t
	r.created = append(r.created, t)
	return nil
}
func (r *mockTokenRepo) GetByHash(ctx context.Context, kind models.TokenKind, secretHash string) (*models.AuthToken, error) {
	if t, ok := r.byHash[secretHash]; ok && t.Kind == kind {
		return t, nil
	}
	return nil, pgx.ErrNoRows
}
func (r *mockTokenRepo) MarkUsed(ctx context.Context, id string) error { return nil }
func (r *mockTokenRepo) RevokeAllForUser(ctx context.Context, userID string, kind models.TokenKind) error {
	return nil
}
func (r *mockTokenRepo) DeleteExpired(ctx context.Context) (int64, error)     { return 0, nil }
func (r *mockTokenRepo) WithTx(tx database.Querier) repository.TokenRepository { return r }

type mockBalances struct {
	invalidated []string
}

func (m *mockBalances) GetGroupBalances(ctx context.Context, groupID, userID string, skipCache bool) (*models.GroupBalances, error) {
	return nil, nil
}
func (m *mockBalances) Invalidate(groupID string) {
	m.invalidated = append(m.invalidated, groupID)
}

// testGroup builds a four-member group: owner, admin, member, and one left
// member, all active in USD unless a test mutates it.
func testGroup() *models.Group {
	g := &models.Group{
		ID:              "group-1",
		Name:            "Test Group",
		OwnerUserID:     "user-owner",
		JoinCode:        "ABCDEFGH",
		DefaultCurrency: "USD",
	}
	g.Members = []models.Member{
		{ID: "m-owner", GroupID: g.ID, UserID: "user-owner", DisplayName: "Owner", Role: models.RoleOwner, Status: models.MembershipActive},
		{ID: "m-admin", GroupID: g.ID, UserID: "user-admin", DisplayName: "Admin", Role: models.RoleAdmin, Status: models.MembershipActive},
		{ID: "m-member", GroupID: g.ID, UserID: "user-member", DisplayName: "Member", Role: models.RoleMember, Status: models.MembershipActive},
		{ID: "m-gone", GroupID: g.ID, UserID: "user-gone", DisplayName: "Gone", Role: models.RoleMember, Status: models.MembershipLeft},
	}
	return g
}
