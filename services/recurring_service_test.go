package services

import (
	"context"
	"testing"
	"time"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
)

func intPtr(v int) *int { return &v }

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name string
		rule models.RecurringRule
		from time.Time
		want time.Time
	}{
		{
			name: "daily",
			rule: models.RecurringRule{Frequency: models.FrequencyDaily},
			from: date(2026, time.March, 15),
			want: date(2026, time.March, 16),
		},
		{
			name: "weekly without weekday pin",
			rule: models.RecurringRule{Frequency: models.FrequencyWeekly},
			from: date(2026, time.January, 5),
			want: date(2026, time.January, 12),
		},
		{
			name: "weekly snaps to configured weekday",
			rule: models.RecurringRule{Frequency: models.FrequencyWeekly, DayOfWeek: intPtr(5)},
			from: date(2026, time.January, 5), // a Monday
			want: date(2026, time.January, 16),
		},
		{
			name: "biweekly",
			rule: models.RecurringRule{Frequency: models.FrequencyBiweekly},
			from: date(2026, time.January, 5),
			want: date(2026, time.January, 19),
		},
		{
			name: "monthly from Jan 31 lands on Feb 28",
			rule: models.RecurringRule{Frequency: models.FrequencyMonthly},
			from: date(2026, time.January, 31),
			want: date(2026, time.February, 28),
		},
		{
			name: "monthly from Jan 31 lands on Feb 29 in leap years",
			rule: models.RecurringRule{Frequency: models.FrequencyMonthly},
			from: date(2024, time.January, 31),
			want: date(2024, time.February, 29),
		},
		{
			name: "monthly with day pin recovers month end after a short month",
			rule: models.RecurringRule{Frequency: models.FrequencyMonthly, DayOfMonth: intPtr(31)},
			from: date(2026, time.February, 28),
			want: date(2026, time.March, 31),
		},
		{
			name: "monthly with day pin clamps inside short months",
			rule: models.RecurringRule{Frequency: models.FrequencyMonthly, DayOfMonth: intPtr(31)},
			from: date(2026, time.March, 31),
			want: date(2026, time.April, 30),
		},
		{
			name: "yearly keeps the date",
			rule: models.RecurringRule{Frequency: models.FrequencyYearly},
			from: date(2026, time.June, 10),
			want: date(2027, time.June, 10),
		},
		{
			name: "yearly with month and day pins clamps to leap day",
			rule: models.RecurringRule{Frequency: models.FrequencyYearly, MonthOfYear: intPtr(2), DayOfMonth: intPtr(30)},
			from: date(2023, time.February, 28),
			want: date(2024, time.February, 29),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := advance(&tt.rule, tt.from)
			if !got.Equal(tt.want) {
				t.Errorf("advance(%s) = %s, want %s",
					tt.from.Format("2006-01-02"), got.Format("2006-01-02"), tt.want.Format("2006-01-02"))
			}
		})
	}
}

func TestBuildRuleValidation(t *testing.T) {
	group := testGroup()
	svc := &recurringService{}

	valid := func() *RecurringRuleInput {
		return &RecurringRuleInput{
			Name:      "Rent",
			Amount:    "90.00",
			Frequency: models.FrequencyMonthly,
			StartDate: date(2026, time.September, 1),
			Payers:    []ExpensePayerInput{{MemberID: "m-owner", Amount: "90.00"}},
			Splits: []ExpenseSplitInput{
				{MemberID: "m-owner", ShareMode: models.ShareEqual},
				{MemberID: "m-admin", ShareMode: models.ShareEqual},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*RecurringRuleInput)
		code   apperrors.ErrorCode
	}{
		{
			name:   "missing name",
			mutate: func(in *RecurringRuleInput) { in.Name = "" },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name:   "unknown frequency",
			mutate: func(in *RecurringRuleInput) { in.Frequency = models.Frequency("hourly") },
			code:   apperrors.CodeInvalidRequest,
		},
		{
			name:   "missing start date",
			mutate: func(in *RecurringRuleInput) { in.StartDate = time.Time{} },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name: "end date precedes start date",
			mutate: func(in *RecurringRuleInput) {
				end := date(2026, time.August, 1)
				in.EndDate = &end
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name:   "no payers",
			mutate: func(in *RecurringRuleInput) { in.Payers = nil },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name:   "no splits",
			mutate: func(in *RecurringRuleInput) { in.Splits = nil },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name:   "day of week out of range",
			mutate: func(in *RecurringRuleInput) { in.DayOfWeek = intPtr(7) },
			code:   apperrors.CodeInvalidFieldFormat,
		},
		{
			name:   "day of month out of range",
			mutate: func(in *RecurringRuleInput) { in.DayOfMonth = intPtr(0) },
			code:   apperrors.CodeInvalidFieldFormat,
		},
		{
			name:   "month of year out of range",
			mutate: func(in *RecurringRuleInput) { in.MonthOfYear = intPtr(13) },
			code:   apperrors.CodeInvalidFieldFormat,
		},
		{
			name:   "amount with excess precision",
			mutate: func(in *RecurringRuleInput) { in.Amount = "90.005" },
			code:   apperrors.CodeInvalidAmount,
		},
		{
			name: "payer sum does not match amount",
			mutate: func(in *RecurringRuleInput) {
				in.Payers = []ExpensePayerInput{{MemberID: "m-owner", Amount: "80.00"}}
			},
			code: apperrors.CodeAmountMismatch,
		},
		{
			name: "payer left the group",
			mutate: func(in *RecurringRuleInput) {
				in.Payers = []ExpensePayerInput{{MemberID: "m-gone", Amount: "90.00"}}
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name: "duplicate split member",
			mutate: func(in *RecurringRuleInput) {
				in.Splits[1].MemberID = "m-owner"
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name: "weighted split without weight",
			mutate: func(in *RecurringRuleInput) {
				in.Splits[0].ShareMode = models.ShareWeighted
			},
			code: apperrors.CodeInvalidAmount,
		},
		{
			name: "exact split without amount",
			mutate: func(in *RecurringRuleInput) {
				in.Splits[0].ShareMode = models.ShareExact
			},
			code: apperrors.CodeMissingRequiredField,
		},
		{
			name: "exact shares exceed the amount",
			mutate: func(in *RecurringRuleInput) {
				in.Splits = []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareExact, ExactAmount: strPtr("100.00")},
				}
			},
			code: apperrors.CodeInvalidAmount,
		},
		{
			name: "exact shares leave an unassignable remainder",
			mutate: func(in *RecurringRuleInput) {
				in.Splits = []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareExact, ExactAmount: strPtr("50.00")},
				}
			},
			code: apperrors.CodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid()
			tt.mutate(input)
			_, err := svc.buildRule(group, "m-owner", input)
			assertCode(t, err, tt.code)
		})
	}

	t.Run("valid rule starts at the start date", func(t *testing.T) {
		rule, err := svc.buildRule(group, "m-owner", valid())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !rule.NextOccurrence.Equal(rule.StartDate) {
			t.Errorf("next occurrence = %s, want start date %s", rule.NextOccurrence, rule.StartDate)
		}
		if !rule.IsActive {
			t.Error("new rule should be active")
		}
		if rule.AmountMinor != 9000 {
			t.Errorf("amount = %d, want 9000", rule.AmountMinor)
		}
	})
}

func TestCreateRecurringRule(t *testing.T) {
	ctx := context.Background()
	recurringRepo := &mockRecurringRepo{}
	svc := &recurringService{
		recurringRepo: recurringRepo,
		groupRepo:     newMockGroupRepo(testGroup()),
		balances:      &mockBalances{},
	}

	input := &RecurringRuleInput{
		Name:      "Rent",
		Amount:    "90.00",
		Frequency: models.FrequencyMonthly,
		StartDate: date(2026, time.September, 1),
		Payers:    []ExpensePayerInput{{MemberID: "m-owner", Amount: "90.00"}},
		Splits: []ExpenseSplitInput{
			{MemberID: "m-owner", ShareMode: models.ShareEqual},
			{MemberID: "m-admin", ShareMode: models.ShareEqual},
		},
	}

	rule, err := svc.Create(ctx, "group-1", "user-owner", input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rule.ID == "" {
		t.Error("rule should get an id")
	}
	if rule.CreatedByMemberID != "m-owner" {
		t.Errorf("created by %s, want m-owner", rule.CreatedByMemberID)
	}
	if len(recurringRepo.created) != 1 {
		t.Fatalf("expected one persisted rule, got %d", len(recurringRepo.created))
	}
	for _, p := range rule.Payers {
		if p.RuleID != rule.ID {
			t.Errorf("payer rule id %s, want %s", p.RuleID, rule.ID)
		}
	}

	t.Run("viewer cannot create", func(t *testing.T) {
		group := testGroup()
		group.Members[2].Role = models.RoleViewer
		viewerSvc := &recurringService{
			recurringRepo: &mockRecurringRepo{},
			groupRepo:     newMockGroupRepo(group),
			balances:      &mockBalances{},
		}
		_, err := viewerSvc.Create(ctx, "group-1", "user-member", input)
		assertCode(t, err, apperrors.CodeInsufficientRole)
	})
}

func TestDeactivateRecurringRule(t *testing.T) {
	ctx := context.Background()

	newFixture := func() (*recurringService, *mockRecurringRepo) {
		repo := &mockRecurringRepo{byID: map[string]*models.RecurringRule{
			"r1": {ID: "r1", GroupID: "group-1", CreatedByMemberID: "m-member", IsActive: true},
		}}
		svc := &recurringService{
			recurringRepo: repo,
			groupRepo:     newMockGroupRepo(testGroup()),
			balances:      &mockBalances{},
		}
		return svc, repo
	}

	t.Run("creator can deactivate", func(t *testing.T) {
		svc, repo := newFixture()
		if err := svc.Deactivate(ctx, "r1", "user-member"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.deactivated) != 1 || repo.deactivated[0] != "r1" {
			t.Errorf("expected r1 deactivated, got %v", repo.deactivated)
		}
	})

	t.Run("admin can deactivate someone else's rule", func(t *testing.T) {
		svc, repo := newFixture()
		if err := svc.Deactivate(ctx, "r1", "user-admin"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.deactivated) != 1 {
			t.Errorf("expected r1 deactivated, got %v", repo.deactivated)
		}
	})

	t.Run("plain member cannot deactivate another member's rule", func(t *testing.T) {
		svc, repo := newFixture()
		repo.byID["r1"].CreatedByMemberID = "m-admin"
		err := svc.Deactivate(ctx, "r1", "user-member")
		assertCode(t, err, apperrors.CodeForbidden)
	})

	t.Run("unknown rule", func(t *testing.T) {
		svc, _ := newFixture()
		err := svc.Deactivate(ctx, "nope", "user-member")
		assertCode(t, err, apperrors.CodeRuleNotFound)
	})
}

func TestGenerateDueExpiredRule(t *testing.T) {
	ctx := context.Background()
	end := date(2026, time.January, 1)
	repo := &mockRecurringRepo{due: []models.RecurringRule{
		{ID: "r1", GroupID: "group-1", EndDate: &end, NextOccurrence: date(2026, time.January, 1), IsActive: true},
	}}
	svc := &recurringService{
		recurringRepo: repo,
		balances:      &mockBalances{},
	}

	outcomes, err := svc.GenerateDue(ctx, date(2026, time.August, 24))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(outcomes) != 1 {
		t.Fatalf("expected one outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Skipped || outcomes[0].Generated != 0 {
		t.Errorf("expected expired rule skipped, got %+v", outcomes[0])
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != "r1" {
		t.Errorf("expected r1 deactivated, got %v", repo.deactivated)
	}
}
