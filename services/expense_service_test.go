package services

import (
	"testing"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
)

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func TestBuildExpenseValidation(t *testing.T) {
	group := testGroup()
	svc := &expenseService{}

	valid := func() *ExpenseInput {
		return &ExpenseInput{
			Name:     "Dinner",
			Currency: "USD",
			Payers:   []ExpensePayerInput{{MemberID: "m-owner", Amount: "30.00"}},
			Items: []ExpenseItemInput{{
				Name:      "Dinner",
				Quantity:  1,
				UnitValue: "30.00",
				Splits: []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareEqual},
					{MemberID: "m-admin", ShareMode: models.ShareEqual},
					{MemberID: "m-member", ShareMode: models.ShareEqual},
				},
			}},
		}
	}

	tests := []struct {
		name   string
		mutate func(*ExpenseInput)
		code   apperrors.ErrorCode
	}{
		{
			name:   "missing name",
			mutate: func(in *ExpenseInput) { in.Name = "" },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name:   "currency differs from group",
			mutate: func(in *ExpenseInput) { in.Currency = "EUR" },
			code:   apperrors.CodeCurrencyMismatch,
		},
		{
			name:   "no payers",
			mutate: func(in *ExpenseInput) { in.Payers = nil },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name:   "no items",
			mutate: func(in *ExpenseInput) { in.Items = nil },
			code:   apperrors.CodeMissingRequiredField,
		},
		{
			name: "payer sum does not match subtotal",
			mutate: func(in *ExpenseInput) {
				in.Payers = []ExpensePayerInput{{MemberID: "m-owner", Amount: "25.00"}}
			},
			code: apperrors.CodeAmountMismatch,
		},
		{
			name: "payer left the group",
			mutate: func(in *ExpenseInput) {
				in.Payers = []ExpensePayerInput{{MemberID: "m-gone", Amount: "30.00"}}
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name: "split member left the group",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Splits[2].MemberID = "m-gone"
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name: "duplicate split member",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Splits[1].MemberID = "m-owner"
			},
			code: apperrors.CodeInvalidRequest,
		},
		{
			name: "zero quantity",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Quantity = 0
			},
			code: apperrors.CodeInvalidAmount,
		},
		{
			name: "unit value with excess precision",
			mutate: func(in *ExpenseInput) {
				in.Items[0].UnitValue = "30.005"
			},
			code: apperrors.CodeInvalidAmount,
		},
		{
			name: "weighted split without weight",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Splits[0].ShareMode = models.ShareWeighted
			},
			code: apperrors.CodeInvalidAmount,
		},
		{
			name: "exact split without amount",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Splits[0].ShareMode = models.ShareExact
			},
			code: apperrors.CodeMissingRequiredField,
		},
		{
			name: "exact shares exceed item total",
			mutate: func(in *ExpenseInput) {
				in.Items[0].Splits = []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareExact, ExactAmount: strPtr("40.00")},
				}
			},
			code: apperrors.CodeInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := valid()
			tt.mutate(input)
			_, err := svc.buildExpense(group, "m-owner", input)
			assertCode(t, err, tt.code)
		})
	}
}

func TestBuildExpenseComputesOwedShares(t *testing.T) {
	group := testGroup()
	svc := &expenseService{}

	t.Run("equal split distributes remainder to earliest member ids", func(t *testing.T) {
		input := &ExpenseInput{
			Name:     "Taxi",
			Currency: "USD",
			Payers:   []ExpensePayerInput{{MemberID: "m-owner", Amount: "1.00"}},
			Items: []ExpenseItemInput{{
				Name:      "Taxi",
				Quantity:  1,
				UnitValue: "1.00",
				Splits: []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareEqual},
					{MemberID: "m-admin", ShareMode: models.ShareEqual},
					{MemberID: "m-member", ShareMode: models.ShareEqual},
				},
			}},
		}

		expense, err := svc.buildExpense(group, "m-owner", input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// 100 cents across three people: 34/33/33, extra cent to the first
		// split in member-id order (m-admin < m-member < m-owner).
		owedBy := make(map[string]int64)
		var total int64
		for _, sp := range expense.Items[0].Splits {
			owedBy[sp.MemberID] = sp.OwedMinor
			total += sp.OwedMinor
		}
		if total != 100 {
			t.Fatalf("owed total = %d, want 100", total)
		}
		if owedBy["m-admin"] != 34 || owedBy["m-member"] != 33 || owedBy["m-owner"] != 33 {
			t.Errorf("unexpected distribution: %v", owedBy)
		}
	})

	t.Run("weighted split follows weights", func(t *testing.T) {
		input := &ExpenseInput{
			Name:     "Hotel",
			Currency: "USD",
			Payers:   []ExpensePayerInput{{MemberID: "m-owner", Amount: "90.00"}},
			Items: []ExpenseItemInput{{
				Name:      "Hotel",
				Quantity:  1,
				UnitValue: "90.00",
				Splits: []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareWeighted, Weight: i64Ptr(2)},
					{MemberID: "m-admin", ShareMode: models.ShareWeighted, Weight: i64Ptr(1)},
				},
			}},
		}

		expense, err := svc.buildExpense(group, "m-owner", input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		owedBy := make(map[string]int64)
		for _, sp := range expense.Items[0].Splits {
			owedBy[sp.MemberID] = sp.OwedMinor
		}
		if owedBy["m-owner"] != 6000 || owedBy["m-admin"] != 3000 {
			t.Errorf("unexpected distribution: %v", owedBy)
		}
	})

	t.Run("exact shares carve out before the remainder is split", func(t *testing.T) {
		input := &ExpenseInput{
			Name:     "Groceries",
			Currency: "USD",
			Payers:   []ExpensePayerInput{{MemberID: "m-owner", Amount: "50.00"}},
			Items: []ExpenseItemInput{{
				Name:      "Groceries",
				Quantity:  1,
				UnitValue: "50.00",
				Splits: []ExpenseSplitInput{
					{MemberID: "m-owner", ShareMode: models.ShareExact, ExactAmount: strPtr("20.00")},
					{MemberID: "m-admin", ShareMode: models.ShareEqual},
					{MemberID: "m-member", ShareMode: models.ShareEqual},
				},
			}},
		}

		expense, err := svc.buildExpense(group, "m-owner", input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		owedBy := make(map[string]int64)
		for _, sp := range expense.Items[0].Splits {
			owedBy[sp.MemberID] = sp.OwedMinor
		}
		if owedBy["m-owner"] != 2000 || owedBy["m-admin"] != 1500 || owedBy["m-member"] != 1500 {
			t.Errorf("unexpected distribution: %v", owedBy)
		}
	})

	t.Run("multi item subtotal and zero decimal currency", func(t *testing.T) {
		jpy := testGroup()
		jpy.DefaultCurrency = "JPY"

		input := &ExpenseInput{
			Name:     "Izakaya",
			Currency: "JPY",
			Payers:   []ExpensePayerInput{{MemberID: "m-owner", Amount: "3500"}},
			Items: []ExpenseItemInput{
				{
					Name:      "Food",
					Quantity:  2,
					UnitValue: "1000",
					Splits: []ExpenseSplitInput{
						{MemberID: "m-owner", ShareMode: models.ShareEqual},
						{MemberID: "m-admin", ShareMode: models.ShareEqual},
					},
				},
				{
					Name:      "Drinks",
					Quantity:  3,
					UnitValue: "500",
					Splits: []ExpenseSplitInput{
						{MemberID: "m-admin", ShareMode: models.ShareEqual},
					},
				},
			},
		}

		expense, err := svc.buildExpense(jpy, "m-owner", input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if expense.SubtotalMinor != 3500 {
			t.Errorf("subtotal = %d, want 3500", expense.SubtotalMinor)
		}
	})
}

func TestParticipantNotifications(t *testing.T) {
	group := testGroup()
	svc := &expenseService{}

	expense := &models.Expense{
		ID:            "e1",
		SubtotalMinor: 3000,
		Currency:      "USD",
		Payers:        []models.ExpensePayer{{MemberID: "m-owner", AmountMinor: 3000}},
		Items: []models.ExpenseItem{{
			Splits: []models.ExpenseItemSplit{
				{MemberID: "m-owner", OwedMinor: 1000},
				{MemberID: "m-admin", OwedMinor: 1000},
				{MemberID: "m-member", OwedMinor: 1000},
			},
		}},
	}

	notifications := svc.participantNotifications(group.Members, expense, "m-owner")

	if len(notifications) != 2 {
		t.Fatalf("got %d notifications, want 2 (creator excluded)", len(notifications))
	}
	seen := make(map[string]bool)
	for _, n := range notifications {
		if n.Type != models.NotificationExpenseAdded {
			t.Errorf("unexpected type %s", n.Type)
		}
		if seen[n.UserID] {
			t.Errorf("duplicate notification for %s", n.UserID)
		}
		seen[n.UserID] = true
	}
	if !seen["user-admin"] || !seen["user-member"] {
		t.Errorf("wrong recipients: %v", seen)
	}
}
