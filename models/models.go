package models

import (
	"time"

	"splitbase-backend/money"
)

type User struct {
	ID                  string     `json:"id" db:"id"`
	Email               *string    `json:"email,omitempty" db:"email"`
	DisplayName         string     `json:"display_name" db:"display_name"`
	PasswordHash        string     `json:"-" db:"password_hash"`
	DeletionRequestedAt *time.Time `json:"deletion_requested_at,omitempty" db:"deletion_requested_at"`
	DeletedAt           *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
	RoleViewer MemberRole = "viewer"
)

// roleRank orders roles for permission checks; higher outranks lower.
var roleRank = map[MemberRole]int{
	RoleViewer: 0,
	RoleMember: 1,
	RoleAdmin:  2,
	RoleOwner:  3,
}

// AtLeast reports whether r carries the permissions of required or more.
func (r MemberRole) AtLeast(required MemberRole) bool {
	return roleRank[r] >= roleRank[required]
}

func (r MemberRole) Valid() bool {
	_, ok := roleRank[r]
	return ok
}

type MembershipStatus string

const (
	MembershipActive MembershipStatus = "active"
	MembershipLeft   MembershipStatus = "left"
)

type Group struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	Label           *string    `json:"label,omitempty" db:"label"`
	OwnerUserID     string     `json:"owner_user_id" db:"owner_user_id"`
	JoinCode        string     `json:"join_code" db:"join_code"`
	DefaultCurrency string     `json:"default_currency" db:"default_currency"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
	Members         []Member   `json:"members,omitempty"`
}

// Member is a user's participation in one group.
type Member struct {
	ID          string           `json:"id" db:"id"`
	GroupID     string           `json:"group_id" db:"group_id"`
	UserID      string           `json:"user_id" db:"user_id"`
	DisplayName string           `json:"display_name" db:"display_name"`
	Role        MemberRole       `json:"role" db:"role"`
	Status      MembershipStatus `json:"status" db:"status"`
	JoinedAt    time.Time        `json:"joined_at" db:"joined_at"`
	LeftAt      *time.Time       `json:"left_at,omitempty" db:"left_at"`
}

type ShareMode string

const (
	ShareEqual    ShareMode = "equal"
	ShareWeighted ShareMode = "weighted"
	ShareExact    ShareMode = "exact"
)

func (m ShareMode) Valid() bool {
	switch m {
	case ShareEqual, ShareWeighted, ShareExact:
		return true
	}
	return false
}

type Expense struct {
	ID                string     `json:"id" db:"id"`
	GroupID           string     `json:"group_id" db:"group_id"`
	CreatedByMemberID string     `json:"created_by_member_id" db:"created_by_member_id"`
	Name              string     `json:"name" db:"name"`
	Category          *string    `json:"category,omitempty" db:"category"`
	Currency          string     `json:"currency" db:"currency"`
	SubtotalMinor     int64      `json:"-" db:"subtotal_minor"`
	Subtotal          string     `json:"subtotal"`
	ExpenseDate       time.Time  `json:"expense_date" db:"expense_date"`
	RecurringRuleID   *string    `json:"recurring_rule_id,omitempty" db:"recurring_rule_id"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	Payers            []ExpensePayer `json:"payers,omitempty"`
	Items             []ExpenseItem  `json:"items,omitempty"`
}

// FormatAmounts fills the wire string fields from minor units.
func (e *Expense) FormatAmounts() {
	e.Subtotal = money.Format(e.SubtotalMinor, e.Currency)
	for i := range e.Payers {
		e.Payers[i].Amount = money.Format(e.Payers[i].AmountMinor, e.Currency)
	}
	for i := range e.Items {
		e.Items[i].FormatAmounts(e.Currency)
	}
}

type ExpensePayer struct {
	ID          string `json:"id" db:"id"`
	ExpenseID   string `json:"expense_id" db:"expense_id"`
	MemberID    string `json:"member_id" db:"member_id"`
	AmountMinor int64  `json:"-" db:"amount_minor"`
	Amount      string `json:"amount"`
}

type ExpenseItem struct {
	ID             string `json:"id" db:"id"`
	ExpenseID      string `json:"expense_id" db:"expense_id"`
	Name           string `json:"name" db:"name"`
	Quantity       int64  `json:"quantity" db:"quantity"`
	UnitValueMinor int64  `json:"-" db:"unit_value_minor"`
	UnitValue      string `json:"unit_value"`
	Total          string `json:"total"`
	Splits         []ExpenseItemSplit `json:"splits,omitempty"`
}

// TotalMinor is the item's contribution to the expense subtotal.
func (i *ExpenseItem) TotalMinor() int64 {
	return i.Quantity * i.UnitValueMinor
}

func (i *ExpenseItem) FormatAmounts(currency string) {
	i.UnitValue = money.Format(i.UnitValueMinor, currency)
	i.Total = money.Format(i.TotalMinor(), currency)
	for j := range i.Splits {
		i.Splits[j].OwedAmount = money.Format(i.Splits[j].OwedMinor, currency)
	}
}

type ExpenseItemSplit struct {
	ID               string    `json:"id" db:"id"`
	ItemID           string    `json:"item_id" db:"item_id"`
	MemberID         string    `json:"member_id" db:"member_id"`
	ShareMode        ShareMode `json:"share_mode" db:"share_mode"`
	Weight           *int64    `json:"weight,omitempty" db:"weight"`
	ExactAmountMinor *int64    `json:"-" db:"exact_amount_minor"`
	ExactAmount      *string   `json:"exact_amount,omitempty"`
	OwedMinor        int64     `json:"-" db:"owed_minor"`
	OwedAmount       string    `json:"owed_amount"`
}

type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementConfirmed SettlementStatus = "confirmed"
	SettlementRejected  SettlementStatus = "rejected"
	SettlementCancelled SettlementStatus = "cancelled"
)

// Terminal reports whether no further transition may mutate the settlement.
func (s SettlementStatus) Terminal() bool {
	return s != SettlementPending
}

type Settlement struct {
	ID            string           `json:"id" db:"id"`
	GroupID       string           `json:"group_id" db:"group_id"`
	PayerMemberID string           `json:"payer_member_id" db:"payer_member_id"`
	PayeeMemberID string           `json:"payee_member_id" db:"payee_member_id"`
	AmountMinor   int64            `json:"-" db:"amount_minor"`
	Amount        string           `json:"amount"`
	Currency      string           `json:"currency" db:"currency"`
	Status        SettlementStatus `json:"status" db:"status"`
	Note          *string          `json:"note,omitempty" db:"note"`
	ResolvedAt    *time.Time       `json:"resolved_at,omitempty" db:"resolved_at"`
	CreatedAt     time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" db:"updated_at"`
}

func (s *Settlement) FormatAmounts() {
	s.Amount = money.Format(s.AmountMinor, s.Currency)
}

type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyYearly   Frequency = "yearly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly, FrequencyYearly:
		return true
	}
	return false
}

type RecurringRule struct {
	ID                string     `json:"id" db:"id"`
	GroupID           string     `json:"group_id" db:"group_id"`
	CreatedByMemberID string     `json:"created_by_member_id" db:"created_by_member_id"`
	Name              string     `json:"name" db:"name"`
	Category          *string    `json:"category,omitempty" db:"category"`
	AmountMinor       int64      `json:"-" db:"amount_minor"`
	Amount            string     `json:"amount"`
	Currency          string     `json:"currency" db:"currency"`
	Frequency         Frequency  `json:"frequency" db:"frequency"`
	DayOfWeek         *int       `json:"day_of_week,omitempty" db:"day_of_week"`
	DayOfMonth        *int       `json:"day_of_month,omitempty" db:"day_of_month"`
	MonthOfYear       *int       `json:"month_of_year,omitempty" db:"month_of_year"`
	StartDate         time.Time  `json:"start_date" db:"start_date"`
	EndDate           *time.Time `json:"end_date,omitempty" db:"end_date"`
	NextOccurrence    time.Time  `json:"next_occurrence" db:"next_occurrence"`
	LastGeneratedAt   *time.Time `json:"last_generated_at,omitempty" db:"last_generated_at"`
	IsActive          bool       `json:"is_active" db:"is_active"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
	Payers            []RecurringPayer `json:"payers,omitempty"`
	Splits            []RecurringSplit `json:"splits,omitempty"`
}

func (r *RecurringRule) FormatAmounts() {
	r.Amount = money.Format(r.AmountMinor, r.Currency)
	for i := range r.Payers {
		r.Payers[i].Amount = money.Format(r.Payers[i].AmountMinor, r.Currency)
	}
	for i := range r.Splits {
		if r.Splits[i].ExactAmountMinor != nil {
			v := money.Format(*r.Splits[i].ExactAmountMinor, r.Currency)
			r.Splits[i].ExactAmount = &v
		}
	}
}

type RecurringPayer struct {
	ID          string `json:"id" db:"id"`
	RuleID      string `json:"rule_id" db:"rule_id"`
	MemberID    string `json:"member_id" db:"member_id"`
	AmountMinor int64  `json:"-" db:"amount_minor"`
	Amount      string `json:"amount"`
}

// RecurringSplit mirrors ExpenseItemSplit for the rule's single implicit item.
type RecurringSplit struct {
	ID               string    `json:"id" db:"id"`
	RuleID           string    `json:"rule_id" db:"rule_id"`
	MemberID         string    `json:"member_id" db:"member_id"`
	ShareMode        ShareMode `json:"share_mode" db:"share_mode"`
	Weight           *int64    `json:"weight,omitempty" db:"weight"`
	ExactAmountMinor *int64    `json:"-" db:"exact_amount_minor"`
	ExactAmount      *string   `json:"exact_amount,omitempty"`
}

type NotificationType string

const (
	NotificationExpenseAdded        NotificationType = "expense_added"
	NotificationSettlementRequested NotificationType = "settlement_requested"
	NotificationSettlementConfirmed NotificationType = "settlement_confirmed"
	NotificationSettlementRejected  NotificationType = "settlement_rejected"
	NotificationGroupDeleted        NotificationType = "group_deleted"
)

type Notification struct {
	ID          string           `json:"id" db:"id"`
	UserID      string           `json:"user_id" db:"user_id"`
	Type        NotificationType `json:"type" db:"type"`
	RefType     string           `json:"ref_type" db:"ref_type"`
	RefID       string           `json:"ref_id" db:"ref_id"`
	AmountMinor *int64           `json:"-" db:"amount_minor"`
	Amount      *string          `json:"amount,omitempty"`
	Currency    *string          `json:"currency,omitempty" db:"currency"`
	ReadAt      *time.Time       `json:"read_at,omitempty" db:"read_at"`
	CreatedAt   time.Time        `json:"created_at" db:"created_at"`
}

func (n *Notification) FormatAmounts() {
	if n.AmountMinor != nil && n.Currency != nil {
		v := money.Format(*n.AmountMinor, *n.Currency)
		n.Amount = &v
	}
}

type TokenKind string

const (
	TokenRefresh           TokenKind = "refresh"
	TokenPasswordReset     TokenKind = "password_reset"
	TokenEmailVerification TokenKind = "email_verification"
)

// AuthToken stores only the sha256 hash of the secret.
type AuthToken struct {
	ID         string     `json:"id" db:"id"`
	UserID     string     `json:"user_id" db:"user_id"`
	Kind       TokenKind  `json:"kind" db:"kind"`
	SecretHash string     `json:"-" db:"secret_hash"`
	ExpiresAt  time.Time  `json:"expires_at" db:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty" db:"used_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty" db:"revoked_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// MemberBalance is one member's standing in a group, in the group currency.
type MemberBalance struct {
	MemberID    string `json:"member_id"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	PaidMinor   int64  `json:"-"`
	Paid        string `json:"paid"`
	OwedMinor   int64  `json:"-"`
	Owed        string `json:"owed"`
	NetMinor    int64  `json:"-"`
	Net         string `json:"net"`
}

// DebtEdge is one directed obligation produced by the simplifier.
type DebtEdge struct {
	FromMemberID    string `json:"from_member_id"`
	FromUserID      string `json:"from_user_id"`
	FromDisplayName string `json:"from_display_name"`
	ToMemberID      string `json:"to_member_id"`
	ToUserID        string `json:"to_user_id"`
	ToDisplayName   string `json:"to_display_name"`
	AmountMinor     int64  `json:"-"`
	Amount          string `json:"amount"`
}

type GroupBalances struct {
	GroupID    string          `json:"group_id"`
	Currency   string          `json:"currency"`
	Members    []MemberBalance `json:"members"`
	Debts      []DebtEdge      `json:"debts"`
	ComputedAt time.Time       `json:"computed_at"`
}

func (b *GroupBalances) FormatAmounts() {
	for i := range b.Members {
		m := &b.Members[i]
		m.Paid = money.Format(m.PaidMinor, b.Currency)
		m.Owed = money.Format(m.OwedMinor, b.Currency)
		m.Net = money.Format(m.NetMinor, b.Currency)
	}
	for i := range b.Debts {
		b.Debts[i].Amount = money.Format(b.Debts[i].AmountMinor, b.Currency)
	}
}

// SweepOutcome reports what happened to one rule during a recurring sweep.
type SweepOutcome struct {
	RuleID    string `json:"rule_id"`
	Generated int    `json:"generated"`
	Skipped   bool   `json:"skipped"`
	Error     string `json:"error,omitempty"`
}

// UserExport bundles everything stored about one user for download.
type UserExport struct {
	User          User           `json:"user"`
	Memberships   []Member       `json:"memberships"`
	Expenses      []Expense      `json:"expenses"`
	Settlements   []Settlement   `json:"settlements"`
	Notifications []Notification `json:"notifications"`
	GeneratedAt   time.Time      `json:"generated_at"`
}
