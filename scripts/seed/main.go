package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"splitbase-backend/config"
	"splitbase-backend/database"
	"splitbase-backend/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()

	log.Println("Starting database seeding...")
	log.Println("NOTE: All test users will be created with password: TestPassword123!")

	if err := clearDatabase(ctx, db); err != nil {
		log.Printf("Warning: Failed to clear database: %v", err)
		log.Println("Continuing with seeding...")
	}

	users, err := seedUsers(ctx, db)
	if err != nil {
		log.Fatalf("Failed to seed users: %v", err)
	}
	log.Printf("✓ Seeded %d users", len(users))

	groups, members, err := seedGroups(ctx, db, users)
	if err != nil {
		log.Fatalf("Failed to seed groups: %v", err)
	}
	log.Printf("✓ Seeded %d groups", len(groups))

	if err := seedExpenses(ctx, db, groups, members); err != nil {
		log.Fatalf("Failed to seed expenses: %v", err)
	}
	log.Println("✓ Seeded expenses")

	if err := seedSettlements(ctx, db, groups, members); err != nil {
		log.Fatalf("Failed to seed settlements: %v", err)
	}
	log.Println("✓ Seeded settlements")

	if err := seedRecurringRules(ctx, db, groups, members); err != nil {
		log.Fatalf("Failed to seed recurring rules: %v", err)
	}
	log.Println("✓ Seeded recurring rules")

	log.Println("✓ Database seeding completed successfully!")
}

func clearDatabase(ctx context.Context, db *database.DB) error {
	log.Println("Clearing existing data...")

	// Child tables first so foreign keys do not block the deletes.
	tables := []string{
		"notifications",
		"auth_tokens",
		"recurring_splits",
		"recurring_payers",
		"expense_item_splits",
		"expense_items",
		"expense_payers",
		"settlements",
		"expenses",
		"recurring_rules",
		"group_members",
		"groups",
		"users",
	}

	for _, table := range tables {
		query := fmt.Sprintf(`DO $$ BEGIN
			IF EXISTS (SELECT FROM information_schema.tables WHERE table_name = '%s') THEN
				DELETE FROM %s;
			END IF;
		END $$;`, table, table)
		if _, err := db.Pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	return nil
}

func seedUsers(ctx context.Context, db *database.DB) ([]models.User, error) {
	const testPassword = "TestPassword123!"

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	users := []models.User{
		{ID: uuid.New().String(), Email: stringPtr("alice@example.com"), DisplayName: "Alice Johnson"},
		{ID: uuid.New().String(), Email: stringPtr("bob@example.com"), DisplayName: "Bob Smith"},
		{ID: uuid.New().String(), Email: stringPtr("charlie@example.com"), DisplayName: "Charlie Brown"},
		{ID: uuid.New().String(), Email: stringPtr("diana@example.com"), DisplayName: "Diana Prince"},
		{ID: uuid.New().String(), Email: stringPtr("eve@example.com"), DisplayName: "Eve Williams"},
	}

	query := `
		INSERT INTO users (id, email, display_name, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, NOW(), NOW())
	`

	for _, user := range users {
		if _, err := db.Pool.Exec(ctx, query,
			user.ID, user.Email, user.DisplayName, string(hash),
		); err != nil {
			return nil, fmt.Errorf("failed to insert user %s: %w", *user.Email, err)
		}
	}

	log.Printf("✓ All users created with password: %s", testPassword)
	return users, nil
}

// seedGroups creates three groups and returns the member IDs keyed by
// "<group index>:<user index>" for the later seed steps.
func seedGroups(ctx context.Context, db *database.DB, users []models.User) ([]models.Group, map[string]string, error) {
	groups := []models.Group{
		{
			ID:              uuid.New().String(),
			Name:            "Summer Trip to Lisbon",
			Label:           stringPtr("trip"),
			OwnerUserID:     users[0].ID,
			JoinCode:        "LISBON24",
			DefaultCurrency: "USD",
		},
		{
			ID:              uuid.New().String(),
			Name:            "Apartment 4B",
			Label:           stringPtr("home"),
			OwnerUserID:     users[1].ID,
			JoinCode:        "APT4B777",
			DefaultCurrency: "USD",
		},
		{
			ID:              uuid.New().String(),
			Name:            "Tokyo Food Crawl",
			Label:           stringPtr("trip"),
			OwnerUserID:     users[2].ID,
			JoinCode:        "TOKYO888",
			DefaultCurrency: "JPY",
		},
	}

	groupQuery := `
		INSERT INTO groups (id, name, label, owner_user_id, join_code, default_currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
	`
	memberQuery := `
		INSERT INTO group_members (id, group_id, user_id, role, status, joined_at)
		VALUES ($1, $2, $3, $4, 'active', NOW())
	`

	memberships := []struct {
		group int
		user  int
		role  models.MemberRole
	}{
		{0, 0, models.RoleOwner},
		{0, 1, models.RoleAdmin},
		{0, 2, models.RoleMember},
		{0, 3, models.RoleMember},
		{1, 1, models.RoleOwner},
		{1, 0, models.RoleMember},
		{1, 4, models.RoleViewer},
		{2, 2, models.RoleOwner},
		{2, 3, models.RoleMember},
	}

	for _, g := range groups {
		if _, err := db.Pool.Exec(ctx, groupQuery,
			g.ID, g.Name, g.Label, g.OwnerUserID, g.JoinCode, g.DefaultCurrency,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to insert group %s: %w", g.Name, err)
		}
	}

	members := make(map[string]string)
	for _, m := range memberships {
		memberID := uuid.New().String()
		if _, err := db.Pool.Exec(ctx, memberQuery,
			memberID, groups[m.group].ID, users[m.user].ID, m.role,
		); err != nil {
			return nil, nil, fmt.Errorf("failed to add member: %w", err)
		}
		members[fmt.Sprintf("%d:%d", m.group, m.user)] = memberID
	}

	return groups, members, nil
}

type seedSplit struct {
	memberID string
	mode     models.ShareMode
	weight   *int64
	exact    *int64
	owed     int64
}

func seedExpenses(ctx context.Context, db *database.DB, groups []models.Group, members map[string]string) error {
	now := time.Now()

	// Dinner in the trip group: Alice pays 120.00 USD, split equally four ways.
	dinner := uuid.New().String()
	if err := insertExpense(ctx, db, dinner, groups[0].ID, members["0:0"],
		"Dinner at A Cevicheria", stringPtr("food"), "USD", 12000, now.Add(-5*24*time.Hour)); err != nil {
		return err
	}
	if err := insertPayer(ctx, db, dinner, members["0:0"], 12000); err != nil {
		return err
	}
	if err := insertItem(ctx, db, dinner, "Dinner", 1, 12000, []seedSplit{
		{memberID: members["0:0"], mode: models.ShareEqual, owed: 3000},
		{memberID: members["0:1"], mode: models.ShareEqual, owed: 3000},
		{memberID: members["0:2"], mode: models.ShareEqual, owed: 3000},
		{memberID: members["0:3"], mode: models.ShareEqual, owed: 3000},
	}); err != nil {
		return err
	}

	// Hotel: Bob and Alice split the payment, shares weighted by nights stayed.
	hotel := uuid.New().String()
	if err := insertExpense(ctx, db, hotel, groups[0].ID, members["0:1"],
		"Hotel, 3 nights", stringPtr("lodging"), "USD", 60000, now.Add(-6*24*time.Hour)); err != nil {
		return err
	}
	if err := insertPayer(ctx, db, hotel, members["0:1"], 40000); err != nil {
		return err
	}
	if err := insertPayer(ctx, db, hotel, members["0:0"], 20000); err != nil {
		return err
	}
	if err := insertItem(ctx, db, hotel, "Hotel", 1, 60000, []seedSplit{
		{memberID: members["0:0"], mode: models.ShareWeighted, weight: int64Ptr(3), owed: 22500},
		{memberID: members["0:1"], mode: models.ShareWeighted, weight: int64Ptr(3), owed: 22500},
		{memberID: members["0:2"], mode: models.ShareWeighted, weight: int64Ptr(2), owed: 15000},
	}); err != nil {
		return err
	}

	// Groceries in the apartment: two items, one with an exact share.
	groceries := uuid.New().String()
	if err := insertExpense(ctx, db, groceries, groups[1].ID, members["1:1"],
		"Weekly groceries", stringPtr("groceries"), "USD", 8550, now.Add(-2*24*time.Hour)); err != nil {
		return err
	}
	if err := insertPayer(ctx, db, groceries, members["1:1"], 8550); err != nil {
		return err
	}
	if err := insertItem(ctx, db, groceries, "Shared staples", 1, 6050, []seedSplit{
		{memberID: members["1:0"], mode: models.ShareEqual, owed: 3025},
		{memberID: members["1:1"], mode: models.ShareEqual, owed: 3025},
	}); err != nil {
		return err
	}
	if err := insertItem(ctx, db, groceries, "Oat milk", 2, 1250, []seedSplit{
		{memberID: members["1:0"], mode: models.ShareExact, exact: int64Ptr(2500), owed: 2500},
	}); err != nil {
		return err
	}

	// Zero-decimal currency group: ramen for two, 3000 JPY.
	ramen := uuid.New().String()
	if err := insertExpense(ctx, db, ramen, groups[2].ID, members["2:2"],
		"Ramen at Ichiran", stringPtr("food"), "JPY", 3000, now.Add(-1*24*time.Hour)); err != nil {
		return err
	}
	if err := insertPayer(ctx, db, ramen, members["2:2"], 3000); err != nil {
		return err
	}
	if err := insertItem(ctx, db, ramen, "Ramen", 2, 1500, []seedSplit{
		{memberID: members["2:2"], mode: models.ShareEqual, owed: 1500},
		{memberID: members["2:3"], mode: models.ShareEqual, owed: 1500},
	}); err != nil {
		return err
	}

	return nil
}

func insertExpense(ctx context.Context, db *database.DB, id, groupID, createdBy, name string, category *string, currency string, subtotalMinor int64, date time.Time) error {
	query := `
		INSERT INTO expenses (id, group_id, created_by_member_id, name, category, currency,
			subtotal_minor, expense_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $8)
	`
	if _, err := db.Pool.Exec(ctx, query, id, groupID, createdBy, name, category, currency, subtotalMinor, date); err != nil {
		return fmt.Errorf("failed to insert expense %s: %w", name, err)
	}
	return nil
}

func insertPayer(ctx context.Context, db *database.DB, expenseID, memberID string, amountMinor int64) error {
	query := `INSERT INTO expense_payers (id, expense_id, member_id, amount_minor) VALUES ($1, $2, $3, $4)`
	if _, err := db.Pool.Exec(ctx, query, uuid.New().String(), expenseID, memberID, amountMinor); err != nil {
		return fmt.Errorf("failed to insert expense payer: %w", err)
	}
	return nil
}

func insertItem(ctx context.Context, db *database.DB, expenseID, name string, quantity, unitValueMinor int64, splits []seedSplit) error {
	itemID := uuid.New().String()
	itemQuery := `INSERT INTO expense_items (id, expense_id, name, quantity, unit_value_minor) VALUES ($1, $2, $3, $4, $5)`
	if _, err := db.Pool.Exec(ctx, itemQuery, itemID, expenseID, name, quantity, unitValueMinor); err != nil {
		return fmt.Errorf("failed to insert expense item %s: %w", name, err)
	}

	splitQuery := `
		INSERT INTO expense_item_splits (id, item_id, member_id, share_mode, weight, exact_amount_minor, owed_minor)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, s := range splits {
		if _, err := db.Pool.Exec(ctx, splitQuery,
			uuid.New().String(), itemID, s.memberID, s.mode, s.weight, s.exact, s.owed,
		); err != nil {
			return fmt.Errorf("failed to insert item split: %w", err)
		}
	}
	return nil
}

func seedSettlements(ctx context.Context, db *database.DB, groups []models.Group, members map[string]string) error {
	query := `
		INSERT INTO settlements (id, group_id, payer_member_id, payee_member_id, amount_minor,
			currency, status, note, resolved_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
	`

	// Charlie paid Alice back for part of the dinner; confirmed.
	resolved := time.Now().Add(-3 * 24 * time.Hour)
	if _, err := db.Pool.Exec(ctx, query,
		uuid.New().String(), groups[0].ID, members["0:2"], members["0:0"],
		int64(3000), "USD", models.SettlementConfirmed, stringPtr("dinner repayment"), resolved,
	); err != nil {
		return fmt.Errorf("failed to insert confirmed settlement: %w", err)
	}

	// Diana's repayment is still waiting on Alice.
	if _, err := db.Pool.Exec(ctx, query,
		uuid.New().String(), groups[0].ID, members["0:3"], members["0:0"],
		int64(3000), "USD", models.SettlementPending, nil, nil,
	); err != nil {
		return fmt.Errorf("failed to insert pending settlement: %w", err)
	}

	return nil
}

func seedRecurringRules(ctx context.Context, db *database.DB, groups []models.Group, members map[string]string) error {
	ruleID := uuid.New().String()
	start := time.Date(time.Now().Year(), time.Now().Month(), 1, 0, 0, 0, 0, time.UTC)

	ruleQuery := `
		INSERT INTO recurring_rules (id, group_id, created_by_member_id, name, category,
			amount_minor, currency, frequency, day_of_month, start_date, next_occurrence,
			is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10, TRUE, NOW(), NOW())
	`
	if _, err := db.Pool.Exec(ctx, ruleQuery,
		ruleID, groups[1].ID, members["1:1"], "Monthly rent", stringPtr("rent"),
		int64(180000), "USD", models.FrequencyMonthly, 1, start,
	); err != nil {
		return fmt.Errorf("failed to insert recurring rule: %w", err)
	}

	payerQuery := `INSERT INTO recurring_payers (id, rule_id, member_id, amount_minor) VALUES ($1, $2, $3, $4)`
	if _, err := db.Pool.Exec(ctx, payerQuery, uuid.New().String(), ruleID, members["1:1"], int64(180000)); err != nil {
		return fmt.Errorf("failed to insert recurring payer: %w", err)
	}

	splitQuery := `
		INSERT INTO recurring_splits (id, rule_id, member_id, share_mode, weight, exact_amount_minor)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.Pool.Exec(ctx, splitQuery, uuid.New().String(), ruleID, members["1:0"], models.ShareEqual, nil, nil); err != nil {
		return fmt.Errorf("failed to insert recurring split: %w", err)
	}
	if _, err := db.Pool.Exec(ctx, splitQuery, uuid.New().String(), ruleID, members["1:1"], models.ShareEqual, nil, nil); err != nil {
		return fmt.Errorf("failed to insert recurring split: %w", err)
	}

	return nil
}

func stringPtr(s string) *string {
	return &s
}

func int64Ptr(v int64) *int64 {
	return &v
}
