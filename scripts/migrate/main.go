package main

import (
	"context"
	"log"

	"splitbase-backend/config"
	"splitbase-backend/database"
)

// Applies the full schema. Statements are idempotent so the script can be
// re-run against an existing database.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		email TEXT,
		display_name TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		deletion_requested_at TIMESTAMPTZ,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	// Anonymized accounts keep their row with a NULL email, so uniqueness
	// only applies to live accounts.
	`CREATE UNIQUE INDEX IF NOT EXISTS users_email_live_idx
		ON users (lower(email)) WHERE deleted_at IS NULL AND email IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS groups (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		label TEXT,
		owner_user_id UUID NOT NULL REFERENCES users(id),
		join_code TEXT NOT NULL,
		default_currency CHAR(3) NOT NULL,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS groups_join_code_live_idx
		ON groups (join_code) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS group_members (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		user_id UUID NOT NULL REFERENCES users(id),
		role TEXT NOT NULL CHECK (role IN ('owner', 'admin', 'member', 'viewer')),
		status TEXT NOT NULL CHECK (status IN ('active', 'left')),
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		left_at TIMESTAMPTZ
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS group_members_active_pair_idx
		ON group_members (group_id, user_id) WHERE status = 'active'`,
	`CREATE INDEX IF NOT EXISTS group_members_user_idx ON group_members (user_id)`,

	`CREATE TABLE IF NOT EXISTS expenses (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		created_by_member_id UUID NOT NULL REFERENCES group_members(id),
		name TEXT NOT NULL,
		category TEXT,
		currency CHAR(3) NOT NULL,
		subtotal_minor BIGINT NOT NULL,
		expense_date TIMESTAMPTZ NOT NULL,
		recurring_rule_id UUID,
		deleted_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS expenses_group_date_idx
		ON expenses (group_id, expense_date DESC) WHERE deleted_at IS NULL`,

	`CREATE TABLE IF NOT EXISTS expense_payers (
		id UUID PRIMARY KEY,
		expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		member_id UUID NOT NULL REFERENCES group_members(id),
		amount_minor BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS expense_payers_expense_idx ON expense_payers (expense_id)`,

	`CREATE TABLE IF NOT EXISTS expense_items (
		id UUID PRIMARY KEY,
		expense_id UUID NOT NULL REFERENCES expenses(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		quantity BIGINT NOT NULL CHECK (quantity > 0),
		unit_value_minor BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS expense_items_expense_idx ON expense_items (expense_id)`,

	`CREATE TABLE IF NOT EXISTS expense_item_splits (
		id UUID PRIMARY KEY,
		item_id UUID NOT NULL REFERENCES expense_items(id) ON DELETE CASCADE,
		member_id UUID NOT NULL REFERENCES group_members(id),
		share_mode TEXT NOT NULL CHECK (share_mode IN ('equal', 'weighted', 'exact')),
		weight BIGINT,
		exact_amount_minor BIGINT,
		owed_minor BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS expense_item_splits_item_idx ON expense_item_splits (item_id)`,

	`CREATE TABLE IF NOT EXISTS settlements (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		payer_member_id UUID NOT NULL REFERENCES group_members(id),
		payee_member_id UUID NOT NULL REFERENCES group_members(id),
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		currency CHAR(3) NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('pending', 'confirmed', 'rejected', 'cancelled')),
		note TEXT,
		resolved_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS settlements_group_idx ON settlements (group_id)`,

	`CREATE TABLE IF NOT EXISTS recurring_rules (
		id UUID PRIMARY KEY,
		group_id UUID NOT NULL REFERENCES groups(id),
		created_by_member_id UUID NOT NULL REFERENCES group_members(id),
		name TEXT NOT NULL,
		category TEXT,
		amount_minor BIGINT NOT NULL CHECK (amount_minor > 0),
		currency CHAR(3) NOT NULL,
		frequency TEXT NOT NULL CHECK (frequency IN ('daily', 'weekly', 'biweekly', 'monthly', 'yearly')),
		day_of_week INT,
		day_of_month INT,
		month_of_year INT,
		start_date TIMESTAMPTZ NOT NULL,
		end_date TIMESTAMPTZ,
		next_occurrence TIMESTAMPTZ NOT NULL,
		last_generated_at TIMESTAMPTZ,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS recurring_rules_due_idx
		ON recurring_rules (next_occurrence) WHERE is_active`,

	`CREATE TABLE IF NOT EXISTS recurring_payers (
		id UUID PRIMARY KEY,
		rule_id UUID NOT NULL REFERENCES recurring_rules(id) ON DELETE CASCADE,
		member_id UUID NOT NULL REFERENCES group_members(id),
		amount_minor BIGINT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS recurring_splits (
		id UUID PRIMARY KEY,
		rule_id UUID NOT NULL REFERENCES recurring_rules(id) ON DELETE CASCADE,
		member_id UUID NOT NULL REFERENCES group_members(id),
		share_mode TEXT NOT NULL CHECK (share_mode IN ('equal', 'weighted', 'exact')),
		weight BIGINT,
		exact_amount_minor BIGINT
	)`,

	// One expense per rule occurrence. Generation relies on this to stay
	// idempotent under concurrent sweeps.
	`CREATE UNIQUE INDEX IF NOT EXISTS expenses_rule_occurrence_idx
		ON expenses (recurring_rule_id, expense_date) WHERE recurring_rule_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		type TEXT NOT NULL,
		ref_type TEXT NOT NULL,
		ref_id UUID NOT NULL,
		amount_minor BIGINT,
		currency CHAR(3),
		read_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS notifications_user_idx
		ON notifications (user_id, created_at DESC)`,

	`CREATE TABLE IF NOT EXISTS auth_tokens (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES users(id),
		kind TEXT NOT NULL CHECK (kind IN ('refresh', 'password_reset', 'email_verification')),
		secret_hash TEXT NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		used_at TIMESTAMPTZ,
		revoked_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS auth_tokens_secret_idx ON auth_tokens (kind, secret_hash)`,
}

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

	log.Println("Applying schema...")
	for i, stmt := range statements {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			log.Fatalf("Statement %d failed: %v", i+1, err)
		}
	}
	log.Printf("✓ Applied %d statements", len(statements))
}
