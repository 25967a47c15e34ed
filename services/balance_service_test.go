package services

import (
	"context"
	"testing"
	"time"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
)

func TestGetGroupBalancesSkipCache(t *testing.T) {
	ctx := context.Background()
	cache := NewBalanceCache(time.Minute)
	svc := &balanceService{
		groupRepo:      newMockGroupRepo(testGroup()),
		expenseRepo:    &mockExpenseRepo{},
		settlementRepo: &mockSettlementRepo{},
		cache:          cache,
	}

	stale := &models.GroupBalances{
		GroupID: "group-1",
		Members: []models.MemberBalance{{MemberID: "stale"}},
	}
	cache.Put("group-1", stale)

	got, err := svc.GetGroupBalances(ctx, "group-1", "user-member", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Members) != 1 || got.Members[0].MemberID != "stale" {
		t.Fatal("expected the cached entry to be served when the cache is not skipped")
	}

	fresh, err := svc.GetGroupBalances(ctx, "group-1", "user-member", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, m := range fresh.Members {
		if m.MemberID == "stale" {
			t.Fatal("skip_cache still returned the cached entry")
		}
	}

	// The fresh result replaces the stale cache entry.
	cached, ok := cache.Get("group-1")
	if !ok {
		t.Fatal("expected the cache repopulated after a skipped read")
	}
	if len(cached.Members) != len(fresh.Members) {
		t.Errorf("cache holds %d members, want %d", len(cached.Members), len(fresh.Members))
	}

	t.Run("membership still required", func(t *testing.T) {
		_, err := svc.GetGroupBalances(ctx, "group-1", "user-stranger", true)
		assertCode(t, err, apperrors.CodeNotGroupMember)
	})
}
