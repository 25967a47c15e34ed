package services

import (
	"context"
	"strings"
	"testing"

	apperrors "splitbase-backend/errors"
	"splitbase-backend/models"
)

func newGroupFixture() (*groupService, *mockGroupRepo, *mockBalances) {
	repo := newMockGroupRepo(testGroup())
	balances := &mockBalances{}
	svc := &groupService{
		groupRepo:        repo,
		notificationRepo: &mockNotificationRepo{},
		balances:         balances,
	}
	return svc, repo, balances
}

func TestRandomJoinCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := randomJoinCode(JoinCodeLength)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != JoinCodeLength {
			t.Fatalf("code %q has length %d, want %d", code, len(code), JoinCodeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(JoinCodeAlphabet, c) {
				t.Fatalf("code %q contains %q, not in alphabet", code, c)
			}
		}
		seen[code] = true
	}
	// 50 draws from a 31^8 space colliding would mean the generator is broken.
	if len(seen) < 45 {
		t.Errorf("only %d distinct codes out of 50", len(seen))
	}
}

// collidingGroupRepo reports every candidate code as taken, forcing
// generateJoinCode onto its timestamp-suffix fallback.
type collidingGroupRepo struct {
	*mockGroupRepo
}

func (r collidingGroupRepo) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	return true, nil
}

func TestGenerateJoinCodeFallback(t *testing.T) {
	repo := collidingGroupRepo{newMockGroupRepo(nil)}

	for i := 0; i < 20; i++ {
		code, err := generateJoinCode(context.Background(), repo)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != JoinCodeLength {
			t.Fatalf("fallback code %q has length %d, want %d", code, len(code), JoinCodeLength)
		}
		for _, c := range code {
			if !strings.ContainsRune(JoinCodeAlphabet, c) {
				t.Fatalf("fallback code %q contains %q, outside the alphabet", code, c)
			}
		}
		if _, ok := normalizeJoinCode(code); !ok {
			t.Fatalf("fallback code %q rejected by normalization", code)
		}
	}
}

func TestNormalizeJoinCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"ABCDEFGH", "ABCDEFGH", true},
		{"abcdefgh", "ABCDEFGH", true},
		{"  abCD23  ", "ABCD23", true},
		{"", "", false},
		{"ABCD0001", "", false}, // 0 and 1 are not in the alphabet
		{"ABC-DEFG", "", false},
		{"ABC DEFG", "", false},
	}

	for _, tt := range tests {
		got, ok := normalizeJoinCode(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("normalizeJoinCode(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestJoinByCode(t *testing.T) {
	ctx := context.Background()

	t.Run("malformed code", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		_, err := svc.JoinByCode(ctx, "user-new", "not a code!")
		assertCode(t, err, apperrors.CodeInvalidJoinCode)
	})

	t.Run("unknown code", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		_, err := svc.JoinByCode(ctx, "user-new", "ZZZZZZZZ")
		assertCode(t, err, apperrors.CodeInvalidJoinCode)
	})

	t.Run("already an active member", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		_, err := svc.JoinByCode(ctx, "user-member", "ABCDEFGH")
		assertCode(t, err, apperrors.CodeAlreadyMember)
	})

	t.Run("returning member is reactivated", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		_, err := svc.JoinByCode(ctx, "user-gone", "ABCDEFGH")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.reactivated) != 1 || repo.reactivated[0] != "m-gone" {
			t.Errorf("expected m-gone reactivated, got %v", repo.reactivated)
		}
		if len(repo.added) != 0 {
			t.Errorf("expected no new membership row, got %d", len(repo.added))
		}
	})

	t.Run("new member gets a fresh row with the member role", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		_, err := svc.JoinByCode(ctx, "user-new", "abcdefgh")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.added) != 1 {
			t.Fatalf("expected one added member, got %d", len(repo.added))
		}
		if repo.added[0].Role != models.RoleMember {
			t.Errorf("new member role = %s, want member", repo.added[0].Role)
		}
	})
}

func TestLeaveGroup(t *testing.T) {
	ctx := context.Background()

	t.Run("sole owner cannot leave", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		err := svc.Leave(ctx, "group-1", "user-owner")
		assertCode(t, err, apperrors.CodeSoleOwner)
	})

	t.Run("regular member can leave", func(t *testing.T) {
		svc, repo, balances := newGroupFixture()
		if err := svc.Leave(ctx, "group-1", "user-member"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(repo.left) != 1 || repo.left[0] != "m-member" {
			t.Errorf("expected m-member marked left, got %v", repo.left)
		}
		if len(balances.invalidated) != 1 {
			t.Errorf("expected balance invalidation on leave")
		}
	})

	t.Run("owner can leave once another owner exists", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		repo.ownerCount = 2
		if err := svc.Leave(ctx, "group-1", "user-owner"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("departed member cannot leave again", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		err := svc.Leave(ctx, "group-1", "user-gone")
		assertCode(t, err, apperrors.CodeNotGroupMember)
	})
}

func TestRemoveMember(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		caller  string
		target  string
		code    apperrors.ErrorCode
		removed bool
	}{
		{name: "member lacks the role", caller: "user-member", target: "m-admin", code: apperrors.CodeInsufficientRole},
		{name: "admin removes member", caller: "user-admin", target: "m-member", removed: true},
		{name: "admin cannot remove the owner", caller: "user-admin", target: "m-owner", code: apperrors.CodeInsufficientRole},
		{name: "owner removes admin", caller: "user-owner", target: "m-admin", removed: true},
		{name: "cannot remove yourself", caller: "user-admin", target: "m-admin", code: apperrors.CodeCannotSelfAction},
		{name: "target already left", caller: "user-owner", target: "m-gone", code: apperrors.CodeNotFound},
		{name: "unknown target", caller: "user-owner", target: "m-nobody", code: apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo, _ := newGroupFixture()
			err := svc.RemoveMember(ctx, "group-1", tt.caller, tt.target)
			if tt.removed {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if len(repo.left) != 1 || repo.left[0] != tt.target {
					t.Errorf("expected %s removed, got %v", tt.target, repo.left)
				}
				return
			}
			assertCode(t, err, tt.code)
		})
	}

	t.Run("admin cannot remove a fellow admin", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		second := models.Member{ID: "m-admin2", GroupID: "group-1", UserID: "user-admin2", Role: models.RoleAdmin, Status: models.MembershipActive}
		repo.members["group-1/user-admin2"] = &second
		repo.membersByID["m-admin2"] = &second

		err := svc.RemoveMember(ctx, "group-1", "user-admin", "m-admin2")
		assertCode(t, err, apperrors.CodeInsufficientRole)
	})
}

func TestUpdateMemberRole(t *testing.T) {
	ctx := context.Background()

	t.Run("role must not be owner", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		err := svc.UpdateMemberRole(ctx, "group-1", "user-owner", "m-member", models.RoleOwner)
		assertCode(t, err, apperrors.CodeInvalidRequest)
	})

	t.Run("owner role is untouchable", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		err := svc.UpdateMemberRole(ctx, "group-1", "user-admin", "m-owner", models.RoleViewer)
		assertCode(t, err, apperrors.CodeInsufficientRole)
	})

	t.Run("admin promotes a member", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		if err := svc.UpdateMemberRole(ctx, "group-1", "user-admin", "m-member", models.RoleAdmin); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if repo.roleUpdates["m-member"] != models.RoleAdmin {
			t.Errorf("expected m-member promoted to admin, got %v", repo.roleUpdates)
		}
	})

	t.Run("unknown role rejected", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		err := svc.UpdateMemberRole(ctx, "group-1", "user-owner", "m-member", models.MemberRole("sudo"))
		assertCode(t, err, apperrors.CodeInvalidRequest)
	})
}

func TestRotateJoinCode(t *testing.T) {
	ctx := context.Background()

	t.Run("requires the admin role", func(t *testing.T) {
		svc, _, _ := newGroupFixture()
		_, err := svc.RotateJoinCode(ctx, "group-1", "user-member")
		assertCode(t, err, apperrors.CodeInsufficientRole)
	})

	t.Run("admin gets a fresh persisted code", func(t *testing.T) {
		svc, repo, _ := newGroupFixture()
		group, err := svc.RotateJoinCode(ctx, "group-1", "user-admin")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if group.JoinCode == "ABCDEFGH" {
			t.Error("join code did not change")
		}
		if len(group.JoinCode) != JoinCodeLength {
			t.Errorf("rotated code %q has length %d, want %d", group.JoinCode, len(group.JoinCode), JoinCodeLength)
		}
		if _, ok := normalizeJoinCode(group.JoinCode); !ok {
			t.Errorf("rotated code %q is outside the alphabet", group.JoinCode)
		}
		if repo.group.JoinCode != group.JoinCode {
			t.Error("rotated code was not persisted")
		}
	})
}

func TestCreateGroupValidation(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newGroupFixture()

	t.Run("name too short", func(t *testing.T) {
		_, err := svc.Create(ctx, "user-new", &GroupInput{Name: "x"})
		assertCode(t, err, apperrors.CodeInvalidFieldFormat)
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := svc.Create(ctx, "user-new", &GroupInput{Name: strings.Repeat("x", MaxGroupNameLength+1)})
		assertCode(t, err, apperrors.CodeInvalidFieldFormat)
	})

	t.Run("currency must be three letters", func(t *testing.T) {
		_, err := svc.Create(ctx, "user-new", &GroupInput{Name: "Trip", DefaultCurrency: "DOLLARS"})
		assertCode(t, err, apperrors.CodeInvalidFieldFormat)
	})
}
