package repository

import (
	"context"
	"fmt"

	"splitbase-backend/database"
	"splitbase-backend/models"
)

type GroupRepository interface {
	GetByID(ctx context.Context, id string) (*models.Group, error)
	GetByJoinCode(ctx context.Context, code string) (*models.Group, error)
	GetByUserID(ctx context.Context, userID string) ([]models.Group, error)
	Create(ctx context.Context, group *models.Group) error
	Update(ctx context.Context, group *models.Group) error
	UpdateDefaultCurrency(ctx context.Context, groupID, currency string) error
	UpdateOwner(ctx context.Context, groupID, ownerUserID string) error
	UpdateJoinCode(ctx context.Context, groupID, code string) error
	SoftDelete(ctx context.Context, id string) error
	JoinCodeExists(ctx context.Context, code string) (bool, error)

	AddMember(ctx context.Context, member *models.Member) error
	GetMember(ctx context.Context, groupID, userID string) (*models.Member, error)
	GetMemberByID(ctx context.Context, memberID string) (*models.Member, error)
	GetActiveMembers(ctx context.Context, groupID string) ([]models.Member, error)
	GetMemberships(ctx context.Context, userID string) ([]models.Member, error)
	UpdateMemberRole(ctx context.Context, memberID string, role models.MemberRole) error
	MarkMemberLeft(ctx context.Context, memberID string) error
	ReactivateMember(ctx context.Context, memberID string, role models.MemberRole) error
	CountActiveByRole(ctx context.Context, groupID string, role models.MemberRole) (int, error)
	WithTx(tx database.Querier) GroupRepository
}

type groupRepository struct {
	db *database.DB
	tx database.Querier
}

func NewGroupRepository(db *database.DB) GroupRepository {
	return &groupRepository{db: db}
}

func (r *groupRepository) WithTx(tx database.Querier) GroupRepository {
	return &groupRepository{db: r.db, tx: tx}
}

func (r *groupRepository) getQuerier() database.Querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db.Pool
}

const groupColumns = `id, name, label, owner_user_id, join_code, default_currency, deleted_at, created_at, updated_at`

func scanGroup(row interface{ Scan(...interface{}) error }, g *models.Group) error {
	return row.Scan(
		&g.ID, &g.Name, &g.Label, &g.OwnerUserID, &g.JoinCode,
		&g.DefaultCurrency, &g.DeletedAt, &g.CreatedAt, &g.UpdatedAt,
	)
}

func (r *groupRepository) GetByID(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 AND deleted_at IS NULL`

	if err := scanGroup(r.getQuerier().QueryRow(ctx, query, id), &group); err != nil {
		return nil, fmt.Errorf("getting group by id: %w", err)
	}

	members, err := r.GetActiveMembers(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting group members: %w", err)
	}
	group.Members = members

	return &group, nil
}

func (r *groupRepository) GetByJoinCode(ctx context.Context, code string) (*models.Group, error) {
	var group models.Group
	query := `SELECT ` + groupColumns + ` FROM groups WHERE join_code = $1 AND deleted_at IS NULL`

	if err := scanGroup(r.getQuerier().QueryRow(ctx, query, code), &group); err != nil {
		return nil, fmt.Errorf("getting group by join code: %w", err)
	}
	return &group, nil
}

func (r *groupRepository) GetByUserID(ctx context.Context, userID string) ([]models.Group, error) {
	query := `SELECT g.id, g.name, g.label, g.owner_user_id, g.join_code, g.default_currency,
	          g.deleted_at, g.created_at, g.updated_at
	          FROM groups g
	          INNER JOIN group_members gm ON g.id = gm.group_id
	          WHERE gm.user_id = $1 AND gm.status = 'active' AND g.deleted_at IS NULL
	          ORDER BY g.updated_at DESC`

	rows, err := r.getQuerier().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("getting groups by user id: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	groupIDs := make([]string, 0)
	for rows.Next() {
		var group models.Group
		if err := scanGroup(rows, &group); err != nil {
			return nil, fmt.Errorf("scanning group: %w", err)
		}
		group.Members = []models.Member{}
		groups = append(groups, group)
		groupIDs = append(groupIDs, group.ID)
	}

	if len(groupIDs) == 0 {
		return []models.Group{}, nil
	}

	groupMap := make(map[string]*models.Group, len(groups))
	for i := range groups {
		groupMap[groups[i].ID] = &groups[i]
	}

	memberQuery := `SELECT ` + memberColumns(`gm`, `u`) + `
	          FROM group_members gm
	          INNER JOIN users u ON gm.user_id = u.id
	          WHERE gm.group_id = ANY($1) AND gm.status = 'active'
	          ORDER BY gm.id`

	mRows, err := r.getQuerier().Query(ctx, memberQuery, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("getting batch members: %w", err)
	}
	defer mRows.Close()

	for mRows.Next() {
		var m models.Member
		if err := scanMember(mRows, &m); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		if g, ok := groupMap[m.GroupID]; ok {
			g.Members = append(g.Members, m)
		}
	}

	return groups, nil
}

func (r *groupRepository) Create(ctx context.Context, group *models.Group) error {
	query := `INSERT INTO groups (id, name, label, owner_user_id, join_code, default_currency, created_at, updated_at)
	          VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())`

	_, err := r.getQuerier().Exec(ctx, query,
		group.ID, group.Name, group.Label, group.OwnerUserID, group.JoinCode, group.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("creating group: %w", err)
	}
	return nil
}

func (r *groupRepository) Update(ctx context.Context, group *models.Group) error {
	query := `UPDATE groups SET name = $1, label = $2, updated_at = NOW() WHERE id = $3 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, group.Name, group.Label, group.ID)
	if err != nil {
		return fmt.Errorf("updating group: %w", err)
	}
	return nil
}

func (r *groupRepository) UpdateDefaultCurrency(ctx context.Context, groupID, currency string) error {
	query := `UPDATE groups SET default_currency = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, currency, groupID)
	if err != nil {
		return fmt.Errorf("updating group default currency: %w", err)
	}
	return nil
}

func (r *groupRepository) UpdateOwner(ctx context.Context, groupID, ownerUserID string) error {
	query := `UPDATE groups SET owner_user_id = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, ownerUserID, groupID)
	if err != nil {
		return fmt.Errorf("updating group owner: %w", err)
	}
	return nil
}

func (r *groupRepository) UpdateJoinCode(ctx context.Context, groupID, code string) error {
	query := `UPDATE groups SET join_code = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, code, groupID)
	if err != nil {
		return fmt.Errorf("updating group join code: %w", err)
	}
	return nil
}

func (r *groupRepository) SoftDelete(ctx context.Context, id string) error {
	query := `UPDATE groups SET deleted_at = NOW(), updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	_, err := r.getQuerier().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("soft deleting group: %w", err)
	}
	return nil
}

func (r *groupRepository) JoinCodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM groups WHERE join_code = $1 AND deleted_at IS NULL)`

	if err := r.getQuerier().QueryRow(ctx, query, code).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking join code: %w", err)
	}
	return exists, nil
}

func memberColumns(gm, u string) string {
	return gm + `.id, ` + gm + `.group_id, ` + gm + `.user_id, ` + u + `.display_name, ` +
		gm + `.role, ` + gm + `.status, ` + gm + `.joined_at, ` + gm + `.left_at`
}

func scanMember(row interface{ Scan(...interface{}) error }, m *models.Member) error {
	return row.Scan(
		&m.ID, &m.GroupID, &m.UserID, &m.DisplayName,
		&m.Role, &m.Status, &m.JoinedAt, &m.LeftAt,
	)
}

func (r *groupRepository) AddMember(ctx context.Context, member *models.Member) error {
	query := `INSERT INTO group_members (id, group_id, user_id, role, status, joined_at)
	          VALUES ($1, $2, $3, $4, 'active', NOW())`

	_, err := r.getQuerier().Exec(ctx, query, member.ID, member.GroupID, member.UserID, member.Role)
	if err != nil {
		return fmt.Errorf("adding member to group: %w", err)
	}
	return nil
}

// GetMember returns the latest membership row for the pair, active or left.
func (r *groupRepository) GetMember(ctx context.Context, groupID, userID string) (*models.Member, error) {
	var m models.Member
	query := `SELECT ` + memberColumns(`gm`, `u`) + `
	          FROM group_members gm
	          INNER JOIN users u ON gm.user_id = u.id
	          WHERE gm.group_id = $1 AND gm.user_id = $2
	          ORDER BY gm.joined_at DESC
	          LIMIT 1`

	if err := scanMember(r.getQuerier().QueryRow(ctx, query, groupID, userID), &m); err != nil {
		return nil, fmt.Errorf("getting member: %w", err)
	}
	return &m, nil
}

func (r *groupRepository) GetMemberByID(ctx context.Context, memberID string) (*models.Member, error) {
	var m models.Member
	query := `SELECT ` + memberColumns(`gm`, `u`) + `
	          FROM group_members gm
	          INNER JOIN users u ON gm.user_id = u.id
	          WHERE gm.id = $1`

	if err := scanMember(r.getQuerier().QueryRow(ctx, query, memberID), &m); err != nil {
		return nil, fmt.Errorf("getting member by id: %w", err)
	}
	return &m, nil
}

// GetActiveMembers returns members in canonical order (member id ascending),
// which downstream balance computation relies on.
func (r *groupRepository) GetActiveMembers(ctx context.Context, groupID string) ([]models.Member, error) {
	query := `SELECT ` + memberColumns(`gm`, `u`) + `
	          FROM group_members gm
	          INNER JOIN users u ON gm.user_id = u.id
	          WHERE gm.group_id = $1 AND gm.status = 'active'
	          ORDER BY gm.id`

	rows, err := r.getQuerier().Query(ctx, query, groupID)
	if err != nil {
		return nil, fmt.Errorf("getting active members: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := scanMember(rows, &m); err != nil {
			return nil, fmt.Errorf("scanning member: %w", err)
		}
		members = append(members, m)
	}
	return members, nil
}

func (r *groupRepository) GetMemberships(ctx context.Context, userID string) ([]models.Member, error) {
	query := `SELECT ` + memberColumns(`gm`, `u`) + `
	          FROM group_members gm
	          INNER JOIN users u ON gm.user_id = u.id
	          WHERE gm.user_id = $1
	          ORDER BY gm.joined_at`

	rows, err := r.getQuerier().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("getting memberships: %w", err)
	}
	defer rows.Close()

	var members []models.Member
	for rows.Next() {
		var m models.Member
		if err := scanMember(rows, &m); err != nil {
			return nil, fmt.Errorf("scanning membership: %w", err)
		}
		members = append(members, m)
	}
	return members, nil
}

func (r *groupRepository) UpdateMemberRole(ctx context.Context, memberID string, role models.MemberRole) error {
	query := `UPDATE group_members SET role = $1 WHERE id = $2 AND status = 'active'`

	_, err := r.getQuerier().Exec(ctx, query, role, memberID)
	if err != nil {
		return fmt.Errorf("updating member role: %w", err)
	}
	return nil
}

func (r *groupRepository) MarkMemberLeft(ctx context.Context, memberID string) error {
	query := `UPDATE group_members SET status = 'left', left_at = NOW() WHERE id = $1 AND status = 'active'`

	_, err := r.getQuerier().Exec(ctx, query, memberID)
	if err != nil {
		return fmt.Errorf("marking member left: %w", err)
	}
	return nil
}

// ReactivateMember flips a left row back to active so the returning member
// keeps their member id and their side of historical expenses.
func (r *groupRepository) ReactivateMember(ctx context.Context, memberID string, role models.MemberRole) error {
	query := `UPDATE group_members SET status = 'active', role = $1, left_at = NULL, joined_at = NOW()
	          WHERE id = $2 AND status = 'left'`

	_, err := r.getQuerier().Exec(ctx, query, role, memberID)
	if err != nil {
		return fmt.Errorf("reactivating member: %w", err)
	}
	return nil
}

func (r *groupRepository) CountActiveByRole(ctx context.Context, groupID string, role models.MemberRole) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND role = $2 AND status = 'active'`

	if err := r.getQuerier().QueryRow(ctx, query, groupID, role).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting members by role: %w", err)
	}
	return count, nil
}
