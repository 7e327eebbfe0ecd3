package store

import (
	"context"
	"time"

	"tradeflow/internal/apperr"
	"tradeflow/internal/models"
)

// OverrideRow is a user override joined with its permission key.
type OverrideRow struct {
	ID        int64
	Key       string `gorm:"column:permission_key"`
	IsGranted bool
	IsForced  bool
	GrantedAt time.Time
	ExpiresAt *time.Time
	IsActive  bool
}

func (s *Store) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Preload("Role").First(&u, id).Error; err != nil {
		return nil, notFound(err, "user %d not found", id)
	}
	return &u, nil
}

func (s *Store) GetUserByOktaID(ctx context.Context, oktaID string) (*models.User, error) {
	var u models.User
	if err := s.q(ctx).Preload("Role").Where("okta_id = ?", oktaID).First(&u).Error; err != nil {
		return nil, notFound(err, "user %q not found", oktaID)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, activeOnly bool) ([]models.User, error) {
	q := s.q(ctx).Preload("Role").Order("name asc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return s.q(ctx).Create(u).Error
}

func (s *Store) UpdateUser(ctx context.Context, id int64, updates map[string]any) error {
	updates["updated_at"] = time.Now().UTC()
	res := s.q(ctx).Model(&models.User{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

func (s *Store) GetRole(ctx context.Context, id int64) (*models.Role, error) {
	var r models.Role
	if err := s.q(ctx).First(&r, id).Error; err != nil {
		return nil, notFound(err, "role %d not found", id)
	}
	return &r, nil
}

func (s *Store) GetRoleByName(ctx context.Context, name string) (*models.Role, error) {
	var r models.Role
	if err := s.q(ctx).Where("name = ?", name).First(&r).Error; err != nil {
		return nil, notFound(err, "role %q not found", name)
	}
	return &r, nil
}

func (s *Store) ListRoles(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := s.q(ctx).Order("id").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *Store) GetPermissionByKey(ctx context.Context, key string) (*models.Permission, error) {
	var p models.Permission
	if err := s.q(ctx).Where("permission_key = ?", key).First(&p).Error; err != nil {
		return nil, notFound(err, "permission %q not found", key)
	}
	return &p, nil
}

// RoleGrantKeys returns the keys of active permissions granted to the role.
func (s *Store) RoleGrantKeys(ctx context.Context, roleID int64) ([]string, error) {
	var keys []string
	err := s.q(ctx).
		Table("role_permissions rp").
		Joins("JOIN permissions p ON p.id = rp.permission_id").
		Joins("JOIN roles r ON r.id = rp.role_id").
		Where("rp.role_id = ? AND rp.is_granted = ? AND p.is_active = ? AND r.is_active = ?", roleID, true, true, true).
		Pluck("p.permission_key", &keys).Error
	return keys, err
}

// UserOverrides returns every override row for the user, active or not.
func (s *Store) UserOverrides(ctx context.Context, userID int64) ([]OverrideRow, error) {
	var rows []OverrideRow
	err := s.q(ctx).
		Table("user_permissions up").
		Select("up.id, p.permission_key, up.is_granted, up.is_forced, up.granted_at, up.expires_at, up.is_active").
		Joins("JOIN permissions p ON p.id = up.permission_id").
		Where("up.user_id = ? AND p.is_active = ?", userID, true).
		Scan(&rows).Error
	return rows, err
}

func (s *Store) ListOverrides(ctx context.Context, userID int64) ([]models.UserPermission, error) {
	var items []models.UserPermission
	err := s.q(ctx).Preload("Permission").
		Where("user_id = ?", userID).
		Order("granted_at desc, id desc").
		Find(&items).Error
	return items, err
}

func (s *Store) GetOverride(ctx context.Context, id int64) (*models.UserPermission, error) {
	var p models.UserPermission
	if err := s.forUpdate(s.q(ctx)).Preload("Permission").First(&p, id).Error; err != nil {
		return nil, notFound(err, "permission override %d not found", id)
	}
	return &p, nil
}

// ActiveOverride returns the active override for (user, permission), or nil.
func (s *Store) ActiveOverride(ctx context.Context, userID, permissionID int64) (*models.UserPermission, error) {
	var items []models.UserPermission
	err := s.forUpdate(s.q(ctx)).
		Where("user_id = ? AND permission_id = ? AND is_active = ?", userID, permissionID, true).
		Order("granted_at desc, id desc").
		Limit(1).
		Find(&items).Error
	if err != nil || len(items) == 0 {
		return nil, err
	}
	return &items[0], nil
}

func (s *Store) CreateOverride(ctx context.Context, p *models.UserPermission) error {
	return s.q(ctx).Create(p).Error
}

func (s *Store) DeactivateOverride(ctx context.Context, id int64) error {
	return s.q(ctx).Model(&models.UserPermission{}).
		Where("id = ?", id).
		Updates(map[string]any{"is_active": false, "updated_at": time.Now().UTC()}).Error
}

// ExpiredOverrides lists active overrides whose expiry has passed.
func (s *Store) ExpiredOverrides(ctx context.Context, now time.Time) ([]models.UserPermission, error) {
	var items []models.UserPermission
	err := s.q(ctx).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, now.UTC()).
		Find(&items).Error
	return items, err
}
