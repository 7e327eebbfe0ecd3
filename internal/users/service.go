// Package users administers portal accounts and per-user permission overrides.
package users

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"tradeflow/internal/apperr"
	"tradeflow/internal/audit"
	"tradeflow/internal/models"
	"tradeflow/internal/rbac"
	"tradeflow/internal/store"
)

const (
	usersTable     = "users"
	overridesTable = "user_permissions"
)

// SystemActorID attributes housekeeping changes that no user initiated.
const SystemActorID int64 = 0

type Service struct {
	store *store.Store
	perms *rbac.Resolver
	audit *audit.Recorder
	log   *zap.Logger
	now   func() time.Time
}

func NewService(st *store.Store, perms *rbac.Resolver, rec *audit.Recorder, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, perms: perms, audit: rec, log: log, now: time.Now}
}

type NewUser struct {
	OktaID      string `json:"okta_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	Designation string `json:"designation"`
	CanActAsPM  bool   `json:"can_act_as_pm"`
}

type Grant struct {
	PermissionKey string     `json:"permission_key"`
	IsGranted     bool       `json:"is_granted"`
	IsForced      bool       `json:"is_forced"`
	Reason        string     `json:"reason"`
	ExpiresAt     *time.Time `json:"expires_at"`
}

func (s *Service) List(ctx context.Context, actorID int64, activeOnly bool) ([]models.User, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	return s.store.ListUsers(ctx, activeOnly)
}

func (s *Service) Create(ctx context.Context, actorID int64, in NewUser) (*models.User, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	in.OktaID = strings.TrimSpace(in.OktaID)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if in.OktaID == "" || in.Name == "" {
		return nil, apperr.Validation("okta id and name are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, apperr.Validation("invalid email %q", in.Email)
	}

	u := &models.User{
		OktaID:      in.OktaID,
		Email:       in.Email,
		Name:        in.Name,
		Designation: strings.ToUpper(strings.TrimSpace(in.Designation)),
		CanActAsPM:  in.CanActAsPM,
		IsActive:    true,
		CreatedBy:   &actorID,
	}
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		role, err := tx.GetRoleByName(ctx, in.Role)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("unknown role %q", in.Role)
		}
		if err != nil {
			return err
		}
		u.RoleID = role.ID

		if _, err := tx.GetUserByOktaID(ctx, u.OktaID); err == nil {
			return apperr.Conflict("user %s already exists", u.OktaID)
		} else if apperr.KindOf(err) != apperr.KindNotFound {
			return err
		}
		if err := tx.CreateUser(ctx, u); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, usersTable, u.ID, models.AuditCreate, audit.Diff(nil, userSnapshot(u)))
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("user created", zap.String("email", u.Email), zap.String("role", in.Role))
	return s.store.GetUser(ctx, u.ID)
}

// SignIn resolves the SSO subject to a usable user and stamps the login time.
func (s *Service) SignIn(ctx context.Context, oktaID string) (*models.User, error) {
	u, err := s.store.GetUserByOktaID(ctx, strings.TrimSpace(oktaID))
	if apperr.KindOf(err) == apperr.KindNotFound {
		return nil, apperr.Permission("unknown user %q", oktaID)
	}
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if !u.Usable(now) {
		return nil, apperr.Permission("user %q is inactive or locked", oktaID)
	}
	if err := s.store.UpdateUser(ctx, u.ID, map[string]any{"last_login_at": now}); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	return u, nil
}

func (s *Service) Roles(ctx context.Context, actorID int64) ([]models.Role, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx)
}

// SetActive activates or deactivates a user. Users are never deleted.
func (s *Service) SetActive(ctx context.Context, actorID, userID int64, active bool) (*models.User, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	if !active && actorID == userID {
		return nil, apperr.Validation("users cannot deactivate themselves")
	}
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		before := userSnapshot(u)
		u.IsActive = active
		if err := tx.UpdateUser(ctx, userID, map[string]any{"is_active": active}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, usersTable, userID, models.AuditUpdate, audit.Diff(before, userSnapshot(u)))
	})
	if err != nil {
		return nil, err
	}
	s.perms.Invalidate(ctx, userID)
	return s.store.GetUser(ctx, userID)
}

func (s *Service) ChangeRole(ctx context.Context, actorID, userID int64, roleName string) (*models.User, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		u, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		role, err := tx.GetRoleByName(ctx, roleName)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("unknown role %q", roleName)
		}
		if err != nil {
			return err
		}
		before := userSnapshot(u)
		u.RoleID = role.ID
		if err := tx.UpdateUser(ctx, userID, map[string]any{"role_id": role.ID}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, usersTable, userID, models.AuditUpdate, audit.Diff(before, userSnapshot(u)))
	})
	if err != nil {
		return nil, err
	}
	s.perms.Invalidate(ctx, userID)
	return s.store.GetUser(ctx, userID)
}

func (s *Service) Overrides(ctx context.Context, actorID, userID int64) ([]models.UserPermission, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListOverrides(ctx, userID)
}

// GrantOverride records a new override and retires the previous active one for the
// same permission. A live forced override can only be replaced by another forced one.
func (s *Service) GrantOverride(ctx context.Context, actorID, userID int64, g Grant) (*models.UserPermission, error) {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	if g.ExpiresAt != nil && !g.ExpiresAt.After(now) {
		return nil, apperr.Validation("expires_at must be in the future")
	}

	var created *models.UserPermission
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		if _, err := tx.GetUser(ctx, userID); err != nil {
			return err
		}
		perm, err := tx.GetPermissionByKey(ctx, g.PermissionKey)
		if apperr.KindOf(err) == apperr.KindNotFound {
			return apperr.Validation("unknown permission %q", g.PermissionKey)
		}
		if err != nil {
			return err
		}

		prev, err := tx.ActiveOverride(ctx, userID, perm.ID)
		if err != nil {
			return err
		}
		if prev != nil {
			if prev.IsForced && !g.IsForced && prev.LiveAt(now) {
				return apperr.Conflict("a forced override for %s is in place", g.PermissionKey)
			}
			if err := tx.DeactivateOverride(ctx, prev.ID); err != nil {
				return err
			}
		}

		created = &models.UserPermission{
			UserID:       userID,
			PermissionID: perm.ID,
			IsGranted:    g.IsGranted,
			IsForced:     g.IsForced,
			Reason:       strings.TrimSpace(g.Reason),
			GrantedBy:    actorID,
			GrantedAt:    now,
			ExpiresAt:    g.ExpiresAt,
			IsActive:     true,
		}
		if err := tx.CreateOverride(ctx, created); err != nil {
			return err
		}
		if err := tx.UpdateUser(ctx, userID, map[string]any{
			"permission_override_count": gorm.Expr("permission_override_count + ?", 1),
		}); err != nil {
			return err
		}
		return s.audit.Record(ctx, tx, actorID, overridesTable, created.ID, models.AuditCreate, audit.Diff(nil, overrideSnapshot(created, g.PermissionKey)))
	})
	if err != nil {
		return nil, err
	}

	s.perms.Invalidate(ctx, userID)
	s.log.Info("permission override granted",
		zap.Int64("user_id", userID),
		zap.String("permission", g.PermissionKey),
		zap.Bool("granted", g.IsGranted),
		zap.Bool("forced", g.IsForced),
	)
	created.Permission = nil
	return created, nil
}

func (s *Service) RevokeOverride(ctx context.Context, actorID, overrideID int64) error {
	if err := s.perms.Require(ctx, actorID, models.PermUserManagement); err != nil {
		return err
	}
	var userID int64
	err := s.store.InTx(ctx, func(tx *store.Store) error {
		o, err := tx.GetOverride(ctx, overrideID)
		if err != nil {
			return err
		}
		if !o.IsActive {
			return apperr.Conflict("permission override %d is not active", overrideID)
		}
		userID = o.UserID
		return s.retire(ctx, tx, actorID, o)
	})
	if err != nil {
		return err
	}
	s.perms.Invalidate(ctx, userID)
	return nil
}

// SweepExpired retires active overrides whose expiry has passed and returns how many
// were retired.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.store.ExpiredOverrides(ctx, s.now())
	if err != nil {
		return 0, err
	}
	users := map[int64]struct{}{}
	err = s.store.InTx(ctx, func(tx *store.Store) error {
		for i := range expired {
			if err := s.retire(ctx, tx, SystemActorID, &expired[i]); err != nil {
				return err
			}
			users[expired[i].UserID] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for id := range users {
		s.perms.Invalidate(ctx, id)
	}
	return len(expired), nil
}

func (s *Service) retire(ctx context.Context, tx *store.Store, actorID int64, o *models.UserPermission) error {
	if err := tx.DeactivateOverride(ctx, o.ID); err != nil {
		return err
	}
	return s.audit.Record(ctx, tx, actorID, overridesTable, o.ID, models.AuditUpdate, []audit.Change{{
		Field: "is_active", Old: audit.Text(true), New: audit.Text(false),
	}})
}

func userSnapshot(u *models.User) map[string]any {
	return map[string]any{
		"okta_id":       u.OktaID,
		"email":         u.Email,
		"name":          u.Name,
		"role_id":       u.RoleID,
		"designation":   u.Designation,
		"can_act_as_pm": u.CanActAsPM,
		"is_active":     u.IsActive,
	}
}

func overrideSnapshot(o *models.UserPermission, key string) map[string]any {
	return map[string]any{
		"user_id":        o.UserID,
		"permission_key": key,
		"is_granted":     o.IsGranted,
		"is_forced":      o.IsForced,
		"reason":         o.Reason,
		"expires_at":     o.ExpiresAt,
	}
}
