package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"tradeflow/internal/apperr"
	"tradeflow/internal/cache"
	"tradeflow/internal/models"
	"tradeflow/internal/store"
)

// Resolver loads resolution inputs from the store and caches resolved sets.
// Cache errors are logged and fall through to the store.
type Resolver struct {
	store *store.Store
	cache cache.Store
	ttl   time.Duration
	log   *zap.Logger
	now   func() time.Time
}

func NewResolver(st *store.Store, c cache.Store, ttl time.Duration, log *zap.Logger) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &Resolver{store: st, cache: c, ttl: ttl, log: log, now: time.Now}
}

func cacheKey(userID int64) string { return fmt.Sprintf("perm:user:%d", userID) }

// Effective returns the user's effective permission set.
func (r *Resolver) Effective(ctx context.Context, userID int64) (Set, error) {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.effective(ctx, u)
}

// Require returns a permission error unless the user is usable and holds key.
func (r *Resolver) Require(ctx context.Context, userID int64, key string) error {
	u, err := r.Actor(ctx, userID)
	if err != nil {
		return err
	}
	set, err := r.effective(ctx, u)
	if err != nil {
		return err
	}
	if !set.Has(key) {
		return apperr.Permission("missing permission %s", key)
	}
	return nil
}

// Has reports whether the user holds key, without checking usability.
func (r *Resolver) Has(ctx context.Context, u *models.User, key string) (bool, error) {
	set, err := r.effective(ctx, u)
	if err != nil {
		return false, err
	}
	return set.Has(key), nil
}

// Actor loads the acting user and rejects inactive or locked accounts.
func (r *Resolver) Actor(ctx context.Context, userID int64) (*models.User, error) {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindNotFound {
			return nil, apperr.Permission("unknown actor %d", userID)
		}
		return nil, err
	}
	if !u.Usable(r.now()) {
		return nil, apperr.Permission("user %d is inactive or locked", userID)
	}
	return u, nil
}

// Invalidate drops the cached set for the user.
func (r *Resolver) Invalidate(ctx context.Context, userID int64) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, cacheKey(userID)); err != nil {
		r.log.Warn("permission cache delete failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (r *Resolver) effective(ctx context.Context, u *models.User) (Set, error) {
	if u.RoleID == 0 || u.Role == nil || !u.Role.IsActive {
		return Set{}, nil
	}
	if set, ok := r.cached(ctx, u.ID); ok {
		return set, nil
	}

	grants, err := r.store.RoleGrantKeys(ctx, u.RoleID)
	if err != nil {
		return nil, fmt.Errorf("load role grants: %w", err)
	}
	rows, err := r.store.UserOverrides(ctx, u.ID)
	if err != nil {
		return nil, fmt.Errorf("load overrides: %w", err)
	}
	overrides := make([]Override, 0, len(rows))
	for _, row := range rows {
		overrides = append(overrides, Override(row))
	}

	now := r.now()
	set := Resolve(grants, overrides, now)
	r.remember(ctx, u.ID, set, overrides, now)
	return set, nil
}

func (r *Resolver) cached(ctx context.Context, userID int64) (Set, bool) {
	if r.cache == nil || r.ttl <= 0 {
		return nil, false
	}
	b, ok, err := r.cache.Get(ctx, cacheKey(userID))
	if err != nil {
		r.log.Warn("permission cache get failed", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	var keys []string
	if err := json.Unmarshal(b, &keys); err != nil {
		return nil, false
	}
	set := make(Set, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, true
}

// remember caches set until the configured TTL or the next override expiry,
// whichever comes first.
func (r *Resolver) remember(ctx context.Context, userID int64, set Set, overrides []Override, now time.Time) {
	if r.cache == nil || r.ttl <= 0 {
		return
	}
	ttl := r.ttl
	if next, ok := nextExpiry(overrides, now); ok {
		if until := next.Sub(now); until < ttl {
			ttl = until
		}
	}
	if ttl <= 0 {
		return
	}
	b, err := json.Marshal(set.Keys())
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(userID), b, ttl); err != nil {
		r.log.Warn("permission cache set failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}
