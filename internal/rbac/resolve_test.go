package rbac

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	v := t0.Add(d)
	return &v
}

func TestResolve_RoleDefaults(t *testing.T) {
	set := Resolve([]string{"a", "b"}, nil, t0)
	assert.Equal(t, []string{"a", "b"}, set.Keys())
}

func TestResolve_NoRoleIsEmpty(t *testing.T) {
	assert.Empty(t, Resolve(nil, nil, t0))
}

func TestResolve_ForcedRevokeWins(t *testing.T) {
	overrides := []Override{
		{ID: 1, Key: "a", IsGranted: false, IsForced: true, GrantedAt: t0.Add(-time.Hour), IsActive: true},
		{ID: 2, Key: "a", IsGranted: true, IsForced: true, GrantedAt: t0, IsActive: true},
		{ID: 3, Key: "a", IsGranted: true, GrantedAt: t0, IsActive: true},
	}
	set := Resolve([]string{"a"}, overrides, t0)
	assert.False(t, set.Has("a"))
}

func TestResolve_ForcedGrantBeatsNonForcedRevoke(t *testing.T) {
	overrides := []Override{
		{ID: 1, Key: "x", IsGranted: true, IsForced: true, GrantedAt: t0.Add(-time.Hour), IsActive: true},
		{ID: 2, Key: "x", IsGranted: false, GrantedAt: t0, IsActive: true},
	}
	assert.True(t, Resolve(nil, overrides, t0).Has("x"))
}

func TestResolve_NonForcedReplacesRoleDefault(t *testing.T) {
	overrides := []Override{
		{ID: 1, Key: "a", IsGranted: false, GrantedAt: t0, IsActive: true},
		{ID: 2, Key: "z", IsGranted: true, GrantedAt: t0, IsActive: true},
	}
	set := Resolve([]string{"a", "b"}, overrides, t0)
	assert.Equal(t, []string{"b", "z"}, set.Keys())
}

func TestResolve_MostRecentNonForcedWins(t *testing.T) {
	overrides := []Override{
		{ID: 5, Key: "a", IsGranted: true, GrantedAt: t0.Add(-time.Minute), IsActive: true},
		{ID: 4, Key: "a", IsGranted: false, GrantedAt: t0, IsActive: true},
	}
	assert.False(t, Resolve(nil, overrides, t0).Has("a"))

	tied := []Override{
		{ID: 7, Key: "a", IsGranted: true, GrantedAt: t0, IsActive: true},
		{ID: 6, Key: "a", IsGranted: false, GrantedAt: t0, IsActive: true},
	}
	assert.True(t, Resolve(nil, tied, t0).Has("a"))
}

func TestResolve_DropsExpiredAndInactive(t *testing.T) {
	overrides := []Override{
		{ID: 1, Key: "a", IsGranted: false, IsForced: true, GrantedAt: t0.Add(-2 * time.Hour), ExpiresAt: at(-time.Hour), IsActive: true},
		{ID: 2, Key: "b", IsGranted: false, IsForced: true, GrantedAt: t0, IsActive: false},
		{ID: 3, Key: "c", IsGranted: true, GrantedAt: t0, ExpiresAt: at(0), IsActive: true},
	}
	set := Resolve([]string{"a", "b"}, overrides, t0)
	assert.Equal(t, []string{"a", "b"}, set.Keys())
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	grants := []string{"a"}
	overrides := []Override{{ID: 1, Key: "a", IsGranted: false, GrantedAt: t0, IsActive: true}}
	Resolve(grants, overrides, t0)
	assert.Equal(t, []string{"a"}, grants)
	assert.True(t, overrides[0].IsActive)
}

func TestNextExpiry(t *testing.T) {
	overrides := []Override{
		{Key: "a", ExpiresAt: at(2 * time.Hour), IsActive: true},
		{Key: "b", ExpiresAt: at(time.Hour), IsActive: true},
		{Key: "c", ExpiresAt: at(-time.Hour), IsActive: true},
		{Key: "d", IsActive: true},
	}
	next, ok := nextExpiry(overrides, t0)
	assert.True(t, ok)
	assert.Equal(t, t0.Add(time.Hour), next)

	_, ok = nextExpiry(nil, t0)
	assert.False(t, ok)
}
