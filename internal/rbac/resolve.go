// Package rbac resolves a user's effective permissions from role defaults and
// per-user overrides.
package rbac

import (
	"sort"
	"time"
)

// Set is an effective permission set keyed by permission key.
type Set map[string]struct{}

func (s Set) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the keys in lexical order.
func (s Set) Keys() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Override is a per-user grant or revoke of one permission.
type Override struct {
	ID        int64
	Key       string
	IsGranted bool
	IsForced  bool
	GrantedAt time.Time
	ExpiresAt *time.Time
	IsActive  bool
}

func (o Override) live(now time.Time) bool {
	if !o.IsActive {
		return false
	}
	return o.ExpiresAt == nil || o.ExpiresAt.After(now)
}

// Resolve computes the effective set. roleGrants holds the keys the role grants.
// For each key with live overrides: a forced revoke wins, then a forced grant,
// then the most recently granted non-forced override (higher id on a tie).
func Resolve(roleGrants []string, overrides []Override, now time.Time) Set {
	set := make(Set, len(roleGrants))
	for _, k := range roleGrants {
		set[k] = struct{}{}
	}

	type decision struct {
		forcedRevoke bool
		forcedGrant  bool
		latest       *Override
	}
	byKey := map[string]*decision{}
	for i := range overrides {
		o := &overrides[i]
		if !o.live(now) {
			continue
		}
		d := byKey[o.Key]
		if d == nil {
			d = &decision{}
			byKey[o.Key] = d
		}
		switch {
		case o.IsForced && !o.IsGranted:
			d.forcedRevoke = true
		case o.IsForced:
			d.forcedGrant = true
		case d.latest == nil || newer(o, d.latest):
			d.latest = o
		}
	}

	for key, d := range byKey {
		granted := set.Has(key)
		switch {
		case d.forcedRevoke:
			granted = false
		case d.forcedGrant:
			granted = true
		case d.latest != nil:
			granted = d.latest.IsGranted
		}
		if granted {
			set[key] = struct{}{}
		} else {
			delete(set, key)
		}
	}
	return set
}

func newer(a, b *Override) bool {
	if a.GrantedAt.Equal(b.GrantedAt) {
		return a.ID > b.ID
	}
	return a.GrantedAt.After(b.GrantedAt)
}

// nextExpiry returns the earliest expiry among live overrides, if any.
func nextExpiry(overrides []Override, now time.Time) (time.Time, bool) {
	var next time.Time
	found := false
	for _, o := range overrides {
		if !o.live(now) || o.ExpiresAt == nil {
			continue
		}
		if !found || o.ExpiresAt.Before(next) {
			next = *o.ExpiresAt
			found = true
		}
	}
	return next, found
}
