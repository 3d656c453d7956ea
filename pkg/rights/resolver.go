package rights

import (
	"context"
	"fmt"
)

// PrivilegeStore fetches rights records from the platform. Implementations
// must be safe for concurrent reads.
type PrivilegeStore interface {
	// GetPrivileges returns the rights record for (projectID, user), or nil
	// when the user has no assignment in that project. Usernames are
	// compared case-insensitively by the store.
	GetPrivileges(ctx context.Context, projectID int, user string) (*Privileges, error)
}

// Resolver reduces rights records to allow/deny judgments. Every call reads
// the store afresh; rights may change between a listing call and the fetch
// that follows it, so results are never memoized.
type Resolver struct {
	store PrivilegeStore
}

// NewResolver creates a resolver over the given store.
func NewResolver(store PrivilegeStore) *Resolver {
	return &Resolver{store: store}
}

// CanExport reports whether the user may export reports in the project:
// export level above none AND the reports flag exactly true. A missing
// record means no rights, not an error.
func (r *Resolver) CanExport(ctx context.Context, projectID int, user string) (bool, error) {
	priv, err := r.store.GetPrivileges(ctx, projectID, user)
	if err != nil {
		return false, fmt.Errorf("failed to fetch privileges for %s in project %d: %w", user, projectID, err)
	}
	if priv == nil {
		return false, nil
	}
	return priv.ExportLevel > LevelNone && priv.ReportsAccess, nil
}

// Privileges returns the raw rights record, or nil when the user has none.
func (r *Resolver) Privileges(ctx context.Context, projectID int, user string) (*Privileges, error) {
	return r.store.GetPrivileges(ctx, projectID, user)
}

// Tier returns the de-identification profile for the user's export level in
// the project. A missing record yields the label-only profile, the most
// suppressive one, though callers are expected to have already denied such
// users via CanExport.
func (r *Resolver) Tier(ctx context.Context, projectID int, user string) (Tier, error) {
	priv, err := r.store.GetPrivileges(ctx, projectID, user)
	if err != nil {
		return Tier{}, fmt.Errorf("failed to fetch privileges for %s in project %d: %w", user, projectID, err)
	}
	level := LevelNone
	if priv != nil {
		level = priv.ExportLevel
	}
	return TierForLevel(level), nil
}

// TierForLevel maps an export level to its suppression profile. The mapping
// is a monotonic step function: each step down in capability adds
// suppression and removes none.
func TierForLevel(level ExportLevel) Tier {
	switch level {
	case LevelFull:
		return Tier{}
	case LevelDeidentified:
		return Tier{
			SuppressIdentifiers: true,
			SuppressDates:       true,
			HashRecordID:        true,
		}
	default:
		// LevelLabelOnly and LevelNone get the full profile.
		return Tier{
			SuppressIdentifiers: true,
			SuppressFreeText:    true,
			SuppressNotes:       true,
			SuppressDates:       true,
			HashRecordID:        true,
		}
	}
}
