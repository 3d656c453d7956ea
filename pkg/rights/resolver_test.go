package rights

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	privs map[string]*Privileges
	err   error
	calls int
}

func (f *fakeStore) GetPrivileges(ctx context.Context, projectID int, user string) (*Privileges, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.privs[user], nil
}

func TestCanExport(t *testing.T) {
	tests := []struct {
		name    string
		priv    *Privileges
		allowed bool
	}{
		{"no record", nil, false},
		{"level none with reports", &Privileges{ExportLevel: LevelNone, ReportsAccess: true}, false},
		{"full without reports flag", &Privileges{ExportLevel: LevelFull, ReportsAccess: false}, false},
		{"full with reports flag", &Privileges{ExportLevel: LevelFull, ReportsAccess: true}, true},
		{"label-only with reports flag", &Privileges{ExportLevel: LevelLabelOnly, ReportsAccess: true}, true},
		{"de-identified with reports flag", &Privileges{ExportLevel: LevelDeidentified, ReportsAccess: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{privs: map[string]*Privileges{}}
			if tt.priv != nil {
				store.privs["alice"] = tt.priv
			}
			resolver := NewResolver(store)

			allowed, err := resolver.CanExport(context.Background(), 100, "alice")
			require.NoError(t, err)
			assert.Equal(t, tt.allowed, allowed)
		})
	}
}

func TestCanExportStoreError(t *testing.T) {
	resolver := NewResolver(&fakeStore{err: errors.New("db down")})
	_, err := resolver.CanExport(context.Background(), 100, "alice")
	assert.Error(t, err)
}

func TestCanExportReadsFreshEveryCall(t *testing.T) {
	store := &fakeStore{privs: map[string]*Privileges{
		"alice": {ExportLevel: LevelFull, ReportsAccess: true},
	}}
	resolver := NewResolver(store)
	ctx := context.Background()

	allowed, err := resolver.CanExport(ctx, 100, "alice")
	require.NoError(t, err)
	assert.True(t, allowed)

	// Rights change between calls; the next judgment must see it.
	store.privs["alice"] = &Privileges{ExportLevel: LevelNone}

	allowed, err = resolver.CanExport(ctx, 100, "alice")
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 2, store.calls)
}

func TestParseExportLevel(t *testing.T) {
	assert.Equal(t, LevelNone, ParseExportLevel(0))
	assert.Equal(t, LevelFull, ParseExportLevel(1))
	assert.Equal(t, LevelDeidentified, ParseExportLevel(2))
	assert.Equal(t, LevelLabelOnly, ParseExportLevel(3))
	assert.Equal(t, LevelNone, ParseExportLevel(99))
	assert.Equal(t, LevelNone, ParseExportLevel(-1))
}

func TestTierMonotonicity(t *testing.T) {
	full := TierForLevel(LevelFull)
	deid := TierForLevel(LevelDeidentified)
	label := TierForLevel(LevelLabelOnly)

	assert.False(t, full.Suppresses())
	assert.True(t, deid.Suppresses())
	assert.True(t, label.Suppresses())

	// Each step down in capability only adds suppression.
	implies := func(lower, higher bool) bool { return !higher || lower }
	assert.True(t, implies(label.SuppressIdentifiers, deid.SuppressIdentifiers))
	assert.True(t, implies(label.SuppressDates, deid.SuppressDates))
	assert.True(t, implies(label.HashRecordID, deid.HashRecordID))
	assert.True(t, label.SuppressFreeText)
	assert.True(t, label.SuppressNotes)
	assert.False(t, deid.SuppressFreeText)
}

func TestTierForMissingRecordIsMostSuppressive(t *testing.T) {
	resolver := NewResolver(&fakeStore{privs: map[string]*Privileges{}})
	tier, err := resolver.Tier(context.Background(), 100, "ghost")
	require.NoError(t, err)
	assert.Equal(t, TierForLevel(LevelNone), tier)
	assert.True(t, tier.Suppresses())
}
