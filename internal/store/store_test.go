package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *ContextStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "context.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertAndLoad(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.UpsertUnit(ctx, Unit{
		Category: CategoryV1Components,
		Name:     "modus-alert.tsx",
		Content:  "export class ModusAlert {}",
		Meta:     map[string]string{"source": "repo/modus-alert.tsx"},
	})
	require.NoError(t, err)

	units, err := s.LoadUnitsByCategory(ctx, CategoryV1Components)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "modus-alert.tsx", units[0].Name)
	assert.Equal(t, "export class ModusAlert {}", units[0].Content)
	assert.Equal(t, "repo/modus-alert.tsx", units[0].Meta["source"])
}

func TestUpsertReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	unit := Unit{Category: CategoryV2Docs, Name: "alert.md", Content: "old"}
	require.NoError(t, s.UpsertUnit(ctx, unit))
	unit.Content = "new"
	require.NoError(t, s.UpsertUnit(ctx, unit))

	units, err := s.LoadUnitsByCategory(ctx, CategoryV2Docs)
	require.NoError(t, err)
	require.Len(t, units, 1)
	assert.Equal(t, "new", units[0].Content)
}

func TestLoadUnitsOrderedByName(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zebra.tsx", "alpha.tsx", "mid.tsx"} {
		require.NoError(t, s.UpsertUnit(ctx, Unit{
			Category: CategoryV1Components, Name: name, Content: "x",
		}))
	}

	units, err := s.LoadUnitsByCategory(ctx, CategoryV1Components)
	require.NoError(t, err)
	require.Len(t, units, 3)
	assert.Equal(t, "alpha.tsx", units[0].Name)
	assert.Equal(t, "mid.tsx", units[1].Name)
	assert.Equal(t, "zebra.tsx", units[2].Name)
}

func TestGetUnitMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetUnit(context.Background(), CategoryV1Docs, "nope.md")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestCountByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUnit(ctx, Unit{Category: CategoryV1Components, Name: "a.tsx", Content: "x"}))
	require.NoError(t, s.UpsertUnit(ctx, Unit{Category: CategoryV1Components, Name: "b.tsx", Content: "x"}))
	require.NoError(t, s.UpsertUnit(ctx, Unit{Category: CategoryMigrationPlan, Name: "plan.md", Content: "x"}))

	counts, err := s.CountByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[CategoryV1Components])
	assert.Equal(t, 1, counts[CategoryMigrationPlan])
}

func TestDeleteCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertUnit(ctx, Unit{Category: CategoryConstraints, Name: "c.md", Content: "x"}))
	require.NoError(t, s.UpsertUnit(ctx, Unit{Category: CategoryV1Docs, Name: "d.md", Content: "x"}))

	n, err := s.DeleteCategory(ctx, CategoryConstraints)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	units, err := s.LoadUnitsByCategory(ctx, CategoryConstraints)
	require.NoError(t, err)
	assert.Empty(t, units)

	kept, err := s.LoadUnitsByCategory(ctx, CategoryV1Docs)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
