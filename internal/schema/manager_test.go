package schema

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewManager(sqlgw.New(db, nil), nil)
}

func TestEnsureCreatesTableAndIndexColumns(t *testing.T) {
	ctx := context.Background()
	mgr := openTestManager(t)

	indices := []Index{Single("owner.id", V32, false)}
	require.NoError(t, mgr.Ensure(ctx, "tasks", indices))

	cols, err := mgr.TableInfo(ctx, "tasks")
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, c := range cols {
		names[c.Name] = true
	}
	require.True(t, names["id"])
	require.True(t, names["json"])
	require.True(t, names["date"])
	require.True(t, names["owner__id"])
}

func TestEnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mgr := openTestManager(t)

	indices := []Index{Single("owner.id", V32, true)}
	require.NoError(t, mgr.Ensure(ctx, "tasks", indices))
	require.NoError(t, mgr.Ensure(ctx, "tasks", indices))

	cols, err := mgr.TableInfo(ctx, "tasks")
	require.NoError(t, err)
	require.Len(t, cols, 4) // id, json, date, owner__id — no duplicates
}
