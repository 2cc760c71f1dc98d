package trigger

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

func openTestInstaller(t *testing.T) (*Installer, *sqlgw.Gateway) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := sqlgw.New(db, nil)

	_, err = gw.Run(context.Background(), "CREATE TABLE tasks (id VARCHAR(32) PRIMARY KEY, json TEXT NOT NULL, date INTEGER NOT NULL)")
	require.NoError(t, err)

	return NewInstaller(gw, nil), gw
}

func TestInstallWriteTriggersAppendEvents(t *testing.T) {
	ctx := context.Background()
	in, gw := openTestInstaller(t)

	require.NoError(t, in.EnsureInternalTables(ctx))
	require.NoError(t, in.Install(ctx, "tasks", Write))

	_, err := gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('1', '{}', 1000)")
	require.NoError(t, err)

	var count int
	row := gw.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM _events WHERE col = 'tasks' AND type = 'write'")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 1, count)

	_, err = gw.Run(ctx, "UPDATE tasks SET json = '{\"a\":1}' WHERE id = '1'")
	require.NoError(t, err)

	row = gw.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM _events WHERE col = 'tasks' AND type = 'write'")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 2, count)
}

func TestInstallIsIdempotent(t *testing.T) {
	ctx := context.Background()
	in, _ := openTestInstaller(t)

	require.NoError(t, in.EnsureInternalTables(ctx))
	require.NoError(t, in.Install(ctx, "tasks", Insert))
	require.NoError(t, in.Install(ctx, "tasks", Insert))
}
