package sqlgw

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openTestGateway(t *testing.T) *Gateway {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := New(db, nil)
	_, err = gw.Run(context.Background(), "CREATE TABLE widgets (id TEXT PRIMARY KEY, name TEXT)")
	require.NoError(t, err)
	return gw
}

func scanName(s Scanner) (string, error) {
	var name string
	err := s.Scan(&name)
	return name, err
}

func TestRunAndQuery(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	_, err := gw.Run(ctx, "INSERT INTO widgets (id, name) VALUES (?, ?)", "1", "sprocket")
	require.NoError(t, err)

	names, err := Query(ctx, gw, scanName, "SELECT name FROM widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"sprocket"}, names)
}

func TestGetReturnsCardinalityError(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	_, err := gw.Run(ctx, "INSERT INTO widgets (id, name) VALUES ('1','a'), ('2','b')")
	require.NoError(t, err)

	_, _, err = Get(ctx, gw, scanName, "SELECT name FROM widgets")
	assert.ErrorIs(t, err, ErrCardinality)
}

func TestGetNoRowsReturnsFalseNotError(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	_, ok, err := Get(ctx, gw, scanName, "SELECT name FROM widgets WHERE id = ?", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFindOneNeverErrorsOnCardinality(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)
	_, err := gw.Run(ctx, "INSERT INTO widgets (id, name) VALUES ('1','a'), ('2','b')")
	require.NoError(t, err)

	name, ok, err := FindOne(ctx, gw, scanName, "SELECT name FROM widgets ORDER BY id")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", name)
}

func TestTrySwallowsDuplicateColumn(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	ok, err := gw.Try(ctx, "ALTER TABLE widgets ADD COLUMN extra TEXT")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = gw.Try(ctx, "ALTER TABLE widgets ADD COLUMN extra TEXT")
	require.NoError(t, err)
	assert.False(t, ok, "second ADD COLUMN of the same name is swallowed")
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	err := gw.Transaction(ctx, func(tx *Tx) error {
		if _, err := tx.Exec(ctx, "INSERT INTO widgets (id, name) VALUES ('1','a')"); err != nil {
			return err
		}
		return assert.AnError
	})
	require.Error(t, err)

	names, err := Query(ctx, gw, scanName, "SELECT name FROM widgets")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestTransactionCommitsOnSuccess(t *testing.T) {
	ctx := context.Background()
	gw := openTestGateway(t)

	err := gw.Transaction(ctx, func(tx *Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO widgets (id, name) VALUES ('1','a')")
		return err
	})
	require.NoError(t, err)

	names, err := Query(ctx, gw, scanName, "SELECT name FROM widgets")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, names)
}
