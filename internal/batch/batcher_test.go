package batch

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docwatch/internal/schema"
	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/store"
)

// testResolver adapts *store.Store (ctx, name, indices) down to the
// batcher's simple Collection(name) lookup, mirroring pkg/docwatch's
// resolverAdapter.
type testResolver struct {
	ctx context.Context
	st  *store.Store
}

func (r testResolver) Collection(name string) (CollectionWriter, error) {
	return r.st.Collection(r.ctx, name, nil)
}

type failingResolver struct{}

func (failingResolver) Collection(name string) (CollectionWriter, error) {
	return nil, errors.New("no such collection: " + name)
}

func openTestBatcher(t *testing.T) (*Batcher, *sqlgw.Gateway, *store.Store) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := sqlgw.New(db, nil)
	st := store.New(gw, schema.NewManager(gw, nil), nil)
	ctx := context.Background()
	b := New(gw, testResolver{ctx: ctx, st: st}, nil)
	return b, gw, st
}

func TestExecuteCommitsQueuedWritesInOneTransaction(t *testing.T) {
	ctx := context.Background()
	b, _, st := openTestBatcher(t)

	_, err := st.Collection(ctx, "tasks", nil)
	require.NoError(t, err)

	b.Add("tasks", map[string]any{"id": "1", "title": "a"})
	b.Add("tasks", map[string]any{"id": "2", "title": "b"})
	require.Equal(t, 2, b.Pending())

	n, err := b.Execute(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, 0, b.Pending())

	col, err := st.Collection(ctx, "tasks", nil)
	require.NoError(t, err)
	count, err := col.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
}

func TestExecuteLeavesQueueIntactOnFailure(t *testing.T) {
	ctx := context.Background()
	gw := sqlgwOpen(t)
	b := New(gw, failingResolver{}, nil)

	b.Add("tasks", map[string]any{"id": "1"})
	_, err := b.Execute(ctx)
	require.Error(t, err)
	require.Equal(t, 1, b.Pending())
}

func sqlgwOpen(t *testing.T) *sqlgw.Gateway {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlgw.New(db, nil)
}

func TestExecuteBatchFlushesAtSizeAndAtEnd(t *testing.T) {
	ctx := context.Background()
	b, _, st := openTestBatcher(t)
	_, err := st.Collection(ctx, "tasks", nil)
	require.NoError(t, err)

	items := []Item{
		{Collection: "tasks", Doc: map[string]any{"id": "1"}},
		{Collection: "tasks", Doc: map[string]any{"id": "2"}},
		{Collection: "tasks", Doc: map[string]any{"id": "3"}},
	}
	n, err := b.ExecuteBatch(ctx, items, func(ctx context.Context, bt *Batcher, item Item) error {
		bt.Add(item.Collection, item.Doc)
		return nil
	}, 2)
	require.NoError(t, err)
	require.Equal(t, 3, n)

	col, err := st.Collection(ctx, "tasks", nil)
	require.NoError(t, err)
	count, err := col.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}

func TestExecuteBatchAsyncDrainsChannelUntilClosed(t *testing.T) {
	ctx := context.Background()
	b, _, st := openTestBatcher(t)
	_, err := st.Collection(ctx, "tasks", nil)
	require.NoError(t, err)

	ch := make(chan Item, 4)
	ch <- Item{Collection: "tasks", Doc: map[string]any{"id": "1"}}
	ch <- Item{Collection: "tasks", Doc: map[string]any{"id": "2"}}
	close(ch)

	n, err := b.ExecuteBatchAsync(ctx, ch, func(ctx context.Context, bt *Batcher, item Item) error {
		bt.Add(item.Collection, item.Doc)
		return nil
	}, 10)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
