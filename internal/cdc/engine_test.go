package cdc

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

func openTestEngine(t *testing.T) (*Engine, *sqlgw.Gateway) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := sqlgw.New(db, nil)

	_, err = gw.Run(context.Background(),
		"CREATE TABLE tasks (id VARCHAR(32) PRIMARY KEY, json TEXT NOT NULL, date INTEGER NOT NULL)")
	require.NoError(t, err)

	installer := trigger.NewInstaller(gw, nil)
	return New(gw, installer, nil), gw
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) HandleEvent(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// waitPastRegistration sleeps until the wall clock has left the millisecond
// Register started the cursor at: an event stamped in that same millisecond
// is not after the cursor and is never delivered.
func waitPastRegistration() { time.Sleep(2 * time.Millisecond) }

func TestEngineDeliversWriteEventsForInsertAndUpdate(t *testing.T) {
	ctx := context.Background()
	engine, gw := openTestEngine(t)
	defer engine.Stop()

	rec := &recorder{}
	unsub, err := engine.Register(ctx, Trigger{Collection: "tasks", On: Write, Callback: rec})
	require.NoError(t, err)
	defer unsub(ctx)
	waitPastRegistration()

	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('1', '{\"a\":1}', 1000)")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)

	_, err = gw.Run(ctx, "UPDATE tasks SET json = '{\"a\":2}', date = 2000 WHERE id = '1'")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() >= 2 }, 2*time.Second, 10*time.Millisecond)
}

func TestEngineSubscriptionOnlyReceivesEventsAfterItsCursor(t *testing.T) {
	ctx := context.Background()
	engine, gw := openTestEngine(t)
	defer engine.Stop()

	require.NoError(t, engine.installer.EnsureInternalTables(ctx))
	require.NoError(t, engine.installer.Install(ctx, "tasks", Insert))

	_, err := gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('1', '{\"a\":1}', 1000)")
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := engine.Register(ctx, Trigger{Collection: "tasks", On: Insert, Callback: rec})
	require.NoError(t, err)
	defer unsub(ctx)
	waitPastRegistration()

	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('2', '{\"a\":2}', 2000)")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 1, rec.count(), "pre-existing row at registration time must not be redelivered")
}

func TestEngineDeliversEveryEventInATieWithoutCrossIDDedup(t *testing.T) {
	ctx := context.Background()
	engine, gw := openTestEngine(t)
	defer engine.Stop()

	require.NoError(t, engine.installer.EnsureInternalTables(ctx))
	require.NoError(t, engine.installer.Install(ctx, "tasks", Insert))

	for _, id := range []string{"a", "b", "c"} {
		_, err := gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES (?, ?, 1000)", id, `{"id":"`+id+`"}`)
		require.NoError(t, err)
	}

	tieDate := time.Now().UnixMilli() + 5000
	_, err := gw.Run(ctx, "UPDATE "+trigger.EventsTable+" SET date = ? WHERE col = 'tasks'", tieDate)
	require.NoError(t, err)

	rec := &recorder{}
	unsub, err := engine.Register(ctx, Trigger{Collection: "tasks", On: Insert, Callback: rec})
	require.NoError(t, err)
	defer unsub(ctx)

	require.Eventually(t, func() bool { return rec.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 3, rec.count(), "three different-id events sharing one date must all be delivered")
}

// flakyRecorder fails the first HandleEvent call and records every call
// that succeeds, counting every attempt regardless of outcome.
type flakyRecorder struct {
	mu       sync.Mutex
	attempts int
	events   []Event
}

func (f *flakyRecorder) HandleEvent(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.attempts == 1 {
		return errors.New("transient failure")
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *flakyRecorder) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts, len(f.events)
}

func TestEngineRedeliversAfterCallbackErrorThenAdvancesCursorOnce(t *testing.T) {
	orig := callbackErrorBackoff
	callbackErrorBackoff = 20 * time.Millisecond
	t.Cleanup(func() { callbackErrorBackoff = orig })

	ctx := context.Background()
	engine, gw := openTestEngine(t)
	defer engine.Stop()

	rec := &flakyRecorder{}
	unsub, err := engine.Register(ctx, Trigger{Name: "flaky", Collection: "tasks", On: Insert, Callback: rec})
	require.NoError(t, err)
	defer unsub(ctx)
	waitPastRegistration()

	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('1', '{\"a\":1}', 1000)")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, delivered := rec.snapshot()
		return delivered == 1
	}, 2*time.Second, 10*time.Millisecond, "the event must be redelivered after the first callback error")

	attempts, _ := rec.snapshot()
	require.Equal(t, 2, attempts, "callback should have been tried once on failure and once on success")

	time.Sleep(100 * time.Millisecond)
	attemptsAfterSettle, deliveredAfterSettle := rec.snapshot()
	require.Equal(t, 2, attemptsAfterSettle, "cursor must advance past the event on success so it is not retried again")
	require.Equal(t, 1, deliveredAfterSettle)
}

func TestEngineResumesFromPersistedCursorAfterRestart(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	gw := sqlgw.New(db, nil)
	_, err = gw.Run(ctx,
		"CREATE TABLE tasks (id VARCHAR(32) PRIMARY KEY, json TEXT NOT NULL, date INTEGER NOT NULL)")
	require.NoError(t, err)
	installer := trigger.NewInstaller(gw, nil)

	engine1 := New(gw, installer, nil)
	rec1 := &recorder{}
	_, err = engine1.Register(ctx, Trigger{Name: "resumable", Collection: "tasks", On: Insert, Callback: rec1})
	require.NoError(t, err)
	waitPastRegistration()

	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('1', '{\"id\":\"1\"}', 1000)")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return rec1.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	// Simulate a crash/restart: the runner stops without Unsubscribe, so the
	// _cursors row for "resumable" survives rather than being deleted.
	engine1.Stop()
	time.Sleep(20 * time.Millisecond)

	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('2', '{\"id\":\"2\"}', 2000)")
	require.NoError(t, err)
	_, err = gw.Run(ctx, "INSERT INTO tasks (id, json, date) VALUES ('3', '{\"id\":\"3\"}', 3000)")
	require.NoError(t, err)

	engine2 := New(gw, installer, nil)
	defer engine2.Stop()
	rec2 := &recorder{}
	unsub2, err := engine2.Register(ctx, Trigger{Name: "resumable", Collection: "tasks", On: Insert, Callback: rec2})
	require.NoError(t, err)
	defer unsub2(ctx)

	require.Eventually(t, func() bool { return rec2.count() == 2 }, 2*time.Second, 10*time.Millisecond,
		"only the N-M events written after the restart should be delivered to the resumed subscription")
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, 2, rec2.count())

	ids := map[string]bool{}
	for _, ev := range rec2.events {
		ids[ev.ID()] = true
	}
	require.False(t, ids["1"], "the event already delivered before the restart must not be redelivered")
	require.True(t, ids["2"])
	require.True(t, ids["3"])
}

func TestEngineUnsubscribeDeletesCursorAndStopsEmptyRunner(t *testing.T) {
	ctx := context.Background()
	engine, gw := openTestEngine(t)
	defer engine.Stop()

	rec := &recorder{}
	unsub, err := engine.Register(ctx, Trigger{Collection: "tasks", On: Insert, Callback: rec})
	require.NoError(t, err)

	require.NoError(t, unsub(ctx))

	var count int
	row := gw.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM _cursors")
	require.NoError(t, row.Scan(&count))
	require.Equal(t, 0, count)
}
