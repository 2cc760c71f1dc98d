package docwatch

import (
	"context"
	"time"

	"github.com/mesh-intelligence/docwatch/internal/cdc"
	"github.com/mesh-intelligence/docwatch/internal/eventbus"
	"github.com/mesh-intelligence/docwatch/internal/query"
	"github.com/mesh-intelligence/docwatch/internal/schema"
	"github.com/mesh-intelligence/docwatch/internal/store"
)

// Document is the opaque JSON-serializable record type documents are
// exchanged as.
type Document = store.Document

// Re-exported so callers of this package never need to import internal/query.
type (
	Cond         = query.Cond
	OrderedQuery = query.OrderedQuery
	Op           = query.Op
)

// EqCond builds an equality condition, the default when a query's value is
// a bare scalar rather than an `[op, value]` pair.
func EqCond(v any) Cond { return query.EqCond(v) }

const (
	Eq    = query.Eq
	Gt    = query.Gt
	Lt    = query.Lt
	Gte   = query.Gte
	Lte   = query.Lte
	Neq   = query.Neq
	In    = query.In
	NotIn = query.NotIn
	Like  = query.Like
)

// NewQuery builds an OrderedQuery from field/condition pairs, preserving
// argument order for clause emission.
func NewQuery(pairs ...any) *OrderedQuery { return query.NewOrdered(pairs...) }

// EventType is the CDC/trigger event kind: insert, update, write, or delete.
type EventType = cdc.EventType

const (
	Insert = cdc.Insert
	Update = cdc.Update
	Write  = cdc.Write
	Delete = cdc.Delete
)

// Subscription is the handle returned by Collection.Subscribe; call
// Unsubscribe to stop durable delivery and delete the subscription's cursor
// row.
type Subscription struct {
	unsubscribe func(context.Context) error
}

// Unsubscribe removes the subscription and deletes its durable cursor.
func (s *Subscription) Unsubscribe(ctx context.Context) error { return s.unsubscribe(ctx) }

// Collection is a named set of documents, backed by one SQL table, with
// optional durable (CDC) and light (in-process) event subscriptions.
type Collection struct {
	inner *store.Collection
	db    *Database
	name  string
}

// Name returns the collection's table name.
func (c *Collection) Name() string { return c.name }

// Save upserts doc, then publishes a light-bus event synchronously on the
// calling goroutine. Under SyncImmediate the write lands before Save
// returns; under SyncOnClose or SyncBatch it is queued on the database's
// Transaction Batcher instead and committed later, by Close or by the
// batch-size/interval thresholds in Options.
func (c *Collection) Save(ctx context.Context, doc Document) (Document, error) {
	evType := EventType(Insert)
	if _, existed := doc["id"]; existed {
		evType = Update
	}

	var saved Document
	var err error
	if c.db.opts.SyncStrategy == SyncImmediate {
		saved, err = c.inner.Save(ctx, doc)
	} else {
		saved, err = c.queueSave(ctx, doc)
	}
	if err != nil {
		return nil, err
	}

	c.db.bus.Publish(eventbus.Event{
		Collection: c.name, ID: idOf(saved), Type: eventbus.EventType(evType),
		Date: dateOf(saved), Data: saved,
	})
	return saved, nil
}

// queueSave assigns doc an id if it has none, queues the upsert on the
// database's default batcher, and flushes immediately once the queue
// reaches Options.BatchSize. It returns the document as Save would, with
// "id" and "saved" spliced in, even though the write has not committed yet.
func (c *Collection) queueSave(ctx context.Context, doc Document) (Document, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = store.NewID()
	}
	queued := withID(doc, id)
	c.db.defaultBatch.Add(c.name, queued)

	if c.db.opts.SyncStrategy == SyncBatch && c.db.opts.BatchSize > 0 &&
		c.db.defaultBatch.Pending() >= c.db.opts.BatchSize {
		if _, err := c.db.defaultBatch.Execute(ctx); err != nil {
			return nil, err
		}
	}

	saved := withID(doc, id)
	saved["saved"] = time.Now().UnixMilli()
	return saved, nil
}

// withID returns a copy of doc with "id" forced to id.
func withID(doc Document, id string) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}

// Get retrieves a document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, bool, error) {
	return c.inner.Get(ctx, id)
}

// All returns every document in the collection.
func (c *Collection) All(ctx context.Context) ([]Document, error) { return c.inner.All(ctx) }

// Find returns every document matching q.
func (c *Collection) Find(ctx context.Context, q *OrderedQuery) ([]Document, error) {
	return c.inner.Find(ctx, q)
}

// FindOne returns the first document matching q, cleaning up duplicates.
func (c *Collection) FindOne(ctx context.Context, q *OrderedQuery) (Document, bool, error) {
	return c.inner.FindOne(ctx, q)
}

// Delete removes the document with the given id and publishes a light-bus
// delete event.
func (c *Collection) Delete(ctx context.Context, id string) error {
	doc, ok, err := c.inner.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := c.inner.Delete(ctx, id); err != nil {
		return err
	}
	if ok {
		c.db.bus.Publish(eventbus.Event{
			Collection: c.name, ID: id, Type: eventbus.EventType(Delete),
			Date: dateOf(doc), Data: doc,
		})
	}
	return nil
}

// DeleteOne removes documents matching q, which must be equality-only.
func (c *Collection) DeleteOne(ctx context.Context, q *OrderedQuery) error {
	return c.inner.DeleteOne(ctx, q)
}

// Wipe deletes every document but keeps the table.
func (c *Collection) Wipe(ctx context.Context) error { return c.inner.Wipe(ctx) }

// Drop removes the table entirely.
func (c *Collection) Drop(ctx context.Context) error { return c.inner.Drop(ctx) }

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) { return c.inner.Count(ctx) }

// Describe returns the collection's column info.
func (c *Collection) Describe(ctx context.Context) ([]schema.ColumnInfo, error) {
	return c.inner.Describe(ctx)
}

// Update reads, patches, and saves a document, failing with
// store.ErrNotFound if id does not exist.
func (c *Collection) Update(ctx context.Context, id string, patch map[string]any) (Document, error) {
	doc, err := c.inner.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	c.db.bus.Publish(eventbus.Event{
		Collection: c.name, ID: id, Type: eventbus.EventType(Update), Date: dateOf(doc), Data: doc,
	})
	return doc, nil
}

// DateSaved returns the stored date column for id.
func (c *Collection) DateSaved(ctx context.Context, id string) (int64, bool, error) {
	return c.inner.DateSaved(ctx, id)
}

// Subscribe registers a durable CDC subscription named name: on is
// delivered at-least-once, with a cursor persisted in _cursors. The first
// time name is seen its cursor starts at now(), so a brand new subscription
// never replays history; registering again later under the same name (for
// example after a restart) resumes from wherever that cursor last landed
// instead of starting over. Pass an empty name for an ephemeral,
// non-resumable subscription.
func (c *Collection) Subscribe(ctx context.Context, name string, on EventType, callback Subscriber) (*Subscription, error) {
	unsub, err := c.db.cdc.Register(ctx, cdc.Trigger{Name: name, Collection: c.name, On: on, Callback: callback})
	if err != nil {
		return nil, err
	}
	return &Subscription{unsubscribe: unsub}, nil
}

// On registers a light, non-durable subscription: handler runs
// synchronously on the calling goroutine's Save/Delete, with no
// persistence, cursor, or replay. The returned function unsubscribes.
func (c *Collection) On(on EventType, handler eventbus.Handler) func() {
	return c.db.bus.OnCollection(c.name, eventbus.EventType(on), handler)
}

func idOf(doc Document) string {
	id, _ := doc["id"].(string)
	return id
}

func dateOf(doc Document) int64 {
	switch v := doc["saved"].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
