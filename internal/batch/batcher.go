// Package batch implements the Transaction Batcher: queue deferred writes,
// then commit them all in one SQL transaction. Writes accumulate and flush
// on a timer or at a size threshold, with the policy controlled by
// Options.SyncStrategy (immediate/on_close/batch).
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

// CollectionWriter is the subset of internal/store.Collection the batcher
// needs: computing the upsert statement for a document without executing
// it. Defined here (rather than importing internal/store) to keep the
// dependency one-directional.
type CollectionWriter interface {
	PrepareUpsert(doc map[string]any) (id string, stmt string, args []any, err error)
}

// Resolver looks up a CollectionWriter by name. *store.Store satisfies this
// through a thin adapter in pkg/docwatch.
type Resolver interface {
	Collection(name string) (CollectionWriter, error)
}

type queuedWrite struct {
	collection string
	doc        map[string]any
}

// Batcher queues writes across one or more collections and commits them
// together.
type Batcher struct {
	gw       *sqlgw.Gateway
	resolver Resolver
	log      *logrus.Entry

	mu    sync.Mutex
	queue []queuedWrite
}

// New constructs a Batcher over gw, resolving collection names via resolver.
func New(gw *sqlgw.Gateway, resolver Resolver, log *logrus.Entry) *Batcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Batcher{gw: gw, resolver: resolver, log: log.WithField("component", "batch")}
}

// Add queues a deferred upsert of doc into collection.
func (b *Batcher) Add(collection string, doc map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue = append(b.queue, queuedWrite{collection: collection, doc: doc})
}

// Pending returns the number of writes currently queued.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Execute opens one SQL transaction, issues every queued write, and clears
// the queue on commit. Failure mid-batch aborts the transaction and leaves
// the queue intact for the caller to inspect.
func (b *Batcher) Execute(ctx context.Context) (int, error) {
	b.mu.Lock()
	pending := make([]queuedWrite, len(b.queue))
	copy(pending, b.queue)
	b.mu.Unlock()

	if len(pending) == 0 {
		return 0, nil
	}

	err := b.gw.Transaction(ctx, func(tx *sqlgw.Tx) error {
		for _, w := range pending {
			writer, err := b.resolver.Collection(w.collection)
			if err != nil {
				return fmt.Errorf("batch: resolving collection %s: %w", w.collection, err)
			}
			_, stmt, args, err := writer.PrepareUpsert(w.doc)
			if err != nil {
				return fmt.Errorf("batch: preparing write to %s: %w", w.collection, err)
			}
			if _, err := tx.Exec(ctx, stmt, args...); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		b.log.WithError(err).Warn("batch: transaction failed, queue left intact")
		return 0, err
	}

	b.mu.Lock()
	b.queue = b.queue[len(pending):]
	b.mu.Unlock()

	return len(pending), nil
}

// Item is one element a batched iteration produces, paired with the
// collection it belongs in.
type Item struct {
	Collection string
	Doc        map[string]any
}

// ExecuteBatch repeatedly invokes fn for each element of items (which may
// call Add any number of times, though the common case is one Add per
// item), flushing whenever the queue reaches batchSize, with a final flush
// after iteration. It returns the total number of items committed.
func (b *Batcher) ExecuteBatch(ctx context.Context, items []Item, fn func(ctx context.Context, batcher *Batcher, item Item) error, batchSize int) (int, error) {
	total := 0
	for _, item := range items {
		if err := fn(ctx, b, item); err != nil {
			return total, err
		}
		if b.Pending() >= batchSize {
			n, err := b.Execute(ctx)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	n, err := b.Execute(ctx)
	if err != nil {
		return total, err
	}
	total += n
	return total, nil
}

// ExecuteBatchAsync is the streaming variant of ExecuteBatch: items arrive
// over a channel instead of a slice, so the caller can batch an unbounded
// or slow-producing source without materializing it first.
func (b *Batcher) ExecuteBatchAsync(ctx context.Context, items <-chan Item, fn func(ctx context.Context, batcher *Batcher, item Item) error, batchSize int) (int, error) {
	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		case item, ok := <-items:
			if !ok {
				n, err := b.Execute(ctx)
				if err != nil {
					return total, err
				}
				return total + n, nil
			}
			if err := fn(ctx, b, item); err != nil {
				return total, err
			}
			if b.Pending() >= batchSize {
				n, err := b.Execute(ctx)
				if err != nil {
					return total, err
				}
				total += n
			}
		}
	}
}
