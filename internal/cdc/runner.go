package cdc

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

// backoff implements the idle-polling schedule: 250ms for the first 10
// empty polls, 1000ms through 60, 2000ms thereafter.
func backoff(emptyCount int) time.Duration {
	switch {
	case emptyCount <= 10:
		return 250 * time.Millisecond
	case emptyCount <= 60:
		return time.Second
	default:
		return 2 * time.Second
	}
}

// callbackErrorBackoff is how long the loop waits after a SqlError or
// CallbackError before retrying. Var, not const, so tests can shrink it.
var callbackErrorBackoff = 10 * time.Second

type registration struct {
	id       string
	on       EventType
	callback Subscriber
	cursor   int64
}

// Runner is the cooperative task polling _events for one collection and
// dispatching to every registration attached to it.
type Runner struct {
	collection string
	gw         *sqlgw.Gateway
	log        *logrus.Entry
	metrics    *Metrics

	mu   sync.Mutex
	subs map[string]*registration

	stopCh chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newRunner(collection string, gw *sqlgw.Gateway, log *logrus.Entry, metrics *Metrics) *Runner {
	return &Runner{
		collection: collection,
		gw:         gw,
		log:        log.WithField("collection", collection),
		metrics:    metrics,
		subs:       make(map[string]*registration),
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// add attaches a registration and starts the loop if this is the first one.
func (r *Runner) add(reg *registration) {
	r.mu.Lock()
	r.subs[reg.id] = reg
	r.mu.Unlock()
	r.once.Do(func() { go r.loop(context.Background()) })
}

// remove detaches a registration. It reports whether the runner is now
// empty (the caller should then stop it).
func (r *Runner) remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return len(r.subs) == 0
}

// stop signals the loop to exit at its next iteration boundary and waits
// for it to do so.
func (r *Runner) stop() {
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.done
}

func (r *Runner) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

func (r *Runner) snapshot() []*registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*registration, 0, len(r.subs))
	for _, reg := range r.subs {
		out = append(out, reg)
	}
	return out
}

func (r *Runner) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs) == 0
}

// sleep waits for d or until the runner is stopped, whichever comes first.
func (r *Runner) sleep(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-r.stopCh:
	}
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.done)
	emptyCount := 0

	for !r.stopped() && !r.empty() {
		subs := r.snapshot()
		earliest := subs[0].cursor
		for _, s := range subs[1:] {
			if s.cursor < earliest {
				earliest = s.cursor
			}
		}

		if r.metrics != nil {
			r.metrics.PollIterations.WithLabelValues(r.collection).Inc()
		}

		date, ok, err := peekEarliest(ctx, r.gw, r.collection, earliest)
		if err != nil {
			r.log.WithError(err).Error("cdc: peek failed")
			r.sleep(callbackErrorBackoff)
			continue
		}
		if !ok {
			r.log.Debug("cdc: poll empty")
			r.sleep(backoff(emptyCount))
			emptyCount++
			continue
		}

		raw, err := batchAt(ctx, r.gw, r.collection, date)
		if err != nil {
			r.log.WithError(err).Error("cdc: batch fetch failed")
			r.sleep(callbackErrorBackoff)
			continue
		}
		r.log.WithField("size", len(raw)).Debug("cdc: poll non-empty")

		baseCursors := make(map[string]int64, len(subs))
		for _, sub := range subs {
			baseCursors[sub.id] = sub.cursor
		}

		// Every row in raw shares the exact same date (batchAt's WHERE
		// clause). A sub's cursor only moves past that date once it has
		// been attempted against every deliverable event at it without its
		// callback failing; a callback failure anywhere in the tie holds the
		// whole group back for that sub so it redelivers in full on the
		// next poll. An event that fails to inflate is logged and skipped:
		// it holds no cursor back, though the loop still backs off.
		failed := false
		subFailed := make(map[string]bool, len(subs))
		for _, rawEvent := range raw {
			ev, err := inflate(rawEvent)
			if err != nil {
				r.log.WithError(err).Error("cdc: inflate failed")
				failed = true
				continue
			}
			for _, sub := range subs {
				if subFailed[sub.id] {
					continue
				}
				if !deliverable(sub.on, rawEvent.Type, baseCursors[sub.id], rawEvent.Date) {
					continue
				}
				if err := sub.callback.HandleEvent(ctx, ev); err != nil {
					r.log.WithError(err).WithField("subscription", sub.id).Error("cdc: callback failed")
					failed = true
					subFailed[sub.id] = true
					continue
				}
				if r.metrics != nil {
					r.metrics.EventsDispatched.WithLabelValues(r.collection, string(rawEvent.Type)).Inc()
				}
			}
		}

		for _, sub := range subs {
			if subFailed[sub.id] || sub.cursor >= date {
				continue
			}
			sub.cursor = date
			if err := updateCursor(ctx, r.gw, sub.id, date); err != nil {
				r.log.WithError(err).WithField("subscription", sub.id).Error("cdc: cursor update failed")
				failed = true
				continue
			}
			if r.metrics != nil {
				r.metrics.CursorLag.WithLabelValues(sub.id).Set(lagSeconds(date))
			}
		}

		if failed {
			r.sleep(callbackErrorBackoff)
			continue
		}
		emptyCount = 0
	}
}

// deliverable implements the dispatch predicate: the event is newer than
// the subscription's cursor, and either the subscription's "on"
// matches the event's type exactly, or the subscription is "write" and the
// event is one of {insert, update, write}.
func deliverable(subOn, eventType EventType, cursor, date int64) bool {
	if cursor >= date {
		return false
	}
	if subOn == eventType {
		return true
	}
	if subOn == Write && asWriteEligible(eventType) {
		return true
	}
	return false
}

func lagSeconds(eventDateMillis int64) float64 {
	nowMillis := time.Now().UnixMilli()
	lag := nowMillis - eventDateMillis
	if lag < 0 {
		lag = 0
	}
	return float64(lag) / 1000
}
