package cdc

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

// Engine is the CDC Engine: a map from collection name to Runner, backed
// by one Gateway and the trigger Installer that guarantees the triggers
// each runner depends on exist before it starts polling.
type Engine struct {
	gw        *sqlgw.Gateway
	installer *trigger.Installer
	log       *logrus.Entry
	metrics   *Metrics
	registry  *prometheus.Registry

	mu      sync.Mutex
	runners map[string]*Runner
}

// New constructs a CDC Engine with its own Prometheus registry.
func New(gw *sqlgw.Gateway, installer *trigger.Installer, log *logrus.Entry) *Engine {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	reg := prometheus.NewRegistry()
	return &Engine{
		gw:        gw,
		installer: installer,
		log:       log.WithField("component", "cdc"),
		metrics:   NewMetrics(reg),
		registry:  reg,
		runners:   make(map[string]*Runner),
	}
}

// Registry exposes the engine's metrics for a host to scrape.
func (e *Engine) Registry() *prometheus.Registry { return e.registry }

// Register installs (trigger.Collection, trigger.On) if needed and attaches
// t.Callback to the collection's Runner under a durable subscription named
// t.Name. If a _cursors row already exists under that name — typically
// because the process restarted — its persisted date is reused and delivery
// resumes from there; otherwise the cursor starts at now(), so a first-time
// subscription replays no history. An empty t.Name mints a fresh random
// name with no resumability. The returned function unsubscribes: it
// removes the registration, deletes its cursor row, and stops the runner if
// it becomes empty.
func (e *Engine) Register(ctx context.Context, t Trigger) (func(context.Context) error, error) {
	if err := e.installer.EnsureInternalTables(ctx); err != nil {
		return nil, err
	}
	if err := e.installer.Install(ctx, t.Collection, t.On); err != nil {
		return nil, err
	}

	subID := t.Name
	if subID == "" {
		subID = strings.ReplaceAll(uuid.New().String(), "-", "")
	}

	cursor, resumed, err := lookupCursor(ctx, e.gw, subID)
	if err != nil {
		return nil, fmt.Errorf("cdc: reading cursor for %s: %w", subID, err)
	}
	if !resumed {
		cursor = time.Now().UnixMilli()
		if err := insertCursor(ctx, e.gw, subID, cursor); err != nil {
			return nil, fmt.Errorf("cdc: persisting cursor for %s: %w", subID, err)
		}
	}

	reg := &registration{id: subID, on: t.On, callback: t.Callback, cursor: cursor}

	runner := e.runnerFor(t.Collection)
	runner.add(reg)

	e.log.WithFields(logrus.Fields{
		"collection": t.Collection, "on": t.On, "subscription": subID, "resumed": resumed,
	}).Debug("cdc: subscription registered")

	return func(ctx context.Context) error {
		empty := runner.remove(subID)
		if err := deleteCursor(ctx, e.gw, subID); err != nil {
			return err
		}
		if empty {
			e.stopRunner(t.Collection)
		}
		return nil
	}, nil
}

func (e *Engine) runnerFor(collection string) *Runner {
	e.mu.Lock()
	defer e.mu.Unlock()
	if r, ok := e.runners[collection]; ok {
		return r
	}
	r := newRunner(collection, e.gw, e.log, e.metrics)
	e.runners[collection] = r
	return r
}

func (e *Engine) stopRunner(collection string) {
	e.mu.Lock()
	r, ok := e.runners[collection]
	if ok {
		delete(e.runners, collection)
	}
	e.mu.Unlock()
	if ok {
		r.stop()
	}
}

// Stop halts every runner and waits for each to exit its loop.
func (e *Engine) Stop() {
	e.mu.Lock()
	runners := make([]*Runner, 0, len(e.runners))
	for _, r := range e.runners {
		runners = append(runners, r)
	}
	e.runners = make(map[string]*Runner)
	e.mu.Unlock()

	for _, r := range runners {
		r.stop()
	}
}

// Reset stops all runners and clears in-memory state, including the record
// of installed triggers (dropping a table drops its triggers). Table teardown
// (dropping _events and _cursors) is the document store's responsibility;
// the engine re-initializes lazily on the next Register.
func (e *Engine) Reset() {
	e.Stop()
	e.mu.Lock()
	e.installer = trigger.NewInstaller(e.gw, e.log)
	e.mu.Unlock()
}
