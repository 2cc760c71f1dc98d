// Package docwatch is the public API of the embedded document store: open
// a named database, declare collections and their indices, and read/write
// documents while optionally subscribing to durable or light change
// events.
//
// Multiple named databases may be open at once, each memoized by name for
// the lifetime of the process.
package docwatch

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/docwatch/internal/batch"
	"github.com/mesh-intelligence/docwatch/internal/cdc"
	"github.com/mesh-intelligence/docwatch/internal/eventbus"
	"github.com/mesh-intelligence/docwatch/internal/schema"
	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/store"
	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

// Database is one opened, named document store: the SQL Gateway, Index
// Schema Manager, Trigger Installer, Document Store, CDC Engine, and Light
// Event Bus wired together over one *sql.DB.
type Database struct {
	name         string
	opts         Options
	log          *logrus.Entry
	sqlDB        *sql.DB
	gw           *sqlgw.Gateway
	schemaMgr    *schema.Manager
	installer    *trigger.Installer
	store        *store.Store
	cdc          *cdc.Engine
	bus          *eventbus.Bus
	defaultBatch *batch.Batcher

	batchStop chan struct{}
	batchDone chan struct{}
}

func openNew(ctx context.Context, name string, opts Options) (*Database, error) {
	dsn, err := resolveDSN(name, opts.DataDir)
	if err != nil {
		return nil, fmt.Errorf("docwatch: resolving data path for %q: %w", name, err)
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("docwatch: opening %q: %w", name, err)
	}

	log := logrus.WithField("database", name)
	gw := sqlgw.New(sqlDB, log)
	schemaMgr := schema.NewManager(gw, log)
	installer := trigger.NewInstaller(gw, log)
	st := store.New(gw, schemaMgr, log)
	engine := cdc.New(gw, installer, log)
	bus := eventbus.New(log)

	if err := installer.EnsureInternalTables(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	db := &Database{
		name:      name,
		opts:      opts,
		log:       log,
		sqlDB:     sqlDB,
		gw:        gw,
		schemaMgr: schemaMgr,
		installer: installer,
		store:     st,
		cdc:       engine,
		bus:       bus,
	}
	db.defaultBatch = batch.New(gw, resolverAdapter{db: db, ctx: ctx}, log)

	if opts.SyncStrategy == SyncBatch && opts.BatchInterval > 0 {
		db.batchStop = make(chan struct{})
		db.batchDone = make(chan struct{})
		go db.runBatchInterval(opts.BatchInterval)
	}

	return db, nil
}

// runBatchInterval flushes the default batcher every interval until Close
// signals batchStop. It is the timer half of SyncBatch; the size half is
// checked inline by Collection.queueSave.
func (db *Database) runBatchInterval(interval time.Duration) {
	defer close(db.batchDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-db.batchStop:
			return
		case <-ticker.C:
			if _, err := db.defaultBatch.Execute(context.Background()); err != nil {
				db.log.WithError(err).Warn("docwatch: interval flush failed")
			}
		}
	}
}

// resolveDSN turns a database name and optional data directory into a
// modernc.org/sqlite DSN. ":memory:" is passed through unchanged.
func resolveDSN(name, dataDir string) (string, error) {
	if name == ":memory:" || name == "" {
		return ":memory:", nil
	}
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dataDir, name+".db"), nil
}

// Name returns the name this database was opened under.
func (db *Database) Name() string { return db.name }

// Version returns the caller-supplied version, if any.
func (db *Database) Version() string { return db.opts.Version }

// Description returns the caller-supplied description, if any.
func (db *Database) Description() string { return db.opts.Description }

// Collection returns the memoized handle for name, declaring indices on
// first access.
func (db *Database) Collection(ctx context.Context, name string, indices ...schema.Index) (*Collection, error) {
	c, err := db.store.Collection(ctx, name, indices)
	if err != nil {
		return nil, err
	}
	return &Collection{inner: c, db: db, name: name}, nil
}

// Describe returns PRAGMA table_info for collection.
func (db *Database) Describe(ctx context.Context, collection string) ([]schema.ColumnInfo, error) {
	return db.schemaMgr.TableInfo(ctx, collection)
}

// Transaction returns a Transaction Batcher over every collection this
// database has memoized.
func (db *Database) Transaction(ctx context.Context) *batch.Batcher {
	return batch.New(db.gw, resolverAdapter{db: db, ctx: ctx}, db.log)
}

// Reset stops the CDC Engine and drops the table of every collection opened
// through this Database, plus the internal _events/_cursors tables, leaving
// table teardown to the document store's reset. A collection table that is
// in the database file but was not opened since Open is not dropped.
func (db *Database) Reset(ctx context.Context) error {
	db.cdc.Reset()
	return db.store.Reset(ctx)
}

// Close stops the CDC Engine, flushes an on_close sync strategy if
// configured, closes the SQL connection, and forgets this database's entry
// in the process-wide memoization table.
func (db *Database) Close(ctx context.Context) error {
	db.cdc.Stop()
	if db.batchStop != nil {
		close(db.batchStop)
		<-db.batchDone
	}
	if db.opts.SyncStrategy == SyncOnClose || db.opts.SyncStrategy == SyncBatch {
		if _, err := db.defaultBatch.Execute(ctx); err != nil {
			db.log.WithError(err).Warn("docwatch: flush on close failed")
		}
	}
	forget(db.name)
	return db.sqlDB.Close()
}

// resolverAdapter satisfies batch.Resolver by delegating to the Store,
// adapting *store.Collection's richer constructor signature down to the
// name-only lookup the batcher needs.
type resolverAdapter struct {
	db  *Database
	ctx context.Context
}

func (r resolverAdapter) Collection(name string) (batch.CollectionWriter, error) {
	return r.db.store.Collection(r.ctx, name, nil)
}
