package docwatch

import "time"

// SyncStrategy governs how aggressively the Transaction Batcher auto-flushes
// queued writes. SQL is already the source of truth here, so the knob
// controls batching cadence rather than a secondary log mirror.
type SyncStrategy string

const (
	// SyncImmediate flushes every queued write as soon as it is added.
	SyncImmediate SyncStrategy = "immediate"
	// SyncOnClose defers flushing until the database is closed.
	SyncOnClose SyncStrategy = "on_close"
	// SyncBatch flushes once BatchSize writes are queued, or every
	// BatchInterval, whichever comes first.
	SyncBatch SyncStrategy = "batch"
)

// Options configures an Open/Connect call. Construct with functional
// options; the defaults applied by resolve() give immediate sync and a
// database file under the current directory. A database is in-memory only
// when opened under the name ":memory:" or an empty name.
type Options struct {
	Version       string
	Description   string
	Size          int
	DataDir       string
	SyncStrategy  SyncStrategy
	BatchSize     int
	BatchInterval time.Duration
}

// Option mutates an Options value being built up by Open/Connect.
type Option func(*Options)

// WithVersion records a caller-supplied schema/application version
// alongside the database.
func WithVersion(v string) Option { return func(o *Options) { o.Version = v } }

// WithDescription records a human-readable description.
func WithDescription(d string) Option { return func(o *Options) { o.Description = d } }

// WithSize overrides the default size hint of -1.
func WithSize(n int) Option { return func(o *Options) { o.Size = n } }

// WithDataDir sets the directory a file-backed database is opened under.
// Unused for ":memory:"-style names.
func WithDataDir(dir string) Option { return func(o *Options) { o.DataDir = dir } }

// WithSyncStrategy selects the Transaction Batcher's auto-flush policy.
func WithSyncStrategy(s SyncStrategy) Option { return func(o *Options) { o.SyncStrategy = s } }

// WithBatchSize sets the queue depth that triggers an automatic flush under
// SyncBatch.
func WithBatchSize(n int) Option { return func(o *Options) { o.BatchSize = n } }

// WithBatchInterval sets the timer interval that triggers an automatic
// flush under SyncBatch.
func WithBatchInterval(d time.Duration) Option { return func(o *Options) { o.BatchInterval = d } }

func resolve(opts []Option) Options {
	o := Options{Size: -1, SyncStrategy: SyncImmediate}
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
