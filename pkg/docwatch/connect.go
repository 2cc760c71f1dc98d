package docwatch

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// Connections are memoized by name, process-wide. A singleflight.Group
// collapses concurrent Open calls for the same name into one
// initialization; the completed handle is then cached in openDBs for the
// lifetime of the process or until Close.
var (
	openMu    sync.Mutex
	openDBs   = make(map[string]*Database)
	openGroup singleflight.Group
)

// Open returns the memoized Database for name, opening and initializing it
// on first call. Concurrent Open calls for the same name share one
// initialization via golang.org/x/sync/singleflight.
func Open(ctx context.Context, name string, opts ...Option) (*Database, error) {
	openMu.Lock()
	if db, ok := openDBs[name]; ok {
		openMu.Unlock()
		return db, nil
	}
	openMu.Unlock()

	v, err, _ := openGroup.Do(name, func() (any, error) {
		db, err := openNew(ctx, name, resolve(opts))
		if err != nil {
			return nil, err
		}
		openMu.Lock()
		openDBs[name] = db
		openMu.Unlock()
		return db, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Database), nil
}

// Connect is an alias for Open.
func Connect(ctx context.Context, name string, opts ...Option) (*Database, error) {
	return Open(ctx, name, opts...)
}

func forget(name string) {
	openMu.Lock()
	delete(openDBs, name)
	openMu.Unlock()
}
