package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/schema"
	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

// Store is the document store of one database: a memoized set of
// Collection handles sharing one Gateway and Index Schema Manager, each
// held behind a mutex-protected map.
type Store struct {
	gw        *sqlgw.Gateway
	schemaMgr *schema.Manager
	log       *logrus.Entry
	nowFn     func() time.Time

	mu          sync.Mutex
	collections map[string]*Collection
}

// New constructs a Store over an already-open Gateway.
func New(gw *sqlgw.Gateway, schemaMgr *schema.Manager, log *logrus.Entry) *Store {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Store{
		gw:          gw,
		schemaMgr:   schemaMgr,
		log:         log.WithField("component", "store"),
		nowFn:       time.Now,
		collections: make(map[string]*Collection),
	}
}

func (s *Store) clock() time.Time { return s.nowFn() }

// Collection returns the memoized handle for name, creating its table and
// declared indices on first access. Subsequent calls ignore indices and
// return the handle registered the first time.
func (s *Store) Collection(ctx context.Context, name string, indices []schema.Index) (*Collection, error) {
	s.mu.Lock()
	if c, ok := s.collections[name]; ok {
		s.mu.Unlock()
		return c, nil
	}
	s.mu.Unlock()

	if err := s.schemaMgr.Ensure(ctx, name, indices); err != nil {
		return nil, fmt.Errorf("store: preparing collection %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.collections[name]; ok {
		return c, nil
	}
	c := &Collection{
		name:    name,
		store:   s,
		indices: indices,
		log:     s.log.WithField("collection", name),
	}
	s.collections[name] = c
	return c, nil
}

// Collections returns the names of every memoized collection.
func (s *Store) Collections() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	return names
}

// Reset drops every known table, including the internal _events and
// _cursors tables, and forgets all memoized collection handles. It is the
// teardown the CDC Engine's own reset defers to.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	s.collections = make(map[string]*Collection)
	s.mu.Unlock()

	for _, name := range names {
		if _, err := s.gw.Run(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
			return fmt.Errorf("store: resetting %s: %w", name, err)
		}
	}
	if _, err := s.gw.Run(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", trigger.EventsTable)); err != nil {
		return fmt.Errorf("store: resetting %s: %w", trigger.EventsTable, err)
	}
	if _, err := s.gw.Run(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", trigger.CursorsTable)); err != nil {
		return fmt.Errorf("store: resetting %s: %w", trigger.CursorsTable, err)
	}
	s.log.Info("store reset")
	return nil
}

// Gateway exposes the underlying SQL Gateway for components (CDC, triggers)
// that must share the same connection.
func (s *Store) Gateway() *sqlgw.Gateway { return s.gw }
