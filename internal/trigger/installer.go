package trigger

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

// Installer installs triggers at most once per (collection, on) pair in
// this process. CREATE TRIGGER IF NOT EXISTS makes
// re-installation harmless at the database level too, but the in-memory
// set avoids a redundant round trip on every Register call.
type Installer struct {
	gw  *sqlgw.Gateway
	log *logrus.Entry

	mu        sync.Mutex
	installed map[string]bool
}

func NewInstaller(gw *sqlgw.Gateway, log *logrus.Entry) *Installer {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Installer{
		gw:        gw,
		log:       log.WithField("component", "trigger"),
		installed: make(map[string]bool),
	}
}

// EnsureInternalTables creates _events and _cursors if they do not exist.
func (in *Installer) EnsureInternalTables(ctx context.Context) error {
	if _, err := in.gw.Run(ctx, CreateEventsTableSQL()); err != nil {
		return fmt.Errorf("trigger: creating %s: %w", EventsTable, err)
	}
	if _, err := in.gw.Run(ctx, CreateEventsIndexSQL()); err != nil {
		return fmt.Errorf("trigger: indexing %s: %w", EventsTable, err)
	}
	if _, err := in.gw.Run(ctx, CreateCursorsTableSQL()); err != nil {
		return fmt.Errorf("trigger: creating %s: %w", CursorsTable, err)
	}
	return nil
}

// Install ensures the trigger(s) for (collection, on) exist.
func (in *Installer) Install(ctx context.Context, collection string, on EventType) error {
	key := fmt.Sprintf("%s.%s", collection, on)

	in.mu.Lock()
	if in.installed[key] {
		in.mu.Unlock()
		return nil
	}
	in.mu.Unlock()

	for _, stmt := range StatementsFor(collection, on) {
		if _, err := in.gw.Run(ctx, stmt); err != nil {
			return fmt.Errorf("trigger: installing %s on %s: %w", on, collection, err)
		}
	}

	in.mu.Lock()
	in.installed[key] = true
	in.mu.Unlock()

	in.log.WithFields(logrus.Fields{"collection": collection, "on": on}).Debug("trigger installed")
	return nil
}
