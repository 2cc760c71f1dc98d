package schema

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

// ColumnInfo mirrors one row of PRAGMA table_info, exposed publicly via
// Database.Describe.
type ColumnInfo struct {
	CID          int
	Name         string
	Type         string
	NotNull      bool
	DefaultValue *string
	PrimaryKey   bool
}

// Manager reconciles a collection's materialized SQLite schema with its
// declared indices. It is idempotent: calling Ensure twice
// with the same declarations issues no destructive statements the second
// time.
type Manager struct {
	gw  *sqlgw.Gateway
	log *logrus.Entry
}

func NewManager(gw *sqlgw.Gateway, log *logrus.Entry) *Manager {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{gw: gw, log: log.WithField("component", "schema")}
}

// Ensure performs the five-step reconciliation for one collection:
// create the base table, read existing columns, compute
// missing index columns, add them (tolerating a concurrent duplicate via
// Try), and create every declared index.
func (m *Manager) Ensure(ctx context.Context, collection string, indices []Index) error {
	if _, err := m.gw.Run(ctx, CreateTableSQL(collection)); err != nil {
		return fmt.Errorf("schema: creating table %s: %w", collection, err)
	}

	existing, err := m.TableInfo(ctx, collection)
	if err != nil {
		return fmt.Errorf("schema: reading table_info for %s: %w", collection, err)
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c.Name] = true
	}

	for _, col := range RequiredColumns(indices) {
		if have[col] {
			continue
		}
		if _, err := m.gw.Try(ctx, AddColumnSQL(collection, col)); err != nil {
			return fmt.Errorf("schema: adding column %s.%s: %w", collection, col, err)
		}
		m.log.WithFields(logrus.Fields{"collection": collection, "column": col}).Debug("added index column")
	}

	for _, idx := range indices {
		if _, err := m.gw.Run(ctx, CreateIndexSQL(collection, idx)); err != nil {
			return fmt.Errorf("schema: creating index %s on %s: %w", IndexName(idx), collection, err)
		}
	}

	return nil
}

// TableInfo runs PRAGMA table_info(collection) and returns its rows.
func (m *Manager) TableInfo(ctx context.Context, collection string) ([]ColumnInfo, error) {
	return sqlgw.Query(ctx, m.gw, scanColumnInfo, fmt.Sprintf("PRAGMA table_info(%s)", collection))
}

func scanColumnInfo(s sqlgw.Scanner) (ColumnInfo, error) {
	var c ColumnInfo
	var notNull, pk int
	var dflt *string
	if err := s.Scan(&c.CID, &c.Name, &c.Type, &notNull, &dflt, &pk); err != nil {
		return ColumnInfo{}, err
	}
	c.NotNull = notNull != 0
	c.PrimaryKey = pk != 0
	c.DefaultValue = dflt
	return c, nil
}
