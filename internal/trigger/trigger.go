// Package trigger installs the per-collection, per-event-type SQL triggers
// that append rows to the change-data-capture event log. Every statement
// is CREATE TRIGGER IF NOT EXISTS, applied lazily rather than up front.
package trigger

import "fmt"

// EventType is one of the four event kinds.
type EventType string

const (
	Insert EventType = "insert"
	Update EventType = "update"
	Write  EventType = "write"
	Delete EventType = "delete"
)

// EventsTable and CursorsTable are the fixed internal table names.
const (
	EventsTable  = "_events"
	CursorsTable = "_cursors"
)

// CreateEventsTableSQL and CreateCursorsTableSQL materialize the internal
// tables idempotently.
func CreateEventsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + EventsTable + ` (
	col TEXT NOT NULL,
	id TEXT NOT NULL,
	type TEXT NOT NULL,
	date INTEGER NOT NULL,
	before TEXT,
	after TEXT
)`
}

func CreateEventsIndexSQL() string {
	return `CREATE INDEX IF NOT EXISTS date_col_type ON ` + EventsTable + ` (date, col, type)`
}

func CreateCursorsTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + CursorsTable + ` (
	name TEXT PRIMARY KEY NOT NULL,
	date INTEGER NOT NULL
)`
}

// Name returns the trigger name for a (collection, on) pair:
// "${col}_${on}" for single-type triggers, "${col}_write_insert" and
// "${col}_write_update" for the write compound.
func Name(collection string, on EventType, sub string) string {
	if sub == "" {
		return fmt.Sprintf("%s_%s", collection, on)
	}
	return fmt.Sprintf("%s_%s_%s", collection, on, sub)
}

// StatementsFor returns the CREATE TRIGGER statements required to install
// (collection, on). write installs both the insert and update variants;
// every trigger unconditionally appends to _events inside the writing
// transaction.
func StatementsFor(collection string, on EventType) []string {
	switch on {
	case Insert:
		return []string{insertTrigger(collection)}
	case Update:
		return []string{updateTrigger(collection)}
	case Delete:
		return []string{deleteTrigger(collection)}
	case Write:
		return []string{writeInsertTrigger(collection), writeUpdateTrigger(collection)}
	default:
		return nil
	}
}

func insertTrigger(collection string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER INSERT ON %s BEGIN
	INSERT INTO %s (col, id, type, date, before, after)
	VALUES ('%s', new.id, 'insert', unixepoch('subsec')*1000, NULL, new.json);
END`, Name(collection, Insert, ""), collection, EventsTable, collection)
}

func updateTrigger(collection string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER UPDATE ON %s BEGIN
	INSERT INTO %s (col, id, type, date, before, after)
	VALUES ('%s', old.id, 'update', unixepoch('subsec')*1000, old.json, new.json);
END`, Name(collection, Update, ""), collection, EventsTable, collection)
}

func deleteTrigger(collection string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER DELETE ON %s BEGIN
	INSERT INTO %s (col, id, type, date, before, after)
	VALUES ('%s', old.id, 'delete', unixepoch('subsec')*1000, old.json, NULL);
END`, Name(collection, Delete, ""), collection, EventsTable, collection)
}

func writeInsertTrigger(collection string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER INSERT ON %s BEGIN
	INSERT INTO %s (col, id, type, date, before, after)
	VALUES ('%s', new.id, 'write', unixepoch('subsec')*1000, NULL, new.json);
END`, Name(collection, Write, "insert"), collection, EventsTable, collection)
}

func writeUpdateTrigger(collection string) string {
	return fmt.Sprintf(`CREATE TRIGGER IF NOT EXISTS %s AFTER UPDATE ON %s BEGIN
	INSERT INTO %s (col, id, type, date, before, after)
	VALUES ('%s', old.id, 'write', unixepoch('subsec')*1000, old.json, new.json);
END`, Name(collection, Write, "update"), collection, EventsTable, collection)
}
