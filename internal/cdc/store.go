package cdc

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
	"github.com/mesh-intelligence/docwatch/internal/trigger"
)

func scanRawEvent(s sqlgw.Scanner) (RawEvent, error) {
	var e RawEvent
	err := s.Scan(&e.Collection, &e.ID, &e.Type, &e.Date, &e.Before, &e.After)
	return e, err
}

// peekEarliest returns the date of the oldest undelivered event for
// collection past cursor, if any.
func peekEarliest(ctx context.Context, gw *sqlgw.Gateway, collection string, cursor int64) (int64, bool, error) {
	var date int64
	err := gw.DB().QueryRowContext(ctx,
		fmt.Sprintf("SELECT date FROM %s WHERE col = ? AND date > ? ORDER BY date ASC LIMIT 1", trigger.EventsTable),
		collection, cursor,
	).Scan(&date)
	if err == sqlgw.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return date, true, nil
}

// batchAt returns every event row for collection at exactly date, in scan
// order, deduplicated by id (first occurrence by list order wins).
func batchAt(ctx context.Context, gw *sqlgw.Gateway, collection string, date int64) ([]RawEvent, error) {
	rows, err := sqlgw.Query(ctx, gw, scanRawEvent,
		fmt.Sprintf("SELECT col, id, type, date, before, after FROM %s WHERE col = ? AND date = ? ORDER BY date ASC", trigger.EventsTable),
		collection, date,
	)
	if err != nil {
		return nil, err
	}
	return dedupeByID(rows), nil
}

func dedupeByID(rows []RawEvent) []RawEvent {
	seen := make(map[string]bool, len(rows))
	out := make([]RawEvent, 0, len(rows))
	for _, r := range rows {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out
}

// inflate parses a raw event's before/after JSON into the matching tagged
// Event variant, per the trigger table's nullability rules.
func inflate(r RawEvent) (Event, error) {
	b := base{collection: r.Collection, id: r.ID, date: r.Date}

	before, err := parseDoc(r.Before)
	if err != nil {
		return nil, fmt.Errorf("cdc: inflating before for %s/%s: %w", r.Collection, r.ID, err)
	}
	after, err := parseDoc(r.After)
	if err != nil {
		return nil, fmt.Errorf("cdc: inflating after for %s/%s: %w", r.Collection, r.ID, err)
	}

	switch r.Type {
	case trigger.Insert:
		return InsertEvent{base: b, After: after}, nil
	case trigger.Update:
		return UpdateEvent{base: b, Before: before, After: after}, nil
	case trigger.Write:
		return WriteEvent{base: b, Before: before, After: after}, nil
	case trigger.Delete:
		return DeleteEvent{base: b, Before: before}, nil
	default:
		return nil, fmt.Errorf("cdc: unknown event type %q for %s/%s", r.Type, r.Collection, r.ID)
	}
}

func parseDoc(raw *string) (map[string]any, error) {
	if raw == nil {
		return nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(*raw), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// asWriteEligible reports whether a raw event's type participates in
// "write" subscriptions.
func asWriteEligible(t trigger.EventType) bool {
	switch t {
	case trigger.Insert, trigger.Update, trigger.Write:
		return true
	default:
		return false
	}
}

// lookupCursor returns the persisted date for a named subscription, if a
// _cursors row for it already exists.
func lookupCursor(ctx context.Context, gw *sqlgw.Gateway, name string) (int64, bool, error) {
	var date int64
	err := gw.DB().QueryRowContext(ctx,
		fmt.Sprintf("SELECT date FROM %s WHERE name = ?", trigger.CursorsTable), name,
	).Scan(&date)
	if err == sqlgw.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return date, true, nil
}

func insertCursor(ctx context.Context, gw *sqlgw.Gateway, name string, date int64) error {
	_, err := gw.Run(ctx, fmt.Sprintf("INSERT INTO %s (name, date) VALUES (?, ?)", trigger.CursorsTable), name, date)
	return err
}

func updateCursor(ctx context.Context, gw *sqlgw.Gateway, name string, date int64) error {
	_, err := gw.Run(ctx, fmt.Sprintf("UPDATE %s SET date = ? WHERE name = ?", trigger.CursorsTable), date, name)
	return err
}

func deleteCursor(ctx context.Context, gw *sqlgw.Gateway, name string) error {
	_, err := gw.Run(ctx, fmt.Sprintf("DELETE FROM %s WHERE name = ?", trigger.CursorsTable), name)
	return err
}
