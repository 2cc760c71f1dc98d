// Package store implements the Document Store: collections
// of JSON documents with save/get/find/findOne/delete/all/count/wipe/update,
// composing the SQL Gateway, Index Schema Manager, and Query Translator
// over one generic id/json/date table per declared collection, upserted
// with ON CONFLICT.
package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/docwatch/internal/query"
	"github.com/mesh-intelligence/docwatch/internal/schema"
	"github.com/mesh-intelligence/docwatch/internal/sqlgw"
)

// Collection is a handle to one named document table. It holds a
// non-owning reference back to its Store: no reference cycles, ownership
// flows Store -> map[name]*Collection.
type Collection struct {
	name    string
	store   *Store
	indices []schema.Index
	log     *logrus.Entry
}

// Name returns the collection's table name.
func (c *Collection) Name() string { return c.name }

type row struct {
	id   string
	json string
	date int64
}

func scanRow(s sqlgw.Scanner) (row, error) {
	var r row
	err := s.Scan(&r.id, &r.json, &r.date)
	return r, err
}

// Save upserts doc by primary key. If doc has no "id" field
// a new one is generated. Returns the saved document with "id" and "saved"
// spliced in, mirroring what a subsequent Get would return.
func (c *Collection) Save(ctx context.Context, doc Document) (Document, error) {
	id, _ := doc["id"].(string)
	if id == "" {
		id = NewID()
	}
	now := c.store.clock().UnixMilli()

	jsonStr, err := marshalDoc(doc, id)
	if err != nil {
		return nil, fmt.Errorf("store: marshaling %s/%s: %w", c.name, id, err)
	}

	cols := []string{"id", "json", "date"}
	placeholders := []string{"?", "?", "?"}
	args := []any{id, jsonStr, now}
	var updateSet []string

	for _, col := range schema.RequiredColumns(c.indices) {
		val := query.LookupPath(doc, schema.PathFromColumn(col))
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, val)
	}
	updateSet = append(updateSet, "json = ?", "date = ?")
	updateArgs := []any{jsonStr, now}
	for _, col := range schema.RequiredColumns(c.indices) {
		updateSet = append(updateSet, col+" = ?")
		val := query.LookupPath(doc, schema.PathFromColumn(col))
		updateArgs = append(updateArgs, val)
	}
	args = append(args, updateArgs...)

	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		c.name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updateSet, ", "),
	)

	if _, err := c.store.gw.Run(ctx, stmt, args...); err != nil {
		return nil, fmt.Errorf("store: saving %s/%s: %w", c.name, id, err)
	}

	saved := withID(doc, id)
	saved["saved"] = now
	return saved, nil
}

// PrepareUpsert computes the same statement Save issues, without executing
// it. It is used by the Transaction Batcher to queue
// deferred writes; Save builds the same statement itself. doc is accepted as map[string]any so
// this method satisfies batch.CollectionWriter without an import cycle.
func (c *Collection) PrepareUpsert(doc map[string]any) (id string, stmt string, args []any, err error) {
	d := Document(doc)
	rid, _ := d["id"].(string)
	if rid == "" {
		rid = NewID()
	}
	now := c.store.clock().UnixMilli()

	jsonStr, err := marshalDoc(d, rid)
	if err != nil {
		return "", "", nil, err
	}

	cols := []string{"id", "json", "date"}
	placeholders := []string{"?", "?", "?"}
	insertArgs := []any{rid, jsonStr, now}
	var updateSet = []string{"json = ?", "date = ?"}
	updateArgs := []any{jsonStr, now}

	for _, col := range schema.RequiredColumns(c.indices) {
		val := query.LookupPath(d, schema.PathFromColumn(col))
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		insertArgs = append(insertArgs, val)
		updateSet = append(updateSet, col+" = ?")
		updateArgs = append(updateArgs, val)
	}

	stmt = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s",
		c.name, strings.Join(cols, ", "), strings.Join(placeholders, ", "), strings.Join(updateSet, ", "),
	)
	args = append(insertArgs, updateArgs...)
	return rid, stmt, args, nil
}

// Get retrieves a document by id.
func (c *Collection) Get(ctx context.Context, id string) (Document, bool, error) {
	if id == "" {
		return nil, false, ErrInvalidID
	}
	r, ok, err := sqlgw.Get(ctx, c.store.gw, scanRow,
		fmt.Sprintf("SELECT id, json, date FROM %s WHERE id = ?", c.name), id)
	if err != nil || !ok {
		return nil, false, err
	}
	doc, err := unmarshalDoc(r.json, r.date)
	return doc, true, err
}

// All returns every document in the collection.
func (c *Collection) All(ctx context.Context) ([]Document, error) {
	rows, err := sqlgw.Query(ctx, c.store.gw, scanRow,
		fmt.Sprintf("SELECT id, json, date FROM %s", c.name))
	if err != nil {
		return nil, err
	}
	return hydrateRows(rows)
}

// Find returns every document matching q.
func (c *Collection) Find(ctx context.Context, q *query.OrderedQuery) ([]Document, error) {
	sql, args := query.SelectSQL(c.name, q, "")
	rows, err := sqlgw.Query(ctx, c.store.gw, scanRow, sql, args...)
	if err != nil {
		return nil, err
	}
	return hydrateRows(rows)
}

// FindOne returns the first document matching q. If more than one row
// matches, all but the first (by scan order) are deleted and a warning is
// logged.
func (c *Collection) FindOne(ctx context.Context, q *query.OrderedQuery) (Document, bool, error) {
	sql, args := query.SelectSQL(c.name, q, "")
	rows, err := sqlgw.Query(ctx, c.store.gw, scanRow, sql, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	if len(rows) > 1 {
		dupIDs := make([]string, 0, len(rows)-1)
		for _, r := range rows[1:] {
			dupIDs = append(dupIDs, r.id)
		}
		c.log.WithFields(logrus.Fields{
			"collection": c.name, "kept": rows[0].id, "removed": dupIDs,
		}).Warn("findOne: deleting duplicate rows")
		if err := c.deleteIDs(ctx, dupIDs); err != nil {
			return nil, false, err
		}
	}
	doc, err := unmarshalDoc(rows[0].json, rows[0].date)
	return doc, true, err
}

func (c *Collection) deleteIDs(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	_, err := c.store.gw.Run(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", c.name, strings.Join(placeholders, ", ")), args...)
	return err
}

// Delete removes the document with the given id.
func (c *Collection) Delete(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidID
	}
	_, err := c.store.gw.Run(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.name), id)
	return err
}

// DeleteOne removes documents matching q, which must be equality-only.
func (c *Collection) DeleteOne(ctx context.Context, q *query.OrderedQuery) error {
	for _, key := range q.Keys {
		if op := q.Values[key].Op; op != "" && op != query.Eq {
			return ErrEqualityOnly
		}
	}
	clause, args := query.Translate(q)
	stmt := fmt.Sprintf("DELETE FROM %s", c.name)
	if clause != "" {
		stmt += " WHERE " + clause
	}
	_, err := c.store.gw.Run(ctx, stmt, args...)
	return err
}

// Wipe deletes every document but keeps the table.
func (c *Collection) Wipe(ctx context.Context) error {
	_, err := c.store.gw.Run(ctx, fmt.Sprintf("DELETE FROM %s", c.name))
	return err
}

// Drop removes the table entirely.
func (c *Collection) Drop(ctx context.Context) error {
	_, err := c.store.gw.Run(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", c.name))
	return err
}

// Count returns the number of documents in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	var n int64
	row := c.store.gw.DB().QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", c.name))
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Describe returns the collection's column info via PRAGMA table_info.
func (c *Collection) Describe(ctx context.Context) ([]schema.ColumnInfo, error) {
	return c.store.schemaMgr.TableInfo(ctx, c.name)
}

// DateSaved returns the stored date column for id.
func (c *Collection) DateSaved(ctx context.Context, id string) (int64, bool, error) {
	var date int64
	row := c.store.gw.DB().QueryRowContext(ctx, fmt.Sprintf("SELECT date FROM %s WHERE id = ?", c.name), id)
	err := row.Scan(&date)
	if err == sqlgw.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return date, true, nil
}

// Update reads doc, applies patch (shallow merge), and saves the result.
// Returns ErrNotFound if id does not exist.
func (c *Collection) Update(ctx context.Context, id string, patch map[string]any) (Document, error) {
	doc, ok, err := c.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range patch {
		doc[k] = v
	}
	doc["id"] = id
	return c.Save(ctx, doc)
}

func hydrateRows(rows []row) ([]Document, error) {
	docs := make([]Document, 0, len(rows))
	for _, r := range rows {
		doc, err := unmarshalDoc(r.json, r.date)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
