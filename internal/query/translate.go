// Package query implements the structured-query-to-SQL translator: a
// small, fixed operator set that maps directly to SQL and to an
// equivalent in-process predicate, so server and client filtering never
// disagree. Clauses accumulate into "conditions []string, args []any"
// pairs before being joined into a WHERE clause.
package query

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/docwatch/internal/schema"
)

// Op is one of the fixed comparison operators this package allows.
type Op string

const (
	Eq       Op = "="
	Gt       Op = ">"
	Lt       Op = "<"
	Gte      Op = ">="
	Lte      Op = "<="
	Neq      Op = "!="
	In       Op = "in"
	NotIn    Op = "not in"
	Like     Op = "like"
)

// Cond is one field's condition: either a bare scalar (Op == "" means
// equality) or an explicit [op, value] pair.
type Cond struct {
	Op    Op
	Value any
}

// EqCond builds a bare-scalar condition ("field = value").
func EqCond(v any) Cond { return Cond{Op: Eq, Value: v} }

// Query is the structured query map: field -> condition. Translate does not
// take it, since Go map iteration order is random and clause order would
// not be deterministic; translation goes through OrderedQuery below.
type Query map[string]Cond

// OrderedQuery preserves explicit key order, so clause emission is
// deterministic and matches the order a caller declared fields in.
type OrderedQuery struct {
	Keys   []string
	Values map[string]Cond
}

// NewOrdered builds an OrderedQuery from alternating field/condition
// arguments. A condition argument that is not itself a Cond is wrapped with
// EqCond, so NewOrdered("status", "open") and
// NewOrdered("status", EqCond("open")) are equivalent.
func NewOrdered(pairs ...any) *OrderedQuery {
	oq := &OrderedQuery{Values: make(map[string]Cond, len(pairs)/2)}
	for i := 0; i+1 < len(pairs); i += 2 {
		field, _ := pairs[i].(string)
		cond, ok := pairs[i+1].(Cond)
		if !ok {
			cond = EqCond(pairs[i+1])
		}
		oq.Add(field, cond)
	}
	return oq
}

// Add appends a field/condition pair, preserving insertion order.
func (oq *OrderedQuery) Add(field string, cond Cond) *OrderedQuery {
	if oq.Values == nil {
		oq.Values = make(map[string]Cond)
	}
	if _, exists := oq.Values[field]; !exists {
		oq.Keys = append(oq.Keys, field)
	}
	oq.Values[field] = cond
	return oq
}

// Translate converts a structured query into a WHERE-less SQL fragment
// and its positional arguments. Field names are mapped through
// schema.ColumnName so callers may use dotted document paths directly.
func Translate(q *OrderedQuery) (clause string, args []any) {
	if q == nil || len(q.Keys) == 0 {
		return "", nil
	}
	var parts []string
	for _, field := range q.Keys {
		cond := q.Values[field]
		col := schema.ColumnName(field)
		op := cond.Op
		if op == "" {
			op = Eq
		}
		switch op {
		case In, NotIn:
			values, _ := cond.Value.([]any)
			placeholders := make([]string, len(values))
			for i, v := range values {
				placeholders[i] = "?"
				args = append(args, v)
			}
			sqlOp := "IN"
			if op == NotIn {
				sqlOp = "NOT IN"
			}
			parts = append(parts, fmt.Sprintf("%s %s (%s)", col, sqlOp, strings.Join(placeholders, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s %s ?", col, sqlOp(op)))
			args = append(args, cond.Value)
		}
	}
	return strings.Join(parts, " AND "), args
}

func sqlOp(op Op) string {
	switch op {
	case Like:
		return "LIKE"
	default:
		return string(op)
	}
}

// SelectSQL builds the full "SELECT id, json, date FROM col WHERE ..."
// statement. suffix is appended verbatim (e.g. "LIMIT 1"). Find and FindOne
// both pass "": FindOne needs every matching row to clean up duplicates.
func SelectSQL(collection string, q *OrderedQuery, suffix string) (string, []any) {
	clause, args := Translate(q)
	sql := fmt.Sprintf("SELECT id, json, date FROM %s", collection)
	if clause != "" {
		sql += " WHERE " + clause
	}
	if suffix != "" {
		sql += " " + suffix
	}
	return sql, args
}

// Explain prepends EXPLAIN QUERY PLAN for diagnostics.
func Explain(sql string) string {
	return "EXPLAIN QUERY PLAN " + sql
}
