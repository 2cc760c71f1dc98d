// Shared helpers for docwatch CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mesh-intelligence/docwatch/pkg/docwatch"
)

// parseQuery turns a JSON object into an OrderedQuery, preserving key
// order. A bare value means equality; a two-element array `[op, value]`
// selects one of the fixed operators.
func parseQuery(rawJSON string) (*docwatch.OrderedQuery, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(rawJSON), &obj); err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	var ordered orderedRawObject
	if err := json.Unmarshal([]byte(rawJSON), &ordered); err != nil {
		return nil, fmt.Errorf("parse query: %w", err)
	}

	q := docwatch.NewQuery()
	for _, field := range ordered.keys {
		raw := obj[field]
		cond, err := parseCond(raw)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field, err)
		}
		q.Add(field, cond)
	}
	return q, nil
}

func parseCond(raw json.RawMessage) (docwatch.Cond, error) {
	var pair []json.RawMessage
	if err := json.Unmarshal(raw, &pair); err == nil && len(pair) == 2 {
		var op string
		if err := json.Unmarshal(pair[0], &op); err == nil {
			var value any
			if err := json.Unmarshal(pair[1], &value); err != nil {
				return docwatch.Cond{}, err
			}
			return docwatch.Cond{Op: docwatch.Op(op), Value: value}, nil
		}
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return docwatch.Cond{}, err
	}
	return docwatch.EqCond(value), nil
}

// orderedRawObject decodes a JSON object's keys in source order, since
// encoding/json's map decoding does not preserve it.
type orderedRawObject struct {
	keys []string
}

func (o *orderedRawObject) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected a JSON object")
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		o.keys = append(o.keys, key)
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	return nil
}
