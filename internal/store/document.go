package store

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Document is the opaque, JSON-serializable record this package stores:
// a string id plus arbitrary fields, with "saved" spliced in on read.
type Document map[string]any

// NewID generates a 32-character identifier: a random UUID with its
// hyphens stripped, matching the V32 column type.
func NewID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// withID returns a copy of doc with "id" forced to id, so the id is
// always embedded in the stored JSON.
func withID(doc Document, id string) Document {
	out := make(Document, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}

// marshalDoc serializes doc (with id embedded) to the json column value.
func marshalDoc(doc Document, id string) (string, error) {
	b, err := json.Marshal(withID(doc, id))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalDoc parses a stored json column value and splices saved = date
// into the result.
func unmarshalDoc(raw string, date int64) (Document, error) {
	var doc Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = Document{}
	}
	doc["saved"] = date
	return doc, nil
}
