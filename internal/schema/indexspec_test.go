package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestColumnNameRoundTrip(t *testing.T) {
	assert.Equal(t, "owner__id", ColumnName("owner.id"))
	assert.Equal(t, "owner.id", PathFromColumn("owner__id"))
	assert.Equal(t, "name", ColumnName("name"))
}

func TestIndexNameSingle(t *testing.T) {
	idx := Single("owner.id", V32, false)
	assert.Equal(t, "owner__id", IndexName(idx))
	assert.Equal(t, []string{"owner__id"}, Columns(idx))
}

func TestIndexNameCompound(t *testing.T) {
	idx := Compound(true, Field{Path: "owner.id"}, Field{Path: "status", Type: Text})
	assert.Equal(t, "owner__id___status", IndexName(idx))
	assert.Equal(t, []string{"owner__id", "status"}, Columns(idx))
	assert.Equal(t, V32, idx.Fields[0].Type, "unset field type defaults to V32")
}

func TestRequiredColumnsDeduplicatesInFirstSeenOrder(t *testing.T) {
	indices := []Index{
		Single("owner.id", V32, false),
		Compound(false, Field{Path: "status"}, Field{Path: "owner.id"}),
	}
	assert.Equal(t, []string{"owner__id", "status"}, RequiredColumns(indices))
}

func TestCreateIndexSQLUnique(t *testing.T) {
	idx := Single("email", Text, true)
	sql := CreateIndexSQL("users", idx)
	assert.Equal(t, "CREATE UNIQUE INDEX IF NOT EXISTS email ON users (email)", sql)
}

func TestAddColumnSQLHasNoType(t *testing.T) {
	assert.Equal(t, "ALTER TABLE users ADD COLUMN email", AddColumnSQL("users", "email"))
}
