package duckdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydata/quarry/pkg/adapter"
	"github.com/quarrydata/quarry/pkg/core"
)

func newTestAdapter(t *testing.T) *Adapter {
	t.Helper()
	a := New(nil)
	err := a.Connect(context.Background(), adapter.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestConnect_InMemory(t *testing.T) {
	a := newTestAdapter(t)
	assert.Equal(t, "duckdb", a.DialectName())
	assert.Equal(t, "main", a.DefaultSchema)
}

func TestCreateTableAs_Replace(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateTableAs(ctx, "t", "SELECT 1 AS id", false))
	require.NoError(t, a.CreateTableAs(ctx, "t", "SELECT 2 AS id, 'x' AS name", true))

	cols, err := a.GetTableSchema(ctx, "t")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "name", cols[1].Name)
}

func TestRelationExists(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	exists, err := a.RelationExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, a.CreateTableAs(ctx, "present", "SELECT 1 AS id", false))
	exists, err = a.RelationExists(ctx, "present")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDropIfExists_ViewAndTable(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateViewAs(ctx, "v", "SELECT 1 AS id", true))
	require.NoError(t, a.DropIfExists(ctx, "v"))
	exists, err := a.RelationExists(ctx, "v")
	require.NoError(t, err)
	assert.False(t, exists)

	// Dropping something that was never created is not an error.
	assert.NoError(t, a.DropIfExists(ctx, "never_there"))
}

func TestDescribeQuery(t *testing.T) {
	a := newTestAdapter(t)

	cols, err := a.DescribeQuery(context.Background(), "SELECT 1 AS id, 'a' AS name")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.NotEmpty(t, cols[0].Type)
}

func TestQueryCount(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateTableAs(ctx, "nums", "SELECT * FROM range(5)", false))
	n, err := a.QueryCount(ctx, "SELECT * FROM nums")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestDeleteInsert_RoundTrip(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateTableAs(ctx, "orders",
		"SELECT 1 AS id, 'old' AS status UNION ALL SELECT 2, 'old'", false))

	err := a.DeleteInsert(ctx, "orders",
		"SELECT 2 AS id, 'new' AS status UNION ALL SELECT 3, 'new'", []string{"id"})
	require.NoError(t, err)

	n, err := a.QueryCount(ctx, "SELECT * FROM orders")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = a.QueryCount(ctx, "SELECT * FROM orders WHERE id = 2 AND status = 'new'")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAddColumns(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateTableAs(ctx, "t", "SELECT 1 AS id", false))
	require.NoError(t, a.AddColumns(ctx, "t", []core.ColumnDef{{Name: "note", Type: "VARCHAR"}}))

	cols, err := a.GetTableSchema(ctx, "t")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "note", cols[1].Name)
}

func TestCreateSchemaIfNotExists(t *testing.T) {
	a := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.CreateSchemaIfNotExists(ctx, "staging"))
	require.NoError(t, a.CreateTableAs(ctx, "staging.t", "SELECT 1 AS id", false))

	exists, err := a.RelationExists(ctx, "staging.t")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestRegistered(t *testing.T) {
	factory, ok := adapter.Get("duckdb")
	assert.True(t, ok)
	assert.Equal(t, "duckdb", factory(nil).DialectName())
}
