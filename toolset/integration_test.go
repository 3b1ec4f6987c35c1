package toolset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoryerrl/pgtoolset/databases/postgres"
	"github.com/gregoryerrl/pgtoolset/types"
)

// TestSeededDatabaseScenario runs the full contract against a live Postgres
// loaded with testdata/seed.sql. Set PGTOOLSET_TEST_URI to a disposable
// database to enable it; the seed script drops and recreates its tables.
func TestSeededDatabaseScenario(t *testing.T) {
	uri := os.Getenv("PGTOOLSET_TEST_URI")
	if uri == "" {
		t.Skip("PGTOOLSET_TEST_URI not set")
	}

	db, err := postgres.New(uri, 30*time.Second)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()

	script, err := os.ReadFile(filepath.Join("..", "testdata", "seed.sql"))
	require.NoError(t, err)
	// The connector uses the simple protocol, so the whole script runs as one
	// multi-statement exec.
	_, err = db.Exec(ctx, string(script), nil)
	require.NoError(t, err)

	cfg := testConfig()
	cfg.ConnectionString = uri
	ts := New(db, &fakeLLM{}, cfg)

	tables, err := ts.ListTables(ctx, "public")
	require.NoError(t, err)
	names := make([]string, len(tables.Tables))
	for i, table := range tables.Tables {
		names[i] = table.Name
	}
	assert.Subset(t, names, []string{"customers", "order_items", "orders", "products"})

	info, err := ts.GetTableInfo(ctx, "orders", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, info.PrimaryKey)
	assert.Contains(t, info.ForeignKeys,
		types.ForeignKey{Column: "customer_id", ReferencedTable: "customers", ReferencedColumn: "id"})

	result, err := ts.ExecuteSQL(ctx, "SELECT COUNT(*) FROM customers")
	require.NoError(t, err)
	require.Equal(t, 1, result.RowCount)
	assert.EqualValues(t, 8, result.Rows[0][0])

	_, err = ts.ExecuteSQL(ctx, "DELETE FROM customers")
	require.Error(t, err)
	assert.Equal(t, types.KindWritePolicy, types.KindOf(err))

	result, err = ts.ExecuteSQL(ctx, "SELECT COUNT(*) FROM customers")
	require.NoError(t, err)
	assert.EqualValues(t, 8, result.Rows[0][0], "blocked write must not have touched the data")
}
