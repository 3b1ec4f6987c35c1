package toolset

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoryerrl/pgtoolset/types"
)

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleRegistry = `statements:
  - name: top_customers
    description: Customers ranked by total order value.
    sql: |
      SELECT c.name, SUM(o.total) AS total
      FROM customers c JOIN orders o ON o.customer_id = c.id
      GROUP BY c.name ORDER BY total DESC LIMIT :limit
    parameters:
      - name: limit
        description: How many customers to return.
        required: true
  - name: orders_by_status
    sql: SELECT * FROM orders WHERE status = :status
    parameters:
      - name: status
        required: true
`

func TestLoadRegistry(t *testing.T) {
	path := writeRegistryFile(t, sampleRegistry)

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"orders_by_status", "top_customers"}, reg.Names())

	stmt, err := reg.Get("top_customers")
	require.NoError(t, err)
	assert.Contains(t, stmt.SQL, ":limit")
	assert.Equal(t, "Customers ranked by total order value.", stmt.Description)
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestLoadRegistryRejectsWriteStatement(t *testing.T) {
	path := writeRegistryFile(t, `statements:
  - name: purge
    sql: DELETE FROM orders WHERE status = 'cancelled'
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
	assert.Contains(t, err.Error(), "purge")
}

func TestLoadRegistryRejectsDuplicateName(t *testing.T) {
	path := writeRegistryFile(t, `statements:
  - name: dup
    sql: SELECT 1
  - name: dup
    sql: SELECT 2
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func TestLoadRegistryRejectsMissingName(t *testing.T) {
	path := writeRegistryFile(t, `statements:
  - sql: SELECT 1
`)

	_, err := LoadRegistry(path)
	require.Error(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}

func registryToolset(t *testing.T, db *fakeDB) *Toolset {
	t.Helper()
	path := writeRegistryFile(t, sampleRegistry)
	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	return New(db, &fakeLLM{}, testConfig(), WithRegistry(reg))
}

func TestRunNamed(t *testing.T) {
	db := seededDB()
	db.queryFn = func(sqlText string, args []any, maxRows int) (*types.QueryPage, error) {
		return &types.QueryPage{Columns: []string{"name", "total"}, Rows: [][]any{{"Alice Johnson", 1250.0}}}, nil
	}
	ts := registryToolset(t, db)

	result, err := ts.RunNamed(context.Background(), "top_customers", map[string]any{"limit": 3})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RowCount)
	assert.Equal(t, []string{"name", "total"}, result.Columns)
	// The reported query is the registry template, placeholders intact.
	assert.Contains(t, result.Query, ":limit")
}

func TestRunNamedUnknownName(t *testing.T) {
	ts := registryToolset(t, seededDB())

	_, err := ts.RunNamed(context.Background(), "nonexistent", nil)
	require.Error(t, err)
	assert.Equal(t, types.KindNotFound, types.KindOf(err))
}

func TestRunNamedMissingRequiredParam(t *testing.T) {
	db := seededDB()
	ts := registryToolset(t, db)

	_, err := ts.RunNamed(context.Background(), "orders_by_status", map[string]any{})
	require.Error(t, err)
	assert.Equal(t, types.KindQuery, types.KindOf(err))
	assert.Contains(t, err.Error(), "status")
	assert.Empty(t, db.queryCalls)
}

func TestRunNamedWithoutRegistry(t *testing.T) {
	ts := New(seededDB(), &fakeLLM{}, testConfig())

	_, err := ts.RunNamed(context.Background(), "top_customers", nil)
	require.Error(t, err)
	assert.Equal(t, types.KindConfiguration, types.KindOf(err))
}
