package handlers

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregoryerrl/pgtoolset/config"
	"github.com/gregoryerrl/pgtoolset/toolset"
	"github.com/gregoryerrl/pgtoolset/types"
)

// stubDB serves fixed catalog data so handler tests can exercise the JSON
// envelope without a live database.
type stubDB struct{}

func (stubDB) Ping(ctx context.Context) error { return nil }
func (stubDB) Close() error                   { return nil }

func (stubDB) ListSchemas(ctx context.Context) ([]types.SchemaDescriptor, error) {
	return []types.SchemaDescriptor{{Name: "public", TableCount: 4}}, nil
}

func (stubDB) ListTables(ctx context.Context, schema string) ([]types.TableDescriptor, error) {
	if schema != "public" {
		return nil, types.Errorf(types.KindNotFound, "schema %q not found", schema)
	}
	return []types.TableDescriptor{{Name: "customers", RowCount: 8}}, nil
}

func (stubDB) TableInfo(ctx context.Context, schema, table string, sampleRows int) (*types.TableInfo, error) {
	if table != "customers" {
		return nil, types.Errorf(types.KindNotFound, "table %q not found in schema %q", table, schema)
	}
	return &types.TableInfo{
		Table:       "customers",
		Schema:      schema,
		Columns:     []types.ColumnDescriptor{{Name: "id", Type: "integer"}},
		PrimaryKey:  []string{"id"},
		ForeignKeys: []types.ForeignKey{},
		SampleRows:  [][]any{},
	}, nil
}

func (stubDB) Query(ctx context.Context, sqlText string, args []any, maxRows int) (*types.QueryPage, error) {
	return &types.QueryPage{Columns: []string{"count"}, Rows: [][]any{{float64(8)}}}, nil
}

func (stubDB) Exec(ctx context.Context, sqlText string, args []any) (int64, error) {
	return 0, nil
}

func (stubDB) BindNamed(sqlText string, params map[string]any) (string, []any, error) {
	return sqlText, nil, nil
}

type stubLLM struct{}

func (stubLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return "", types.NewError(types.KindGeneration, "no model in tests")
}

func newTestToolset() *toolset.Toolset {
	cfg := config.DatabaseConfig{
		Engine:           "postgres",
		ConnectionString: "postgres://test@localhost/db",
		WriteMode:        config.WriteBlocked,
		DefaultSchema:    "public",
		MaxRows:          100,
		TimeoutSeconds:   30,
		SampleRows:       3,
	}
	return toolset.New(stubDB{}, stubLLM{}, cfg)
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

// decodeEnvelope parses the text content of a tool result.
func decodeEnvelope(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")

	var envelope map[string]any
	require.NoError(t, json.Unmarshal([]byte(text.Text), &envelope))
	return envelope
}

func TestListSchemasHandler(t *testing.T) {
	handler := ListSchemasHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("list_schemas", nil))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "success", envelope["status"])
	schemas, ok := envelope["schemas"].([]any)
	require.True(t, ok)
	require.Len(t, schemas, 1)
	assert.Equal(t, "public", schemas[0].(map[string]any)["name"])
}

func TestListTablesHandlerDefaultSchema(t *testing.T) {
	handler := ListTablesHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("list_tables", map[string]any{}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "success", envelope["status"])
	assert.Equal(t, "public", envelope["schema"])
}

func TestListTablesHandlerUnknownSchema(t *testing.T) {
	handler := ListTablesHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("list_tables", map[string]any{"schema": "nope"}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "error", envelope["status"])
	assert.Contains(t, envelope["error"], "nope")
}

func TestGetTableInfoHandlerMissingTable(t *testing.T) {
	handler := GetTableInfoHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("get_table_info", map[string]any{}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "error", envelope["status"])
	assert.Contains(t, envelope["error"], "table")
}

func TestExecuteSQLHandler(t *testing.T) {
	handler := ExecuteSQLHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("execute_sql",
		map[string]any{"query": "SELECT COUNT(*) FROM customers"}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "success", envelope["status"])
	assert.Equal(t, float64(1), envelope["row_count"])
	assert.Equal(t, []any{"count"}, envelope["columns"])
}

func TestExecuteSQLHandlerBlockedWrite(t *testing.T) {
	handler := ExecuteSQLHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("execute_sql",
		map[string]any{"query": "DROP TABLE customers"}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "error", envelope["status"])
	assert.NotEmpty(t, envelope["error"])
}

func TestAskDataInsightsHandlerGenerationFailure(t *testing.T) {
	handler := AskDataInsightsHandler(newTestToolset(), zerolog.Nop())

	result, err := handler(context.Background(), callRequest("ask_data_insights",
		map[string]any{"question": "How many customers are there?"}))
	require.NoError(t, err)

	envelope := decodeEnvelope(t, result)
	assert.Equal(t, "error", envelope["status"])
	assert.Contains(t, envelope["error"], "no model in tests")
}
