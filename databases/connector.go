package databases

import (
	"context"

	"github.com/gregoryerrl/pgtoolset/types"
)

// Database is the contract every engine connector implements. Connectors are
// pooled and safe for concurrent use; each call runs in its own transaction.
type Database interface {
	Ping(ctx context.Context) error

	// ListSchemas returns all non-system schemas ordered by name, each with
	// its base-table count.
	ListSchemas(ctx context.Context) ([]types.SchemaDescriptor, error)

	// ListTables returns the base tables of a known schema with approximate
	// row counts from catalog statistics. An unknown schema is a not-found
	// error.
	ListTables(ctx context.Context, schema string) ([]types.TableDescriptor, error)

	// TableInfo assembles column metadata, key constraints and up to
	// sampleRows preview rows for an existing table. An unknown table is a
	// not-found error, reported before any sample query runs.
	TableInfo(ctx context.Context, schema, table string, sampleRows int) (*types.TableInfo, error)

	// Query executes a read-only statement, fetching at most maxRows rows.
	// maxRows <= 0 means no cap.
	Query(ctx context.Context, sqlText string, args []any, maxRows int) (*types.QueryPage, error)

	// Exec executes a mutating statement and returns the affected row count.
	// Only reachable when the write mode allows it.
	Exec(ctx context.Context, sqlText string, args []any) (int64, error)

	// BindNamed expands :name placeholders into the engine's bindvar style.
	BindNamed(sqlText string, params map[string]any) (string, []any, error)

	Close() error
}
