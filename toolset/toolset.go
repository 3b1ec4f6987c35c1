// Package toolset implements the database exploration and safe-query
// operations. Every path that runs SQL, including LLM-generated SQL, goes
// through ExecuteSQL so the write policy cannot be bypassed.
package toolset

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/gregoryerrl/pgtoolset/config"
	"github.com/gregoryerrl/pgtoolset/databases"
	"github.com/gregoryerrl/pgtoolset/sqlguard"
	"github.com/gregoryerrl/pgtoolset/types"
)

type Toolset struct {
	db       databases.Database
	llm      llmClient
	cfg      config.DatabaseConfig
	registry *Registry
	log      zerolog.Logger
}

// llmClient mirrors llm.Client; declared locally so the package depends only
// on the one method it uses.
type llmClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Option func(*Toolset)

// WithRegistry attaches a named-statement registry, enabling RunNamed.
func WithRegistry(r *Registry) Option {
	return func(t *Toolset) { t.registry = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(t *Toolset) { t.log = log }
}

func New(db databases.Database, llm llmClient, cfg config.DatabaseConfig, opts ...Option) *Toolset {
	t := &Toolset{
		db:  db,
		llm: llm,
		cfg: cfg,
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// opCtx bounds a tool call with the configured statement timeout. The server
// enforces its own timeout too; this one covers the client side and lets a
// caller disconnect propagate through ctx.
func (t *Toolset) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.cfg.Timeout())
}

func (t *Toolset) schemaOrDefault(schema string) string {
	if schema == "" {
		return t.cfg.DefaultSchema
	}
	return schema
}

// ListSchemas returns all non-system schemas with their table counts.
func (t *Toolset) ListSchemas(ctx context.Context) (*types.ListSchemasResult, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	schemas, err := t.db.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	if schemas == nil {
		schemas = []types.SchemaDescriptor{}
	}
	return &types.ListSchemasResult{Schemas: schemas}, nil
}

// ListTables returns the base tables of a schema with approximate row counts.
func (t *Toolset) ListTables(ctx context.Context, schema string) (*types.ListTablesResult, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	schema = t.schemaOrDefault(schema)
	tables, err := t.db.ListTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	if tables == nil {
		tables = []types.TableDescriptor{}
	}
	return &types.ListTablesResult{Schema: schema, Tables: tables}, nil
}

// GetTableInfo returns column metadata, key constraints and sample rows for
// one table.
func (t *Toolset) GetTableInfo(ctx context.Context, table, schema string) (*types.TableInfo, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	return t.db.TableInfo(ctx, t.schemaOrDefault(schema), table, t.cfg.SampleRows)
}

// ExecuteSQL runs a statement under the configured write policy and row cap.
// This is the single gate between free-text SQL and the database.
func (t *Toolset) ExecuteSQL(ctx context.Context, sqlText string) (*types.QueryResult, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	return t.execute(ctx, sqlText, nil)
}

func (t *Toolset) execute(ctx context.Context, sqlText string, args []any) (*types.QueryResult, error) {
	guardErr := sqlguard.Validate(sqlText)

	if guardErr != nil {
		if t.cfg.WriteMode != config.WriteAllowed || types.KindOf(guardErr) != types.KindWritePolicy {
			return nil, guardErr
		}
		// Writes are allowed: run the statement without a result set.
		affected, err := t.db.Exec(ctx, sqlText, args)
		if err != nil {
			return nil, err
		}
		return &types.QueryResult{
			Query:   sqlText,
			Message: fmt.Sprintf("Statement executed successfully. Rows affected: %d", affected),
		}, nil
	}

	page, err := t.db.Query(ctx, sqlText, args, t.cfg.MaxRows)
	if err != nil {
		return nil, err
	}
	return &types.QueryResult{
		Query:     sqlText,
		Columns:   page.Columns,
		Rows:      page.Rows,
		RowCount:  len(page.Rows),
		Truncated: page.Truncated,
	}, nil
}

// RunNamed executes a statement from the registry with named parameters. The
// statement text still passes through the same gate as free-text SQL.
func (t *Toolset) RunNamed(ctx context.Context, name string, params map[string]any) (*types.QueryResult, error) {
	if t.registry == nil {
		return nil, types.NewError(types.KindConfiguration, "no statement registry configured")
	}
	stmt, err := t.registry.Get(name)
	if err != nil {
		return nil, err
	}
	if err := stmt.checkParams(params); err != nil {
		return nil, err
	}

	bound, args, err := t.db.BindNamed(stmt.SQL, params)
	if err != nil {
		return nil, err
	}

	ctx, cancel := t.opCtx(ctx)
	defer cancel()
	result, err := t.execute(ctx, bound, args)
	if result != nil {
		// Report the registry template, not the rebound statement.
		result.Query = stmt.SQL
	}
	return result, err
}
