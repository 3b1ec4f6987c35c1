package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/gregoryerrl/pgtoolset/types"
)

// SQLSTATE raised when statement_timeout cancels a query.
const queryCanceledCode = "57014"

type Connector struct {
	db *sqlx.DB
}

// New opens a pooled connection with the statement timeout applied as a
// session runtime parameter, so the server cancels runaway queries even if
// the client context survives.
func New(connectionString string, timeout time.Duration) (*Connector, error) {
	cfg, err := pgx.ParseConfig(connectionString)
	if err != nil {
		return nil, types.WrapError(types.KindConfiguration, err, "failed to parse connection string")
	}

	cfg.PreferSimpleProtocol = true
	if cfg.RuntimeParams == nil {
		cfg.RuntimeParams = map[string]string{}
	}
	cfg.RuntimeParams["statement_timeout"] = strconv.FormatInt(timeout.Milliseconds(), 10)

	db := sqlx.NewDb(stdlib.OpenDB(*cfg), "pgx")
	db.SetMaxOpenConns(8)
	db.SetConnMaxIdleTime(5 * time.Minute)

	c := &Connector{db: db}
	if err := c.Ping(context.Background()); err != nil {
		db.Close()
		return nil, types.WrapError(types.KindConfiguration, err, "failed to ping database")
	}
	return c, nil
}

// NewFromDB wraps an existing pool. Used by tests.
func NewFromDB(db *sqlx.DB) *Connector {
	return &Connector{db: db}
}

func (c *Connector) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Connector) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Connector) ListSchemas(ctx context.Context) ([]types.SchemaDescriptor, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT
			n.nspname AS schema_name,
			COUNT(c.relname) AS table_count
		FROM pg_namespace n
		LEFT JOIN pg_class c ON c.relnamespace = n.oid AND c.relkind = 'r'
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		GROUP BY n.nspname
		ORDER BY n.nspname
	`)
	if err != nil {
		return nil, mapError(err, "failed to query schemas")
	}
	defer rows.Close()

	var schemas []types.SchemaDescriptor
	for rows.Next() {
		var s types.SchemaDescriptor
		if err := rows.Scan(&s.Name, &s.TableCount); err != nil {
			return nil, mapError(err, "failed to scan schema")
		}
		schemas = append(schemas, s)
	}
	return schemas, rows.Err()
}

func (c *Connector) ListTables(ctx context.Context, schema string) ([]types.TableDescriptor, error) {
	exists, err := c.schemaExists(ctx, schema)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, types.Errorf(types.KindNotFound, "schema %q not found", schema)
	}

	// Row counts come from pg_stat_user_tables so large tables are never
	// scanned just to report a size.
	rows, err := c.db.QueryContext(ctx, `
		SELECT
			t.tablename,
			COALESCE(s.n_live_tup, 0) AS row_count,
			COALESCE(d.description, '') AS description
		FROM pg_tables t
		LEFT JOIN pg_stat_user_tables s
			ON t.tablename = s.relname AND t.schemaname = s.schemaname
		LEFT JOIN pg_class c
			ON c.relname = t.tablename
		LEFT JOIN pg_namespace n
			ON n.oid = c.relnamespace AND n.nspname = t.schemaname
		LEFT JOIN pg_description d
			ON d.objoid = c.oid AND d.objsubid = 0
		WHERE t.schemaname = $1
		ORDER BY t.tablename
	`, schema)
	if err != nil {
		return nil, mapError(err, "failed to query tables")
	}
	defer rows.Close()

	var tables []types.TableDescriptor
	for rows.Next() {
		var t types.TableDescriptor
		if err := rows.Scan(&t.Name, &t.RowCount, &t.Description); err != nil {
			return nil, mapError(err, "failed to scan table")
		}
		tables = append(tables, t)
	}
	return tables, rows.Err()
}

func (c *Connector) TableInfo(ctx context.Context, schema, table string, sampleRows int) (*types.TableInfo, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, mapError(err, "failed to begin transaction")
	}
	defer tx.Commit()

	var exists bool
	err = tx.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table)
	if err != nil {
		return nil, mapError(err, "failed to check table existence")
	}
	if !exists {
		return nil, types.Errorf(types.KindNotFound, "table %q not found in schema %q", table, schema)
	}

	info := &types.TableInfo{
		Table:       table,
		Schema:      schema,
		PrimaryKey:  []string{},
		ForeignKeys: []types.ForeignKey{},
		SampleRows:  [][]any{},
	}

	if info.Columns, err = c.loadColumns(ctx, tx, schema, table); err != nil {
		return nil, err
	}
	if info.PrimaryKey, err = c.loadPrimaryKey(ctx, tx, schema, table); err != nil {
		return nil, err
	}
	if info.ForeignKeys, err = c.loadForeignKeys(ctx, tx, schema, table); err != nil {
		return nil, err
	}

	// The sample runs inside the same read-only transaction, so it stays
	// read-only regardless of the configured write mode.
	if sampleRows > 0 {
		sample := fmt.Sprintf(`SELECT * FROM %s.%s LIMIT %d`,
			pgx.Identifier{schema}.Sanitize(), pgx.Identifier{table}.Sanitize(), sampleRows)
		rows, err := tx.QueryxContext(ctx, sample)
		if err != nil {
			return nil, mapError(err, "failed to sample table")
		}
		defer rows.Close()
		for rows.Next() {
			row, err := rows.SliceScan()
			if err != nil {
				return nil, mapError(err, "failed to scan sample row")
			}
			info.SampleRows = append(info.SampleRows, normalizeRow(row))
		}
		if err := rows.Err(); err != nil {
			return nil, mapError(err, "failed to read sample rows")
		}
	}

	return info, nil
}

func (c *Connector) Query(ctx context.Context, sqlText string, args []any, maxRows int) (*types.QueryPage, error) {
	tx, err := c.db.BeginTxx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, mapError(err, "failed to begin transaction")
	}
	defer tx.Commit()

	rows, err := tx.QueryxContext(ctx, sqlText, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, mapError(err, "failed to read result columns")
	}

	page := &types.QueryPage{Columns: columns, Rows: [][]any{}}
	for rows.Next() {
		// Fetch one row past the cap so truncation can be reported without
		// pulling the whole result set.
		if maxRows > 0 && len(page.Rows) == maxRows {
			page.Truncated = true
			break
		}
		row, err := rows.SliceScan()
		if err != nil {
			return nil, mapError(err, "failed to scan row")
		}
		page.Rows = append(page.Rows, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err, "failed to read rows")
	}
	return page, nil
}

func (c *Connector) Exec(ctx context.Context, sqlText string, args []any) (int64, error) {
	res, err := c.db.ExecContext(ctx, sqlText, args...)
	if err != nil {
		return 0, mapError(err, "statement failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err, "failed to read affected row count")
	}
	return affected, nil
}

func (c *Connector) BindNamed(sqlText string, params map[string]any) (string, []any, error) {
	bound, args, err := c.db.BindNamed(sqlText, params)
	if err != nil {
		return "", nil, types.WrapError(types.KindQuery, err, "failed to bind named parameters")
	}
	return bound, args, nil
}

func (c *Connector) schemaExists(ctx context.Context, schema string) (bool, error) {
	var exists bool
	err := c.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM pg_namespace
			WHERE nspname = $1
			AND nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		)`, schema)
	if err != nil {
		return false, mapError(err, "failed to check schema existence")
	}
	return exists, nil
}

func (c *Connector) loadColumns(ctx context.Context, tx *sqlx.Tx, schema, table string) ([]types.ColumnDescriptor, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS nullable,
			COALESCE(column_default, '') AS column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, mapError(err, "failed to query columns")
	}
	defer rows.Close()

	var columns []types.ColumnDescriptor
	for rows.Next() {
		var col types.ColumnDescriptor
		if err := rows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Default); err != nil {
			return nil, mapError(err, "failed to scan column")
		}
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

func (c *Connector) loadPrimaryKey(ctx context.Context, tx *sqlx.Tx, schema, table string) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE i.indisprimary AND c.relname = $1 AND n.nspname = $2
	`, table, schema)
	if err != nil {
		return nil, mapError(err, "failed to query primary key")
	}
	defer rows.Close()

	pk := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan primary key column")
		}
		pk = append(pk, name)
	}
	return pk, rows.Err()
}

func (c *Connector) loadForeignKeys(ctx context.Context, tx *sqlx.Tx, schema, table string) ([]types.ForeignKey, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT
			kcu.column_name,
			ccu.table_name AS referenced_table,
			ccu.column_name AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
	`, schema, table)
	if err != nil {
		return nil, mapError(err, "failed to query foreign keys")
	}
	defer rows.Close()

	fks := []types.ForeignKey{}
	for rows.Next() {
		var fk types.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// normalizeRow converts driver byte slices to strings so payloads marshal as
// text instead of base64.
func normalizeRow(row []any) []any {
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			row[i] = string(b)
		}
	}
	return row
}

// mapError classifies driver failures: server-side statement_timeout
// cancellations and client context deadlines become timeout errors, anything
// else keeps the driver message verbatim as a query error.
func mapError(err error, message string) error {
	var kindErr *types.Error
	if errors.As(err, &kindErr) {
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == queryCanceledCode {
		return types.WrapError(types.KindTimeout, err, "query exceeded the configured statement timeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapError(types.KindTimeout, err, "query exceeded the configured statement timeout")
	}
	return types.WrapError(types.KindQuery, err, message)
}
