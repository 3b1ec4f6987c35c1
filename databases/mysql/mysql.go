package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/gregoryerrl/pgtoolset/types"
)

// Server error raised when max_execution_time cancels a query.
const maxExecutionTimeExceeded = 3024

type Connector struct {
	db *sqlx.DB
}

// New opens a pooled connection with max_execution_time injected into the
// DSN so long SELECTs are cancelled server-side.
func New(connectionString string, timeout time.Duration) (*Connector, error) {
	dsn, err := mysql.ParseDSN(connectionString)
	if err != nil {
		return nil, types.WrapError(types.KindConfiguration, err, "failed to parse connection string")
	}
	if dsn.Params == nil {
		dsn.Params = map[string]string{}
	}
	dsn.Params["max_execution_time"] = strconv.FormatInt(timeout.Milliseconds(), 10)

	db, err := sqlx.Open("mysql", dsn.FormatDSN())
	if err != nil {
		return nil, types.WrapError(types.KindConfiguration, err, "failed to open database")
	}
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
			s.schema_name,
			COUNT(t.table_name) AS table_count
		FROM information_schema.schemata s
		LEFT JOIN information_schema.tables t
			ON t.table_schema = s.schema_name AND t.table_type = 'BASE TABLE'
		WHERE s.schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		GROUP BY s.schema_name
		ORDER BY s.schema_name
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
	var exists bool
	err := c.db.GetContext(ctx, &exists, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.schemata
			WHERE schema_name = ?
			AND schema_name NOT IN ('mysql', 'information_schema', 'performance_schema', 'sys')
		)`, schema)
	if err != nil {
		return nil, mapError(err, "failed to check schema existence")
	}
	if !exists {
		return nil, types.Errorf(types.KindNotFound, "schema %q not found", schema)
	}

	// TABLE_ROWS is the storage-engine estimate, which is what we want: a
	// size hint without a full scan.
	rows, err := c.db.QueryContext(ctx, `
		SELECT
			table_name,
			COALESCE(table_rows, 0) AS row_count,
			COALESCE(table_comment, '') AS description
		FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
		ORDER BY table_name
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
			WHERE table_schema = ? AND table_name = ?
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

	pkRows, err := tx.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, mapError(err, "failed to query primary key")
	}
	defer pkRows.Close()
	for pkRows.Next() {
		var name string
		if err := pkRows.Scan(&name); err != nil {
			return nil, mapError(err, "failed to scan primary key column")
		}
		info.PrimaryKey = append(info.PrimaryKey, name)
	}
	if err := pkRows.Err(); err != nil {
		return nil, mapError(err, "failed to read primary key")
	}

	fkRows, err := tx.QueryContext(ctx, `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ?
		AND referenced_table_name IS NOT NULL
		ORDER BY ordinal_position
	`, schema, table)
	if err != nil {
		return nil, mapError(err, "failed to query foreign keys")
	}
	defer fkRows.Close()
	for fkRows.Next() {
		var fk types.ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, mapError(err, "failed to scan foreign key")
		}
		info.ForeignKeys = append(info.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return nil, mapError(err, "failed to read foreign keys")
	}

	if sampleRows > 0 {
		sample := fmt.Sprintf("SELECT * FROM `%s`.`%s` LIMIT %d", schema, table, sampleRows)
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

func (c *Connector) loadColumns(ctx context.Context, tx *sqlx.Tx, schema, table string) ([]types.ColumnDescriptor, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS nullable,
			COALESCE(column_default, '') AS column_default
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
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

func normalizeRow(row []any) []any {
	for i, v := range row {
		if b, ok := v.([]byte); ok {
			row[i] = string(b)
		}
	}
	return row
}

func mapError(err error, message string) error {
	var kindErr *types.Error
	if errors.As(err, &kindErr) {
		return err
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == maxExecutionTimeExceeded {
		return types.WrapError(types.KindTimeout, err, "query exceeded the configured statement timeout")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.WrapError(types.KindTimeout, err, "query exceeded the configured statement timeout")
	}
	return types.WrapError(types.KindQuery, err, message)
}
