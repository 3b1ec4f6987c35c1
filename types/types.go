package types

// SchemaDescriptor is one entry in a list_schemas result.
type SchemaDescriptor struct {
	Name       string `json:"name"`
	TableCount int    `json:"table_count"`
}

// TableDescriptor is one entry in a list_tables result. RowCount comes from
// catalog statistics and is approximate.
type TableDescriptor struct {
	Name        string `json:"name"`
	RowCount    int64  `json:"row_count"`
	Description string `json:"description"`
}

// ColumnDescriptor describes a single column of a table.
type ColumnDescriptor struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Default  string `json:"default"`
}

// ForeignKey is one outgoing foreign-key relation of a table.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencedTable  string `json:"referenced_table"`
	ReferencedColumn string `json:"referenced_column"`
}

// TableInfo is the full get_table_info payload: column metadata, key
// constraints and a bounded preview of the table contents.
type TableInfo struct {
	Table       string             `json:"table"`
	Schema      string             `json:"schema"`
	Columns     []ColumnDescriptor `json:"columns"`
	PrimaryKey  []string           `json:"primary_key"`
	ForeignKeys []ForeignKey       `json:"foreign_keys"`
	SampleRows  [][]any            `json:"sample_rows"`
}

// ListSchemasResult is the payload of list_schemas.
type ListSchemasResult struct {
	Schemas []SchemaDescriptor `json:"schemas"`
}

// ListTablesResult is the payload of list_tables.
type ListTablesResult struct {
	Schema string            `json:"schema"`
	Tables []TableDescriptor `json:"tables"`
}

// QueryPage is the raw outcome of a bounded query as produced by a database
// connector: positional rows aligned to Columns, with Truncated set when the
// result set exceeded the requested cap.
type QueryPage struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

// QueryResult is the execute_sql payload. Rows are positional and aligned to
// Columns. RowCount reports the rows actually returned; Truncated indicates
// the underlying result set was larger than the configured cap.
type QueryResult struct {
	Query     string   `json:"query"`
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
	// Message is set instead of Columns/Rows for non-returning statements
	// executed while writes are allowed.
	Message string `json:"message,omitempty"`
}

// InsightResult is the ask_data_insights payload.
type InsightResult struct {
	Question string   `json:"question"`
	SQLQuery string   `json:"sql_query"`
	Answer   string   `json:"answer"`
	Columns  []string `json:"columns"`
	Data     [][]any  `json:"data"`
	RowCount int      `json:"row_count"`
}
