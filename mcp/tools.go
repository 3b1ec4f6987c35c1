package mcp

import (
	goMCP "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/gregoryerrl/pgtoolset/handlers"
	"github.com/gregoryerrl/pgtoolset/toolset"
)

// RegisterTools declares the toolset's tools on the MCP server. The
// run_named_query tool only appears when a statement registry is configured.
func RegisterTools(s *server.MCPServer, ts *toolset.Toolset, log zerolog.Logger, withRegistry bool) {
	listSchemasTool := goMCP.NewTool("list_schemas",
		goMCP.WithDescription("List all schemas in the database with their table counts. Use this first to discover what is available."),
	)

	listTablesTool := goMCP.NewTool("list_tables",
		goMCP.WithDescription("List tables in a schema with approximate row counts and descriptions"),
		goMCP.WithString("schema",
			goMCP.Description("Schema to list tables from (default: the configured default schema)"),
		),
	)

	getTableInfoTool := goMCP.NewTool("get_table_info",
		goMCP.WithDescription("Get detailed metadata about a table: columns, primary key, foreign keys, and a few sample rows"),
		goMCP.WithString("table",
			goMCP.Required(),
			goMCP.Description("Name of the table to describe"),
		),
		goMCP.WithString("schema",
			goMCP.Description("Schema containing the table (default: the configured default schema)"),
		),
	)

	executeSQLTool := goMCP.NewTool("execute_sql",
		goMCP.WithDescription("Execute a SQL query. Write operations are blocked unless the server is configured to allow them."),
		goMCP.WithString("query",
			goMCP.Required(),
			goMCP.Description("SQL query to execute"),
		),
	)

	askDataInsightsTool := goMCP.NewTool("ask_data_insights",
		goMCP.WithDescription("Answer a natural-language question about the data: generates SQL, runs it, and phrases the result"),
		goMCP.WithString("question",
			goMCP.Required(),
			goMCP.Description("Natural language question about the data"),
		),
		goMCP.WithString("schema",
			goMCP.Description("Schema to query (default: the configured default schema)"),
		),
	)

	s.AddTool(listSchemasTool, server.ToolHandlerFunc(handlers.ListSchemasHandler(ts, log)))
	s.AddTool(listTablesTool, server.ToolHandlerFunc(handlers.ListTablesHandler(ts, log)))
	s.AddTool(getTableInfoTool, server.ToolHandlerFunc(handlers.GetTableInfoHandler(ts, log)))
	s.AddTool(executeSQLTool, server.ToolHandlerFunc(handlers.ExecuteSQLHandler(ts, log)))
	s.AddTool(askDataInsightsTool, server.ToolHandlerFunc(handlers.AskDataInsightsHandler(ts, log)))

	if withRegistry {
		runNamedQueryTool := goMCP.NewTool("run_named_query",
			goMCP.WithDescription("Run a predefined query from the statement registry with named parameters"),
			goMCP.WithString("name",
				goMCP.Required(),
				goMCP.Description("Name of the registered query"),
			),
			goMCP.WithObject("parameters",
				goMCP.Description("Named parameters for the query"),
			),
		)
		s.AddTool(runNamedQueryTool, server.ToolHandlerFunc(handlers.RunNamedQueryHandler(ts, log)))
	}
}
