package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"

	"github.com/gregoryerrl/pgtoolset/toolset"
	"github.com/gregoryerrl/pgtoolset/types"
)

type ToolHandler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// callLogger tags every tool invocation with a call id so concurrent calls
// stay distinguishable in the log stream.
func callLogger(log zerolog.Logger, tool string) zerolog.Logger {
	return log.With().Str("tool", tool).Str("call_id", uuid.NewString()).Logger()
}

func logOutcome(log zerolog.Logger, start time.Time, err error) {
	if err != nil {
		log.Warn().Err(err).Str("kind", string(types.KindOf(err))).
			Dur("elapsed", time.Since(start)).Msg("tool call failed")
		return
	}
	log.Info().Dur("elapsed", time.Since(start)).Msg("tool call completed")
}

// ListSchemasHandler creates the handler for the list_schemas tool.
func ListSchemasHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "list_schemas")
		start := time.Now()

		result, err := ts.ListSchemas(ctx)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}

// ListTablesHandler creates the handler for the list_tables tool.
func ListTablesHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "list_tables")
		start := time.Now()

		schema := request.GetString("schema", "")
		result, err := ts.ListTables(ctx, schema)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}

// GetTableInfoHandler creates the handler for the get_table_info tool.
func GetTableInfoHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "get_table_info")
		start := time.Now()

		table, err := request.RequireString("table")
		if err != nil {
			return failureResult(types.WrapError(types.KindQuery, err, "missing table parameter")), nil
		}
		schema := request.GetString("schema", "")

		result, err := ts.GetTableInfo(ctx, table, schema)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}

// ExecuteSQLHandler creates the handler for the execute_sql tool.
func ExecuteSQLHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "execute_sql")
		start := time.Now()

		sqlText, err := request.RequireString("query")
		if err != nil {
			return failureResult(types.WrapError(types.KindQuery, err, "missing query parameter")), nil
		}

		result, err := ts.ExecuteSQL(ctx, sqlText)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}

// AskDataInsightsHandler creates the handler for the ask_data_insights tool.
func AskDataInsightsHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "ask_data_insights")
		start := time.Now()

		question, err := request.RequireString("question")
		if err != nil {
			return failureResult(types.WrapError(types.KindQuery, err, "missing question parameter")), nil
		}
		schema := request.GetString("schema", "")

		result, err := ts.AskDataInsights(ctx, question, schema)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}

// RunNamedQueryHandler creates the handler for the run_named_query tool.
func RunNamedQueryHandler(ts *toolset.Toolset, log zerolog.Logger) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		clog := callLogger(log, "run_named_query")
		start := time.Now()

		name, err := request.RequireString("name")
		if err != nil {
			return failureResult(types.WrapError(types.KindQuery, err, "missing name parameter")), nil
		}

		params := map[string]any{}
		if args, ok := request.Params.Arguments.(map[string]any); ok {
			if raw, exists := args["parameters"]; exists {
				if m, ok := raw.(map[string]any); ok {
					params = m
				}
			}
		}

		result, err := ts.RunNamed(ctx, name, params)
		logOutcome(clog, start, err)
		if err != nil {
			return failureResult(err), nil
		}
		return successResult(result)
	}
}
