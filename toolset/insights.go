package toolset

import (
	"context"
	"fmt"
	"strings"

	"github.com/gregoryerrl/pgtoolset/llm"
	"github.com/gregoryerrl/pgtoolset/types"
)

// At most this many tables are described in the generation prompt.
const maxContextTables = 10

// How many result rows are shown to the model when phrasing the answer.
const answerPreviewRows = 5

const generationPromptFormat = `You are a SQL expert. Given the following %s schema and a question, generate a SQL query.

Schema (%s):
%s

Question: %s

Rules:
1. Return ONLY the SQL query, no explanations
2. Use only SELECT statements
3. Limit results to %d rows
4. Use proper table qualification with schema name when needed

SQL:`

const answerPromptFormat = `Based on this SQL query result, provide a concise answer.

Question: %s
SQL: %s
Data (preview): %s
Row count: %d

Answer (1-2 sentences):`

// AskDataInsights answers a natural-language question: the model generates
// SQL from the live schema, the query runs through the same gate as
// execute_sql, and the model phrases the result. Generation is retried once
// with the failure appended; a phrasing failure degrades to a templated
// answer instead of failing the call, since the query already succeeded.
func (t *Toolset) AskDataInsights(ctx context.Context, question, schema string) (*types.InsightResult, error) {
	schema = t.schemaOrDefault(schema)

	schemaContext, err := t.schemaContext(ctx, schema)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(generationPromptFormat,
		t.cfg.Engine, schema, schemaContext, question, t.cfg.MaxRows)

	sqlText, err := t.generateSQL(ctx, prompt)
	if err != nil {
		return nil, err
	}
	t.log.Debug().Str("sql", sqlText).Msg("generated query")

	result, err := t.ExecuteSQL(ctx, sqlText)
	if err != nil {
		return nil, err
	}

	answer := t.phraseAnswer(ctx, question, sqlText, result)

	return &types.InsightResult{
		Question: question,
		SQLQuery: sqlText,
		Answer:   answer,
		Columns:  result.Columns,
		Data:     result.Rows,
		RowCount: result.RowCount,
	}, nil
}

// generateSQL asks the model for a query, retrying once with the first
// failure appended as extra context. The second failure surfaces.
func (t *Toolset) generateSQL(ctx context.Context, prompt string) (string, error) {
	text, err := t.llm.Complete(ctx, prompt)
	if err != nil {
		t.log.Warn().Err(err).Msg("SQL generation failed, retrying once")
		retryPrompt := fmt.Sprintf("%s\n\nThe previous attempt failed with: %v\nTry again.", prompt, err)
		text, err = t.llm.Complete(ctx, retryPrompt)
		if err != nil {
			return "", err
		}
	}
	return llm.StripCodeFence(text), nil
}

func (t *Toolset) phraseAnswer(ctx context.Context, question, sqlText string, result *types.QueryResult) string {
	preview := result.Rows
	if len(preview) > answerPreviewRows {
		preview = preview[:answerPreviewRows]
	}
	prompt := fmt.Sprintf(answerPromptFormat, question, sqlText, fmt.Sprint(preview), result.RowCount)

	answer, err := t.llm.Complete(ctx, prompt)
	if err != nil {
		t.log.Warn().Err(err).Msg("answer phrasing failed, using fallback")
		return fallbackAnswer(result)
	}
	return strings.TrimSpace(answer)
}

func fallbackAnswer(result *types.QueryResult) string {
	if result.Truncated {
		return fmt.Sprintf("The query returned %d rows (truncated to the configured limit).", result.RowCount)
	}
	return fmt.Sprintf("The query returned %d rows.", result.RowCount)
}

// schemaContext renders up to maxContextTables tables of a schema as
// "- name: col (type), ..." lines for the generation prompt.
func (t *Toolset) schemaContext(ctx context.Context, schema string) (string, error) {
	tables, err := t.ListTables(ctx, schema)
	if err != nil {
		return "", err
	}

	var lines []string
	for i, table := range tables.Tables {
		if i == maxContextTables {
			break
		}
		info, err := t.GetTableInfo(ctx, table.Name, schema)
		if err != nil {
			// A single undescribable table should not sink the whole prompt.
			t.log.Warn().Err(err).Str("table", table.Name).Msg("skipping table in schema context")
			continue
		}
		cols := make([]string, len(info.Columns))
		for j, col := range info.Columns {
			cols[j] = fmt.Sprintf("%s (%s)", col.Name, col.Type)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", table.Name, strings.Join(cols, ", ")))
	}
	return strings.Join(lines, "\n"), nil
}
