package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// Downstream agents match on the status field, so failures are returned as a
// JSON envelope in the tool result text rather than as protocol errors.

func successResult(payload any) (*mcp.CallToolResult, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return failureResult(fmt.Errorf("failed to marshal result: %w", err)), nil
	}

	envelope := map[string]any{}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return failureResult(fmt.Errorf("failed to build envelope: %w", err)), nil
	}
	envelope["status"] = "success"

	out, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return failureResult(fmt.Errorf("failed to marshal envelope: %w", err)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func failureResult(err error) *mcp.CallToolResult {
	out, merr := json.MarshalIndent(map[string]any{
		"status": "error",
		"error":  err.Error(),
	}, "", "  ")
	if merr != nil {
		return mcp.NewToolResultText(`{"status":"error","error":"failed to marshal error"}`)
	}
	return mcp.NewToolResultText(string(out))
}
