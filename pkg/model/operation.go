package model

import "time"

// OperationCommand asks the adapter to run one catalog operation, or a batch
// of them when Items is set. Params feed path placeholders; Fields are merged
// into the request body.
type OperationCommand struct {
	Account        string          `json:"account,omitempty"`
	Resource       string          `json:"resource"`
	Operation      string          `json:"operation"`
	Params         map[string]any  `json:"params,omitempty"`
	Fields         map[string]any  `json:"fields,omitempty"`
	Items          []OperationItem `json:"items,omitempty"`
	ContinueOnFail bool            `json:"continueOnFail,omitempty"`
}

// OperationItem is the per-item input of a batch command.
type OperationItem struct {
	Params map[string]any `json:"params,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

// OperationResult is published in reply to an OperationCommand.
type OperationResult struct {
	Resource  string    `json:"resource"`
	Operation string    `json:"operation"`
	Items     []Item    `json:"items,omitempty"`
	Error     string    `json:"error,omitempty"`
	Completed time.Time `json:"completed"`
}

// Item is one output record. Failed items carry Error and PairedItem instead
// of data.
type Item map[string]any

// ToolMetadata describes where a tool result came from.
type ToolMetadata struct {
	Resource  string `json:"resource"`
	Operation string `json:"operation"`
	Timestamp string `json:"timestamp"`
}

// ToolResult is the response shape handed to agent tool callers.
type ToolResult struct {
	Description string       `json:"description"`
	Data        any          `json:"data"`
	Metadata    ToolMetadata `json:"metadata"`
}

// ToolError is returned to tool callers instead of a ToolResult on failure.
type ToolError struct {
	Error     string `json:"error"`
	Resource  string `json:"resource"`
	Operation string `json:"operation"`
}
