package api

// OperationRequest is the payload for running a catalog operation. When
// Items is set the operation runs once per item and Params/Fields are
// ignored.
type OperationRequest struct {
	Account        string         `json:"account"`
	Params         map[string]any `json:"params"`
	Fields         map[string]any `json:"fields"`
	Items          []ItemRequest  `json:"items"`
	ContinueOnFail bool           `json:"continueOnFail"`
}

// ItemRequest is one input record of a batch run.
type ItemRequest struct {
	Params map[string]any `json:"params"`
	Fields map[string]any `json:"fields"`
}

// ToolRequest is the payload for the agent tool endpoint.
type ToolRequest struct {
	Account     string         `json:"account"`
	Params      map[string]any `json:"params"`
	Fields      map[string]any `json:"fields"`
	Description string         `json:"description"`
}
