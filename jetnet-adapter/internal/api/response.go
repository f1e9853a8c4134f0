package api

import "github.com/aviation-connect/adapters/pkg/model"

// OperationResponse carries the normalized payload of a single run, or the
// flattened items of a batch run.
type OperationResponse struct {
	Resource  string       `json:"resource"`
	Operation string       `json:"operation"`
	Data      any          `json:"data,omitempty"`
	Items     []model.Item `json:"items,omitempty"`
}

// ErrorResponse is returned for failed runs. Both texts are sanitized.
type ErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"description,omitempty"`
	Resource    string `json:"resource,omitempty"`
	Operation   string `json:"operation,omitempty"`
	Item        *int   `json:"item,omitempty"`
}

// OperationInfo describes one catalog entry for GET /api/v1/operations.
type OperationInfo struct {
	Operation   string   `json:"operation"`
	Method      string   `json:"method"`
	Description string   `json:"description"`
	Params      []string `json:"params,omitempty"`
}

// ResourceInfo groups OperationInfo by resource.
type ResourceInfo struct {
	Resource    string          `json:"resource"`
	Description string          `json:"description"`
	Operations  []OperationInfo `json:"operations"`
}
