package models

import "encoding/json"

// ToolDescriptor is the registry's contract for a single invocable tool.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`

	// RequiresApproval suspends the graph with an Interrupt before the tool
	// runs, generalizing name-pattern approval matching into a descriptor
	// property any registrant can set.
	RequiresApproval bool `json:"requires_approval,omitempty"`

	// Async marks tools whose execution is tracked as a background job
	// rather than awaited inline in the tool loop.
	Async bool `json:"async,omitempty"`

	// Source identifies where the descriptor came from: "builtin" or
	// "mcp:<server>".
	Source string `json:"source,omitempty"`
}
