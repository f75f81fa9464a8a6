package wire

import "encoding/json"

// Input item discriminators for the responses protocol.
const (
	ItemMessage            = "message"
	ItemFunctionCall       = "function_call"
	ItemFunctionCallOutput = "function_call_output"
)

// ResponsesRequest is an inbound response-item style request.
type ResponsesRequest struct {
	Model  string          `json:"model"`
	Input  []InputItem     `json:"input"`
	Stream bool            `json:"stream,omitempty"`
	Tools  []ResponsesTool `json:"tools,omitempty"`
}

// InputItem is one typed input item. Fields are populated according to
// Type: message carries Role and Content; function_call carries Name,
// Arguments, and CallID; function_call_output carries CallID and Output.
type InputItem struct {
	Type      string `json:"type"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Output    string `json:"output,omitempty"`
}

// ResponsesTool is a tool definition in the responses protocol's flat shape.
type ResponsesTool struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ResponsesResponse is a buffered responses-protocol response.
type ResponsesResponse struct {
	ID        string         `json:"id"`
	Object    string         `json:"object"`
	CreatedAt int64          `json:"created_at"`
	Status    string         `json:"status"`
	Model     string         `json:"model"`
	Output    []OutputItem   `json:"output"`
	Usage     ResponsesUsage `json:"usage"`
}

// OutputItem is one output item: an assistant message or a function call.
type OutputItem struct {
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Status    string          `json:"status,omitempty"`
	Role      string          `json:"role,omitempty"`
	Content   []OutputContent `json:"content,omitempty"`
	Name      string          `json:"name,omitempty"`
	Arguments string          `json:"arguments,omitempty"`
	CallID    string          `json:"call_id,omitempty"`
}

// OutputContent is one content part of an output message.
type OutputContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ResponsesUsage reports token counts in the responses shape; always zero.
type ResponsesUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
