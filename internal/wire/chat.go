// Package wire defines the two outward-facing wire protocols and the
// encoders that translate agent events into them. Protocol shapes follow
// the OpenAI chat-completions and responses conventions so existing clients
// can point at the gateway unchanged.
package wire

import "encoding/json"

// Finish reasons reported on completed turns.
const (
	FinishStop      = "stop"
	FinishToolCalls = "tool_calls"
)

// ChatRequest is an inbound chat-completions request.
type ChatRequest struct {
	Model    string        `json:"model"`
	Messages []ChatMessage `json:"messages"`
	Stream   bool          `json:"stream,omitempty"`
	Tools    []Tool        `json:"tools,omitempty"`
}

// ChatMessage is one role-tagged conversation message.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool is one caller-supplied tool definition.
type Tool struct {
	Type     string         `json:"type"`
	Function ToolDefinition `json:"function"`
}

// ToolDefinition carries a tool's name, description, and JSON-schema
// parameter spec. Parameters stay raw: the gateway renders them into the
// prompt verbatim and never interprets the schema.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

// ChatResponse is a buffered chat-completions response.
type ChatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
	Usage   Usage        `json:"usage"`
}

// ChatChoice is one completed choice. The gateway always produces exactly
// one.
type ChatChoice struct {
	Index        int              `json:"index"`
	Message      AssistantMessage `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// AssistantMessage is the assistant's turn: either populated content or a
// tool-call payload with null content, never both.
type AssistantMessage struct {
	Role      string            `json:"role"`
	Content   *string           `json:"content"`
	ToolCalls []ToolCallPayload `json:"tool_calls,omitempty"`
}

// ToolCallPayload is one tool invocation in the outbound shape.
type ToolCallPayload struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the invoked function name and its arguments as a
// JSON-encoded string, per the chat-completions convention.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token counts. The gateway does not meter the agent, so all
// counts are zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatStreamChunk is one chat.completion.chunk frame body.
type ChatStreamChunk struct {
	ID      string             `json:"id"`
	Object  string             `json:"object"`
	Created int64              `json:"created"`
	Model   string             `json:"model"`
	Choices []ChatStreamChoice `json:"choices"`
}

// ChatStreamChoice is one streamed choice delta.
type ChatStreamChoice struct {
	Index        int       `json:"index"`
	Delta        ChatDelta `json:"delta"`
	FinishReason *string   `json:"finish_reason"`
}

// ChatDelta is the incremental payload of one chunk.
type ChatDelta struct {
	Role      string          `json:"role,omitempty"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCallDelta `json:"tool_calls,omitempty"`
}

// ToolCallDelta is an incremental tool-call fragment with its position in
// the turn's tool-call list.
type ToolCallDelta struct {
	Index    int          `json:"index"`
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// ErrorResponse is the uniform error body for both protocols.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one error.
type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
}
