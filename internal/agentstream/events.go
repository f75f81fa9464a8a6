// Package agentstream decodes the agent's line-delimited JSON output into
// typed events. Each line maps to at most one event; lines that fail to
// decode or carry an unknown discriminator are discarded, since the agent
// interleaves diagnostic noise with its machine-readable stream.
package agentstream

// Event is one decoded agent stream event.
type Event interface {
	isEvent()
}

// AssistantText is an assistant message carrying plain text content.
type AssistantText struct {
	Text string
}

// AssistantToolCall is an assistant message whose entire text content parsed
// as a structured tool invocation.
type AssistantToolCall struct {
	Name      string
	Arguments map[string]any
}

// Result is the terminal event of an execution. Text is the canonical result
// payload: if the raw result field embedded a balanced JSON object, that
// object replaces the surrounding prose.
type Result struct {
	Text string
}

func (AssistantText) isEvent()     {}
func (AssistantToolCall) isEvent() {}
func (Result) isEvent()            {}
