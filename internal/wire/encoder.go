package wire

import (
	"encoding/json"
	"strings"
	"time"

	"codegate/internal/agentstream"
	"codegate/internal/reqid"
	"codegate/internal/toolcall"
)

// Envelope renders shared streaming decisions into one protocol's frame
// format. Implementations may be stateful; one envelope serves one stream.
type Envelope interface {
	// Start produces frames that open the stream, before any delta.
	Start() []Frame
	// Role produces the role-bearing first delta of the assistant turn.
	Role() []Frame
	// Content produces a content-only delta.
	Content(text string) []Frame
	// ToolCall produces a tool-call delta at the given position in the turn.
	ToolCall(index int, id, name, argsJSON string) []Frame
	// Finish produces the finishing frame for the completion reason and the
	// stream-termination sentinel.
	Finish(reason string) []Frame
	// Error produces a terminal error frame and the sentinel.
	Error(message string) []Frame
}

// StreamEncoder turns agent events into protocol frames. The decision
// logic — role first, tool-call detection per assistant fragment, finish
// reason from whether any tool call was seen — is shared across protocols;
// the envelope supplies the framing.
type StreamEncoder struct {
	env         Envelope
	sentRole    bool
	toolIndex   int
	sawToolCall bool
	finished    bool
	discarded   int
}

func NewStreamEncoder(env Envelope) *StreamEncoder {
	return &StreamEncoder{env: env}
}

// Begin produces the stream-opening frames.
func (e *StreamEncoder) Begin() []Frame {
	return e.env.Start()
}

// Encode maps one agent event to zero or more frames. Assistant text is
// inspected for an embedded tool call per fragment; the stream has no
// single finalization point before the terminal result event, so detection
// cannot wait for the end.
func (e *StreamEncoder) Encode(ev agentstream.Event) []Frame {
	if e.finished {
		return nil
	}
	switch ev := ev.(type) {
	case agentstream.AssistantText:
		if call, discarded := toolcall.Extract(ev.Text); call != nil {
			e.discarded += discarded
			return e.encodeToolCall(call.Name, call.Arguments)
		}
		if strings.TrimSpace(ev.Text) == "" {
			return nil
		}
		frames := e.roleFrames()
		return append(frames, e.env.Content(ev.Text)...)

	case agentstream.AssistantToolCall:
		return e.encodeToolCall(ev.Name, ev.Arguments)

	case agentstream.Result:
		return e.Finish()

	default:
		return nil
	}
}

// Finish produces the finishing frame and sentinel. Called by Encode on the
// terminal result event, or by the consumer when the stream ended without
// one. Idempotent: at most one finishing frame per stream.
func (e *StreamEncoder) Finish() []Frame {
	if e.finished {
		return nil
	}
	e.finished = true
	frames := e.roleFrames()
	return append(frames, e.env.Finish(e.FinishReason())...)
}

// Error produces a terminal error frame. The stream is finished afterwards.
func (e *StreamEncoder) Error(message string) []Frame {
	e.finished = true
	return e.env.Error(message)
}

// FinishReason is "tool_calls" if any tool call was seen during the stream,
// else "stop".
func (e *StreamEncoder) FinishReason() string {
	if e.sawToolCall {
		return FinishToolCalls
	}
	return FinishStop
}

// Discarded reports how many extra tool-call candidates were dropped by the
// first-match policy over the whole stream.
func (e *StreamEncoder) Discarded() int {
	return e.discarded
}

func (e *StreamEncoder) encodeToolCall(name string, arguments map[string]any) []Frame {
	e.sawToolCall = true
	frames := e.roleFrames()
	frames = append(frames, e.env.ToolCall(e.toolIndex, reqid.NewToolCallID(), name, MarshalArguments(arguments))...)
	e.toolIndex++
	return frames
}

func (e *StreamEncoder) roleFrames() []Frame {
	if e.sentRole {
		return nil
	}
	e.sentRole = true
	return e.env.Role()
}

// MarshalArguments encodes tool-call arguments as the JSON string the wire
// protocols expect. Nil arguments become an empty object.
func MarshalArguments(arguments map[string]any) string {
	if arguments == nil {
		return "{}"
	}
	data, err := json.Marshal(arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ChatEnvelope frames deltas as chat.completion.chunk objects in data-only
// frames.
type ChatEnvelope struct {
	ID      string
	Model   string
	Created int64
}

func NewChatEnvelope(model string) *ChatEnvelope {
	return &ChatEnvelope{
		ID:      reqid.NewChatCompletionID(),
		Model:   model,
		Created: time.Now().Unix(),
	}
}

func (c *ChatEnvelope) Start() []Frame { return nil }

func (c *ChatEnvelope) Role() []Frame {
	return []Frame{c.chunk(ChatDelta{Role: "assistant"}, nil)}
}

func (c *ChatEnvelope) Content(text string) []Frame {
	return []Frame{c.chunk(ChatDelta{Content: text}, nil)}
}

func (c *ChatEnvelope) ToolCall(index int, id, name, argsJSON string) []Frame {
	delta := ChatDelta{ToolCalls: []ToolCallDelta{{
		Index:    index,
		ID:       id,
		Type:     "function",
		Function: FunctionCall{Name: name, Arguments: argsJSON},
	}}}
	return []Frame{c.chunk(delta, nil)}
}

func (c *ChatEnvelope) Finish(reason string) []Frame {
	return []Frame{c.chunk(ChatDelta{}, &reason), DoneSentinel}
}

func (c *ChatEnvelope) Error(message string) []Frame {
	data, _ := json.Marshal(ErrorResponse{Error: ErrorBody{
		Message: message,
		Type:    "server_error",
	}})
	return []Frame{{Data: data}, DoneSentinel}
}

func (c *ChatEnvelope) chunk(delta ChatDelta, finish *string) Frame {
	data, _ := json.Marshal(ChatStreamChunk{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Created: c.Created,
		Model:   c.Model,
		Choices: []ChatStreamChoice{{Delta: delta, FinishReason: finish}},
	})
	return Frame{Data: data}
}

// ResponsesEnvelope frames deltas as named response.* events. It
// accumulates output items so the final response.completed frame can carry
// the full response object.
type ResponsesEnvelope struct {
	ID        string
	Model     string
	CreatedAt int64

	messageItemID string
	text          strings.Builder
	output        []OutputItem
}

func NewResponsesEnvelope(model string) *ResponsesEnvelope {
	return &ResponsesEnvelope{
		ID:        reqid.NewResponseID(),
		Model:     model,
		CreatedAt: time.Now().Unix(),
	}
}

func (r *ResponsesEnvelope) Start() []Frame {
	return []Frame{r.event("response.created", map[string]any{
		"type":     "response.created",
		"response": r.response("in_progress"),
	})}
}

// Role emits nothing: the responses protocol has no standalone role delta,
// and opening a message item here would leave it dangling in_progress on a
// turn that only carries tool calls. The message item is opened lazily by
// the first text delta instead.
func (r *ResponsesEnvelope) Role() []Frame { return nil }

func (r *ResponsesEnvelope) Content(text string) []Frame {
	var frames []Frame
	if r.messageItemID == "" {
		r.messageItemID = reqid.NewOutputItemID()
		frames = append(frames, r.event("response.output_item.added", map[string]any{
			"type": "response.output_item.added",
			"item": OutputItem{
				Type:   "message",
				ID:     r.messageItemID,
				Status: "in_progress",
				Role:   "assistant",
			},
		}))
	}
	r.text.WriteString(text)
	return append(frames, r.event("response.output_text.delta", map[string]any{
		"type":    "response.output_text.delta",
		"item_id": r.messageItemID,
		"delta":   text,
	}))
}

func (r *ResponsesEnvelope) ToolCall(index int, id, name, argsJSON string) []Frame {
	item := OutputItem{
		Type:      "function_call",
		ID:        reqid.NewOutputItemID(),
		Status:    "completed",
		Name:      name,
		Arguments: argsJSON,
		CallID:    id,
	}
	r.output = append(r.output, item)
	return []Frame{r.event("response.output_item.done", map[string]any{
		"type": "response.output_item.done",
		"item": item,
	})}
}

func (r *ResponsesEnvelope) Finish(string) []Frame {
	var frames []Frame
	if r.text.Len() > 0 {
		item := OutputItem{
			Type:   "message",
			ID:     r.messageItemID,
			Status: "completed",
			Role:   "assistant",
			Content: []OutputContent{{
				Type: "output_text",
				Text: r.text.String(),
			}},
		}
		r.output = append(r.output, item)
		frames = append(frames, r.event("response.output_item.done", map[string]any{
			"type": "response.output_item.done",
			"item": item,
		}))
	}
	frames = append(frames, r.event("response.completed", map[string]any{
		"type":     "response.completed",
		"response": r.response("completed"),
	}))
	return append(frames, DoneSentinel)
}

func (r *ResponsesEnvelope) Error(message string) []Frame {
	data, _ := json.Marshal(ErrorResponse{Error: ErrorBody{
		Message: message,
		Type:    "server_error",
	}})
	return []Frame{{Event: "error", Data: data}, DoneSentinel}
}

func (r *ResponsesEnvelope) response(status string) ResponsesResponse {
	output := r.output
	if output == nil {
		output = []OutputItem{}
	}
	return ResponsesResponse{
		ID:        r.ID,
		Object:    "response",
		CreatedAt: r.CreatedAt,
		Status:    status,
		Model:     r.Model,
		Output:    output,
	}
}

func (r *ResponsesEnvelope) event(name string, payload map[string]any) Frame {
	data, _ := json.Marshal(payload)
	return Frame{Event: name, Data: data}
}
