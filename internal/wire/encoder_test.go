package wire

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegate/internal/agentstream"
	"codegate/internal/toolcall"
)

func decodeChunk(t *testing.T, f Frame) ChatStreamChunk {
	t.Helper()
	var chunk ChatStreamChunk
	require.NoError(t, json.Unmarshal(f.Data, &chunk))
	require.Len(t, chunk.Choices, 1)
	return chunk
}

func encodeAll(enc *StreamEncoder, events ...agentstream.Event) []Frame {
	frames := enc.Begin()
	for _, ev := range events {
		frames = append(frames, enc.Encode(ev)...)
	}
	return frames
}

func TestChatStreamTextThenResult(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewChatEnvelope("coder-1"))
	frames := encodeAll(enc,
		agentstream.AssistantText{Text: "thinking"},
		agentstream.AssistantText{Text: " about it"},
		agentstream.AssistantText{Text: " now"},
		agentstream.Result{Text: "done"},
	)

	// Role-bearing first delta, three content deltas, finish, sentinel.
	require.Len(t, frames, 6)

	first := decodeChunk(t, frames[0])
	assert.Equal(t, "assistant", first.Choices[0].Delta.Role)
	assert.Empty(t, first.Choices[0].Delta.Content)

	for i, want := range []string{"thinking", " about it", " now"} {
		chunk := decodeChunk(t, frames[i+1])
		assert.Empty(t, chunk.Choices[0].Delta.Role)
		assert.Equal(t, want, chunk.Choices[0].Delta.Content)
		assert.Nil(t, chunk.Choices[0].FinishReason)
	}

	final := decodeChunk(t, frames[4])
	require.NotNil(t, final.Choices[0].FinishReason)
	assert.Equal(t, FinishStop, *final.Choices[0].FinishReason)

	assert.Equal(t, "[DONE]", string(frames[5].Data))
}

func TestChatStreamToolCallFragment(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewChatEnvelope("coder-1"))
	frames := encodeAll(enc,
		agentstream.AssistantText{Text: `{"tool_call":{"name":"read_file","arguments":{"path":"main.go"}}}`},
		agentstream.Result{Text: "done"},
	)

	require.Len(t, frames, 4)

	tool := decodeChunk(t, frames[1])
	require.Len(t, tool.Choices[0].Delta.ToolCalls, 1)
	tc := tool.Choices[0].Delta.ToolCalls[0]
	assert.Equal(t, 0, tc.Index)
	assert.Equal(t, "function", tc.Type)
	assert.Equal(t, "read_file", tc.Function.Name)
	assert.JSONEq(t, `{"path":"main.go"}`, tc.Function.Arguments)

	final := decodeChunk(t, frames[2])
	require.NotNil(t, final.Choices[0].FinishReason)
	assert.Equal(t, FinishToolCalls, *final.Choices[0].FinishReason)
}

func TestChatStreamToolCallIndexIncrements(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewChatEnvelope("coder-1"))
	frames := encodeAll(enc,
		agentstream.AssistantToolCall{Name: "a", Arguments: nil},
		agentstream.AssistantToolCall{Name: "b", Arguments: nil},
	)

	require.Len(t, frames, 3)
	assert.Equal(t, 0, decodeChunk(t, frames[1]).Choices[0].Delta.ToolCalls[0].Index)
	assert.Equal(t, 1, decodeChunk(t, frames[2]).Choices[0].Delta.ToolCalls[0].Index)
}

func TestChatStreamFinishWithoutResult(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewChatEnvelope("coder-1"))
	frames := encodeAll(enc, agentstream.AssistantText{Text: "partial"})
	frames = append(frames, enc.Finish()...)
	frames = append(frames, enc.Finish()...) // idempotent

	require.Len(t, frames, 4)
	final := decodeChunk(t, frames[2])
	require.NotNil(t, final.Choices[0].FinishReason)
	assert.Equal(t, FinishStop, *final.Choices[0].FinishReason)
	assert.Equal(t, "[DONE]", string(frames[3].Data))
}

func TestChatStreamError(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewChatEnvelope("coder-1"))
	frames := enc.Error("agent exited with code 2")

	require.Len(t, frames, 2)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(frames[0].Data, &body))
	assert.Equal(t, "agent exited with code 2", body.Error.Message)
	assert.Equal(t, "[DONE]", string(frames[1].Data))

	// Nothing follows a terminal error.
	assert.Empty(t, enc.Encode(agentstream.Result{Text: "late"}))
}

func TestResponsesStreamSequence(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewResponsesEnvelope("coder-1"))
	frames := encodeAll(enc,
		agentstream.AssistantText{Text: "hello "},
		agentstream.AssistantText{Text: "world"},
		agentstream.Result{Text: "done"},
	)

	events := make([]string, len(frames))
	for i, f := range frames {
		events[i] = f.Event
	}
	assert.Equal(t, []string{
		"response.created",
		"response.output_item.added",
		"response.output_text.delta",
		"response.output_text.delta",
		"response.output_item.done",
		"response.completed",
		"",
	}, events)
	assert.Equal(t, "[DONE]", string(frames[len(frames)-1].Data))

	var done struct {
		Item OutputItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(frames[4].Data, &done))
	require.Len(t, done.Item.Content, 1)
	assert.Equal(t, "hello world", done.Item.Content[0].Text)

	var completed struct {
		Response ResponsesResponse `json:"response"`
	}
	require.NoError(t, json.Unmarshal(frames[5].Data, &completed))
	assert.Equal(t, "completed", completed.Response.Status)
	require.Len(t, completed.Response.Output, 1)
	assert.Equal(t, "message", completed.Response.Output[0].Type)
}

func TestResponsesStreamToolCall(t *testing.T) {
	t.Parallel()

	enc := NewStreamEncoder(NewResponsesEnvelope("coder-1"))
	frames := encodeAll(enc,
		agentstream.AssistantToolCall{Name: "grep", Arguments: map[string]any{"pattern": "TODO"}},
		agentstream.Result{Text: "done"},
	)

	// A tool-call-only turn opens no message item: nothing would ever
	// complete it.
	events := make([]string, len(frames))
	for i, f := range frames {
		events[i] = f.Event
	}
	assert.Equal(t, []string{
		"response.created",
		"response.output_item.done",
		"response.completed",
		"",
	}, events)

	var toolDone struct {
		Item OutputItem `json:"item"`
	}
	require.NoError(t, json.Unmarshal(frames[1].Data, &toolDone))
	assert.Equal(t, "function_call", toolDone.Item.Type)
	assert.Equal(t, "grep", toolDone.Item.Name)
	assert.JSONEq(t, `{"pattern":"TODO"}`, toolDone.Item.Arguments)

	var completed struct {
		Response ResponsesResponse `json:"response"`
	}
	require.NoError(t, json.Unmarshal(frames[len(frames)-2].Data, &completed))
	require.Len(t, completed.Response.Output, 1)
	assert.Equal(t, "function_call", completed.Response.Output[0].Type)
}

func TestBuildChatResponsePlainText(t *testing.T) {
	t.Parallel()

	resp := BuildChatResponse("coder-1", "all done", nil)

	assert.Equal(t, "chat.completion", resp.Object)
	require.Len(t, resp.Choices, 1)
	choice := resp.Choices[0]
	assert.Equal(t, FinishStop, choice.FinishReason)
	require.NotNil(t, choice.Message.Content)
	assert.Equal(t, "all done", *choice.Message.Content)
	assert.Empty(t, choice.Message.ToolCalls)
	assert.Equal(t, Usage{}, resp.Usage)
}

func TestBuildChatResponseToolCall(t *testing.T) {
	t.Parallel()

	call := &toolcall.Call{Name: "write_file", Arguments: map[string]any{"path": "a.go"}}
	resp := BuildChatResponse("coder-1", "ignored", call)

	choice := resp.Choices[0]
	assert.Equal(t, FinishToolCalls, choice.FinishReason)
	assert.Nil(t, choice.Message.Content)
	require.Len(t, choice.Message.ToolCalls, 1)
	assert.Equal(t, "write_file", choice.Message.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"path":"a.go"}`, choice.Message.ToolCalls[0].Function.Arguments)
}

func TestBuildResponsesResponse(t *testing.T) {
	t.Parallel()

	resp := BuildResponsesResponse("coder-1", "summary text", nil)
	assert.Equal(t, "response", resp.Object)
	assert.Equal(t, "completed", resp.Status)
	require.Len(t, resp.Output, 1)
	assert.Equal(t, "summary text", resp.Output[0].Content[0].Text)

	toolResp := BuildResponsesResponse("coder-1", "", &toolcall.Call{Name: "x"})
	require.Len(t, toolResp.Output, 1)
	assert.Equal(t, "function_call", toolResp.Output[0].Type)
	assert.Equal(t, "{}", toolResp.Output[0].Arguments)
}

func TestWriteFrame(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Event: "response.created", Data: []byte(`{"a":1}`)}))
	require.NoError(t, WriteFrame(&buf, DoneSentinel))

	assert.Equal(t, "event: response.created\ndata: {\"a\":1}\n\ndata: [DONE]\n\n", buf.String())
}
