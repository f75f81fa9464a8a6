package wire

import (
	"time"

	"codegate/internal/reqid"
	"codegate/internal/toolcall"
)

// BuildChatResponse assembles a buffered chat-completions response from the
// agent's final text and an optional extracted tool call. With a tool call
// present, content is null and the finish reason is "tool_calls"; otherwise
// the text is the content and the finish reason is "stop".
func BuildChatResponse(model, text string, call *toolcall.Call) ChatResponse {
	message := AssistantMessage{Role: "assistant"}
	finish := FinishStop
	if call != nil {
		finish = FinishToolCalls
		message.ToolCalls = []ToolCallPayload{{
			ID:   reqid.NewToolCallID(),
			Type: "function",
			Function: FunctionCall{
				Name:      call.Name,
				Arguments: MarshalArguments(call.Arguments),
			},
		}}
	} else {
		message.Content = &text
	}

	return ChatResponse{
		ID:      reqid.NewChatCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{Message: message, FinishReason: finish}},
	}
}

// BuildResponsesResponse assembles a buffered responses-protocol response
// from the agent's final text and an optional extracted tool call.
func BuildResponsesResponse(model, text string, call *toolcall.Call) ResponsesResponse {
	var output []OutputItem
	if call != nil {
		output = append(output, OutputItem{
			Type:      "function_call",
			ID:        reqid.NewOutputItemID(),
			Status:    "completed",
			Name:      call.Name,
			Arguments: MarshalArguments(call.Arguments),
			CallID:    reqid.NewToolCallID(),
		})
	} else {
		output = append(output, OutputItem{
			Type:   "message",
			ID:     reqid.NewOutputItemID(),
			Status: "completed",
			Role:   "assistant",
			Content: []OutputContent{{
				Type: "output_text",
				Text: text,
			}},
		})
	}

	return ResponsesResponse{
		ID:        reqid.NewResponseID(),
		Object:    "response",
		CreatedAt: time.Now().Unix(),
		Status:    "completed",
		Model:     model,
		Output:    output,
	}
}
