package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderChatPromptPlainMessages(t *testing.T) {
	t.Parallel()

	prompt := RenderChatPrompt([]ChatMessage{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "list the files"},
	}, nil)

	assert.Equal(t, "system: be brief\n\nuser: list the files", prompt)
	assert.NotContains(t, prompt, "tool-call")
}

func TestRenderChatPromptWithTools(t *testing.T) {
	t.Parallel()

	tools := []Tool{{
		Type: "function",
		Function: ToolDefinition{
			Name:        "read_file",
			Description: "Read one file",
			Parameters:  json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
		},
	}}
	prompt := RenderChatPrompt([]ChatMessage{{Role: "user", Content: "open main.go"}}, tools)

	assert.Contains(t, prompt, "read_file: Read one file")
	assert.Contains(t, prompt, `"path"`)
	assert.Contains(t, prompt, "exactly one JSON tool-call object")
	assert.True(t, strings.HasSuffix(prompt, "user: open main.go"))
	// Instructions precede the conversation.
	assert.Less(t, strings.Index(prompt, "read_file"), strings.Index(prompt, "user:"))
}

func TestRenderChatPromptSkipsEmptyMessages(t *testing.T) {
	t.Parallel()

	prompt := RenderChatPrompt([]ChatMessage{
		{Role: "user", Content: "   "},
		{Role: "user", Content: "real"},
	}, nil)

	assert.Equal(t, "user: real", prompt)
}

func TestRenderResponsesPromptFlattensItems(t *testing.T) {
	t.Parallel()

	items := []InputItem{
		{Type: ItemMessage, Role: "user", Content: "check the build"},
		{Type: ItemFunctionCall, Name: "run_tests", Arguments: `{"pkg":"./..."}`, CallID: "call_1"},
		{Type: ItemFunctionCallOutput, CallID: "call_1", Output: "ok"},
	}
	prompt := RenderResponsesPrompt(items, nil)

	assert.Contains(t, prompt, "user: check the build")
	assert.Contains(t, prompt, "assistant: Called tool run_tests")
	assert.Contains(t, prompt, "tool: Result of call call_1: ok")
}

func TestRenderResponsesPromptWithTools(t *testing.T) {
	t.Parallel()

	tools := []ResponsesTool{{Type: "function", Name: "grep", Description: "Search files"}}
	prompt := RenderResponsesPrompt([]InputItem{{Type: ItemMessage, Role: "user", Content: "find TODOs"}}, tools)

	assert.Contains(t, prompt, "grep: Search files")
	assert.Contains(t, prompt, "exactly one JSON tool-call object")
}

func TestRenderResponsesPromptDefaultsItemType(t *testing.T) {
	t.Parallel()

	prompt := RenderResponsesPrompt([]InputItem{{Role: "user", Content: "hi"}}, nil)
	assert.Equal(t, "user: hi", prompt)
}
