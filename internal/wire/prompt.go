package wire

import (
	"fmt"
	"strings"
)

// The agent has no structured tool-calling channel, so caller-supplied tool
// definitions are rendered into the prompt as explicit instructions with a
// strict single-object response directive.
const toolDirective = "When you decide to call a tool, respond with exactly one JSON tool-call object " +
	`of the form {"tool_call":{"name":"<tool name>","arguments":{...}}} and nothing else. ` +
	"Do not wrap it in prose or markdown. If no tool is needed, answer normally."

// RenderChatPrompt flattens an ordered message list and optional tool
// definitions into the single prompt text the agent receives.
func RenderChatPrompt(messages []ChatMessage, tools []Tool) string {
	var b strings.Builder
	writeToolInstructions(&b, chatToolSpecs(tools))
	for _, msg := range messages {
		writeTurn(&b, msg.Role, msg.Content)
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderResponsesPrompt flattens typed response-protocol items into the
// same prompt-plus-instructions text as the chat protocol.
func RenderResponsesPrompt(items []InputItem, tools []ResponsesTool) string {
	var b strings.Builder
	writeToolInstructions(&b, responsesToolSpecs(tools))
	for _, item := range items {
		switch item.Type {
		case ItemMessage, "":
			writeTurn(&b, item.Role, item.Content)
		case ItemFunctionCall:
			writeTurn(&b, "assistant", fmt.Sprintf("Called tool %s with arguments: %s", item.Name, item.Arguments))
		case ItemFunctionCallOutput:
			writeTurn(&b, "tool", fmt.Sprintf("Result of call %s: %s", item.CallID, item.Output))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

type toolSpec struct {
	name        string
	description string
	parameters  string
}

func chatToolSpecs(tools []Tool) []toolSpec {
	specs := make([]toolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, toolSpec{
			name:        t.Function.Name,
			description: t.Function.Description,
			parameters:  string(t.Function.Parameters),
		})
	}
	return specs
}

func responsesToolSpecs(tools []ResponsesTool) []toolSpec {
	specs := make([]toolSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, toolSpec{
			name:        t.Name,
			description: t.Description,
			parameters:  string(t.Parameters),
		})
	}
	return specs
}

func writeToolInstructions(b *strings.Builder, specs []toolSpec) {
	if len(specs) == 0 {
		return
	}
	b.WriteString("You have access to the following tools:\n\n")
	for _, spec := range specs {
		fmt.Fprintf(b, "- %s", spec.name)
		if spec.description != "" {
			fmt.Fprintf(b, ": %s", spec.description)
		}
		b.WriteString("\n")
		if spec.parameters != "" {
			fmt.Fprintf(b, "  Parameters (JSON schema): %s\n", spec.parameters)
		}
	}
	b.WriteString("\n" + toolDirective + "\n\n")
}

func writeTurn(b *strings.Builder, role, content string) {
	if strings.TrimSpace(content) == "" {
		return
	}
	if role == "" {
		role = "user"
	}
	fmt.Fprintf(b, "%s: %s\n\n", role, content)
}
