package agentstream

import (
	"encoding/json"
	"strings"
)

// envelope is the wire shape of one agent stream line. Only the fields the
// gateway consumes are declared; everything else is ignored.
type envelope struct {
	Type    string `json:"type"`
	Result  string `json:"result"`
	Message struct {
		Content []contentPart `json:"content"`
	} `json:"message"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ParseLine decodes one raw line into an Event, or nil if the line is not a
// recognizable event. Malformed JSON and unknown discriminators are not
// errors; the agent's stream legitimately contains both.
func ParseLine(line []byte) Event {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil
	}

	switch env.Type {
	case "result":
		return Result{Text: canonicalResultText(env.Result)}

	case "assistant":
		for _, part := range env.Message.Content {
			if part.Type != "text" {
				continue
			}
			if call, ok := parseToolCallText(part.Text); ok {
				return call
			}
			return AssistantText{Text: part.Text}
		}
		return nil

	default:
		return nil
	}
}

// canonicalResultText recovers a structured payload embedded in the result
// text. If the text contains a balanced outermost {...} span that is valid
// JSON, that span is the canonical result; surrounding prose is dropped.
func canonicalResultText(text string) string {
	if span, ok := extractJSONObject(text); ok {
		return span
	}
	return text
}

// extractJSONObject finds the first outermost balanced {...} span in text
// and reports whether it parses as valid JSON. Brace tracking skips string
// literals so embedded braces and escapes do not break the balance count.
func extractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				span := text[start : i+1]
				if json.Valid([]byte(span)) {
					return span, true
				}
				return "", false
			}
		}
	}
	return "", false
}

// parseToolCallText reports whether the whole text is a JSON tool-invocation
// object. Only a strict parse qualifies here; lenient recovery of noisy text
// is the extractor's job, applied to finalized output.
func parseToolCallText(text string) (AssistantToolCall, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed[0] != '{' {
		return AssistantToolCall{}, false
	}

	var value map[string]any
	if err := json.Unmarshal([]byte(trimmed), &value); err != nil {
		return AssistantToolCall{}, false
	}
	if wrapped, ok := value["tool_call"].(map[string]any); ok {
		value = wrapped
	}

	name, ok := value["name"].(string)
	if !ok || name == "" {
		return AssistantToolCall{}, false
	}
	args, _ := value["arguments"].(map[string]any)
	return AssistantToolCall{Name: name, Arguments: args}, true
}
