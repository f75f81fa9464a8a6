// Package toolcall extracts embedded structured tool invocations from
// finalized agent output. The agent has no native structured tool-calling
// channel, so tool calls arrive as JSON objects embedded in free-form text,
// frequently wrapped in markdown fences or trailed by closing-tag artifacts.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"codegate/internal/logging"
)

// Call is one extracted tool invocation.
type Call struct {
	Name      string
	Arguments map[string]any
}

// warn fetches the component logger per call rather than at package init,
// so the configured global level and format apply even though logging.Init
// runs long after this package is loaded.
func warn(format string, args ...any) {
	logging.NewComponentLogger("toolcall").Warn(format, args...)
}

// toolCallPattern matches a minimal single-level {"tool_call":{...}} wrapper.
// Nested braces deeper than one level are out of reach for a regex; those
// payloads are handled by the whole-text parse above this fallback.
var toolCallPattern = regexp.MustCompile(`\{\s*"tool_call"\s*:\s*\{(?:[^{}]|\{[^{}]*\})*\}\s*\}`)

var fenceOpenPattern = regexp.MustCompile("(?m)^```[a-zA-Z]*[ \t]*$")

// Extract detects at most one tool invocation in text. It returns the first
// candidate and the number of additional candidates that were discarded;
// plain conversational text returns (nil, 0). Discarding extra candidates is
// deliberate: the downstream contract allows at most one tool call per turn.
func Extract(text string) (*Call, int) {
	cleaned := cleanup(text)
	if cleaned == "" {
		return nil, 0
	}

	if call, discarded, ok := parseWhole(cleaned); ok {
		if discarded > 0 {
			warn("multiple tool calls in one turn, keeping the first and discarding %d", discarded)
		}
		return call, discarded
	}

	matches := toolCallPattern.FindAllString(cleaned, -1)
	if len(matches) == 0 {
		return nil, 0
	}
	discarded := len(matches) - 1
	if discarded > 0 {
		warn("multiple tool calls in one turn, keeping the first and discarding %d", discarded)
	}
	call, _, ok := parseWhole(matches[0])
	if !ok {
		return nil, 0
	}
	return call, discarded
}

// cleanup strips markdown code-fence delimiters and trailing closing-tag
// artifacts, then trims surrounding blank space.
func cleanup(text string) string {
	cleaned := fenceOpenPattern.ReplaceAllString(text, "")
	// Closing-tag artifacts such as </tool_call> that some agents append
	// after the JSON payload.
	for {
		trimmed := strings.TrimSpace(cleaned)
		if strings.HasSuffix(trimmed, ">") {
			if open := strings.LastIndex(trimmed, "</"); open >= 0 && !strings.ContainsAny(trimmed[open:], " \n") {
				cleaned = trimmed[:open]
				continue
			}
		}
		return trimmed
	}
}

// parseWhole parses the entire text as one JSON value and extracts a tool
// call from the recognized shapes: a {"tool_call":{...}} wrapper, a
// {"tool_calls":[...]} list, a bare {"name","arguments"} object, or an array
// of any of these. Parse failures are retried once through jsonrepair, which
// recovers the common truncation and quoting defects in model output.
func parseWhole(text string) (*Call, int, bool) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(text)
		if repairErr != nil {
			return nil, 0, false
		}
		if err := json.Unmarshal([]byte(repaired), &value); err != nil {
			return nil, 0, false
		}
	}

	calls := collectCalls(value)
	if len(calls) == 0 {
		return nil, 0, false
	}
	return calls[0], len(calls) - 1, true
}

// collectCalls walks one parsed JSON value and gathers every tool-invocation
// object it contains, in document order.
func collectCalls(value any) []*Call {
	switch v := value.(type) {
	case map[string]any:
		if wrapped, ok := v["tool_call"]; ok {
			return collectCalls(wrapped)
		}
		if list, ok := v["tool_calls"].([]any); ok {
			var calls []*Call
			for _, item := range list {
				calls = append(calls, collectCalls(item)...)
			}
			return calls
		}
		if name, ok := v["name"].(string); ok && name != "" {
			args, _ := v["arguments"].(map[string]any)
			return []*Call{{Name: name, Arguments: args}}
		}
		return nil

	case []any:
		var calls []*Call
		for _, item := range v {
			calls = append(calls, collectCalls(item)...)
		}
		return calls

	default:
		return nil
	}
}
