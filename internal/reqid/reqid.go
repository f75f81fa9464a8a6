// Package reqid generates the prefixed identifiers used across the gateway:
// request correlation IDs, wire-protocol response IDs, and tool-call IDs.
package reqid

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewRequestID generates a correlation identifier for one inbound request.
func NewRequestID() string {
	return newIdentifier("req")
}

// NewChatCompletionID generates a chat-completions response identifier.
func NewChatCompletionID() string {
	return newIdentifier("chatcmpl")
}

// NewResponseID generates a responses-protocol response identifier.
func NewResponseID() string {
	return newIdentifier("resp")
}

// NewToolCallID generates a tool-call identifier.
func NewToolCallID() string {
	return newIdentifier("call")
}

// NewOutputItemID generates a responses-protocol output-item identifier.
func NewOutputItemID() string {
	return newIdentifier("item")
}

func newIdentifier(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, strings.ReplaceAll(uuid.NewString(), "-", ""))
}
