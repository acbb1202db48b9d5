package task

import (
	"fmt"
	"strings"
)

var validRoles = map[string]bool{
	"user": true, "assistant": true, "system": true, "tool": true, "model": true,
}

// Validate checks a raw task document against the envelope contract and
// returns the list of violations. An empty list means the task is valid.
func Validate(raw map[string]interface{}) []string {
	var violations []string

	if raw == nil {
		return []string{"task must be an object"}
	}

	rawMessage, ok := raw["message"]
	if !ok {
		violations = append(violations, "message is required")
	} else if list, ok := rawMessage.([]interface{}); !ok {
		violations = append(violations, "message must be a list")
	} else {
		for i, item := range list {
			msg, ok := item.(map[string]interface{})
			if !ok {
				violations = append(violations, fmt.Sprintf("message[%d] must be an object", i))
				continue
			}
			role, ok := msg["role"].(string)
			if !ok || !validRoles[role] {
				violations = append(violations, fmt.Sprintf("message[%d].role must be one of user, assistant, system, tool, model", i))
			}
			if _, ok := msg["content"].(string); !ok {
				violations = append(violations, fmt.Sprintf("message[%d].content must be a string", i))
			}
		}
	}

	if rawSession, ok := raw["sessionId"]; ok && rawSession != nil {
		if _, ok := rawSession.(string); !ok {
			violations = append(violations, "sessionId must be a string or null")
		}
	}

	if rawMeta, ok := raw["metadata"]; ok && rawMeta != nil {
		if _, ok := rawMeta.(map[string]interface{}); !ok {
			violations = append(violations, "metadata must be an object")
		}
	}

	return violations
}

// Decode maps a validated raw task document onto an Envelope.
func Decode(raw map[string]interface{}) *Envelope {
	env := &Envelope{}

	if id, ok := raw["sessionId"].(string); ok {
		env.SessionID = id
	}
	if meta, ok := raw["metadata"].(map[string]interface{}); ok {
		env.Metadata = meta
	}
	if list, ok := raw["message"].([]interface{}); ok {
		for _, item := range list {
			msg, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			role, _ := msg["role"].(string)
			content, _ := msg["content"].(string)
			env.Message = append(env.Message, InputMessage{Role: role, Content: content})
		}
	}

	return env
}

// ExtractUserQuery returns the content of the last user message. When no
// user message exists, all non-empty contents are concatenated instead.
func ExtractUserQuery(messages []InputMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" && strings.TrimSpace(messages[i].Content) != "" {
			return messages[i].Content
		}
	}

	var parts []string
	for _, msg := range messages {
		if strings.TrimSpace(msg.Content) != "" {
			parts = append(parts, msg.Content)
		}
	}
	return strings.Join(parts, "\n")
}
