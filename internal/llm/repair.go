package llm

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// RepairArguments attempts to fix malformed JSON tool arguments before they
// are unmarshalled. Models occasionally emit trailing commas, single quotes,
// or truncated objects; a bad argument string should degrade into an error
// payload the model can react to, not abort the turn. Strategies in order:
// 1. Accept valid JSON as-is
// 2. Remove trailing commas
// 3. Close incomplete objects/arrays
// 4. Use the jsonrepair library as sophisticated fallback
func RepairArguments(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		// No arguments at all is a valid empty object
		return "{}", false
	}

	var probe interface{}
	if json.Unmarshal([]byte(trimmed), &probe) == nil {
		return trimmed, false
	}

	repaired := trimmed

	// Strategy 2: trailing commas
	if strings.Contains(repaired, ",}") || strings.Contains(repaired, ",]") {
		repaired = strings.ReplaceAll(repaired, ",}", "}")
		repaired = strings.ReplaceAll(repaired, ",]", "]")
	}

	// Strategy 3: balance brackets on truncated output
	repaired = completeJSON(repaired)

	if json.Unmarshal([]byte(repaired), &probe) == nil {
		return repaired, true
	}

	// Strategy 4: jsonrepair library
	if fixed, err := jsonrepair.JSONRepair(repaired); err == nil {
		if json.Unmarshal([]byte(fixed), &probe) == nil {
			return fixed, true
		}
	}

	// Unrecoverable - hand back the original so the caller's unmarshal error
	// reflects what the model actually produced
	return trimmed, false
}

// completeJSON appends the closing brackets a truncated object is missing
func completeJSON(s string) string {
	var stack []byte
	inString := false
	escapeNext := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escapeNext {
			escapeNext = false
			continue
		}

		switch c {
		case '\\':
			escapeNext = true
		case '"':
			inString = !inString
		case '{', '[':
			if !inString {
				stack = append(stack, c)
			}
		case '}', ']':
			if !inString && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 && !inString {
		return s
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
