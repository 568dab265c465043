package extraction

import (
	"strings"

	"github.com/tidwall/gjson"
)

// RepairJSON applies a small, explicitly-scoped set of recovery
// heuristics to almost-JSON model output: code-fence stripping, single
// quotes, trailing commas, and bracket balancing for truncated
// responses. It is a pure function kept apart from the parse path so
// the heuristics can evolve under their own tests. The result is not
// guaranteed valid; callers re-validate.
func RepairJSON(raw string) string {
	s := StripCodeFences(raw)
	if gjson.Valid(s) {
		return s
	}
	s = replaceSingleQuotes(s)
	s = stripTrailingCommas(s)
	s = balanceBrackets(s)
	return s
}

// StripCodeFences removes a surrounding ```json ... ``` (or plain ```)
// fence that chat models like to wrap structured output in.
func StripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// Drop the language tag on the fence line.
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// replaceSingleQuotes swaps single-quoted strings for double-quoted
// ones, leaving apostrophes inside double-quoted strings alone.
func replaceSingleQuotes(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inDouble := false
	inSingle := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		escaped := i > 0 && s[i-1] == '\\'
		switch {
		case c == '"' && !inSingle && !escaped:
			inDouble = !inDouble
			b.WriteByte(c)
		case c == '\'' && !inDouble && !escaped:
			inSingle = !inSingle
			b.WriteByte('"')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// stripTrailingCommas removes commas that directly precede a closing
// bracket or brace, outside of strings.
func stripTrailingCommas(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
		}
		if c == ',' && !inString {
			// Look ahead past whitespace for a closer.
			j := i + 1
			for j < len(s) && (s[j] == ' ' || s[j] == '\n' || s[j] == '\t' || s[j] == '\r') {
				j++
			}
			if j < len(s) && (s[j] == '}' || s[j] == ']') {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// balanceBrackets appends the closers a truncated response is missing.
// An unterminated string is closed first. Nothing is removed; input
// with balanced brackets passes through unchanged.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '"' && (i == 0 || s[i-1] != '\\') {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch c {
		case '{', '[':
			stack = append(stack, c)
		case '}':
			if len(stack) > 0 && stack[len(stack)-1] == '{' {
				stack = stack[:len(stack)-1]
			}
		case ']':
			if len(stack) > 0 && stack[len(stack)-1] == '[' {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	// Trim a dangling comma left right before the point of truncation.
	out := strings.TrimRight(b.String(), " \n\t\r")
	out = strings.TrimSuffix(out, ",")
	var closers strings.Builder
	closers.WriteString(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			closers.WriteByte('}')
		} else {
			closers.WriteByte(']')
		}
	}
	return closers.String()
}
