package ai

import (
	"encoding/json"
	"strings"
)

// parseStrategy never fails loudly: it either yields valid JSON or reports false.
type parseStrategy struct {
	name  string
	parse func(text string) (json.RawMessage, bool)
}

// lenientStrategies are tried in order for providers that only hint at JSON.
var lenientStrategies = []parseStrategy{
	{name: "fenced", parse: parseFenced},
	{name: "extracted", parse: parseExtracted},
	{name: "repaired", parse: parseRepaired},
}

func decodeLenient(text string) (json.RawMessage, string, bool) {
	for _, s := range lenientStrategies {
		if raw, ok := s.parse(text); ok {
			return raw, s.name, true
		}
	}
	return nil, "", false
}

func decodeStrict(text string) (json.RawMessage, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !json.Valid([]byte(trimmed)) {
		return nil, false
	}
	return json.RawMessage(trimmed), true
}

func stripFence(text string) string {
	clean := strings.TrimSpace(text)
	if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
		if nl := strings.IndexByte(clean, '\n'); nl >= 0 {
			// drop the info string, e.g. ```json
			if !strings.ContainsAny(clean[:nl], "{[") {
				clean = clean[nl+1:]
			}
		}
	}
	clean = strings.TrimSpace(clean)
	clean = strings.TrimSuffix(clean, "```")
	return strings.TrimSpace(clean)
}

func parseFenced(text string) (json.RawMessage, bool) {
	return decodeStrict(stripFence(text))
}

func parseExtracted(text string) (json.RawMessage, bool) {
	span, ok := extractSpan(stripFence(text))
	if !ok {
		return nil, false
	}
	return decodeStrict(span)
}

func parseRepaired(text string) (json.RawMessage, bool) {
	clean := stripFence(text)
	start := strings.IndexAny(clean, "{[")
	if start < 0 {
		return nil, false
	}
	candidate := clean[start:]
	if span, ok := extractSpan(clean); ok {
		candidate = span
	}
	repaired := repairJSON(candidate)
	if raw, ok := decodeStrict(repaired); ok {
		return raw, true
	}
	return decodeStrict(closeBrackets(repaired))
}

// extractSpan returns the first balanced {...} or [...] span, honouring
// string literals. An unbalanced opener falls back to the last matching closer.
func extractSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	open := text[start]
	closer := byte('}')
	if open == '[' {
		closer = ']'
	}
	depth := 0
	inString := false
	var quote byte
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == quote {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = true
			quote = c
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	end := strings.LastIndexByte(text, closer)
	if end > start {
		return text[start : end+1], true
	}
	return "", false
}

// repairJSON fixes the usual LLM slips: single-quoted strings, unquoted keys,
// trailing commas, comments, raw newlines in strings and Python literals.
func repairJSON(s string) string {
	var out strings.Builder
	out.Grow(len(s) + 16)
	inString := false
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case c == '\\' && i+1 < len(s):
				if quote == '\'' && s[i+1] == '\'' {
					out.WriteByte('\'')
				} else {
					out.WriteByte(c)
					out.WriteByte(s[i+1])
				}
				i++
			case c == quote:
				out.WriteByte('"')
				inString = false
			case c == '"':
				out.WriteString(`\"`)
			case c == '\n':
				out.WriteString(`\n`)
			case c == '\r':
			case c == '\t':
				out.WriteString(`\t`)
			default:
				out.WriteByte(c)
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			inString = true
			quote = c
			out.WriteByte('"')
		case c == ',':
			j := skipSpace(s, i+1)
			if j >= len(s) || s[j] == '}' || s[j] == ']' {
				continue
			}
			out.WriteByte(c)
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				i = len(s)
			} else {
				i += end + 3
			}
		case isIdentStart(c):
			j := i
			for j < len(s) && isIdentPart(s[j]) {
				j++
			}
			word := s[i:j]
			switch word {
			case "true", "false", "null":
				out.WriteString(word)
			case "True":
				out.WriteString("true")
			case "False":
				out.WriteString("false")
			case "None":
				out.WriteString("null")
			default:
				if k := skipSpace(s, j); k < len(s) && s[k] == ':' {
					out.WriteByte('"')
					out.WriteString(word)
					out.WriteByte('"')
				} else {
					out.WriteString(word)
				}
			}
			i = j - 1
		default:
			out.WriteByte(c)
		}
	}
	if inString {
		out.WriteByte('"')
	}
	return out.String()
}

// closeBrackets appends closers for a truncated document.
func closeBrackets(s string) string {
	var stack []byte
	inString := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			if c == '\\' {
				i++
				continue
			}
			if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if len(stack) == 0 {
		return s
	}
	var sb strings.Builder
	sb.WriteString(strings.TrimRight(strings.TrimSpace(s), ","))
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\n' || s[i] == '\t' || s[i] == '\r') {
		i++
	}
	return i
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}
