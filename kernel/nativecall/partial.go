package nativecall

import (
	"strings"

	"github.com/tidwall/gjson"
)

// repairPartialJSON closes an argument document that was cut off mid-stream:
// an open string is terminated, a dangling comma is dropped, a dangling colon
// gets a null value and open containers are closed in order. The result may
// still be invalid (for example a cut-off key or literal); callers check it.
func repairPartialJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "{}"
	}
	var (
		stack    []byte
		inString bool
		escaped  bool
	)
	for i := 0; i < len(raw); i++ {
		c := raw[i]
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
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	out := raw
	if inString {
		if escaped {
			out = out[:len(out)-1]
		}
		out += `"`
	}
	out = strings.TrimRight(out, " \t\r\n")
	switch {
	case strings.HasSuffix(out, ","):
		out = out[:len(out)-1]
	case strings.HasSuffix(out, ":"):
		out += "null"
	}
	for i := len(stack) - 1; i >= 0; i-- {
		out += string(stack[i])
	}
	return out
}

// partialObject returns the top-level members of a possibly truncated JSON
// object. ok is false when the document cannot be repaired yet.
func partialObject(raw string) (gjson.Result, bool) {
	doc := repairPartialJSON(raw)
	if !gjson.Valid(doc) {
		return gjson.Result{}, false
	}
	res := gjson.Parse(doc)
	if !res.IsObject() {
		return gjson.Result{}, false
	}
	return res, true
}

func anyParams(obj gjson.Result) map[string]any {
	out := map[string]any{}
	obj.ForEach(func(key, value gjson.Result) bool {
		out[key.String()] = value.Value()
		return true
	})
	return out
}
