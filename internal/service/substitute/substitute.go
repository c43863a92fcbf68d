// Package substitute implements the protocol executor's variable
// substitution pass (spec §4.2.1): recursively walking a params value
// tree, resolving {{key}} references against an ExecutionContext, and
// preserving JSON type when a string value is *exactly* a single token.
package substitute

import (
	"fmt"
	"strings"

	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

// VarLookup resolves a variable name to its current value.
type VarLookup func(key string) (any, bool)

// AvailableKeys returns the known variable names, for diagnostics.
type AvailableKeys func() []string

// Params substitutes every {{key}} reference found anywhere in the value
// tree rooted at in. Maps and slices are walked recursively; all other
// scalar types pass through unchanged.
// 整词 "{{key}}" 保留原始类型，嵌入字符串中的 "{{key}}" 按文本插值渲染。
func Params(in map[string]any, lookup VarLookup, available AvailableKeys) (map[string]any, error) {
	out := make(map[string]any, len(in))
	for k, v := range in {
		nv, err := value(v, lookup, available)
		if err != nil {
			return nil, err
		}
		out[k] = nv
	}
	return out, nil
}

func value(v any, lookup VarLookup, available AvailableKeys) (any, error) {
	switch t := v.(type) {
	case string:
		return substituteString(t, lookup, available)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			nv, err := value(vv, lookup, available)
			if err != nil {
				return nil, err
			}
			out[k] = nv
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			nv, err := value(vv, lookup, available)
			if err != nil {
				return nil, err
			}
			out[i] = nv
		}
		return out, nil
	default:
		return v, nil
	}
}

// substituteString implements the type-preservation rule: if s is
// exactly one "{{key}}" token, the raw value (any JSON type) is returned
// unchanged. Otherwise every {{key}} occurrence is interpolated as its
// string rendering.
func substituteString(s string, lookup VarLookup, available AvailableKeys) (any, error) {
	if key, ok := wholeToken(s); ok {
		v, found := lookup(key)
		if !found {
			return nil, missingVar(key, available)
		}
		return v, nil
	}

	if !strings.Contains(s, "{{") {
		return s, nil
	}

	var b strings.Builder
	rest := s
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			break
		}
		end += start
		b.WriteString(rest[:start])
		key := strings.TrimSpace(rest[start+2 : end])
		v, found := lookup(key)
		if !found {
			return nil, missingVar(key, available)
		}
		b.WriteString(renderString(v))
		rest = rest[end+2:]
	}
	return b.String(), nil
}

// wholeToken reports whether s is exactly "{{key}}" (no surrounding text),
// returning the trimmed key.
func wholeToken(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func renderString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

func missingVar(key string, available AvailableKeys) error {
	var keys []string
	if available != nil {
		keys = available()
	}
	return apperr.Newf(apperr.VariableMissing, "variable %q is not set", key).WithDetails(map[string]any{
		"expected":  key,
		"available": keys,
	})
}
