// Package handlers implements the concrete action.Handler functions for
// every category in the action library (spec §6.2), wiring them against
// action.Driver / action.Deps. RegisterAll is the single entry point a
// cmd/ main uses to populate an action.Registry, generalized from the
// teacher's tool.RegisterAllTools(deps) pattern.
package handlers

import (
	"github.com/ngoclaw/deskflow/internal/domain/apperr"
)

func stringParam(params map[string]any, key string) (string, error) {
	v, ok := params[key]
	if !ok {
		return "", apperr.Newf(apperr.ParamMissing, "missing required param %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", apperr.Newf(apperr.MalformedAction, "param %q must be a string, got %T", key, v)
	}
	return s, nil
}

func optionalStringParam(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

func intParam(params map[string]any, key string) (int, error) {
	v, ok := params[key]
	if !ok {
		return 0, apperr.Newf(apperr.ParamMissing, "missing required param %q", key)
	}
	return toInt(v, key)
}

func optionalIntParam(params map[string]any, key string, def int) int {
	v, ok := params[key]
	if !ok {
		return def
	}
	n, err := toInt(v, key)
	if err != nil {
		return def
	}
	return n
}

func toInt(v any, key string) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return 0, apperr.Newf(apperr.MalformedAction, "param %q must be a number, got %T", key, v)
	}
}

func optionalFloatParam(params map[string]any, key string, def float64) float64 {
	v, ok := params[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	default:
		return def
	}
}

func optionalBoolParam(params map[string]any, key string, def bool) bool {
	v, ok := params[key]
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func optionalStringSliceParam(params map[string]any, key string) []string {
	v, ok := params[key]
	if !ok {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, e := range raw {
		if s, ok := e.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// coordPairParam reads a two-element [x, y] array param, used by
// fallback_coordinates.
func coordPairParam(params map[string]any, key string) (x, y int, ok bool) {
	v, present := params[key]
	if !present {
		return 0, 0, false
	}
	raw, isSlice := v.([]any)
	if !isSlice || len(raw) != 2 {
		return 0, 0, false
	}
	xi, err1 := toInt(raw[0], key)
	yi, err2 := toInt(raw[1], key)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return xi, yi, true
}
