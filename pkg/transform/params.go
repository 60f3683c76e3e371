package transform

import (
	"fmt"
	"strconv"
	"strings"
)

// GetString returns a string parameter, or def when absent.
func (p Params) GetString(key, def string) (string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string, got %T", key, v)
	}
	return s, nil
}

// GetInt returns an integer parameter, or def when absent. Whole floats and
// numeric strings are accepted so values decoded from JSON or flags work.
func (p Params) GetInt(key string, def int) (int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("parameter %s must be an integer, got %v", key, n)
		}
		return int(n), nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("parameter %s must be an integer, got %q", key, n)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("parameter %s must be an integer, got %T", key, v)
	}
}

// GetStrings returns a list-of-strings parameter. A single string is split on
// commas.
func (p Params) GetStrings(key string) ([]string, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case []string:
		return list, nil
	case string:
		var out []string
		for _, part := range strings.Split(list, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	case []interface{}:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("parameter %s must contain strings, got %T", key, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %s must be a list of strings, got %T", key, v)
	}
}

// GetEdges returns a list of wire pairs. Accepted forms are [][2]int,
// [][]int, nested []interface{} of numbers, and strings like "0-1,1-2".
func (p Params) GetEdges(key string) ([][2]int, error) {
	v, ok := p[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch list := v.(type) {
	case [][2]int:
		return list, nil
	case [][]int:
		out := make([][2]int, 0, len(list))
		for _, pair := range list {
			if len(pair) != 2 {
				return nil, fmt.Errorf("parameter %s: edge %v must have two wires", key, pair)
			}
			out = append(out, [2]int{pair[0], pair[1]})
		}
		return out, nil
	case []interface{}:
		out := make([][2]int, 0, len(list))
		for _, item := range list {
			pair, ok := item.([]interface{})
			if !ok || len(pair) != 2 {
				return nil, fmt.Errorf("parameter %s: edge %v must have two wires", key, item)
			}
			a, err := toInt(pair[0])
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			b, err := toInt(pair[1])
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			out = append(out, [2]int{a, b})
		}
		return out, nil
	case string:
		return parseEdges(key, list)
	default:
		return nil, fmt.Errorf("parameter %s must be a list of wire pairs, got %T", key, v)
	}
}

func parseEdges(key, s string) ([][2]int, error) {
	var out [][2]int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		ends := strings.Split(part, "-")
		if len(ends) != 2 {
			return nil, fmt.Errorf("parameter %s: edge %q must look like a-b", key, part)
		}
		a, errA := strconv.Atoi(strings.TrimSpace(ends[0]))
		b, errB := strconv.Atoi(strings.TrimSpace(ends[1]))
		if errA != nil || errB != nil {
			return nil, fmt.Errorf("parameter %s: edge %q must join two wire numbers", key, part)
		}
		out = append(out, [2]int{a, b})
	}
	return out, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("wire %v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("wire %v is not a number", v)
	}
}
