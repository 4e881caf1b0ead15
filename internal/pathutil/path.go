// Package pathutil implements JSON-path get/set and template substitution
// over plain map[string]any/[]any trees, the shape encoding/json produces
// when unmarshalling into interface{}.
package pathutil

import (
	"fmt"
	"strconv"
	"strings"
)

// segment is one parsed path component: a map key, optionally followed by
// one or more array indices (e.g. "choices[0]" -> key "choices", idx [0]).
type segment struct {
	key     string
	indices []int
}

// parse splits a path like "$.choices[0].delta.content" into segments.
// A leading "$." is stripped if present.
func parse(path string) []segment {
	path = strings.TrimPrefix(path, "$.")
	path = strings.TrimPrefix(path, "$")

	if path == "" {
		return nil
	}

	parts := strings.Split(path, ".")
	segs := make([]segment, 0, len(parts))

	for _, part := range parts {
		if part == "" {
			continue
		}

		key, indices := splitIndices(part)
		segs = append(segs, segment{key: key, indices: indices})
	}

	return segs
}

// splitIndices separates "name[0][1]" into ("name", [0, 1]).
func splitIndices(part string) (string, []int) {
	bracket := strings.IndexByte(part, '[')
	if bracket == -1 {
		return part, nil
	}

	key := part[:bracket]
	rest := part[bracket:]

	var indices []int

	for len(rest) > 0 && rest[0] == '[' {
		end := strings.IndexByte(rest, ']')
		if end == -1 {
			break
		}

		if n, err := strconv.Atoi(rest[1:end]); err == nil {
			indices = append(indices, n)
		}

		rest = rest[end+1:]
	}

	return key, indices
}

// Get resolves path against root and returns the value found, or (nil,
// false) if any segment is missing, the wrong type, or out of range.
func Get(root any, path string) (any, bool) {
	segs := parse(path)
	cur := root

	for _, seg := range segs {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}

		v, exists := m[seg.key]
		if !exists {
			return nil, false
		}

		cur = v

		for _, idx := range seg.indices {
			arr, ok := cur.([]any)
			if !ok || idx < 0 || idx >= len(arr) {
				return nil, false
			}

			cur = arr[idx]
		}
	}

	return cur, true
}

// GetString is a convenience wrapper returning ("", false) if the resolved
// value is missing or not a string.
func GetString(root any, path string) (string, bool) {
	v, ok := Get(root, path)
	if !ok {
		return "", false
	}

	s, ok := v.(string)

	return s, ok
}

// Set writes value at path within root, creating intermediate
// map[string]any objects as needed. root must be a map[string]any (or the
// call is a no-op returning an error). Set fails if an intermediate
// segment already holds a non-object, non-array value of the wrong shape.
func Set(root map[string]any, path string, value any) error {
	segs := parse(path)
	if len(segs) == 0 {
		return fmt.Errorf("pathutil: empty path")
	}

	cur := root

	for i, seg := range segs {
		last := i == len(segs)-1

		if len(seg.indices) == 0 {
			if last {
				cur[seg.key] = value
				return nil
			}

			next, err := descendMap(cur, seg.key)
			if err != nil {
				return err
			}

			cur = next

			continue
		}

		arr, err := descendArray(cur, seg.key, seg.indices[0])
		if err != nil {
			return err
		}

		// Only single-level array indexing is supported for writes;
		// further indices or a trailing key requires the element itself
		// to be an object.
		if last && len(seg.indices) == 1 {
			arr[seg.indices[0]] = value
			return nil
		}

		elem, ok := arr[seg.indices[0]].(map[string]any)
		if !ok {
			elem = make(map[string]any)
			arr[seg.indices[0]] = elem
		}

		cur = elem
	}

	return nil
}

func descendMap(cur map[string]any, key string) (map[string]any, error) {
	existing, ok := cur[key]
	if !ok {
		next := make(map[string]any)
		cur[key] = next

		return next, nil
	}

	next, ok := existing.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("pathutil: segment %q is not an object", key)
	}

	return next, nil
}

func descendArray(cur map[string]any, key string, idx int) ([]any, error) {
	existing, ok := cur[key]

	var arr []any

	if ok {
		arr, ok = existing.([]any)
		if !ok {
			return nil, fmt.Errorf("pathutil: segment %q is not an array", key)
		}
	}

	for len(arr) <= idx {
		arr = append(arr, nil)
	}

	cur[key] = arr

	return arr, nil
}
