package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	// ErrPathNotFound is returned when a path does not address an existing value.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotContainer is returned when a path descends into a scalar.
	ErrNotContainer = errors.New("value is not an object or array")
)

func splitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

func pathError(err error, segs []string, upto int) error {
	return fmt.Errorf("%w: %s", err, strings.Join(segs[:upto+1], "."))
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

// lookup walks segs from node. Nothing is copied.
func lookup(node any, segs []string) (any, error) {
	for i, seg := range segs {
		switch n := node.(type) {
		case map[string]any:
			v, ok := n[seg]
			if !ok {
				return nil, pathError(ErrPathNotFound, segs, i)
			}
			node = v
		case []any:
			idx, ok := index(seg, len(n))
			if !ok {
				return nil, pathError(ErrPathNotFound, segs, i)
			}
			node = n[idx]
		default:
			return nil, pathError(ErrNotContainer, segs, i)
		}
	}
	return node, nil
}

// assign returns a copy of node with value stored at segs. Only the maps and
// slices along the path are copied; every other subtree is shared with node.
// A missing object key is created only for the last segment.
func assign(node any, segs []string, value any) (any, error) {
	return assignAt(node, segs, 0, value)
}

func assignAt(node any, segs []string, depth int, value any) (any, error) {
	if depth == len(segs) {
		return value, nil
	}
	seg := segs[depth]
	switch n := node.(type) {
	case map[string]any:
		child, ok := n[seg]
		if !ok && depth < len(segs)-1 {
			return nil, pathError(ErrPathNotFound, segs, depth)
		}
		nv, err := assignAt(child, segs, depth+1, value)
		if err != nil {
			return nil, err
		}
		out := make(map[string]any, len(n)+1)
		for k, v := range n {
			out[k] = v
		}
		out[seg] = nv
		return out, nil
	case []any:
		idx, ok := index(seg, len(n))
		if !ok {
			return nil, pathError(ErrPathNotFound, segs, depth)
		}
		nv, err := assignAt(n[idx], segs, depth+1, value)
		if err != nil {
			return nil, err
		}
		out := slices.Clone(n)
		out[idx] = nv
		return out, nil
	}
	return nil, pathError(ErrNotContainer, segs, depth)
}

// decodeTree parses raw JSON into the generic tree, keeping numbers verbatim.
func decodeTree(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing data after document")
	}
	return v, nil
}

// encodeTree renders a tree (or any JSON-encodable value) without HTML escaping.
func encodeTree(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// toTree converts a Go value to its tree form. Tree values pass through the
// same round trip so callers may hand in either.
func toTree(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, json.Number:
		return v, nil
	}
	raw, err := encodeTree(v)
	if err != nil {
		return nil, err
	}
	return decodeTree(raw)
}

// fromTree decodes a tree value into out.
func fromTree(v any, out any) error {
	raw, err := encodeTree(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
