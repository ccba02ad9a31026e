/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dcql

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

// ClaimsPathPointer is a list of segments forming a path to a claim within a
// credential. A string segment selects an object key, a nil segment selects
// all elements of the currently selected array(s) and a non-negative integer
// segment selects an array index.
type ClaimsPathPointer []interface{}

// Resolve evaluates the pointer against a claims object and returns the
// selected values. A pointer that selects nothing yields an error.
func (p ClaimsPathPointer) Resolve(claims map[string]interface{}) ([]interface{}, error) {
	if len(p) == 0 {
		return nil, errors.New("claims path pointer is empty")
	}

	expr, wildcard, err := p.jsonPath()
	if err != nil {
		return nil, err
	}

	value, err := jsonpath.Get(expr, map[string]interface{}(claims))
	if err != nil {
		return nil, fmt.Errorf("resolve claims path %s: %w", expr, err)
	}

	if wildcard {
		values, ok := value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("resolve claims path %s: expected array selection", expr)
		}

		if len(values) == 0 {
			return nil, fmt.Errorf("claims path %s selects no values", expr)
		}

		return values, nil
	}

	return []interface{}{value}, nil
}

// jsonPath compiles the pointer into a JSONPath expression. The second return
// value reports whether the expression contains an all-elements wildcard.
func (p ClaimsPathPointer) jsonPath() (string, bool, error) {
	var sb strings.Builder

	sb.WriteString("$")

	wildcard := false

	for _, segment := range p {
		switch s := segment.(type) {
		case string:
			fmt.Fprintf(&sb, "[%q]", s)
		case nil:
			sb.WriteString("[*]")

			wildcard = true
		default:
			idx, ok := toIndex(segment)
			if !ok {
				return "", false, fmt.Errorf("unsupported claims path segment %v (%T)", segment, segment)
			}

			fmt.Fprintf(&sb, "[%d]", idx)
		}
	}

	return sb.String(), wildcard, nil
}

// toIndex converts a JSON number segment to a non-negative array index.
func toIndex(segment interface{}) (int, bool) {
	switch n := segment.(type) {
	case int:
		return n, n >= 0
	case int64:
		return int(n), n >= 0
	case float64:
		return int(n), n >= 0 && n == float64(int(n))
	case json.Number:
		i, err := n.Int64()

		return int(i), err == nil && i >= 0
	default:
		return 0, false
	}
}

// pathSegmentEqual compares two claims path segments, treating JSON numbers
// of different Go representations as equal.
func pathSegmentEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if as, ok := a.(string); ok {
		bs, ok := b.(string)

		return ok && as == bs
	}

	ai, aOK := toIndex(a)
	bi, bOK := toIndex(b)

	return aOK && bOK && ai == bi
}
