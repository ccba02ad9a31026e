/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jsonmerge merges JSON-like object trees with per-path merge
// configuration. It is used to compose transaction data metadata documents
// from multiple sources.
package jsonmerge

import (
	"fmt"
	"reflect"

	jsonutil "github.com/animo/eudi-wallet-functionality/util/json"
)

// ArrayStrategy selects how arrays are merged.
type ArrayStrategy string

// Array merge strategies.
const (
	// ArrayReplace replaces the whole base array with the overlay array.
	ArrayReplace ArrayStrategy = "replace"
	// ArrayAppend appends the overlay elements to the base array.
	ArrayAppend ArrayStrategy = "append"
	// ArrayMergeByKey merges elements pairwise, matched by the configured
	// discriminant keys or, without keys, by positional index.
	ArrayMergeByKey ArrayStrategy = "mergeByKey"
)

// WildcardField is the Config.Fields key matching any field a configuration
// does not name explicitly. An exact field match takes precedence.
const WildcardField = "items"

// Config configures merging at one node of the tree.
type Config struct {
	// Array is the strategy applied to arrays at this node. Defaults to
	// ArrayReplace.
	Array ArrayStrategy

	// Keys are the discriminant fields for ArrayMergeByKey, compared by
	// deep equality. Empty means positional matching.
	Keys []string

	// Fields configures child nodes by field name, with WildcardField as
	// fallback.
	Fields map[string]*Config
}

func (c *Config) child(field string) *Config {
	if c == nil {
		return nil
	}

	if sub, ok := c.Fields[field]; ok {
		return sub
	}

	return c.Fields[WildcardField]
}

func (c *Config) arrayStrategy() ArrayStrategy {
	if c == nil || c.Array == "" {
		return ArrayReplace
	}

	return c.Array
}

// Validator is invoked at every merge node before merging proceeds. A
// non-nil error aborts the whole merge with a path-qualified error.
type Validator func(path string, base, overlay interface{}) error

// Merge merges overlay into base and returns the merged object. Neither
// input is modified.
func Merge(base, overlay map[string]interface{}, cfg *Config, validate Validator) (map[string]interface{}, error) {
	merged, err := mergeValue("$", base, overlay, cfg, validate)
	if err != nil {
		return nil, err
	}

	obj, ok := merged.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("merge at $: expected object result, got %T", merged)
	}

	return obj, nil
}

func mergeValue(path string, base, overlay interface{}, cfg *Config, validate Validator) (interface{}, error) {
	if validate != nil {
		if err := validate(path, base, overlay); err != nil {
			return nil, fmt.Errorf("merge aborted at %s: %w", path, err)
		}
	}

	baseObj, baseIsObj := base.(map[string]interface{})
	overlayObj, overlayIsObj := overlay.(map[string]interface{})

	if baseIsObj && overlayIsObj {
		return mergeObjects(path, baseObj, overlayObj, cfg, validate)
	}

	baseArr, baseIsArr := base.([]interface{})
	overlayArr, overlayIsArr := overlay.([]interface{})

	if baseIsArr && overlayIsArr {
		return mergeArrays(path, baseArr, overlayArr, cfg, validate)
	}

	if overlay == nil {
		return base, nil
	}

	return overlay, nil
}

func mergeObjects(
	path string, base, overlay map[string]interface{}, cfg *Config, validate Validator,
) (map[string]interface{}, error) {
	merged := jsonutil.ShallowCopyObj(base)

	for field, overlayValue := range overlay {
		fieldPath := fmt.Sprintf("%s.%s", path, field)

		value, err := mergeValue(fieldPath, base[field], overlayValue, cfg.child(field), validate)
		if err != nil {
			return nil, err
		}

		merged[field] = value
	}

	return merged, nil
}

func mergeArrays(
	path string, base, overlay []interface{}, cfg *Config, validate Validator,
) ([]interface{}, error) {
	switch cfg.arrayStrategy() {
	case ArrayReplace:
		return overlay, nil
	case ArrayAppend:
		merged := make([]interface{}, 0, len(base)+len(overlay))
		merged = append(merged, base...)
		merged = append(merged, overlay...)

		return merged, nil
	case ArrayMergeByKey:
		if len(cfg.Keys) == 0 {
			return mergeArraysByIndex(path, base, overlay, cfg, validate)
		}

		return mergeArraysByKeys(path, base, overlay, cfg, validate)
	default:
		return nil, fmt.Errorf("merge at %s: unsupported array strategy %q", path, cfg.Array)
	}
}

// mergeArraysByIndex merges elements pairwise by position; surplus overlay
// elements are appended.
func mergeArraysByIndex(
	path string, base, overlay []interface{}, cfg *Config, validate Validator,
) ([]interface{}, error) {
	merged := make([]interface{}, 0, max(len(base), len(overlay)))
	merged = append(merged, base...)

	for i, overlayElement := range overlay {
		elementPath := fmt.Sprintf("%s[%d]", path, i)

		if i < len(base) {
			value, err := mergeValue(elementPath, base[i], overlayElement, cfg.child(WildcardField), validate)
			if err != nil {
				return nil, err
			}

			merged[i] = value

			continue
		}

		merged = append(merged, overlayElement)
	}

	return merged, nil
}

// mergeArraysByKeys merges each overlay element into the base element whose
// discriminant key values are all deep-equal; elements without a match are
// appended.
func mergeArraysByKeys(
	path string, base, overlay []interface{}, cfg *Config, validate Validator,
) ([]interface{}, error) {
	merged := make([]interface{}, len(base))
	copy(merged, base)

	for i, overlayElement := range overlay {
		elementPath := fmt.Sprintf("%s[%d]", path, i)

		matched := false

		for j, baseElement := range merged {
			if !discriminantsEqual(baseElement, overlayElement, cfg.Keys) {
				continue
			}

			value, err := mergeValue(elementPath, baseElement, overlayElement, cfg.child(WildcardField), validate)
			if err != nil {
				return nil, err
			}

			merged[j] = value
			matched = true

			break
		}

		if !matched {
			merged = append(merged, overlayElement)
		}
	}

	return merged, nil
}

func discriminantsEqual(base, overlay interface{}, keys []string) bool {
	baseObj, ok := base.(map[string]interface{})
	if !ok {
		return false
	}

	overlayObj, ok := overlay.(map[string]interface{})
	if !ok {
		return false
	}

	for _, key := range keys {
		if !reflect.DeepEqual(baseObj[key], overlayObj[key]) {
			return false
		}
	}

	return true
}
