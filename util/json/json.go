/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package json provides helpers for JSON objects represented as maps.
package json

import (
	"encoding/json"

	"golang.org/x/exp/slices"
)

// ToMap convert object, string or bytes to json object represented by map.
func ToMap(v interface{}) (map[string]interface{}, error) {
	var (
		b   []byte
		err error
	)

	switch cv := v.(type) {
	case []byte:
		b = cv
	case string:
		b = []byte(cv)
	default:
		b, err = json.Marshal(v)
		if err != nil {
			return nil, err
		}
	}

	var m map[string]interface{}

	err = json.Unmarshal(b, &m)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// ShallowCopyObj creates new json object with copied fields form provided object.
func ShallowCopyObj(json map[string]interface{}) map[string]interface{} {
	flds := make(map[string]interface{})

	for k, v := range json {
		flds[k] = v
	}

	return flds
}

// CopyExcept copies all fields except fields with given names.
func CopyExcept(json map[string]interface{}, flds ...string) map[string]interface{} {
	newJSON := ShallowCopyObj(json)

	for _, fld := range flds {
		delete(newJSON, fld)
	}

	return newJSON
}

// SplitJSONObj splits provided fields into separate object.
func SplitJSONObj(json map[string]interface{}, flds ...string) (map[string]interface{}, map[string]interface{}) {
	fldsMap := make(map[string]interface{})
	rest := make(map[string]interface{})

	for k, v := range json {
		if slices.Contains(flds, k) {
			fldsMap[k] = v
		} else {
			rest[k] = v
		}
	}

	return fldsMap, rest
}
