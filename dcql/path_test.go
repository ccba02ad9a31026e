/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dcql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClaimsPathPointerResolve(t *testing.T) {
	claims := map[string]interface{}{
		"given_name": "Erika",
		"address": map[string]interface{}{
			"locality": "Cologne",
		},
		"nationalities": []interface{}{"DE", "NL"},
	}

	t.Run("top level key", func(t *testing.T) {
		values, err := ClaimsPathPointer{"given_name"}.Resolve(claims)
		require.NoError(t, err)
		require.Equal(t, []interface{}{"Erika"}, values)
	})

	t.Run("nested key", func(t *testing.T) {
		values, err := ClaimsPathPointer{"address", "locality"}.Resolve(claims)
		require.NoError(t, err)
		require.Equal(t, []interface{}{"Cologne"}, values)
	})

	t.Run("array index", func(t *testing.T) {
		values, err := ClaimsPathPointer{"nationalities", 1}.Resolve(claims)
		require.NoError(t, err)
		require.Equal(t, []interface{}{"NL"}, values)
	})

	t.Run("array wildcard", func(t *testing.T) {
		values, err := ClaimsPathPointer{"nationalities", nil}.Resolve(claims)
		require.NoError(t, err)
		require.Equal(t, []interface{}{"DE", "NL"}, values)
	})

	t.Run("missing key", func(t *testing.T) {
		_, err := ClaimsPathPointer{"family_name"}.Resolve(claims)
		require.Error(t, err)
	})

	t.Run("empty pointer", func(t *testing.T) {
		_, err := ClaimsPathPointer{}.Resolve(claims)
		require.Error(t, err)
	})

	t.Run("negative index", func(t *testing.T) {
		_, err := ClaimsPathPointer{"nationalities", -1}.Resolve(claims)
		require.Error(t, err)
	})

	t.Run("float index from decoded json", func(t *testing.T) {
		values, err := ClaimsPathPointer{"nationalities", float64(0)}.Resolve(claims)
		require.NoError(t, err)
		require.Equal(t, []interface{}{"DE"}, values)
	})
}
