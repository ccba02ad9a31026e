/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dcql

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func pidCredential() Credential {
	return Credential{
		Format: FormatSDJWTDC,
		Claims: map[string]interface{}{
			"vct":         "PID",
			"given_name":  "Erika",
			"age_over_18": true,
			"address": map[string]interface{}{
				"locality": "Cologne",
			},
		},
	}
}

func TestMatchCredentials(t *testing.T) {
	t.Run("vct and claim value match", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					ID:     "pid",
					Format: FormatSDJWTDC,
					Meta:   &Meta{VCTValues: []string{"PID"}},
					Claims: []ClaimQuery{
						{Path: ClaimsPathPointer{"age_over_18"}, Values: []interface{}{true}},
					},
				},
			},
		}

		require.NoError(t, MatchCredentials(query, []Credential{pidCredential()}))
	})

	t.Run("claim value mismatch", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					ID:     "pid",
					Format: FormatSDJWTDC,
					Meta:   &Meta{VCTValues: []string{"PID"}},
					Claims: []ClaimQuery{
						{Path: ClaimsPathPointer{"given_name"}, Values: []interface{}{"Max"}},
					},
				},
			},
		}

		err := MatchCredentials(query, []Credential{pidCredential()})
		require.Error(t, err)
		require.Contains(t, err.Error(), "pid not satisfied")
	})

	t.Run("missing claim path", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					Format: FormatSDJWTDC,
					Meta:   &Meta{VCTValues: []string{"PID"}},
					Claims: []ClaimQuery{{Path: ClaimsPathPointer{"family_name"}}},
				},
			},
		}

		require.Error(t, MatchCredentials(query, []Credential{pidCredential()}))
	})

	t.Run("vct not requested", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					Format: FormatSDJWTDC,
					Meta:   &Meta{VCTValues: []string{"EHIC"}},
				},
			},
		}

		require.Error(t, MatchCredentials(query, []Credential{pidCredential()}))
	})

	t.Run("mdoc doctype match", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					Format: FormatMsoMdoc,
					Meta:   &Meta{DoctypeValue: "org.iso.18013.5.1.mDL"},
				},
			},
		}

		credential := Credential{
			Format: FormatMsoMdoc,
			Claims: map[string]interface{}{"docType": "org.iso.18013.5.1.mDL"},
		}

		require.NoError(t, MatchCredentials(query, []Credential{credential}))
	})

	t.Run("no credentials presented", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{{Format: FormatSDJWTDC}},
		}

		err := MatchCredentials(query, nil)
		require.Error(t, err)
	})

	t.Run("nil query", func(t *testing.T) {
		require.Error(t, MatchCredentials(nil, []Credential{pidCredential()}))
	})

	t.Run("numeric values compare across representations", func(t *testing.T) {
		query := &Query{
			Credentials: []CredentialQuery{
				{
					Format: FormatSDJWTDC,
					Meta:   &Meta{VCTValues: []string{"PID"}},
					Claims: []ClaimQuery{
						{Path: ClaimsPathPointer{"age_in_years"}, Values: []interface{}{21}},
					},
				},
			},
		}

		credential := pidCredential()
		credential.Claims["age_in_years"] = float64(21)

		require.NoError(t, MatchCredentials(query, []Credential{credential}))
	})
}

func TestMatchCredentials_ClaimSets(t *testing.T) {
	query := &Query{
		Credentials: []CredentialQuery{
			{
				Format: FormatSDJWTDC,
				Meta:   &Meta{VCTValues: []string{"PID"}},
				Claims: []ClaimQuery{
					{ID: "name", Path: ClaimsPathPointer{"family_name"}},
					{ID: "age", Path: ClaimsPathPointer{"age_over_18"}},
				},
				ClaimSets: [][]string{{"name"}, {"age"}},
			},
		},
	}

	// family_name is absent but the second claim set only needs age_over_18.
	require.NoError(t, MatchCredentials(query, []Credential{pidCredential()}))
}

func TestMatchCredentials_CredentialSets(t *testing.T) {
	optional := false

	query := &Query{
		Credentials: []CredentialQuery{
			{ID: "pid", Format: FormatSDJWTDC, Meta: &Meta{VCTValues: []string{"PID"}}},
			{ID: "ehic", Format: FormatSDJWTDC, Meta: &Meta{VCTValues: []string{"EHIC"}}},
		},
		CredentialSets: []CredentialSetQuery{
			{Options: [][]string{{"pid"}, {"ehic"}}},
			{Options: [][]string{{"ehic"}}, Required: &optional},
		},
	}

	t.Run("one option satisfied", func(t *testing.T) {
		require.NoError(t, MatchCredentials(query, []Credential{pidCredential()}))
	})

	t.Run("required set unsatisfied", func(t *testing.T) {
		strict := &Query{
			Credentials:    query.Credentials,
			CredentialSets: []CredentialSetQuery{{Options: [][]string{{"ehic"}}}},
		}

		err := MatchCredentials(strict, []Credential{pidCredential()})
		require.Error(t, err)
		require.Contains(t, err.Error(), "no satisfied option")
	})
}
