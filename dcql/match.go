/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dcql

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/samber/lo"
)

// Credential is a DCQL-evaluable view of a verified credential, used when
// checking whether presented authorization attestations satisfy an
// attribute-based access control query.
type Credential struct {
	// Format of the credential, see SupportedFormats.
	Format string

	// Claims holds the resolved claim values of the credential. For SD-JWT
	// credentials this includes the vct claim; for mdoc it includes docType.
	Claims map[string]interface{}
}

// MatchCredentials reports whether the presented credentials satisfy the
// query. Every credential query must be satisfied by at least one credential;
// when the query declares credential_sets, each required set must have at
// least one option whose credential queries are all satisfied.
func MatchCredentials(query *Query, credentials []Credential) error {
	if query == nil {
		return fmt.Errorf("dcql query is not defined")
	}

	satisfied := map[string]bool{}

	for i, credentialQuery := range query.Credentials {
		id := credentialQuery.ID
		if id == "" {
			id = fmt.Sprintf("credential query %d", i)
		}

		err := matchCredentialQuery(credentialQuery, credentials)
		satisfied[credentialQuery.ID] = err == nil

		if len(query.CredentialSets) == 0 && err != nil {
			return fmt.Errorf("%s not satisfied: %w", id, err)
		}
	}

	for i, set := range query.CredentialSets {
		if !set.IsRequired() {
			continue
		}

		optionSatisfied := lo.SomeBy(set.Options, func(option []string) bool {
			return lo.EveryBy(option, func(id string) bool { return satisfied[id] })
		})

		if !optionSatisfied {
			return fmt.Errorf("credential set %d has no satisfied option", i)
		}
	}

	return nil
}

func matchCredentialQuery(query CredentialQuery, credentials []Credential) error {
	var lastErr error

	for _, credential := range credentials {
		if err := matchCredential(query, credential); err != nil {
			lastErr = err

			continue
		}

		return nil
	}

	if lastErr != nil {
		return lastErr
	}

	return fmt.Errorf("no presented credential has format %q", query.Format)
}

func matchCredential(query CredentialQuery, credential Credential) error {
	if credential.Format != query.Format {
		return fmt.Errorf("format %q does not match requested %q", credential.Format, query.Format)
	}

	if err := matchCredentialMeta(query, credential); err != nil {
		return err
	}

	if len(query.ClaimSets) > 0 {
		return matchClaimSets(query, credential)
	}

	for _, claim := range query.Claims {
		if err := matchClaim(claim, credential); err != nil {
			return err
		}
	}

	return nil
}

func matchCredentialMeta(query CredentialQuery, credential Credential) error {
	if query.Meta == nil {
		return nil
	}

	switch query.Format {
	case FormatSDJWTVC, FormatSDJWTDC:
		if len(query.Meta.VCTValues) == 0 {
			return nil
		}

		vct, _ := credential.Claims["vct"].(string)
		if !lo.Contains(query.Meta.VCTValues, vct) {
			return fmt.Errorf("vct %q is not one of the requested vct_values", vct)
		}
	case FormatMsoMdoc:
		if query.Meta.DoctypeValue == "" {
			return nil
		}

		doctype, _ := credential.Claims["docType"].(string)
		if doctype != query.Meta.DoctypeValue {
			return fmt.Errorf("doctype %q does not match requested %q", doctype, query.Meta.DoctypeValue)
		}
	}

	return nil
}

// matchClaimSets checks claim_sets in order and accepts the first set whose
// claims are all present.
func matchClaimSets(query CredentialQuery, credential Credential) error {
	claimsByID := lo.KeyBy(query.Claims, func(c ClaimQuery) string { return c.ID })

	for _, set := range query.ClaimSets {
		err := matchClaimSet(set, claimsByID, credential)
		if err == nil {
			return nil
		}
	}

	return fmt.Errorf("no claim set is satisfied")
}

func matchClaimSet(set []string, claimsByID map[string]ClaimQuery, credential Credential) error {
	for _, id := range set {
		claim, ok := claimsByID[id]
		if !ok {
			return fmt.Errorf("claim set references unknown claim id %q", id)
		}

		if err := matchClaim(claim, credential); err != nil {
			return err
		}
	}

	return nil
}

func matchClaim(claim ClaimQuery, credential Credential) error {
	values, err := claim.Path.Resolve(credential.Claims)
	if err != nil {
		return err
	}

	if len(claim.Values) == 0 {
		return nil
	}

	for _, value := range values {
		for _, expected := range claim.Values {
			if claimValueEqual(value, expected) {
				return nil
			}
		}
	}

	return fmt.Errorf("claim at path %v has none of the expected values", claim.Path)
}

// claimValueEqual compares a resolved claim value with an expected value,
// treating JSON numbers of different Go representations as equal.
func claimValueEqual(a, b interface{}) bool {
	if af, aOK := toFloat(a); aOK {
		bf, bOK := toFloat(b)

		return bOK && af == bf
	}

	return reflect.DeepEqual(a, b)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
