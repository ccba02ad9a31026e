/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package dcql

import (
	"github.com/samber/lo"
)

// IsEqualOrSubset reports whether every credential and claim requested by the
// request query is permitted by the reference query. The reference side comes
// from a registration certificate or a stored disclosure policy and therefore
// must not carry holder-side constructs: a reference declaring credential_sets,
// or a reference credential entry declaring an id, never permits anything.
//
// The relation is not symmetric. Swapping request and reference is only
// guaranteed to yield the same answer when both queries are structurally
// identical.
func IsEqualOrSubset(request, reference *Query) bool {
	if request == nil || reference == nil {
		return false
	}

	if len(reference.CredentialSets) > 0 {
		return false
	}

	for _, ref := range reference.Credentials {
		if ref.ID != "" {
			return false
		}
	}

	for _, requested := range request.Credentials {
		if !lo.Contains(SupportedFormats, requested.Format) {
			return false
		}

		if !hasPermittingCandidate(requested, reference.Credentials) {
			return false
		}
	}

	return true
}

// hasPermittingCandidate reports whether at least one reference entry with
// the same format and credential identity permits all requested claims. The
// first fully matching candidate wins; no ranking among candidates is defined.
func hasPermittingCandidate(requested CredentialQuery, reference []CredentialQuery) bool {
	for _, candidate := range reference {
		if candidate.Format != requested.Format {
			continue
		}

		if !identityMatches(requested, candidate) {
			continue
		}

		if claimsPermitted(requested, candidate) {
			return true
		}
	}

	return false
}

// identityMatches applies the format specific credential identity rules:
// exact doctype equality for mdoc, order-independent vct_values set equality
// for the SD-JWT formats.
func identityMatches(requested, candidate CredentialQuery) bool {
	switch requested.Format {
	case FormatMsoMdoc:
		if requested.Meta == nil || requested.Meta.DoctypeValue == "" {
			return false
		}

		return candidate.Meta != nil && candidate.Meta.DoctypeValue == requested.Meta.DoctypeValue
	case FormatSDJWTVC, FormatSDJWTDC:
		if requested.Meta == nil || len(requested.Meta.VCTValues) == 0 {
			return false
		}

		if candidate.Meta == nil || len(candidate.Meta.VCTValues) != len(requested.Meta.VCTValues) {
			return false
		}

		return lo.Every(candidate.Meta.VCTValues, requested.Meta.VCTValues)
	default:
		return false
	}
}

// claimsPermitted reports whether every requested claim appears in the
// candidate's claim list. A candidate without claims permits everything under
// its format and identity; a request without claims asks for nothing beyond
// the identity match.
func claimsPermitted(requested, candidate CredentialQuery) bool {
	if len(candidate.Claims) == 0 || len(requested.Claims) == 0 {
		return true
	}

	for _, claim := range requested.Claims {
		if !claimPermitted(requested.Format, claim, candidate.Claims) {
			return false
		}
	}

	return true
}

func claimPermitted(format string, claim ClaimQuery, permitted []ClaimQuery) bool {
	for _, p := range permitted {
		if claimPathMatches(format, claim.Path, p.Path) {
			return true
		}
	}

	return false
}

// claimPathMatches compares claim paths. For mdoc the namespace and element
// identifier (the first two path segments) determine the claim; for the
// SD-JWT formats the full ordered path must match.
func claimPathMatches(format string, requested, permitted ClaimsPathPointer) bool {
	if format == FormatMsoMdoc {
		if len(requested) < 2 || len(permitted) < 2 {
			return false
		}

		return pathSegmentEqual(requested[0], permitted[0]) &&
			pathSegmentEqual(requested[1], permitted[1])
	}

	if len(requested) != len(permitted) {
		return false
	}

	for i := range requested {
		if !pathSegmentEqual(requested[i], permitted[i]) {
			return false
		}
	}

	return true
}
