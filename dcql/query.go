/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package dcql implements the Digital Credentials Query Language (DCQL) data
// model used by OpenID4VP authorization requests
// (https://openid.net/specs/openid-4-verifiable-presentations-1_0.html#name-digital-credentials-query-l),
// together with the subset/equality relation between a runtime request query
// and a reference query taken from a registration certificate or a stored
// disclosure policy.
package dcql

// Supported credential query formats.
const (
	// FormatMsoMdoc is the ISO 18013-5 mdoc credential format.
	FormatMsoMdoc = "mso_mdoc"
	// FormatSDJWTVC is the legacy SD-JWT VC credential format identifier.
	FormatSDJWTVC = "vc+sd-jwt"
	// FormatSDJWTDC is the SD-JWT VC credential format identifier.
	FormatSDJWTDC = "dc+sd-jwt"
)

// SupportedFormats lists the credential query formats understood by the
// subset matcher.
var SupportedFormats = []string{FormatMsoMdoc, FormatSDJWTVC, FormatSDJWTDC}

// Query defines a DCQL query.
type Query struct {
	// Credentials is a non-empty list of requested credentials.
	Credentials []CredentialQuery `json:"credentials"`

	// CredentialSets places additional constraints on which of the requested
	// credentials to return. Holder-side only: a reference query must not
	// declare credential sets.
	CredentialSets []CredentialSetQuery `json:"credential_sets,omitempty"`
}

// CredentialQuery requests a single credential kind.
type CredentialQuery struct {
	// ID identifies the credential in the response. Holder-side only: a
	// reference query entry must not declare an id.
	ID string `json:"id,omitempty"`

	// Format of the requested credential, see SupportedFormats.
	Format string `json:"format"`

	// Multiple indicates whether more than one credential may be returned
	// for this query. Defaults to false.
	Multiple bool `json:"multiple,omitempty"`

	// Meta holds format specific constraints on credential metadata.
	Meta *Meta `json:"meta,omitempty"`

	// Claims lists the requested claims. Absent means all claims.
	Claims []ClaimQuery `json:"claims,omitempty"`

	// ClaimSets lists combinations of claim ids that satisfy this query.
	ClaimSets [][]string `json:"claim_sets,omitempty"`
}

// Meta holds the format specific credential identity constraints.
type Meta struct {
	// DoctypeValue is the allowed doctype of an mso_mdoc credential.
	DoctypeValue string `json:"doctype_value,omitempty"`

	// VCTValues are the allowed vct values of an SD-JWT VC credential.
	VCTValues []string `json:"vct_values,omitempty"`
}

// ClaimQuery requests a single claim within a credential.
type ClaimQuery struct {
	// ID identifies the claim within claim_sets. Required when the
	// credential query declares claim_sets.
	ID string `json:"id,omitempty"`

	// Path points at the claim, see ClaimsPathPointer.
	Path ClaimsPathPointer `json:"path"`

	// Values, when set, lists the values the claim is expected to have.
	Values []interface{} `json:"values,omitempty"`
}

// CredentialSetQuery requests one of several credential combinations.
type CredentialSetQuery struct {
	// Options lists sets of credential query ids, each set satisfying the
	// verifier's use case.
	Options [][]string `json:"options"`

	// Required indicates whether this set must be satisfied. Defaults to
	// true when omitted.
	Required *bool `json:"required,omitempty"`

	// Purpose describes why the verifier requests this set.
	Purpose interface{} `json:"purpose,omitempty"`
}

// IsRequired reports whether the credential set must be satisfied.
func (q CredentialSetQuery) IsRequired() bool {
	return q.Required == nil || *q.Required
}
