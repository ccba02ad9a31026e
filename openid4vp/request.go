/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package openid4vp defines the resolved OpenID4VP authorization request
// model consumed by the trust evaluation components. Request resolution and
// transport are a collaborator concern: the types here describe requests that
// have already been fetched, parsed and, when signed, signature checked at
// the JAR level.
package openid4vp

import (
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/animo/eudi-wallet-functionality/dcql"
	"github.com/animo/eudi-wallet-functionality/proof/checker"
)

// SignerMethodX5C identifies authorization requests signed with an X.509
// certificate chain. It is the only signing method supported by the trust
// evaluation components.
const SignerMethodX5C = "x5c"

// VerifierAttestationFormatJWT is the only supported verifier attestation
// format.
const VerifierAttestationFormatJWT = "jwt"

// VerifierAttestation is an assertion embedded in the authorization request
// payload under verifier_attestations.
type VerifierAttestation struct {
	// Format of the attestation data. Only "jwt" is supported.
	Format string `json:"format"`

	// Data holds the attestation. It must be an inline compact JWT string;
	// remote attestation references are not supported.
	Data interface{} `json:"data"`
}

// InlineData returns the attestation data as an inline string.
func (a VerifierAttestation) InlineData() (string, error) {
	data, ok := a.Data.(string)
	if !ok {
		return "", fmt.Errorf("verifier attestation data must be an inline string, got %T", a.Data)
	}

	return data, nil
}

// AuthorizationRequestPayload holds the request parameters relevant to trust
// evaluation.
type AuthorizationRequestPayload struct {
	VerifierAttestations []VerifierAttestation `json:"verifier_attestations,omitempty"`

	DCQLQuery *dcql.Query `json:"dcql_query,omitempty"`

	PresentationDefinition    map[string]interface{} `json:"presentation_definition,omitempty"`
	PresentationDefinitionURI string                 `json:"presentation_definition_uri,omitempty"`

	ClientID string `json:"client_id,omitempty"`
	Nonce    string `json:"nonce,omitempty"`
	State    string `json:"state,omitempty"`

	ResponseURI string `json:"response_uri,omitempty"`
}

// Signer describes how a signed authorization request was signed.
type Signer struct {
	// Method of signing. Only SignerMethodX5C is supported.
	Method string `json:"method"`

	// X5C is the base64 encoded DER certificate chain, leaf first, for the
	// x5c method.
	X5C []string `json:"x5c,omitempty"`
}

// SignedAuthorizationRequest describes the signed form (JAR) of the request.
type SignedAuthorizationRequest struct {
	Signer Signer `json:"signer"`
}

// DCQLResult holds the outcome of resolving the request's DCQL query.
type DCQLResult struct {
	Query *dcql.Query `json:"query"`
}

// ResolvedAuthorizationRequest is an authorization request after resolution
// by the transport layer.
type ResolvedAuthorizationRequest struct {
	AuthorizationRequestPayload *AuthorizationRequestPayload

	// SignedAuthorizationRequest is nil for unsigned requests.
	SignedAuthorizationRequest *SignedAuthorizationRequest

	// DCQL is set when the request carried a DCQL query.
	DCQL *DCQLResult
}

// UsesDCQL reports whether the request uses DCQL rather than presentation
// exchange.
func (r *ResolvedAuthorizationRequest) UsesDCQL() bool {
	if r == nil || r.AuthorizationRequestPayload == nil {
		return false
	}

	payload := r.AuthorizationRequestPayload
	if payload.PresentationDefinition != nil || payload.PresentationDefinitionURI != "" {
		return false
	}

	return r.DCQL != nil && r.DCQL.Query != nil
}

// IsSignedWithX5C reports whether the request is signed with an X.509
// certificate chain.
func (r *ResolvedAuthorizationRequest) IsSignedWithX5C() bool {
	return r != nil &&
		r.SignedAuthorizationRequest != nil &&
		r.SignedAuthorizationRequest.Signer.Method == SignerMethodX5C &&
		len(r.SignedAuthorizationRequest.Signer.X5C) > 0
}

// SignerCertificateChain returns the parsed signing certificate chain of an
// x5c signed request, leaf first.
func (r *ResolvedAuthorizationRequest) SignerCertificateChain() ([]*x509.Certificate, error) {
	if !r.IsSignedWithX5C() {
		return nil, errors.New("authorization request is not signed with an x5c certificate chain")
	}

	return checker.ParseCertificateChain(r.SignedAuthorizationRequest.Signer.X5C)
}

// SignerSubject returns the subject distinguished name of the request's
// signing certificate, the relying party's access certificate subject.
func (r *ResolvedAuthorizationRequest) SignerSubject() (string, error) {
	chain, err := r.SignerCertificateChain()
	if err != nil {
		return "", err
	}

	return chain[0].Subject.String(), nil
}

// VerifierAttestations returns the verifier attestations carried by the
// request payload. A request without attestations yields an empty list.
func (r *ResolvedAuthorizationRequest) VerifierAttestations() []VerifierAttestation {
	if r == nil || r.AuthorizationRequestPayload == nil {
		return nil
	}

	return r.AuthorizationRequestPayload.VerifierAttestations
}
