/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package attestation

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"

	"github.com/animo/eudi-wallet-functionality/dcql"
	"github.com/animo/eudi-wallet-functionality/jwt"
	"github.com/animo/eudi-wallet-functionality/openid4vp"
	"github.com/animo/eudi-wallet-functionality/proof/checker"
)

// JWSChecker verifies a compact JWS against a set of trusted certificates
// and returns the verified signing chain, leaf first.
type JWSChecker interface {
	CheckJWS(ctx context.Context, token string, trusted []*x509.Certificate) ([]*x509.Certificate, error)
}

// CredentialVerifier performs the credential format verification of an
// SD-JWT attestation and returns its resolved claims.
type CredentialVerifier interface {
	VerifySDJWT(ctx context.Context, token string) (map[string]interface{}, error)
}

// Verified is the outcome of a successful attestation verification.
type Verified struct {
	// Payload is the decoded attestation payload.
	Payload *Payload

	// Claims are the resolved claims of the SD-JWT, disclosures applied.
	Claims map[string]interface{}

	// Trusted reports whether the signing chain verified against the
	// caller's trusted certificates, as opposed to the attestation's own
	// embedded chain.
	Trusted bool
}

// Credential returns the attestation as a DCQL-evaluable credential.
func (v *Verified) Credential() dcql.Credential {
	return dcql.Credential{
		Format: dcql.FormatSDJWTDC,
		Claims: v.Claims,
	}
}

// Verifier verifies authorization attestations.
type Verifier struct {
	checker    JWSChecker
	credential CredentialVerifier
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithJWSChecker overrides the JWS signature checker.
func WithJWSChecker(c JWSChecker) VerifierOption {
	return func(v *Verifier) {
		v.checker = c
	}
}

// WithCredentialVerifier overrides the SD-JWT credential verifier.
func WithCredentialVerifier(c CredentialVerifier) VerifierOption {
	return func(v *Verifier) {
		v.credential = c
	}
}

// NewVerifier creates an authorization attestation verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		checker:    checker.New(),
		credential: NewSDJWTVerifier(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifyOptions holds the inputs of an authorization attestation
// verification.
type VerifyOptions struct {
	// AuthorizationAttestation is the SD-JWT combined serialization of the
	// attestation.
	AuthorizationAttestation string

	// Request is the resolved authorization request carrying the
	// attestation.
	Request *openid4vp.ResolvedAuthorizationRequest

	// TrustedCertificates anchor the attestation's signing chain.
	TrustedCertificates []*x509.Certificate

	// AllowUntrustedSigned additionally trusts the certificate chain
	// embedded in the attestation's own x5c header.
	AllowUntrustedSigned bool
}

// Verify verifies an authorization attestation against the authorization
// request that carried it. Every failure is fatal: the first failed check is
// returned as a descriptive error.
func (v *Verifier) Verify(ctx context.Context, opts VerifyOptions) (*Verified, error) {
	if len(opts.TrustedCertificates) == 0 && !opts.AllowUntrustedSigned {
		return nil, errors.New("either trusted certificates or allow untrusted signed must be provided")
	}

	if !opts.Request.IsSignedWithX5C() {
		return nil, errors.New("authorization request must be signed with an x5c certificate chain")
	}

	issuerJWT := issuerSignedJWT(opts.AuthorizationAttestation)

	token, err := jwt.Parse(issuerJWT)
	if err != nil {
		return nil, fmt.Errorf("parse authorization attestation: %w", err)
	}

	if err := validateStructure(token); err != nil {
		return nil, err
	}

	trusted, err := v.checkSignature(ctx, token, issuerJWT, opts)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := token.DecodeClaims(&payload); err != nil {
		return nil, fmt.Errorf("decode authorization attestation payload: %w", err)
	}

	requestSubject, err := opts.Request.SignerSubject()
	if err != nil {
		return nil, fmt.Errorf("resolve request signer subject: %w", err)
	}

	if payload.Sub != requestSubject {
		return nil, fmt.Errorf(
			"authorization attestation subject %q does not match access certificate subject %q",
			payload.Sub, requestSubject,
		)
	}

	claims, err := v.credential.VerifySDJWT(ctx, opts.AuthorizationAttestation)
	if err != nil {
		return nil, fmt.Errorf("sd-jwt credential verification failed: %w", err)
	}

	return &Verified{
		Payload: &payload,
		Claims:  claims,
		Trusted: trusted,
	}, nil
}

// checkSignature applies the two-tier trust model and reports whether the
// trusted path succeeded. When the trusted path fails and untrusted signers
// are allowed, the attestation's own embedded chain is trusted instead.
func (v *Verifier) checkSignature(
	ctx context.Context, token *jwt.JSONWebToken, issuerJWT string, opts VerifyOptions,
) (bool, error) {
	_, err := v.checker.CheckJWS(ctx, issuerJWT, opts.TrustedCertificates)
	if err == nil {
		return true, nil
	}

	if !opts.AllowUntrustedSigned {
		return false, fmt.Errorf("verify authorization attestation signature: %w", err)
	}

	embedded, parseErr := checker.ParseCertificateChain(token.X5C())
	if parseErr != nil {
		return false, fmt.Errorf("parse embedded x5c chain: %w (after: %w)", parseErr, err)
	}

	trusted := make([]*x509.Certificate, 0, len(opts.TrustedCertificates)+len(embedded))
	trusted = append(trusted, opts.TrustedCertificates...)
	trusted = append(trusted, embedded...)

	if _, err := v.checker.CheckJWS(ctx, issuerJWT, trusted); err != nil {
		return false, fmt.Errorf("verify authorization attestation signature: %w", err)
	}

	return false, nil
}
