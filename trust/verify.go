/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package trust ties the trust evaluation components together per incoming
// OpenID4VP authorization request: it classifies the request's verifier
// attestations as registration certificates or authorization attestations,
// dispatches each to its verifier and collects the results.
package trust

import (
	"context"
	"crypto/x509"
	"fmt"

	"github.com/animo/eudi-wallet-functionality/attestation"
	"github.com/animo/eudi-wallet-functionality/openid4vp"
	"github.com/animo/eudi-wallet-functionality/policy"
	"github.com/animo/eudi-wallet-functionality/regcert"
)

// RegistrationCertificateVerifier verifies a single registration
// certificate.
type RegistrationCertificateVerifier interface {
	Verify(ctx context.Context, opts regcert.VerifyOptions) (*regcert.Result, error)
}

// AttestationVerifier verifies a single authorization attestation.
type AttestationVerifier interface {
	Verify(ctx context.Context, opts attestation.VerifyOptions) (*attestation.Verified, error)
}

// PolicyEvaluator checks disclosure policies of matched credentials.
type PolicyEvaluator interface {
	VerifyAuthorization(ctx context.Context, opts policy.VerifyOptions) error
}

// Verifier is the top-level trust evaluator for authorization requests.
type Verifier struct {
	registrationCertificates RegistrationCertificateVerifier
	attestations             AttestationVerifier
	policies                 PolicyEvaluator
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithRegistrationCertificateVerifier overrides the registration certificate
// verifier.
func WithRegistrationCertificateVerifier(v RegistrationCertificateVerifier) VerifierOption {
	return func(verifier *Verifier) {
		verifier.registrationCertificates = v
	}
}

// WithAttestationVerifier overrides the authorization attestation verifier.
func WithAttestationVerifier(v AttestationVerifier) VerifierOption {
	return func(verifier *Verifier) {
		verifier.attestations = v
	}
}

// WithPolicyEvaluator overrides the disclosure policy evaluator.
func WithPolicyEvaluator(e PolicyEvaluator) VerifierOption {
	return func(verifier *Verifier) {
		verifier.policies = e
	}
}

// NewVerifier creates a top-level trust evaluator.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		registrationCertificates: regcert.NewVerifier(),
		attestations:             attestation.NewVerifier(),
		policies:                 policy.NewEvaluator(),
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifyOptions holds the inputs of an authorization request trust
// evaluation.
type VerifyOptions struct {
	// Request is the resolved authorization request.
	Request *openid4vp.ResolvedAuthorizationRequest

	// TrustedCertificates anchor attestation signing chains.
	TrustedCertificates []*x509.Certificate

	// AllowUntrustedSigned additionally trusts attestation embedded chains.
	AllowUntrustedSigned bool
}

// Result collects the per-attestation verification outcomes of an
// authorization request.
type Result struct {
	// RegistrationCertificates holds one result per registration
	// certificate carried by the request.
	RegistrationCertificates []*regcert.Result

	// AuthorizationAttestations holds one entry per verified authorization
	// attestation carried by the request.
	AuthorizationAttestations []*attestation.Verified
}

// VerifyAuthorizationRequest classifies and verifies every verifier
// attestation of the request. A request without attestations yields an empty
// result: such requests are valid and simply carry no registration
// certificate or attestation based authorization.
func (v *Verifier) VerifyAuthorizationRequest(ctx context.Context, opts VerifyOptions) (*Result, error) {
	result := &Result{}

	for i, att := range opts.Request.VerifierAttestations() {
		if att.Format != openid4vp.VerifierAttestationFormatJWT {
			return nil, fmt.Errorf("verifier attestation %d has unsupported format %q", i, att.Format)
		}

		data, err := att.InlineData()
		if err != nil {
			return nil, fmt.Errorf("verifier attestation %d: %w", i, err)
		}

		switch {
		case regcert.Is(att.Format, data):
			verified, err := v.registrationCertificates.Verify(ctx, regcert.VerifyOptions{
				RegistrationCertificate: data,
				Request:                 opts.Request,
				TrustedCertificates:     opts.TrustedCertificates,
				AllowUntrustedSigned:    opts.AllowUntrustedSigned,
			})
			if err != nil {
				return nil, fmt.Errorf("verify registration certificate %d: %w", i, err)
			}

			result.RegistrationCertificates = append(result.RegistrationCertificates, verified)
		case attestation.Is(att.Format, data):
			verified, err := v.attestations.Verify(ctx, attestation.VerifyOptions{
				AuthorizationAttestation: data,
				Request:                  opts.Request,
				TrustedCertificates:      opts.TrustedCertificates,
				AllowUntrustedSigned:     opts.AllowUntrustedSigned,
			})
			if err != nil {
				return nil, fmt.Errorf("verify authorization attestation %d: %w", i, err)
			}

			result.AuthorizationAttestations = append(result.AuthorizationAttestations, verified)
		default:
			return nil, fmt.Errorf("verifier attestation %d is not a valid jwt attestation", i)
		}
	}

	return result, nil
}

// VerifyRegistrationCertificates verifies only the registration certificates
// carried by the request, skipping other attestations.
func (v *Verifier) VerifyRegistrationCertificates(ctx context.Context, opts VerifyOptions) ([]*regcert.Result, error) {
	var results []*regcert.Result

	for i, att := range opts.Request.VerifierAttestations() {
		if att.Format != openid4vp.VerifierAttestationFormatJWT {
			return nil, fmt.Errorf("verifier attestation %d has unsupported format %q", i, att.Format)
		}

		data, err := att.InlineData()
		if err != nil {
			return nil, fmt.Errorf("verifier attestation %d: %w", i, err)
		}

		if !regcert.Is(att.Format, data) {
			continue
		}

		verified, err := v.registrationCertificates.Verify(ctx, regcert.VerifyOptions{
			RegistrationCertificate: data,
			Request:                 opts.Request,
			TrustedCertificates:     opts.TrustedCertificates,
			AllowUntrustedSigned:    opts.AllowUntrustedSigned,
		})
		if err != nil {
			return nil, fmt.Errorf("verify registration certificate %d: %w", i, err)
		}

		results = append(results, verified)
	}

	return results, nil
}

// VerifyAuthorization checks the disclosure policies of the credentials the
// wallet is about to disclose for this request.
func (v *Verifier) VerifyAuthorization(
	ctx context.Context,
	opts VerifyOptions,
	matchedCredentials map[string]policy.MatchedCredential,
	trustedRootCertificates []*x509.Certificate,
) error {
	return v.policies.VerifyAuthorization(ctx, policy.VerifyOptions{
		Request:                 opts.Request,
		MatchedCredentials:      matchedCredentials,
		TrustedCertificates:     opts.TrustedCertificates,
		TrustedRootCertificates: trustedRootCertificates,
		AllowUntrustedSigned:    opts.AllowUntrustedSigned,
	})
}
