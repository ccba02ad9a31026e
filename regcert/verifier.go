/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package regcert

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/animo/eudi-wallet-functionality/dcql"
	"github.com/animo/eudi-wallet-functionality/jwt"
	"github.com/animo/eudi-wallet-functionality/openid4vp"
	"github.com/animo/eudi-wallet-functionality/proof/checker"
)

// Check names a registration certificate sub-check.
type Check string

// Sub-checks contributing to a verification Result.
const (
	// CheckDCQLUsed fails when the authorization request uses presentation
	// exchange instead of DCQL.
	CheckDCQLUsed Check = "dcql_used"
	// CheckSignedWithX509 fails when the authorization request is not signed
	// with an x5c certificate chain.
	CheckSignedWithX509 Check = "signed_with_x509"
	// CheckJWSValid fails when the certificate's signature does not verify
	// against the trusted certificates.
	CheckJWSValid Check = "jws_valid"
	// CheckTimestampValid fails when the certificate's iat lies in the
	// future.
	CheckTimestampValid Check = "timestamp_valid"
	// CheckSubjectBinding fails when the certificate subject differs from
	// the access certificate subject of the request signer.
	CheckSubjectBinding Check = "access_certificate_subject_equal_to_registration_certificate"
	// CheckQuerySubset fails when the request's DCQL query is not equal to
	// or a subset of the certificate's registered credentials.
	CheckQuerySubset Check = "registration_certificate_query_equal_or_subset_of_authorization_request_query"
)

// Result summarizes a registration certificate verification. Valid is true
// only if every sub-check that ran succeeded; Checks holds the outcome of
// each sub-check that ran. Reaching the end of a verification call does not
// imply success, callers must inspect Valid.
type Result struct {
	Valid  bool
	Checks map[Check]bool

	// Payload is the decoded certificate payload. It is nil when
	// verification returned before structural validation.
	Payload *Payload
}

func failed(check Check) *Result {
	return &Result{Valid: false, Checks: map[Check]bool{check: false}}
}

// JWSChecker verifies a compact JWS against a set of trusted certificates
// and returns the verified signing chain, leaf first.
type JWSChecker interface {
	CheckJWS(ctx context.Context, token string, trusted []*x509.Certificate) ([]*x509.Certificate, error)
}

// Verifier verifies registration certificates.
type Verifier struct {
	checker JWSChecker
	now     func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithJWSChecker overrides the JWS signature checker.
func WithJWSChecker(c JWSChecker) VerifierOption {
	return func(v *Verifier) {
		v.checker = c
	}
}

// WithTimeFunc overrides the verification time source.
func WithTimeFunc(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		v.now = now
	}
}

// NewVerifier creates a registration certificate verifier.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		checker: checker.New(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(v)
	}

	return v
}

// VerifyOptions holds the inputs of a registration certificate verification.
type VerifyOptions struct {
	// RegistrationCertificate is the compact JWS of the certificate.
	RegistrationCertificate string

	// Request is the resolved authorization request carrying the
	// certificate.
	Request *openid4vp.ResolvedAuthorizationRequest

	// TrustedCertificates anchor the certificate's signing chain.
	TrustedCertificates []*x509.Certificate

	// AllowUntrustedSigned additionally trusts the certificate chain
	// embedded in the certificate's own x5c header.
	AllowUntrustedSigned bool
}

// Verify verifies a registration certificate against the authorization
// request that carried it. Structural violations and configuration errors
// are returned as errors; trust and semantic failures are reported through
// the Result.
func (v *Verifier) Verify(ctx context.Context, opts VerifyOptions) (*Result, error) {
	if len(opts.TrustedCertificates) == 0 && !opts.AllowUntrustedSigned {
		return nil, errors.New("either trusted certificates or allow untrusted signed must be provided")
	}

	if !opts.Request.UsesDCQL() {
		return failed(CheckDCQLUsed), nil
	}

	if !opts.Request.IsSignedWithX5C() {
		return failed(CheckSignedWithX509), nil
	}

	token, err := jwt.Parse(opts.RegistrationCertificate)
	if err != nil {
		return nil, fmt.Errorf("parse registration certificate: %w", err)
	}

	checks := map[Check]bool{
		CheckDCQLUsed:       true,
		CheckSignedWithX509: true,
	}

	// Signature failure does not short-circuit: the remaining checks still
	// run and contribute to the result.
	checks[CheckJWSValid] = v.checkSignature(ctx, token, opts) == nil

	payload, err := decodePayload(token)
	if err != nil {
		return nil, err
	}

	requestSubject, err := opts.Request.SignerSubject()
	if err != nil {
		return nil, fmt.Errorf("resolve request signer subject: %w", err)
	}

	checks[CheckSubjectBinding] = payload.Sub == requestSubject

	if payload.IssuedAt != nil {
		checks[CheckTimestampValid] = *payload.IssuedAt < v.now().Unix()
	}

	checks[CheckQuerySubset] = dcql.IsEqualOrSubset(opts.Request.DCQL.Query, payload.Query())

	valid := true
	for _, ok := range checks {
		valid = valid && ok
	}

	return &Result{Valid: valid, Checks: checks, Payload: payload}, nil
}

// checkSignature applies the two-tier trust model: the trusted certificates
// first and, when untrusted signers are allowed, the certificate's own
// embedded chain unioned with the trusted certificates.
func (v *Verifier) checkSignature(ctx context.Context, token *jwt.JSONWebToken, opts VerifyOptions) error {
	_, err := v.checker.CheckJWS(ctx, opts.RegistrationCertificate, opts.TrustedCertificates)
	if err == nil || !opts.AllowUntrustedSigned {
		return err
	}

	embedded, parseErr := checker.ParseCertificateChain(token.X5C())
	if parseErr != nil {
		return fmt.Errorf("parse embedded x5c chain: %w (after: %w)", parseErr, err)
	}

	trusted := make([]*x509.Certificate, 0, len(opts.TrustedCertificates)+len(embedded))
	trusted = append(trusted, opts.TrustedCertificates...)
	trusted = append(trusted, embedded...)

	_, err = v.checker.CheckJWS(ctx, opts.RegistrationCertificate, trusted)

	return err
}
