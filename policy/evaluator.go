/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/animo/eudi-wallet-functionality/attestation"
	"github.com/animo/eudi-wallet-functionality/dcql"
	"github.com/animo/eudi-wallet-functionality/openid4vp"
)

// AttestationVerifier verifies a single authorization attestation.
type AttestationVerifier interface {
	Verify(ctx context.Context, opts attestation.VerifyOptions) (*attestation.Verified, error)
}

// Evaluator checks the disclosure policies of credentials matched to an
// authorization request. Evaluation is strict: the first policy violation is
// returned as an error naming the offending credential.
type Evaluator struct {
	attestations AttestationVerifier
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithAttestationVerifier overrides the authorization attestation verifier
// used by attribute based access control policies.
func WithAttestationVerifier(v AttestationVerifier) EvaluatorOption {
	return func(e *Evaluator) {
		e.attestations = v
	}
}

// NewEvaluator creates a disclosure policy evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		attestations: attestation.NewVerifier(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// VerifyOptions holds the inputs of a disclosure policy evaluation.
type VerifyOptions struct {
	// Request is the resolved authorization request.
	Request *openid4vp.ResolvedAuthorizationRequest

	// MatchedCredentials are the credentials the wallet is about to
	// disclose, keyed by credential id.
	MatchedCredentials map[string]MatchedCredential

	// TrustedCertificates anchor authorization attestation signing chains.
	TrustedCertificates []*x509.Certificate

	// TrustedRootCertificates anchor root-of-trust policy validation.
	TrustedRootCertificates []*x509.Certificate

	// AllowUntrustedSigned additionally trusts attestation embedded chains.
	AllowUntrustedSigned bool
}

// VerifyAuthorization checks the stored disclosure policy of every matched
// credential against the requesting party. Credentials without a policy are
// unrestricted.
func (e *Evaluator) VerifyAuthorization(ctx context.Context, opts VerifyOptions) error {
	ids := lo.Keys(opts.MatchedCredentials)
	sort.Strings(ids)

	for _, id := range ids {
		credential := opts.MatchedCredentials[id]

		p, err := credential.DisclosurePolicy()
		if err != nil {
			return fmt.Errorf("credential %q: %w", id, err)
		}

		if p == nil {
			continue
		}

		if err := e.verifyPolicy(ctx, id, p, opts); err != nil {
			return err
		}
	}

	return nil
}

func (e *Evaluator) verifyPolicy(ctx context.Context, credentialID string, p *Policy, opts VerifyOptions) error {
	switch p.Kind {
	case KindAllowList:
		return verifyAllowList(credentialID, p.AllowList, opts.Request)
	case KindRootOfTrust:
		return verifyRootOfTrust(credentialID, p.RootOfTrust, opts)
	case KindAttributeBasedAccessControl:
		return e.verifyAttributeBasedAccessControl(ctx, credentialID, p.Query, opts)
	default:
		return fmt.Errorf("credential %q has an unsupported disclosure policy kind %q", credentialID, p.Kind)
	}
}

// verifyAllowList requires the request signer's access certificate subject
// to appear verbatim in the policy's allow list.
func verifyAllowList(credentialID string, allowList []string, request *openid4vp.ResolvedAuthorizationRequest) error {
	if !request.IsSignedWithX5C() {
		return fmt.Errorf(
			"credential %q has an allow list disclosure policy but the authorization request is not signed with x5c",
			credentialID,
		)
	}

	subject, err := request.SignerSubject()
	if err != nil {
		return fmt.Errorf("credential %q: %w", credentialID, err)
	}

	if !lo.Contains(allowList, subject) {
		return fmt.Errorf(
			"disclosure of credential %q is not allowed: subject %q is not in the allow list",
			credentialID, subject,
		)
	}

	return nil
}

// verifyRootOfTrust requires the request signer's certificate chain to
// verify against the trusted root certificates and terminate at a root whose
// subject equals the policy's root of trust.
func verifyRootOfTrust(credentialID, rootOfTrust string, opts VerifyOptions) error {
	if len(opts.TrustedRootCertificates) == 0 {
		return fmt.Errorf(
			"credential %q has a root of trust disclosure policy but no trusted root certificates were provided",
			credentialID,
		)
	}

	chain, err := opts.Request.SignerCertificateChain()
	if err != nil {
		return fmt.Errorf("credential %q: %w", credentialID, err)
	}

	roots := x509.NewCertPool()
	for _, cert := range opts.TrustedRootCertificates {
		roots.AddCert(cert)
	}

	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	verified, err := chain[0].Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("credential %q: verify signer certificate chain: %w", credentialID, err)
	}

	for _, chain := range verified {
		root := chain[len(chain)-1]
		if root.Subject.String() == rootOfTrust {
			return nil
		}
	}

	return fmt.Errorf(
		"disclosure of credential %q is not allowed: signer chain does not derive from root of trust %q",
		credentialID, rootOfTrust,
	)
}

// verifyAttributeBasedAccessControl requires the authorization attestations
// presented with the request to satisfy the policy's DCQL query.
func (e *Evaluator) verifyAttributeBasedAccessControl(
	ctx context.Context, credentialID string, query *dcql.Query, opts VerifyOptions,
) error {
	if query == nil {
		return fmt.Errorf("credential %q has an attribute based access control policy without a query", credentialID)
	}

	credentials, err := e.verifiedAttestationCredentials(ctx, opts)
	if err != nil {
		return fmt.Errorf("credential %q: %w", credentialID, err)
	}

	if err := dcql.MatchCredentials(query, credentials); err != nil {
		return fmt.Errorf(
			"disclosure of credential %q is not allowed: authorization attestations do not satisfy the policy: %w",
			credentialID, err,
		)
	}

	return nil
}

// verifiedAttestationCredentials verifies every authorization attestation of
// the request and returns them as DCQL-evaluable credentials.
func (e *Evaluator) verifiedAttestationCredentials(
	ctx context.Context, opts VerifyOptions,
) ([]dcql.Credential, error) {
	var credentials []dcql.Credential

	for _, att := range opts.Request.VerifierAttestations() {
		data, err := att.InlineData()
		if err != nil {
			return nil, err
		}

		if !attestation.Is(att.Format, data) {
			continue
		}

		verified, err := e.attestations.Verify(ctx, attestation.VerifyOptions{
			AuthorizationAttestation: data,
			Request:                  opts.Request,
			TrustedCertificates:      opts.TrustedCertificates,
			AllowUntrustedSigned:     opts.AllowUntrustedSigned,
		})
		if err != nil {
			return nil, fmt.Errorf("verify authorization attestation: %w", err)
		}

		credentials = append(credentials, verified.Credential())
	}

	if len(credentials) == 0 {
		return nil, errors.New("the authorization request carries no authorization attestations")
	}

	return credentials, nil
}
