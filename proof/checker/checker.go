/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package checker verifies compact JWS tokens whose signing key is bound to
// an X.509 certificate chain carried in the x5c protected header. The chain
// must verify against a caller supplied set of trusted certificates and the
// JWS signature must verify against the leaf certificate's public key.
package checker

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-jose/go-jose/v3"
)

// X509ProofChecker verifies x5c bound JWS tokens.
type X509ProofChecker struct{}

// New creates an X509ProofChecker.
func New() *X509ProofChecker {
	return &X509ProofChecker{}
}

// CheckJWS verifies the compact JWS token against the trusted certificates.
// The token's x5c chain must terminate at one of the trusted certificates and
// the signature must verify against the leaf key. The verified chain is
// returned leaf first.
func (c *X509ProofChecker) CheckJWS(_ context.Context, token string, trusted []*x509.Certificate) ([]*x509.Certificate, error) {
	if len(trusted) == 0 {
		return nil, errors.New("no trusted certificates provided")
	}

	sig, err := jose.ParseSigned(token)
	if err != nil {
		return nil, fmt.Errorf("parse signed JWS: %w", err)
	}

	if len(sig.Signatures) == 0 {
		return nil, errors.New("JWS carries no signature")
	}

	roots := x509.NewCertPool()
	for _, cert := range trusted {
		roots.AddCert(cert)
	}

	chains, err := sig.Signatures[0].Header.Certificates(x509.VerifyOptions{
		Roots:     roots,
		KeyUsages: []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return nil, fmt.Errorf("verify x5c certificate chain: %w", err)
	}

	if len(chains) == 0 || len(chains[0]) == 0 {
		return nil, errors.New("JWS header carries no x5c certificate chain")
	}

	if _, err := sig.Verify(chains[0][0].PublicKey); err != nil {
		return nil, fmt.Errorf("verify JWS signature: %w", err)
	}

	return chains[0], nil
}

// ParseCertificateChain decodes a JOSE x5c header value, a list of base64
// encoded DER certificates, leaf first.
func ParseCertificateChain(x5c []string) ([]*x509.Certificate, error) {
	if len(x5c) == 0 {
		return nil, errors.New("x5c certificate chain is empty")
	}

	chain := make([]*x509.Certificate, 0, len(x5c))

	for i, entry := range x5c {
		der, err := base64.StdEncoding.DecodeString(entry)
		if err != nil {
			return nil, fmt.Errorf("decode x5c entry %d: %w", i, err)
		}

		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("parse x5c entry %d: %w", i, err)
		}

		chain = append(chain, cert)
	}

	return chain, nil
}

// LeafSubject returns the subject distinguished name of the first certificate
// in an x5c chain.
func LeafSubject(x5c []string) (string, error) {
	chain, err := ParseCertificateChain(x5c)
	if err != nil {
		return "", err
	}

	return chain[0].Subject.String(), nil
}
