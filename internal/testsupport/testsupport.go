/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package testsupport provides certificate and JWS fixtures for tests.
package testsupport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v3"
	"github.com/stretchr/testify/require"
)

// CertKey is a certificate together with its private key.
type CertKey struct {
	Cert *x509.Certificate
	Key  *ecdsa.PrivateKey
}

// NewCA creates a self-signed CA certificate.
func NewCA(t *testing.T, commonName string) *CertKey {
	t.Helper()

	return newCert(t, commonName, nil, true)
}

// NewSelfSigned creates a self-signed end entity certificate.
func NewSelfSigned(t *testing.T, commonName string) *CertKey {
	t.Helper()

	return newCert(t, commonName, nil, false)
}

// NewLeaf creates an end entity certificate signed by the given CA.
func NewLeaf(t *testing.T, commonName string, ca *CertKey) *CertKey {
	t.Helper()

	return newCert(t, commonName, ca, false)
}

func newCert(t *testing.T, commonName string, parent *CertKey, isCA bool) *CertKey {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	serial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	require.NoError(t, err)

	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: commonName},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  isCA,
	}

	parentCert := template
	parentKey := key

	if parent != nil {
		parentCert = parent.Cert
		parentKey = parent.Key
	}

	der, err := x509.CreateCertificate(rand.Reader, template, parentCert, &key.PublicKey, parentKey)
	require.NoError(t, err)

	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return &CertKey{Cert: cert, Key: key}
}

// X5C encodes certificates as a JOSE x5c header value.
func X5C(certs ...*x509.Certificate) []string {
	encoded := make([]string, 0, len(certs))

	for _, cert := range certs {
		encoded = append(encoded, base64.StdEncoding.EncodeToString(cert.Raw))
	}

	return encoded
}

// SignJWS signs the claims with the signer's key into a compact JWS with a
// typ header and the given x5c chain. An empty chain defaults to the
// signer's own certificate.
func SignJWS(t *testing.T, claims map[string]interface{}, typ string, signer *CertKey, chain ...*x509.Certificate) string {
	t.Helper()

	if len(chain) == 0 {
		chain = []*x509.Certificate{signer.Cert}
	}

	opts := (&jose.SignerOptions{}).WithType(jose.ContentType(typ))
	opts.ExtraHeaders[jose.HeaderKey("x5c")] = X5C(chain...)

	joseSigner, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.ES256, Key: signer.Key}, opts)
	require.NoError(t, err)

	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	sig, err := joseSigner.Sign(payload)
	require.NoError(t, err)

	compact, err := sig.CompactSerialize()
	require.NoError(t, err)

	return compact
}
