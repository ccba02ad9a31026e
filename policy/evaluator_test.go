/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package policy_test

import (
	"context"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/animo/eudi-wallet-functionality/internal/testsupport"
	"github.com/animo/eudi-wallet-functionality/openid4vp"
	"github.com/animo/eudi-wallet-functionality/policy"
)

const rpSubject = "CN=verifier.example.com"

func signedRequest(signer *testsupport.CertKey, chain ...*x509.Certificate) *openid4vp.ResolvedAuthorizationRequest {
	if len(chain) == 0 {
		chain = []*x509.Certificate{signer.Cert}
	}

	return &openid4vp.ResolvedAuthorizationRequest{
		AuthorizationRequestPayload: &openid4vp.AuthorizationRequestPayload{},
		SignedAuthorizationRequest: &openid4vp.SignedAuthorizationRequest{
			Signer: openid4vp.Signer{
				Method: openid4vp.SignerMethodX5C,
				X5C:    testsupport.X5C(chain...),
			},
		},
	}
}

func withPolicy(raw interface{}) policy.MatchedCredential {
	return policy.MatchedCredential{
		CredentialRecord: policy.CredentialRecord{
			Metadata: policy.Metadata{policy.MetadataKey: raw},
		},
	}
}

func TestVerifyAuthorization_AllowList(t *testing.T) {
	rp := testsupport.NewSelfSigned(t, "verifier.example.com")
	evaluator := policy.NewEvaluator()

	t.Run("subject in the allow list", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request: signedRequest(rp),
			MatchedCredentials: map[string]policy.MatchedCredential{
				"pid-1": withPolicy(map[string]interface{}{
					"allowlist": []string{"CN=other.example.com", rpSubject},
				}),
			},
		})
		require.NoError(t, err)
	})

	t.Run("subject not in the allow list names the credential", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request: signedRequest(rp),
			MatchedCredentials: map[string]policy.MatchedCredential{
				"pid-1": withPolicy(map[string]interface{}{
					"allowlist": []string{"CN=other.example.com"},
				}),
			},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), `disclosure of credential "pid-1" is not allowed`)
	})

	t.Run("unsigned request cannot satisfy an allow list", func(t *testing.T) {
		request := signedRequest(rp)
		request.SignedAuthorizationRequest = nil

		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request: request,
			MatchedCredentials: map[string]policy.MatchedCredential{
				"pid-1": withPolicy(map[string]interface{}{"allowlist": []string{rpSubject}}),
			},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "not signed with x5c")
	})

	t.Run("credentials without a policy are unrestricted", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request: signedRequest(rp),
			MatchedCredentials: map[string]policy.MatchedCredential{
				"pid-1": {},
			},
		})
		require.NoError(t, err)
	})
}

func TestVerifyAuthorization_RootOfTrust(t *testing.T) {
	root := testsupport.NewCA(t, "trust-anchor.example.com")
	rp := testsupport.NewLeaf(t, "verifier.example.com", root)
	evaluator := policy.NewEvaluator()

	rootPolicy := withPolicy(map[string]interface{}{
		"rootOfTrust": "CN=trust-anchor.example.com",
	})

	t.Run("chain derives from the root of trust", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:                 signedRequest(rp, rp.Cert, root.Cert),
			MatchedCredentials:      map[string]policy.MatchedCredential{"pid-1": rootPolicy},
			TrustedRootCertificates: []*x509.Certificate{root.Cert},
		})
		require.NoError(t, err)
	})

	t.Run("chain from a different root is rejected", func(t *testing.T) {
		otherRoot := testsupport.NewCA(t, "other-anchor.example.com")
		otherRP := testsupport.NewLeaf(t, "verifier.example.com", otherRoot)

		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:                 signedRequest(otherRP, otherRP.Cert, otherRoot.Cert),
			MatchedCredentials:      map[string]policy.MatchedCredential{"pid-1": rootPolicy},
			TrustedRootCertificates: []*x509.Certificate{otherRoot.Cert},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "root of trust")
	})

	t.Run("unverifiable chain is rejected", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:                 signedRequest(rp, rp.Cert),
			MatchedCredentials:      map[string]policy.MatchedCredential{"pid-1": rootPolicy},
			TrustedRootCertificates: []*x509.Certificate{testsupport.NewCA(t, "unrelated.example.com").Cert},
		})
		require.Error(t, err)
	})

	t.Run("missing trusted roots is an error", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:            signedRequest(rp, rp.Cert, root.Cert),
			MatchedCredentials: map[string]policy.MatchedCredential{"pid-1": rootPolicy},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "no trusted root certificates")
	})
}

func TestVerifyAuthorization_AttributeBasedAccessControl(t *testing.T) {
	registrar := testsupport.NewSelfSigned(t, "registrar.example.com")
	rp := testsupport.NewSelfSigned(t, "verifier.example.com")
	evaluator := policy.NewEvaluator()

	abacPolicy := withPolicy(map[string]interface{}{
		"attribute_based_access_control": map[string]interface{}{
			"credentials": []interface{}{
				map[string]interface{}{
					"id":     "authz",
					"format": "dc+sd-jwt",
					"meta":   map[string]interface{}{"vct_values": []interface{}{"urn:eudi:authorization:1"}},
					"claims": []interface{}{
						map[string]interface{}{
							"path":   []interface{}{"entitlement"},
							"values": []interface{}{"vehicle_registration"},
						},
					},
				},
			},
		},
	})

	newAttestation := func(t *testing.T, entitlement string) string {
		t.Helper()

		disclosure, err := json.Marshal([]interface{}{"salt-1", "entitlement", entitlement})
		require.NoError(t, err)

		part := base64.RawURLEncoding.EncodeToString(disclosure)
		digest := sha256.Sum256([]byte(part))

		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://registrar.example.com",
			"sub": rpSubject,
			"vct": "urn:eudi:authorization:1",
			"iat": time.Now().Add(-time.Hour).Unix(),
			"_sd": []string{base64.RawURLEncoding.EncodeToString(digest[:])},
			"status": map[string]interface{}{
				"status_list": map[string]interface{}{
					"idx": 7,
					"uri": "https://registrar.example.com/status/1",
				},
			},
		}, "dc+sd-jwt", registrar)

		return token + "~" + part + "~"
	}

	requestWithAttestation := func(data string) *openid4vp.ResolvedAuthorizationRequest {
		request := signedRequest(rp)
		request.AuthorizationRequestPayload.VerifierAttestations = []openid4vp.VerifierAttestation{
			{Format: openid4vp.VerifierAttestationFormatJWT, Data: data},
		}

		return request
	}

	t.Run("attestation satisfying the query", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:             requestWithAttestation(newAttestation(t, "vehicle_registration")),
			MatchedCredentials:  map[string]policy.MatchedCredential{"pid-1": abacPolicy},
			TrustedCertificates: []*x509.Certificate{registrar.Cert},
		})
		require.NoError(t, err)
	})

	t.Run("attestation with the wrong entitlement", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:             requestWithAttestation(newAttestation(t, "parking_enforcement")),
			MatchedCredentials:  map[string]policy.MatchedCredential{"pid-1": abacPolicy},
			TrustedCertificates: []*x509.Certificate{registrar.Cert},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "do not satisfy the policy")
	})

	t.Run("request without attestations", func(t *testing.T) {
		err := evaluator.VerifyAuthorization(context.Background(), policy.VerifyOptions{
			Request:             signedRequest(rp),
			MatchedCredentials:  map[string]policy.MatchedCredential{"pid-1": abacPolicy},
			TrustedCertificates: []*x509.Certificate{registrar.Cert},
		})
		require.Error(t, err)
		require.Contains(t, err.Error(), "no authorization attestations")
	})
}
