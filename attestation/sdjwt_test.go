/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package attestation_test

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/animo/eudi-wallet-functionality/attestation"
	"github.com/animo/eudi-wallet-functionality/internal/testsupport"
)

func encodeDisclosure(t *testing.T, elements ...interface{}) string {
	t.Helper()

	encoded, err := json.Marshal(elements)
	require.NoError(t, err)

	return base64.RawURLEncoding.EncodeToString(encoded)
}

func digestOf(disclosure string) string {
	digest := sha256.Sum256([]byte(disclosure))

	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func TestVerifySDJWT(t *testing.T) {
	issuer := testsupport.NewSelfSigned(t, "issuer.example.com")
	verifier := attestation.NewSDJWTVerifier()

	t.Run("resolves object disclosures", func(t *testing.T) {
		disclosure := encodeDisclosure(t, "salt-1", "entitlement", "vehicle_registration")

		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss":     "https://issuer.example.com",
			"_sd":     []string{digestOf(disclosure)},
			"_sd_alg": "sha-256",
		}, "dc+sd-jwt", issuer)

		claims, err := verifier.VerifySDJWT(context.Background(), token+"~"+disclosure+"~")
		require.NoError(t, err)

		require.Equal(t, "vehicle_registration", claims["entitlement"])
		require.Equal(t, "https://issuer.example.com", claims["iss"])
		require.NotContains(t, claims, "_sd")
		require.NotContains(t, claims, "_sd_alg")
	})

	t.Run("resolves nested and array element disclosures", func(t *testing.T) {
		element := encodeDisclosure(t, "salt-2", "DE")
		nested := encodeDisclosure(t, "salt-3", "locality", "Cologne")

		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://issuer.example.com",
			"nationalities": []interface{}{
				map[string]interface{}{"...": digestOf(element)},
			},
			"address": map[string]interface{}{
				"_sd": []string{digestOf(nested)},
			},
		}, "dc+sd-jwt", issuer)

		claims, err := verifier.VerifySDJWT(context.Background(),
			token+"~"+element+"~"+nested+"~")
		require.NoError(t, err)

		require.Equal(t, []interface{}{"DE"}, claims["nationalities"])

		address, ok := claims["address"].(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, "Cologne", address["locality"])
	})

	t.Run("unmatched disclosure invalidates the credential", func(t *testing.T) {
		stray := encodeDisclosure(t, "salt-4", "entitlement", "vehicle_registration")

		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://issuer.example.com",
		}, "dc+sd-jwt", issuer)

		_, err := verifier.VerifySDJWT(context.Background(), token+"~"+stray+"~")
		require.Error(t, err)
		require.Contains(t, err.Error(), "does not match any _sd digest")
	})

	t.Run("unsupported hash algorithm", func(t *testing.T) {
		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss":     "https://issuer.example.com",
			"_sd_alg": "sha-512",
		}, "dc+sd-jwt", issuer)

		_, err := verifier.VerifySDJWT(context.Background(), token+"~")
		require.Error(t, err)
		require.Contains(t, err.Error(), "_sd_alg")
	})

	t.Run("trailing key binding JWT is ignored", func(t *testing.T) {
		disclosure := encodeDisclosure(t, "salt-5", "entitlement", "vehicle_registration")
		kb := testsupport.SignJWS(t, map[string]interface{}{"nonce": "n-1"}, "kb+jwt", issuer)

		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://issuer.example.com",
			"_sd": []string{digestOf(disclosure)},
		}, "dc+sd-jwt", issuer)

		claims, err := verifier.VerifySDJWT(context.Background(),
			token+"~"+disclosure+"~"+kb)
		require.NoError(t, err)
		require.Equal(t, "vehicle_registration", claims["entitlement"])
	})

	t.Run("malformed disclosure", func(t *testing.T) {
		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://issuer.example.com",
		}, "dc+sd-jwt", issuer)

		_, err := verifier.VerifySDJWT(context.Background(), token+"~not-base64!~")
		require.Error(t, err)
	})

	t.Run("plain jwt without disclosures", func(t *testing.T) {
		token := testsupport.SignJWS(t, map[string]interface{}{
			"iss": "https://issuer.example.com",
		}, "dc+sd-jwt", issuer)

		claims, err := verifier.VerifySDJWT(context.Background(), token)
		require.NoError(t, err)
		require.Equal(t, "https://issuer.example.com", claims["iss"])
	})
}
