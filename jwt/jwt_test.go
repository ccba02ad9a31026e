/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package jwt_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	kmsjose "github.com/trustbloc/kms-go/doc/jose"

	"github.com/animo/eudi-wallet-functionality/internal/testsupport"
	"github.com/animo/eudi-wallet-functionality/jwt"
)

func TestParse(t *testing.T) {
	signer := testsupport.NewSelfSigned(t, "verifier.example.com")

	t.Run("decodes headers and payload without a proof checker", func(t *testing.T) {
		serialized := testsupport.SignJWS(t, map[string]interface{}{
			"sub": "CN=verifier.example.com",
			"iat": 1700000000,
		}, jwt.TypeRegistrationCertificate, signer)

		token, err := jwt.Parse(serialized)
		require.NoError(t, err)

		require.Equal(t, jwt.TypeRegistrationCertificate, token.LookupStringHeader("typ"))
		require.Equal(t, "CN=verifier.example.com", token.Payload["sub"])
		require.Equal(t, json.Number("1700000000"), token.Payload["iat"])
		require.Len(t, token.X5C(), 1)
	})

	t.Run("proof checker failure fails the parse", func(t *testing.T) {
		serialized := testsupport.SignJWS(t, map[string]interface{}{"sub": "x"},
			jwt.TypeRegistrationCertificate, signer)

		_, err := jwt.Parse(serialized, jwt.WithProofChecker(&failingChecker{}))
		require.Error(t, err)
		require.Contains(t, err.Error(), "bad signature")
	})

	t.Run("rejects non compact serializations", func(t *testing.T) {
		_, err := jwt.Parse("not a jwt")
		require.Error(t, err)
	})

	t.Run("decode claims into struct", func(t *testing.T) {
		serialized := testsupport.SignJWS(t, map[string]interface{}{"sub": "subject"},
			jwt.TypeJWT, signer)

		token, err := jwt.Parse(serialized)
		require.NoError(t, err)

		var claims struct {
			Sub string `json:"sub"`
		}
		require.NoError(t, token.DecodeClaims(&claims))
		require.Equal(t, "subject", claims.Sub)
	})

	t.Run("serialize round trip", func(t *testing.T) {
		serialized := testsupport.SignJWS(t, map[string]interface{}{"sub": "x"},
			jwt.TypeJWT, signer)

		token, err := jwt.Parse(serialized)
		require.NoError(t, err)

		roundTripped, err := token.Serialize(false)
		require.NoError(t, err)
		require.True(t, jwt.IsJWS(roundTripped))

		reparsed, err := jwt.Parse(roundTripped)
		require.NoError(t, err)
		require.Equal(t, token.Payload, reparsed.Payload)
	})
}

type failingChecker struct{}

func (*failingChecker) CheckJWTProof(kmsjose.Headers, []byte, []byte, []byte) error {
	return errors.New("bad signature")
}

func TestCheckHeaders(t *testing.T) {
	t.Run("alg is required", func(t *testing.T) {
		err := jwt.CheckHeaders(map[string]interface{}{"typ": "JWT"})
		require.EqualError(t, err, "alg header is not defined")
	})

	t.Run("explicit typing endings", func(t *testing.T) {
		for _, typ := range []string{"JWT", "rc-rp+jwt", "dc+sd-jwt", "openid4vci-proof+jwt"} {
			require.NoError(t, jwt.CheckHeaders(map[string]interface{}{
				"alg": "ES256",
				"typ": typ,
			}), typ)
		}
	})

	t.Run("unsupported typ", func(t *testing.T) {
		err := jwt.CheckHeaders(map[string]interface{}{"alg": "ES256", "typ": "rc-rp+cwt"})
		require.Error(t, err)
	})

	t.Run("nested JWT is rejected", func(t *testing.T) {
		err := jwt.CheckHeaders(map[string]interface{}{"alg": "ES256", "cty": "JWT"})
		require.EqualError(t, err, "nested JWT is not supported")
	})
}

func TestIsJWS(t *testing.T) {
	signer := testsupport.NewSelfSigned(t, "verifier.example.com")
	serialized := testsupport.SignJWS(t, map[string]interface{}{"sub": "x"}, jwt.TypeJWT, signer)

	require.True(t, jwt.IsJWS(serialized))
	require.False(t, jwt.IsJWS("a.b"))
	require.False(t, jwt.IsJWS("not.a.jws"))
}
