/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package jwt provides parsing and inspection of the compact JWS tokens
// carried by OpenID4VP authorization requests as verifier attestations.
// Signature verification is a collaborator concern: a ProofChecker may be
// supplied at parse time, otherwise the token is decoded structurally and the
// caller is responsible for checking the proof.
package jwt

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"encoding/json"
	"github.com/trustbloc/kms-go/doc/jose"
)

const (
	// TypeJWT defines the plain JWT type header.
	TypeJWT = "JWT"
	// TypeRegistrationCertificate is the typ header of a relying party
	// registration certificate.
	TypeRegistrationCertificate = "rc-rp+jwt"
	// TypeSDJWTVC is the typ header of an SD-JWT verifiable credential.
	TypeSDJWTVC = "dc+sd-jwt"
)

// ProofChecker verifies the signature of a parsed JWS.
type ProofChecker interface {
	CheckJWTProof(headers jose.Headers, payload, msg, signature []byte) error
}

type parseOpts struct {
	proofChecker ProofChecker
}

// ParseOpt is a JWT parser option.
type ParseOpt func(opts *parseOpts)

// WithProofChecker makes Parse verify the token signature with the given
// checker.
func WithProofChecker(proofChecker ProofChecker) ParseOpt {
	return func(opts *parseOpts) {
		opts.proofChecker = proofChecker
	}
}

// JSONWebToken defines a parsed JSON Web Token
// (https://tools.ietf.org/html/rfc7519).
type JSONWebToken struct {
	Headers jose.Headers

	Payload map[string]interface{}

	jws *jose.JSONWebSignature
}

// Parse parses a compact serialized JWT. When no proof checker option is
// given the token is decoded without signature verification.
func Parse(jwtSerialized string, opts ...ParseOpt) (*JSONWebToken, error) {
	if !jose.IsCompactJWS(jwtSerialized) {
		return nil, errors.New("JWT of compacted JWS form is supported only")
	}

	pOpts := &parseOpts{}

	for _, opt := range opts {
		opt(pOpts)
	}

	jws, err := jose.ParseJWS(jwtSerialized, &joseVerifier{proofChecker: pOpts.proofChecker})
	if err != nil {
		return nil, fmt.Errorf("parse JWT from compact JWS: %w", err)
	}

	return mapJWSToJWT(jws)
}

func mapJWSToJWT(jws *jose.JSONWebSignature) (*JSONWebToken, error) {
	headers := jws.ProtectedHeaders

	if err := CheckHeaders(headers); err != nil {
		return nil, fmt.Errorf("check JWT headers: %w", err)
	}

	claims, err := PayloadToMap(jws.Payload)
	if err != nil {
		return nil, fmt.Errorf("read JWT claims from JWS payload: %w", err)
	}

	return &JSONWebToken{
		Headers: headers,
		Payload: claims,
		jws:     jws,
	}, nil
}

// joseVerifier adapts a ProofChecker to the jose signature verifier
// interface. A nil proof checker accepts any signature, leaving verification
// to the caller.
type joseVerifier struct {
	proofChecker ProofChecker
}

func (v *joseVerifier) Verify(joseHeaders jose.Headers, payload, signingInput, signature []byte) error {
	if v.proofChecker == nil {
		return nil
	}

	return v.proofChecker.CheckJWTProof(joseHeaders, payload, signingInput, signature)
}

// DecodeClaims fills input c with claims of a token.
func (j *JSONWebToken) DecodeClaims(c interface{}) error {
	pBytes, err := json.Marshal(j.Payload)
	if err != nil {
		return err
	}

	return json.Unmarshal(pBytes, c)
}

// LookupStringHeader makes look up of particular header with string value.
func (j *JSONWebToken) LookupStringHeader(name string) string {
	if headerValue, ok := j.Headers[name]; ok {
		if headerStrValue, ok := headerValue.(string); ok {
			return headerStrValue
		}
	}

	return ""
}

// X5C returns the x5c certificate chain of the token header, or nil when the
// header carries none.
func (j *JSONWebToken) X5C() []string {
	raw, ok := j.Headers["x5c"]
	if !ok {
		return nil
	}

	entries, ok := raw.([]interface{})
	if !ok {
		return nil
	}

	chain := make([]string, 0, len(entries))

	for _, entry := range entries {
		str, ok := entry.(string)
		if !ok {
			return nil
		}

		chain = append(chain, str)
	}

	return chain
}

// Serialize makes (compact) serialization of token.
func (j *JSONWebToken) Serialize(detached bool) (string, error) {
	if j.jws == nil {
		return "", errors.New("JWS serialization is supported only")
	}

	return j.jws.SerializeCompact(detached)
}

// IsJWS checks if the string is a JWS of valid structure.
func IsJWS(s string) bool {
	parts := strings.Split(s, ".")

	return len(parts) == 3 &&
		isValidJSON(parts[0]) &&
		isValidJSON(parts[1]) &&
		parts[2] != ""
}

func isValidJSON(s string) bool {
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return false
	}

	var j map[string]interface{}
	err = json.Unmarshal(b, &j)

	return err == nil
}

// CheckHeaders checks that the protected headers declare an algorithm and a
// supported typ.
func CheckHeaders(headers map[string]interface{}) error {
	if _, ok := headers[jose.HeaderAlgorithm]; !ok {
		return errors.New("alg header is not defined")
	}

	typ, ok := headers[jose.HeaderType]
	if ok {
		if err := checkTypHeader(typ); err != nil {
			return err
		}
	}

	cty, ok := headers[jose.HeaderContentType]
	if ok && cty == TypeJWT { // https://tools.ietf.org/html/rfc7519#section-5.2
		return errors.New("nested JWT is not supported")
	}

	return nil
}

func checkTypHeader(typ interface{}) error {
	typStr, ok := typ.(string)
	if !ok {
		return errors.New("invalid typ header format")
	}

	chunks := strings.Split(typStr, "+")
	if len(chunks) > 1 {
		ending := strings.ToUpper(chunks[len(chunks)-1])
		// Explicit typing, https://www.rfc-editor.org/rfc/rfc8725.html#name-use-explicit-typing.
		// Covers rc-rp+jwt and dc+sd-jwt.
		if ending != "JWT" && ending != "SD-JWT" {
			return errors.New("invalid typ header")
		}

		return nil
	}

	if typStr != TypeJWT {
		// https://www.rfc-editor.org/rfc/rfc7519#section-5.1
		return errors.New("typ is not JWT")
	}

	return nil
}

// PayloadToMap transforms interface to map.
func PayloadToMap(i interface{}) (map[string]interface{}, error) {
	if reflect.ValueOf(i).Kind() == reflect.Map {
		return i.(map[string]interface{}), nil
	}

	var (
		b   []byte
		err error
	)

	switch cv := i.(type) {
	case []byte:
		b = cv
	case string:
		b = []byte(cv)
	default:
		b, err = json.Marshal(i)
		if err != nil {
			return nil, fmt.Errorf("marshal interface[%T]: %w", i, err)
		}
	}

	var m map[string]interface{}

	d := json.NewDecoder(bytes.NewReader(b))
	d.UseNumber()

	if err := d.Decode(&m); err != nil {
		return nil, fmt.Errorf("convert to map: %w", err)
	}

	return m, nil
}
