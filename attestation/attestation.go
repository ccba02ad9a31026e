/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package attestation verifies authorization attestations, the SD-JWT
// assertions a verifier embeds in an OpenID4VP authorization request to prove
// its authorization to request specific attestations and claims.
package attestation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/animo/eudi-wallet-functionality/jwt"
)

// Type is the JOSE typ header of an authorization attestation.
const Type = jwt.TypeSDJWTVC

// Payload is the authorization attestation payload.
type Payload struct {
	// Iss is the issuer of the attestation.
	Iss string `json:"iss"`

	// Sub is the subject the attestation was issued to. It must equal the
	// subject of the relying party's access certificate.
	Sub string `json:"sub"`

	// VCT is the verifiable credential type of the attestation.
	VCT string `json:"vct,omitempty"`

	IssuedAt  int64  `json:"iat"`
	ExpiresAt *int64 `json:"exp,omitempty"`

	// Status carries the status list reference of the attestation.
	Status Status `json:"status"`

	// Cnf is the optional holder key confirmation.
	Cnf map[string]interface{} `json:"cnf,omitempty"`
}

// Status carries a token status list reference.
type Status struct {
	StatusList StatusList `json:"status_list"`
}

// StatusList locates an entry in a token status list.
type StatusList struct {
	Idx int64  `json:"idx"`
	URI string `json:"uri"`
}

const headerSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["alg", "typ", "x5c"],
  "properties": {
    "alg": {"type": "string", "minLength": 1},
    "typ": {"type": "string", "const": "dc+sd-jwt"},
    "x5c": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
  }
}`

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["iss", "sub", "iat", "status"],
  "properties": {
    "iss": {"type": "string", "minLength": 1},
    "sub": {"type": "string", "minLength": 1},
    "vct": {"type": "string", "minLength": 1},
    "iat": {"type": "integer", "minimum": 0},
    "exp": {"type": "integer", "minimum": 0},
    "cnf": {"type": "object"},
    "status": {
      "type": "object",
      "required": ["status_list"],
      "properties": {
        "status_list": {
          "type": "object",
          "required": ["idx", "uri"],
          "properties": {
            "idx": {"type": "integer", "minimum": 0},
            "uri": {"type": "string", "format": "uri"}
          }
        }
      }
    }
  }
}`

// Is reports whether the verifier attestation is an authorization
// attestation: a jwt format attestation that parses but is not a
// registration certificate. Parse failures report false, never an error.
func Is(format, data string) bool {
	if format != "jwt" {
		return false
	}

	token, err := jwt.Parse(issuerSignedJWT(data))
	if err != nil {
		return false
	}

	return token.LookupStringHeader("typ") != jwt.TypeRegistrationCertificate
}

// issuerSignedJWT returns the issuer signed JWT part of an SD-JWT combined
// serialization. A plain compact JWT is returned unchanged.
func issuerSignedJWT(data string) string {
	if idx := strings.Index(data, "~"); idx >= 0 {
		return data[:idx]
	}

	return data
}

func validateStructure(token *jwt.JSONWebToken) error {
	if err := validateAgainst(headerSchema, map[string]interface{}(token.Headers), "header"); err != nil {
		return err
	}

	return validateAgainst(payloadSchema, token.Payload, "payload")
}

func validateAgainst(schema string, document map[string]interface{}, what string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validation of authorization attestation %s: %w", what, err)
	}

	if !result.Valid() {
		errMsg := fmt.Sprintf("authorization attestation %s is not valid:\n", what)
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("- %s\n", desc)
		}

		return errors.New(errMsg)
	}

	return nil
}
