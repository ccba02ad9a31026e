/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package regcert verifies relying party registration certificates, the
// rc-rp+jwt assertions a verifier embeds in an OpenID4VP authorization
// request to prove which credentials and claims it is registered to request.
package regcert

import (
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	"github.com/animo/eudi-wallet-functionality/dcql"
	"github.com/animo/eudi-wallet-functionality/jwt"
)

// Type is the JOSE typ header of a registration certificate.
const Type = jwt.TypeRegistrationCertificate

// Payload is the registration certificate payload.
type Payload struct {
	// Sub is the subject the certificate was issued to. It must equal the
	// subject of the relying party's access certificate.
	Sub string `json:"sub"`

	// Credentials lists the credentials the relying party is registered to
	// request, in DCQL reference form (no ids, no credential sets).
	Credentials []dcql.CredentialQuery `json:"credentials"`

	Contact       *Contact  `json:"contact,omitempty"`
	Services      []Service `json:"services,omitempty"`
	PublicBody    bool      `json:"public_body,omitempty"`
	Entitlements  []string  `json:"entitlements,omitempty"`
	PrivacyPolicy string    `json:"privacy_policy,omitempty"`
	Purpose       []Purpose `json:"purpose,omitempty"`
	Status        string    `json:"status,omitempty"`

	IssuedAt  *int64 `json:"iat,omitempty"`
	ExpiresAt *int64 `json:"exp,omitempty"`
}

// Contact holds the relying party's contact information.
type Contact struct {
	Website string `json:"website,omitempty"`
	Email   string `json:"e-mail,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// Service describes a service the relying party provides.
type Service struct {
	Lang string `json:"lang,omitempty"`
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

// Purpose is a localized description of why data is requested.
type Purpose struct {
	Lang string `json:"lang,omitempty"`
	Name string `json:"name,omitempty"`
}

// Query returns the certificate's credentials as a DCQL reference query.
func (p *Payload) Query() *dcql.Query {
	return &dcql.Query{Credentials: p.Credentials}
}

const payloadSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["sub", "credentials"],
  "properties": {
    "sub": {"type": "string", "minLength": 1},
    "credentials": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["format"],
        "properties": {
          "format": {"type": "string", "enum": ["mso_mdoc", "vc+sd-jwt", "dc+sd-jwt"]},
          "meta": {
            "type": "object",
            "properties": {
              "doctype_value": {"type": "string", "minLength": 1},
              "vct_values": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}}
            }
          },
          "claims": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["path"],
              "properties": {
                "path": {"type": "array", "minItems": 1},
                "values": {"type": "array", "minItems": 1}
              }
            }
          }
        }
      }
    },
    "contact": {
      "type": "object",
      "properties": {
        "website": {"type": "string", "format": "uri"},
        "e-mail": {"type": "string", "minLength": 1},
        "phone": {"type": "string", "minLength": 1}
      }
    },
    "services": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "lang": {"type": "string"},
          "name": {"type": "string"},
          "uri": {"type": "string", "format": "uri"}
        }
      }
    },
    "public_body": {"type": "boolean"},
    "entitlements": {"type": "array", "items": {"type": "string", "minLength": 1}},
    "privacy_policy": {"type": "string", "format": "uri"},
    "purpose": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "lang": {"type": "string"},
          "name": {"type": "string"}
        }
      }
    },
    "status": {"type": "string"},
    "iat": {"type": "integer", "minimum": 0},
    "exp": {"type": "integer", "minimum": 0}
  }
}`

// Is reports whether the verifier attestation is a registration certificate:
// a jwt format attestation whose header typ is rc-rp+jwt. Parse failures
// report false, never an error.
func Is(format, data string) bool {
	if format != "jwt" {
		return false
	}

	token, err := jwt.Parse(data)
	if err != nil {
		return false
	}

	return token.LookupStringHeader("typ") == Type
}

// decodePayload validates the token payload against the registration
// certificate schema and decodes it.
func decodePayload(token *jwt.JSONWebToken) (*Payload, error) {
	if err := validateSchema(token.Payload); err != nil {
		return nil, err
	}

	var payload Payload
	if err := token.DecodeClaims(&payload); err != nil {
		return nil, fmt.Errorf("decode registration certificate payload: %w", err)
	}

	return &payload, nil
}

func validateSchema(payload map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(payloadSchema),
		gojsonschema.NewGoLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("validation of registration certificate: %w", err)
	}

	if !result.Valid() {
		errMsg := "registration certificate payload is not valid:\n"
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("- %s\n", desc)
		}

		return errors.New(errMsg)
	}

	return nil
}
