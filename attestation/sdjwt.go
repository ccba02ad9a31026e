/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package attestation

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/animo/eudi-wallet-functionality/jwt"
)

const (
	sdClaim     = "_sd"
	sdAlgClaim  = "_sd_alg"
	sdAlgSHA256 = "sha-256"

	arrayElementDigestClaim = "..."
)

// SDJWTVerifier resolves the selective disclosures of an SD-JWT combined
// serialization. Every disclosure must match a digest embedded in the issuer
// signed payload; an unmatched disclosure invalidates the credential. The
// issuer signature is checked separately by the attestation verifier.
type SDJWTVerifier struct{}

// NewSDJWTVerifier creates an SDJWTVerifier.
func NewSDJWTVerifier() *SDJWTVerifier {
	return &SDJWTVerifier{}
}

// VerifySDJWT resolves the disclosures of the SD-JWT and returns the claims
// with all disclosed values in place.
func (v *SDJWTVerifier) VerifySDJWT(_ context.Context, token string) (map[string]interface{}, error) {
	parts := strings.Split(token, "~")

	parsed, err := jwt.Parse(parts[0])
	if err != nil {
		return nil, fmt.Errorf("parse issuer signed JWT: %w", err)
	}

	if alg, ok := parsed.Payload[sdAlgClaim].(string); ok && alg != sdAlgSHA256 {
		return nil, fmt.Errorf("unsupported _sd_alg %q", alg)
	}

	disclosures, err := parseDisclosures(parts[1:])
	if err != nil {
		return nil, err
	}

	resolved, used := resolveObject(parsed.Payload, disclosures)

	for digest := range disclosures {
		if !used[digest] {
			return nil, fmt.Errorf("disclosure with digest %s does not match any _sd digest", digest)
		}
	}

	return resolved, nil
}

type disclosure struct {
	key   string
	value interface{}
	// arrayElement is set for two-element disclosures, which disclose an
	// array element rather than an object property.
	arrayElement bool
}

// parseDisclosures decodes the disclosure parts of a combined serialization,
// keyed by digest. A trailing key binding JWT is ignored.
func parseDisclosures(parts []string) (map[string]disclosure, error) {
	disclosures := map[string]disclosure{}

	for i, part := range parts {
		if part == "" {
			continue
		}

		// The part after the last ~ is the key binding JWT, when present.
		if i == len(parts)-1 && jwt.IsJWS(part) {
			continue
		}

		decoded, err := base64.RawURLEncoding.DecodeString(part)
		if err != nil {
			return nil, fmt.Errorf("decode disclosure %d: %w", i, err)
		}

		var elements []interface{}
		if err := json.Unmarshal(decoded, &elements); err != nil {
			return nil, fmt.Errorf("unmarshal disclosure %d: %w", i, err)
		}

		d := disclosure{}

		switch len(elements) {
		case 2: // [salt, value]
			d.arrayElement = true
			d.value = elements[1]
		case 3: // [salt, key, value]
			key, ok := elements[1].(string)
			if !ok {
				return nil, fmt.Errorf("disclosure %d key is not a string", i)
			}

			d.key = key
			d.value = elements[2]
		default:
			return nil, fmt.Errorf("disclosure %d has %d elements, expected 2 or 3", i, len(elements))
		}

		digest := sha256.Sum256([]byte(part))
		disclosures[base64.RawURLEncoding.EncodeToString(digest[:])] = d
	}

	return disclosures, nil
}

// resolveObject replaces the _sd digests of an object with their disclosed
// properties, recursively, and reports which digests were used.
func resolveObject(obj map[string]interface{}, disclosures map[string]disclosure) (map[string]interface{}, map[string]bool) {
	used := map[string]bool{}
	resolved := map[string]interface{}{}

	for key, value := range obj {
		if key == sdClaim || key == sdAlgClaim {
			continue
		}

		resolved[key] = resolveValue(value, disclosures, used)
	}

	digests, _ := obj[sdClaim].([]interface{})
	for _, raw := range digests {
		digest, ok := raw.(string)
		if !ok {
			continue
		}

		if d, found := disclosures[digest]; found && !d.arrayElement {
			used[digest] = true
			resolved[d.key] = resolveValue(d.value, disclosures, used)
		}
	}

	return resolved, used
}

func resolveValue(value interface{}, disclosures map[string]disclosure, used map[string]bool) interface{} {
	switch v := value.(type) {
	case map[string]interface{}:
		// An array element placeholder {"...": digest} resolves to the
		// disclosed element.
		if digest, ok := v[arrayElementDigestClaim].(string); ok && len(v) == 1 {
			if d, found := disclosures[digest]; found && d.arrayElement {
				used[digest] = true

				return resolveValue(d.value, disclosures, used)
			}

			return v
		}

		resolved, nestedUsed := resolveObject(v, disclosures)
		for digest := range nestedUsed {
			used[digest] = true
		}

		return resolved
	case []interface{}:
		resolved := make([]interface{}, 0, len(v))
		for _, element := range v {
			resolved = append(resolved, resolveValue(element, disclosures, used))
		}

		return resolved
	default:
		return value
	}
}
