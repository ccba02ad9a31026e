/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package txndata validates the transaction_data entries of an OpenID4VP
// authorization request and resolves the metadata documents transaction data
// types reference.
package txndata

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"

	jsonutil "github.com/animo/eudi-wallet-functionality/util/json"
)

// TransactionData is a single authorization request transaction data entry.
type TransactionData struct {
	// Type identifies the transaction data type and determines the shape of
	// the type specific parameters.
	Type string `json:"type"`

	// CredentialIDs references the DCQL credential query ids the transaction
	// is bound to.
	CredentialIDs []string `json:"credential_ids"`

	// TransactionDataHashesAlg lists the hash algorithms the wallet may use
	// when hashing this entry into the presentation.
	TransactionDataHashesAlg []string `json:"transaction_data_hashes_alg,omitempty"`

	// Params holds the type specific parameters of the entry.
	Params map[string]interface{} `json:"-"`
}

const transactionDataSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "credential_ids"],
  "properties": {
    "type": {"type": "string", "minLength": 1},
    "credential_ids": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "transaction_data_hashes_alg": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "enum": ["sha-256", "sha-384", "sha-512"]}
    }
  }
}`

// Parse decodes and validates a base64url encoded transaction data entry.
func Parse(encoded string) (*TransactionData, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode transaction data entry: %w", err)
	}

	var document map[string]interface{}
	if err := json.Unmarshal(decoded, &document); err != nil {
		return nil, fmt.Errorf("unmarshal transaction data entry: %w", err)
	}

	if err := Validate(document); err != nil {
		return nil, err
	}

	var entry TransactionData
	if err := json.Unmarshal(decoded, &entry); err != nil {
		return nil, fmt.Errorf("decode transaction data entry: %w", err)
	}

	entry.Params = jsonutil.CopyExcept(document, "type", "credential_ids", "transaction_data_hashes_alg")

	return &entry, nil
}

// Validate checks a decoded transaction data entry against the transaction
// data schema.
func Validate(document map[string]interface{}) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(transactionDataSchema),
		gojsonschema.NewGoLoader(document),
	)
	if err != nil {
		return fmt.Errorf("validation of transaction data: %w", err)
	}

	if !result.Valid() {
		errMsg := "transaction data entry is not valid:\n"
		for _, desc := range result.Errors() {
			errMsg += fmt.Sprintf("- %s\n", desc)
		}

		return errors.New(errMsg)
	}

	return nil
}
