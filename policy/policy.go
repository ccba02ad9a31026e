/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package policy evaluates the disclosure policies attached to stored
// credentials. A disclosure policy restricts which relying parties a
// credential may be disclosed to and is set out-of-band by the issuer or
// wallet operator; this package only reads it.
package policy

import (
	"encoding/json"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/animo/eudi-wallet-functionality/dcql"
)

// MetadataKey is the credential record metadata key holding the disclosure
// policy.
const MetadataKey = "eudi::disclosurePolicy"

// Kind discriminates the disclosure policy variants.
type Kind string

// Disclosure policy kinds.
const (
	// KindAllowList restricts disclosure to relying parties whose access
	// certificate subject appears in a list of distinguished names.
	KindAllowList Kind = "allowList"
	// KindRootOfTrust restricts disclosure to relying parties whose access
	// certificate chain derives from a given root.
	KindRootOfTrust Kind = "rootOfTrust"
	// KindAttributeBasedAccessControl restricts disclosure to relying
	// parties whose authorization attestations satisfy a DCQL query.
	KindAttributeBasedAccessControl Kind = "attributeBasedAccessControl"
)

// Policy is a disclosure policy, a tagged union discriminated by Kind.
type Policy struct {
	Kind Kind

	// AllowList holds the trusted distinguished names for KindAllowList.
	AllowList []string

	// RootOfTrust holds the root distinguished name for KindRootOfTrust.
	RootOfTrust string

	// Query holds the DCQL query for KindAttributeBasedAccessControl.
	Query *dcql.Query
}

// rawPolicy mirrors the stored policy shapes. Exactly one of the fields is
// present in a well formed policy.
type rawPolicy struct {
	AllowList                   []string    `mapstructure:"allowlist"`
	RootOfTrust                 string      `mapstructure:"rootOfTrust"`
	AttributeBasedAccessControl interface{} `mapstructure:"attribute_based_access_control"`
}

// Parse decodes a stored disclosure policy. Unknown policy shapes are an
// unsupported-policy error.
func Parse(raw interface{}) (*Policy, error) {
	var decoded rawPolicy

	if err := mapstructure.Decode(raw, &decoded); err != nil {
		return nil, fmt.Errorf("decode disclosure policy: %w", err)
	}

	switch {
	case decoded.AllowList != nil:
		return &Policy{Kind: KindAllowList, AllowList: decoded.AllowList}, nil
	case decoded.RootOfTrust != "":
		return &Policy{Kind: KindRootOfTrust, RootOfTrust: decoded.RootOfTrust}, nil
	case decoded.AttributeBasedAccessControl != nil:
		query, err := decodeQuery(decoded.AttributeBasedAccessControl)
		if err != nil {
			return nil, err
		}

		return &Policy{Kind: KindAttributeBasedAccessControl, Query: query}, nil
	default:
		return nil, fmt.Errorf("unsupported disclosure policy shape %T", raw)
	}
}

func decodeQuery(raw interface{}) (*dcql.Query, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal attribute based access control query: %w", err)
	}

	var query dcql.Query
	if err := json.Unmarshal(data, &query); err != nil {
		return nil, fmt.Errorf("decode attribute based access control query: %w", err)
	}

	return &query, nil
}

// Metadata is the metadata of a stored credential record.
type Metadata map[string]interface{}

// Get returns the metadata value stored under key.
func (m Metadata) Get(key string) (interface{}, bool) {
	value, ok := m[key]

	return value, ok
}

// CredentialRecord is a stored credential as the wallet's storage layer
// exposes it to policy evaluation.
type CredentialRecord struct {
	Metadata Metadata
}

// MatchedCredential is a credential matched to an authorization request and
// about to be disclosed.
type MatchedCredential struct {
	CredentialRecord CredentialRecord
}

// DisclosurePolicy returns the credential's stored disclosure policy, or nil
// when the credential carries none.
func (c MatchedCredential) DisclosurePolicy() (*Policy, error) {
	raw, ok := c.CredentialRecord.Metadata.Get(MetadataKey)
	if !ok || raw == nil {
		return nil, nil
	}

	return Parse(raw)
}
