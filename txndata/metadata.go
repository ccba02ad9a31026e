/*
Copyright Animo Solutions. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package txndata

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/animo/eudi-wallet-functionality/util/jsonmerge"
)

var errLogger = log.New(os.Stderr, " [eudi-wallet/txndata] ", log.Ldate|log.Ltime|log.LUTC)

const defaultTimeout = time.Minute

// IntegrityValidator checks fetched metadata bytes against an integrity
// descriptor. It is supplied by the caller; no hashing is performed here.
type IntegrityValidator func(data []byte, integrity string) error

// MetadataResolver fetches the metadata document of a transaction data type:
// a schema, claims or ui-labels document referenced by URI.
type MetadataResolver struct {
	httpClient httpClient
	integrity  IntegrityValidator
}

// httpClient represents an HTTP client.
type httpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResolverOption configures the metadata resolver.
type ResolverOption func(*MetadataResolver)

// WithHTTPClient option is for custom http client.
func WithHTTPClient(client httpClient) ResolverOption {
	return func(r *MetadataResolver) {
		r.httpClient = client
	}
}

// WithIntegrityValidator sets the validator applied to fetched documents
// that carry an integrity descriptor.
func WithIntegrityValidator(v IntegrityValidator) ResolverOption {
	return func(r *MetadataResolver) {
		r.integrity = v
	}
}

// NewMetadataResolver creates a metadata resolver.
func NewMetadataResolver(opts ...ResolverOption) *MetadataResolver {
	r := &MetadataResolver{
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Resolve fetches the metadata document at uri. When integrity is non-empty
// the configured integrity validator must accept the fetched bytes. No
// retries are performed; a failed fetch surfaces immediately.
func (r *MetadataResolver) Resolve(ctx context.Context, uri, integrity string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, fmt.Errorf("new HTTP request: %w", err)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Do: %w", err)
	}

	defer closeResponseBody(resp.Body)

	responseBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("endpoint %s returned status '%d' and message '%s'",
			uri, resp.StatusCode, responseBytes)
	}

	if integrity != "" {
		if r.integrity == nil {
			return nil, fmt.Errorf("metadata at %s declares an integrity descriptor but no validator is configured", uri)
		}

		if err := r.integrity(responseBytes, integrity); err != nil {
			return nil, fmt.Errorf("integrity check of metadata at %s: %w", uri, err)
		}
	}

	return responseBytes, nil
}

func closeResponseBody(respBody io.Closer) {
	e := respBody.Close()
	if e != nil {
		errLogger.Printf("failed to close response body: %v", e)
	}
}

// ComposeMetadata merges a resolved metadata document into base metadata
// using the given merge configuration.
func ComposeMetadata(
	base, overlay map[string]interface{}, cfg *jsonmerge.Config, validator jsonmerge.Validator,
) (map[string]interface{}, error) {
	return jsonmerge.Merge(base, overlay, cfg, validator)
}
