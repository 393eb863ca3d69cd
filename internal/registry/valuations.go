package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// ValuationFetcher retrieves the valuation history of a property. Payloads
// are registry-defined and returned verbatim.
type ValuationFetcher struct {
	resolver *Resolver
}

// NewValuationFetcher returns a fetcher that resolves BFE numbers with resolver.
func NewValuationFetcher(resolver *Resolver) (*ValuationFetcher, error) {
	if resolver == nil {
		return nil, newError(KindConfiguration, "valuations", "resolver is required", nil)
	}
	return &ValuationFetcher{resolver: resolver}, nil
}

// FetchValuations resolves bfe and returns its valuation payload. Resolution
// failures keep their kind; a failed valuation request is always upstream.
func (v *ValuationFetcher) FetchValuations(ctx context.Context, bfe BFE) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, ValuationTimeout)
	defer cancel()

	record, err := v.resolver.search(ctx, "valuations", bfe, 0)
	if err != nil {
		return nil, err
	}
	id, _ := identifier(record["id"])

	client := v.resolver.client
	resp, err := client.do(ctx, "valuations", request{
		method: http.MethodGet,
		url:    client.auth.endpoint("properties/" + url.PathEscape(id) + "/valuations"),
	})
	if err != nil {
		return nil, err
	}
	if !resp.ok() {
		return nil, upstreamError("valuations", resp)
	}
	return payload("valuations", resp)
}
