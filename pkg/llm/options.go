package llm

import "net/http"

// ProviderOption customizes an adapter at construction (endpoints and HTTP
// clients are overridden in tests).
type ProviderOption func(baseURL *string, client **http.Client)

// WithBaseURL overrides the vendor endpoint.
func WithBaseURL(url string) ProviderOption {
	return func(baseURL *string, _ **http.Client) { *baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) ProviderOption {
	return func(_ *string, client **http.Client) { *client = c }
}

func applyOptions(baseURL *string, client **http.Client, opts []ProviderOption) {
	for _, opt := range opts {
		opt(baseURL, client)
	}
}
