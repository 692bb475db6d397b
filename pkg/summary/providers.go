package summary

import (
	"context"
	"fmt"
	"net/http"

	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
)

// generator issues one request to a provider and returns the raw text of
// its answer. One implementation per endpoint envelope, the orchestrator
// never branches on provider internals.
type generator interface {
	generate(ctx context.Context, prompt string) (string, error)
}

// newGenerator picks the generator for the provider and api mode
func newGenerator(provider domain.Provider, cfg config.SummaryConfig) (generator, error) {
	switch provider {
	case domain.ProviderOpenAI, domain.ProviderCustomOpenAI:
		if cfg.APIMode == "responses" {
			return newResponsesGenerator(cfg), nil
		}
		return newChatGenerator(cfg), nil
	case domain.ProviderGemini:
		return newGeminiGenerator(cfg), nil
	}
	return nil, fmt.Errorf("unknown provider: %s", provider)
}

// headerTransport merges extra headers into every outgoing request
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	for k, v := range t.headers {
		if k != "" {
			clone.Header.Set(k, v)
		}
	}
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(clone)
}

// httpClient builds a client carrying the configured extra headers
func httpClient(extraHeaders map[string]string) *http.Client {
	if len(extraHeaders) == 0 {
		return &http.Client{}
	}
	return &http.Client{Transport: headerTransport{headers: extraHeaders}}
}
