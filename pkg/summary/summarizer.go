package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
)

// Summarizer builds prompts, dispatches to the configured provider and maps
// citations back to source posts. Every provider failure degrades to the
// local fallback, a summary request never fails the run.
type Summarizer struct {
	now func() time.Time
}

// New creates a summarizer
func New() *Summarizer {
	return &Summarizer{now: time.Now}
}

// Summarize produces a summary for the creator group using the provider
// configuration. The returned warnings describe non-fatal provider failures
// that triggered the local fallback.
func (s *Summarizer) Summarize(ctx context.Context, group domain.CreatorGroup, cfg config.SummaryConfig) (domain.SummaryResult, []string) {
	sources := prepareSources(group.Posts, cfg.MaxItems)

	provider := cfg.Provider
	if provider == "" || provider == "none" {
		provider = domain.ProviderLocal
	}

	fallback := func(warn string) (domain.SummaryResult, []string) {
		var warnings []string
		if warn != "" {
			lgr.Printf("[WARN] %s", warn)
			warnings = append(warnings, warn)
		}
		return s.result(group.CreatorID, domain.ProviderLocal, localSummary(sources), len(sources)), warnings
	}

	if provider == domain.ProviderLocal || len(sources) == 0 {
		return fallback("")
	}
	if cfg.APIKey == "" {
		return fallback(fmt.Sprintf("provider %s: missing api key, using local summary", provider))
	}
	if provider == domain.ProviderCustomOpenAI && strings.TrimSpace(cfg.BaseURL) == "" {
		return fallback("provider custom_openai: missing base_url, using local summary")
	}

	gen, err := newGenerator(provider, cfg)
	if err != nil {
		return fallback(fmt.Sprintf("provider %s: %v, using local summary", provider, err))
	}

	reqCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	raw, err := gen.generate(reqCtx, buildPrompt(sources))
	if err != nil {
		provErr := domain.NewError(domain.ErrProvider, "summarize creator "+group.CreatorID, err)
		return fallback(fmt.Sprintf("provider %s request failed: %s, using local summary", provider, trimDetail(provErr.Error())))
	}

	sentences, err := parseSentences(raw, sources)
	if err != nil {
		return fallback(fmt.Sprintf("provider %s returned unusable response: %s, using local summary", provider, trimDetail(raw)))
	}

	return s.result(group.CreatorID, provider, sentences, len(sources)), nil
}

func (s *Summarizer) result(creatorID string, provider domain.Provider, sentences []domain.SummarySentence, sourceCount int) domain.SummaryResult {
	return domain.SummaryResult{
		CreatorID:   creatorID,
		Provider:    provider,
		Sentences:   sentences,
		SourceCount: sourceCount,
		GeneratedAt: s.now(),
	}
}

// parseSentences decodes the expected sentence+refs structure from raw
// provider text. A response that cannot be decoded at all is a provider
// failure, individual out-of-range refs are just dropped.
func parseSentences(raw string, sources []Source) ([]domain.SummarySentence, error) {
	data := extractJSON(raw)
	if data == nil {
		return nil, fmt.Errorf("no json object in provider response")
	}

	var payload struct {
		Summary []struct {
			Sentence string `json:"sentence"`
			Refs     []int  `json:"refs"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode summary payload: %w", err)
	}
	if len(payload.Summary) == 0 {
		return nil, fmt.Errorf("empty summary in provider response")
	}

	var sentences []domain.SummarySentence
	for _, row := range payload.Summary {
		text := strings.TrimSpace(row.Sentence)
		if text == "" {
			continue
		}
		sentences = append(sentences, domain.SummarySentence{
			Text: text,
			Refs: ResolveRefs(row.Refs, sources),
		})
	}
	if len(sentences) == 0 {
		return nil, fmt.Errorf("no usable sentences in provider response")
	}
	return sentences, nil
}
