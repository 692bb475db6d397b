package summary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
)

func testGroup() domain.CreatorGroup {
	return domain.CreatorGroup{
		CreatorID:   "42",
		CreatorName: "creator-a",
		Posts: []domain.Post{
			{ID: "p1", Title: "new redstone video", Published: time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)},
			{ID: "p2", Title: "stream announcement", Published: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
		},
		Count: 2,
	}
}

func testSummaryConfig() config.SummaryConfig {
	return config.SummaryConfig{
		Provider: domain.ProviderLocal,
		APIMode:  "chat_completions",
		MaxItems: 80,
		Timeout:  5 * time.Second,
	}
}

// chatResponse wraps content into the chat_completions answer envelope
func chatResponse(t *testing.T, content string) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	require.NoError(t, err)
	return body
}

func TestSummarize_LocalProvider(t *testing.T) {
	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), testSummaryConfig())

	assert.Empty(t, warnings)
	assert.Equal(t, domain.ProviderLocal, result.Provider)
	assert.Equal(t, "42", result.CreatorID)
	assert.Equal(t, 2, result.SourceCount)
	require.Len(t, result.Sentences, 2)
	assert.Equal(t, []string{"p1"}, result.Sentences[0].Refs)
	assert.False(t, result.GeneratedAt.IsZero())
}

func TestSummarize_EmptyGroup(t *testing.T) {
	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIKey = "sk-test"

	s := New()
	result, warnings := s.Summarize(context.Background(), domain.CreatorGroup{CreatorID: "42"}, cfg)

	assert.Empty(t, warnings, "no provider call for an empty group")
	assert.Equal(t, domain.ProviderLocal, result.Provider)
	assert.Empty(t, result.Sentences)
	assert.Zero(t, result.SourceCount)
}

func TestSummarize_ChatCompletions(t *testing.T) {
	var gotAuth, gotCustom string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotCustom = r.Header.Get("X-Custom")

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req["model"])
		assert.Contains(t, fmt.Sprint(req["messages"]), "[1] time=")
		assert.NotNil(t, req["response_format"], "json format requested")

		_, _ = w.Write(chatResponse(t, `{"summary":[{"sentence":"Posted a redstone build.","refs":[1]},{"sentence":"Announced a stream.","refs":[2,9]}]}`))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"
	cfg.UseJSONFormat = true
	cfg.ExtraHeaders = map[string]string{"X-Custom": "check"}

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	assert.Empty(t, warnings)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, "check", gotCustom, "extra headers reach the provider")
	assert.Equal(t, domain.ProviderOpenAI, result.Provider)
	require.Len(t, result.Sentences, 2)
	assert.Equal(t, []string{"p1"}, result.Sentences[0].Refs)
	assert.Equal(t, []string{"p2"}, result.Sentences[1].Refs, "out-of-range ref 9 dropped")
}

func TestSummarize_ChatCompletions_FencedAnswer(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, "```json\n{\"summary\":[{\"sentence\":\"Fenced but fine.\",\"refs\":[1]}]}\n```"))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderCustomOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)
	assert.Empty(t, warnings)
	assert.Equal(t, domain.ProviderCustomOpenAI, result.Provider)
	require.Len(t, result.Sentences, 1)
	assert.Equal(t, "Fenced but fine.", result.Sentences[0].Text)
}

func TestSummarize_MissingAPIKeyFallsBack(t *testing.T) {
	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "missing api key")
	assert.Equal(t, domain.ProviderLocal, result.Provider, "fallback is marked local")
	assert.Len(t, result.Sentences, 2)
}

func TestSummarize_CustomWithoutBaseURLFallsBack(t *testing.T) {
	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderCustomOpenAI
	cfg.APIKey = "sk-test"

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "missing base_url")
	assert.Equal(t, domain.ProviderLocal, result.Provider)
}

func TestSummarize_ProviderErrorFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom, key sk-echoed-back"}}`, http.StatusInternalServerError)
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "request failed")
	assert.NotContains(t, warnings[0], "sk-echoed-back", "echoed credentials are redacted")
	assert.Equal(t, domain.ProviderLocal, result.Provider)
	assert.Len(t, result.Sentences, 2, "fallback still summarizes")
}

func TestSummarize_UnusableResponseFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(chatResponse(t, "I cannot produce JSON today, sorry."))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "unusable response")
	assert.Equal(t, domain.ProviderLocal, result.Provider)
}

func TestSummarize_TimeoutFallsBack(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		_, _ = w.Write(chatResponse(t, `{"summary":[{"sentence":"too late","refs":[1]}]}`))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"
	cfg.Timeout = 50 * time.Millisecond

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "request failed")
	assert.Equal(t, domain.ProviderLocal, result.Provider)
}

func TestSummarize_ResponsesMode(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/responses", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req["input"])

		_, _ = w.Write([]byte(`{"output":[{"content":[{"type":"output_text","text":"{\"summary\":[{\"sentence\":\"From responses mode.\",\"refs\":[1]}]}"}]}]}`))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderOpenAI
	cfg.APIMode = "responses"
	cfg.APIKey = "sk-test"
	cfg.BaseURL = ts.URL + "/v1"

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	assert.Empty(t, warnings)
	require.Len(t, result.Sentences, 1)
	assert.Equal(t, "From responses mode.", result.Sentences[0].Text)
	assert.Equal(t, []string{"p1"}, result.Sentences[0].Refs)
}

func TestSummarize_Gemini(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/models/gemini-1.5-flash:generateContent", r.URL.Path)
		assert.Equal(t, "g-key", r.URL.Query().Get("key"))

		answer := `{"summary":[{"sentence":"From gemini.","refs":[2]}]}`
		envelope := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]string{{"text": answer}}}},
			},
		}
		require.NoError(t, json.NewEncoder(w).Encode(envelope))
	}))
	defer ts.Close()

	cfg := testSummaryConfig()
	cfg.Provider = domain.ProviderGemini
	cfg.APIKey = "g-key"
	cfg.BaseURL = ts.URL

	s := New()
	result, warnings := s.Summarize(context.Background(), testGroup(), cfg)

	assert.Empty(t, warnings)
	assert.Equal(t, domain.ProviderGemini, result.Provider)
	require.Len(t, result.Sentences, 1)
	assert.Equal(t, []string{"p2"}, result.Sentences[0].Refs)
}

func TestParseSentences_Errors(t *testing.T) {
	sources := makeSources("p1")

	tests := []struct {
		name string
		raw  string
	}{
		{"no json at all", "plain refusal text"},
		{"empty summary array", `{"summary":[]}`},
		{"only blank sentences", `{"summary":[{"sentence":"  ","refs":[1]}]}`},
		{"wrong shape", `{"answer":"text"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSentences(tt.raw, sources)
			require.Error(t, err)
		})
	}
}

func TestParseSentences_KeepsEmptyRefs(t *testing.T) {
	sentences, err := parseSentences(`{"summary":[{"sentence":"No refs given.","refs":[99]}]}`, makeSources("p1"))
	require.NoError(t, err)
	require.Len(t, sentences, 1)
	assert.Empty(t, sentences[0].Refs, "sentence survives with its refs dropped")
}
