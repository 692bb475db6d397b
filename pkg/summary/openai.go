package summary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/umputun/bilifeed/pkg/config"
)

const defaultOpenAIModel = "gpt-4o-mini"

// chatGenerator drives the chat_completions envelope through the OpenAI
// client, works for openai and any OpenAI-compatible base URL
type chatGenerator struct {
	client  *openai.Client
	model   string
	useJSON bool
}

func newChatGenerator(cfg config.SummaryConfig) *chatGenerator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := chatBaseURL(cfg.BaseURL); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = httpClient(cfg.ExtraHeaders)

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	return &chatGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   model,
		useJSON: cfg.UseJSONFormat,
	}
}

// chatBaseURL normalizes a configured base URL for the OpenAI client, which
// appends /chat/completions itself
func chatBaseURL(base string) string {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	if strings.HasSuffix(strings.ToLower(base), "/chat/completions") {
		base = base[:len(base)-len("/chat/completions")]
	}
	return base
}

func (g *chatGenerator) generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.2,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: "Return valid JSON only."},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if g.useJSON {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in chat completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// responsesGenerator drives the alternate "responses" envelope with a plain
// HTTP client, no SDK covers it
type responsesGenerator struct {
	http   *http.Client
	url    string
	apiKey string
	model  string
}

func newResponsesGenerator(cfg config.SummaryConfig) *responsesGenerator {
	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &responsesGenerator{
		http:   httpClient(cfg.ExtraHeaders),
		url:    responsesURL(cfg.BaseURL),
		apiKey: cfg.APIKey,
		model:  model,
	}
}

func responsesURL(base string) string {
	base = strings.TrimSuffix(strings.TrimSpace(base), "/")
	if base == "" {
		return "https://api.openai.com/v1/responses"
	}
	if strings.HasSuffix(strings.ToLower(base), "/responses") {
		return base
	}
	return base + "/responses"
}

func (g *responsesGenerator) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       g.model,
		"temperature": 0.2,
		"input":       prompt,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal responses payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build responses request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("responses request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // nothing to do with close error

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10*1024*1024))
	if err != nil {
		return "", fmt.Errorf("read responses body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP %d: %s", resp.StatusCode, data)
	}

	var envelope struct {
		OutputText string `json:"output_text"`
		Output     []struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
		} `json:"output"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return "", fmt.Errorf("decode responses envelope: %w", err)
	}

	if text := strings.TrimSpace(envelope.OutputText); text != "" {
		return text, nil
	}
	var chunks []string
	for _, item := range envelope.Output {
		for _, part := range item.Content {
			ptype := strings.ToLower(part.Type)
			if ptype != "output_text" && ptype != "text" {
				continue
			}
			if text := strings.TrimSpace(part.Text); text != "" {
				chunks = append(chunks, text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(chunks, "\n")), nil
}
