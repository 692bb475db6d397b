package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/umputun/bilifeed/pkg/domain"
)

//go:generate go run ../../cmd/schema/main.go schema.json

// timeInputFormat is the accepted format for time_from/time_to values
const timeInputFormat = "2006-01-02 15:04"

// Config holds the application configuration
type Config struct {
	Auth struct {
		Cookie     string `yaml:"cookie" json:"cookie" jsonschema:"description=Full cookie string from the browser session"`
		SESSDATA   string `yaml:"sessdata" json:"sessdata" jsonschema:"description=SESSDATA cookie value, merged into the cookie if not present"`
		DedeUserID string `yaml:"dedeuserid" json:"dedeuserid" jsonschema:"description=DedeUserID cookie value (account mid)"`
		BiliJCT    string `yaml:"bili_jct" json:"bili_jct" jsonschema:"description=bili_jct cookie value (CSRF token)"`
	} `yaml:"auth" json:"auth" jsonschema:"description=Cookie authentication material"`

	Feed struct {
		Type            string        `yaml:"type" json:"type" jsonschema:"default=all,enum=all,enum=video,enum=pgc,enum=article,description=Dynamic feed type filter"`
		QueryMode       string        `yaml:"query_mode" json:"query_mode" jsonschema:"default=all,enum=all,enum=selected_up,description=Fetch everything or only selected creators"`
		TargetCreators  []string      `yaml:"target_creators" json:"target_creators" jsonschema:"description=Creator ids for selected_up mode"`
		Pages           int           `yaml:"pages" json:"pages" jsonschema:"default=3,minimum=1,description=Maximum pages to fetch"`
		Endpoint        string        `yaml:"endpoint" json:"endpoint" jsonschema:"description=Dynamic feed API endpoint"`
		Features        string        `yaml:"features" json:"features" jsonschema:"description=features query param for the feed API"`
		WebLocation     string        `yaml:"web_location" json:"web_location" jsonschema:"description=web_location query param"`
		Timeout         time.Duration `yaml:"timeout" json:"timeout" jsonschema:"default=10s,description=HTTP timeout per page request"`
		RequestInterval time.Duration `yaml:"request_interval" json:"request_interval" jsonschema:"default=0s,description=Pause between page requests"`
		Interactive     bool          `yaml:"interactive" json:"interactive" jsonschema:"default=false,description=Ask before fetching the next page"`
	} `yaml:"feed" json:"feed" jsonschema:"description=Feed fetcher configuration"`

	Filter struct {
		Keyword  string `yaml:"keyword" json:"keyword" jsonschema:"description=Space-separated keywords, all must match (AND)"`
		TimeFrom string `yaml:"time_from" json:"time_from" jsonschema:"description=Lower publish time bound, format: 2006-01-02 15:04"`
		TimeTo   string `yaml:"time_to" json:"time_to" jsonschema:"description=Upper publish time bound, format: 2006-01-02 15:04"`
		Sort     string `yaml:"sort" json:"sort" jsonschema:"default=desc,enum=asc,enum=desc,description=Creator group order by post count"`
		View     string `yaml:"view" json:"view" jsonschema:"default=summary,enum=summary,enum=detail,description=List view mode"`
		PageSize int    `yaml:"page_size" json:"page_size" jsonschema:"default=10,minimum=1,description=Items per page in list view"`
	} `yaml:"filter" json:"filter" jsonschema:"description=Filtering and presentation defaults"`

	Cache struct {
		Enabled    bool   `yaml:"enabled" json:"enabled" jsonschema:"default=true,description=Enable the on-disk fetch cache"`
		TTLMinutes int    `yaml:"ttl_minutes" json:"ttl_minutes" jsonschema:"default=60,description=Cache validity in minutes, 0 or less never expires"`
		DSN        string `yaml:"dsn" json:"dsn" jsonschema:"default=file:bilifeed-cache.db?cache=shared&mode=rwc,description=Cache database connection string"`
	} `yaml:"cache" json:"cache" jsonschema:"description=Cache store configuration"`

	Summary SummaryConfig `yaml:"summary" json:"summary" jsonschema:"description=AI summary provider configuration"`
}

// SummaryConfig holds the summary provider bundle, passed as an immutable
// value into the summarizer so repeated runs with different settings cannot
// interfere
type SummaryConfig struct {
	Provider      domain.Provider   `yaml:"provider" json:"provider" jsonschema:"default=local,enum=local,enum=openai,enum=gemini,enum=custom_openai,description=Summary backend"`
	APIMode       string            `yaml:"api_mode" json:"api_mode" jsonschema:"default=chat_completions,enum=chat_completions,enum=responses,description=Request envelope for OpenAI-compatible providers"`
	Model         string            `yaml:"model" json:"model" jsonschema:"description=Model name, provider default when empty"`
	APIKey        string            `yaml:"api_key" json:"api_key" jsonschema:"description=API key (can use environment variable)"`
	BaseURL       string            `yaml:"base_url" json:"base_url" jsonschema:"description=Base URL, required for custom_openai"`
	UseJSONFormat bool              `yaml:"use_json_format" json:"use_json_format" jsonschema:"default=true,description=Request response_format json_object in chat_completions mode"`
	ExtraHeaders  map[string]string `yaml:"extra_headers" json:"extra_headers" jsonschema:"description=Extra HTTP headers merged into provider requests"`
	MaxItems      int               `yaml:"max_items" json:"max_items" jsonschema:"default=80,minimum=1,description=Maximum posts enumerated into the prompt"`
	Timeout       time.Duration     `yaml:"timeout" json:"timeout" jsonschema:"default=45s,description=Provider request timeout"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // file path comes from CLI flag
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, domain.NewError(domain.ErrConfig, "parse config", err)
	}

	cfg.SetDefaults()

	// validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// verify against embedded schema
	if err := VerifyAgainstEmbeddedSchema(&cfg); err != nil {
		// log warning but don't fail - schema validation is supplementary
		fmt.Printf("warning: schema validation failed: %v\n", err)
	}

	return &cfg, nil
}

// SetDefaults fills zero values with defaults
func (c *Config) SetDefaults() {
	if c.Feed.Type == "" {
		c.Feed.Type = "all"
	}
	if c.Feed.QueryMode == "" {
		c.Feed.QueryMode = "all"
	}
	if c.Feed.Pages == 0 {
		c.Feed.Pages = 3
	}
	if c.Feed.Endpoint == "" {
		c.Feed.Endpoint = "https://api.bilibili.com/x/polymer/web-dynamic/v1/feed/all"
	}
	if c.Feed.Features == "" {
		c.Feed.Features = "itemOpusStyle"
	}
	if c.Feed.WebLocation == "" {
		c.Feed.WebLocation = "333.1365"
	}
	if c.Feed.Timeout == 0 {
		c.Feed.Timeout = 10 * time.Second
	}

	if c.Filter.Sort == "" {
		c.Filter.Sort = "desc"
	}
	if c.Filter.View == "" {
		c.Filter.View = "summary"
	}
	if c.Filter.PageSize == 0 {
		c.Filter.PageSize = 10
	}

	if c.Cache.DSN == "" {
		c.Cache.DSN = "file:bilifeed-cache.db?cache=shared&mode=rwc"
	}
	if c.Cache.TTLMinutes == 0 {
		c.Cache.TTLMinutes = 60
	}

	if c.Summary.Provider == "" {
		c.Summary.Provider = domain.ProviderLocal
	}
	if c.Summary.APIMode == "" {
		c.Summary.APIMode = "chat_completions"
	}
	if c.Summary.MaxItems == 0 {
		c.Summary.MaxItems = 80
	}
	if c.Summary.Timeout == 0 {
		c.Summary.Timeout = 45 * time.Second
	}
}

// Validate checks configuration for correctness, any failure is fatal
// before network activity starts
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return domain.NewError(domain.ErrConfig, "validate config", fmt.Errorf(format, args...))
	}

	if c.Feed.Type != "all" && c.Feed.Type != "video" && c.Feed.Type != "pgc" && c.Feed.Type != "article" {
		return fail("feed.type must be one of all, video, pgc, article, got %q", c.Feed.Type)
	}
	if c.Feed.QueryMode != "all" && c.Feed.QueryMode != "selected_up" {
		return fail("feed.query_mode must be all or selected_up, got %q", c.Feed.QueryMode)
	}
	if c.Feed.Pages < 1 {
		return fail("feed.pages must be at least 1")
	}
	if c.Feed.Timeout < time.Second {
		return fail("feed.timeout must be at least 1 second")
	}

	if c.Filter.Sort != "asc" && c.Filter.Sort != "desc" {
		return fail("filter.sort must be asc or desc, got %q", c.Filter.Sort)
	}
	if c.Filter.View != "summary" && c.Filter.View != "detail" {
		return fail("filter.view must be summary or detail, got %q", c.Filter.View)
	}
	if _, err := c.TimeFrom(); err != nil {
		return fail("filter.time_from: %v", err)
	}
	if _, err := c.TimeTo(); err != nil {
		return fail("filter.time_to: %v", err)
	}

	switch c.Summary.Provider {
	case domain.ProviderLocal, domain.ProviderOpenAI, domain.ProviderGemini, domain.ProviderCustomOpenAI:
	default:
		return fail("summary.provider %q is not supported", c.Summary.Provider)
	}
	if c.Summary.APIMode != "chat_completions" && c.Summary.APIMode != "responses" {
		return fail("summary.api_mode must be chat_completions or responses, got %q", c.Summary.APIMode)
	}
	if c.Summary.MaxItems < 1 {
		return fail("summary.max_items must be at least 1")
	}
	if c.Summary.Timeout < time.Second {
		return fail("summary.timeout must be at least 1 second")
	}

	return nil
}

// TimeFrom parses the lower time bound, zero time when unset
func (c *Config) TimeFrom() (time.Time, error) {
	return parseTimeInput(c.Filter.TimeFrom)
}

// TimeTo parses the upper time bound, zero time when unset
func (c *Config) TimeTo() (time.Time, error) {
	return parseTimeInput(c.Filter.TimeTo)
}

func parseTimeInput(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	// date-only input gets midnight
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(timeInputFormat, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected format %q: %w", timeInputFormat, err)
	}
	return t, nil
}

// ParseExtraHeaders parses a JSON object string into a header map, used for
// the CLI override of summary.extra_headers
func ParseExtraHeaders(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var headers map[string]string
	if err := json.Unmarshal([]byte(raw), &headers); err != nil {
		return nil, domain.NewError(domain.ErrConfig, "parse extra headers", err)
	}
	return headers, nil
}

// GetSummaryConfig returns the summary provider configuration
func (c *Config) GetSummaryConfig() SummaryConfig {
	return c.Summary
}
