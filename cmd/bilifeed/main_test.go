package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/bilifeed/pkg/config"
	"github.com/umputun/bilifeed/pkg/domain"
)

func TestApplyOverrides(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Auth.SESSDATA = "s"
	require.NoError(t, cfg.Validate())

	applyOverrides(cfg, Opts{
		Type:         "video",
		Pages:        7,
		Keyword:      "minecraft",
		NoCache:      true,
		ExtraHeaders: `{"X-One":"1"}`,
	})

	assert.Equal(t, "video", cfg.Feed.Type)
	assert.Equal(t, 7, cfg.Feed.Pages)
	assert.Equal(t, "minecraft", cfg.Filter.Keyword)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, map[string]string{"X-One": "1"}, cfg.Summary.ExtraHeaders)
}

func TestApplyOverrides_EmptyKeepsConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.SetDefaults()
	cfg.Filter.Keyword = "from config"
	cfg.Cache.Enabled = true

	applyOverrides(cfg, Opts{})

	assert.Equal(t, "all", cfg.Feed.Type)
	assert.Equal(t, "from config", cfg.Filter.Keyword)
	assert.True(t, cfg.Cache.Enabled)
}

func TestShouldSummarize(t *testing.T) {
	group := domain.CreatorGroup{CreatorID: "42"}

	assert.False(t, shouldSummarize(group, Opts{}))
	assert.True(t, shouldSummarize(group, Opts{Summarize: true}))
	assert.True(t, shouldSummarize(group, Opts{Creator: "42"}))
	assert.False(t, shouldSummarize(group, Opts{Creator: "43", Summarize: true}),
		"creator filter wins over the blanket flag")
}
