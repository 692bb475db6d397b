package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/bilifeed/pkg/domain"
)

// rawItem builds an upstream feed item as the untyped tree the API returns
func rawItem(id, dynType, mid, name string, ts int64, title, text string) map[string]any {
	item := map[string]any{
		"id_str": id,
		"type":   dynType,
		"modules": map[string]any{
			"module_author": map[string]any{
				"mid":    mid,
				"name":   name,
				"pub_ts": ts,
			},
			"module_dynamic": map[string]any{
				"desc": map[string]any{"text": text},
				"major": map[string]any{
					"type":    "MAJOR_TYPE_ARCHIVE",
					"archive": map[string]any{"title": title},
				},
			},
		},
	}
	return item
}

func TestNormalize_Basic(t *testing.T) {
	page := []map[string]any{
		rawItem("1001", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717243200, "new video", "video notes"),
		rawItem("1002", "DYNAMIC_TYPE_ARTICLE", "43", "creator-b", 1717156800, "long read", ""),
	}

	posts := Normalize([][]map[string]any{page})
	require.Len(t, posts, 2)

	assert.Equal(t, "1001", posts[0].ID)
	assert.Equal(t, "42", posts[0].CreatorID)
	assert.Equal(t, "creator-a", posts[0].CreatorName)
	assert.Equal(t, domain.PostVideo, posts[0].Type)
	assert.Equal(t, "MAJOR_TYPE_ARCHIVE", posts[0].Kind)
	assert.Equal(t, "new video", posts[0].Title)
	assert.Equal(t, "video notes", posts[0].Text)
	assert.Equal(t, "https://t.bilibili.com/1001", posts[0].URL)
	assert.Equal(t, time.Unix(1717243200, 0).UTC(), posts[0].Published)

	assert.Equal(t, domain.PostArticle, posts[1].Type)
}

func TestNormalize_DedupIdempotent(t *testing.T) {
	page := []map[string]any{
		rawItem("1001", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717243200, "first seen", "original"),
		rawItem("1002", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717242000, "second", ""),
	}
	dupPage := []map[string]any{
		rawItem("1001", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717243200, "duplicate", "changed"),
	}

	once := Normalize([][]map[string]any{page})
	twice := Normalize([][]map[string]any{page, page, dupPage})

	assert.Equal(t, once, twice, "normalizing the same page again adds nothing")
	require.Len(t, twice, 2)
	assert.Equal(t, "first seen", twice[0].Title, "first occurrence wins")
}

func TestNormalize_UnknownTypeMapsToOther(t *testing.T) {
	page := []map[string]any{
		rawItem("1001", "DYNAMIC_TYPE_LIVE_RCMD", "42", "creator-a", 1717243200, "live now", ""),
	}
	posts := Normalize([][]map[string]any{page})
	require.Len(t, posts, 1)
	assert.Equal(t, domain.PostOther, posts[0].Type)
}

func TestNormalize_MissingOptionalFields(t *testing.T) {
	item := map[string]any{
		"id_str": "1001",
		"type":   "DYNAMIC_TYPE_WORD",
		"modules": map[string]any{
			"module_author": map[string]any{"mid": "42", "name": "creator-a", "pub_ts": 1717243200},
		},
	}
	posts := Normalize([][]map[string]any{{item}})
	require.Len(t, posts, 1)
	assert.Empty(t, posts[0].Title)
	assert.Empty(t, posts[0].Text)
}

func TestNormalize_DropsUnparsableTimestamp(t *testing.T) {
	good := rawItem("1001", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717243200, "kept", "")
	bad := rawItem("1002", "DYNAMIC_TYPE_AV", "42", "creator-a", 0, "dropped", "")

	posts := Normalize([][]map[string]any{{good, bad}})
	require.Len(t, posts, 1, "bad timestamp drops the single post, not the page")
	assert.Equal(t, "1001", posts[0].ID)
}

func TestNormalize_DropsItemWithoutID(t *testing.T) {
	item := rawItem("", "DYNAMIC_TYPE_AV", "42", "creator-a", 1717243200, "no id", "")
	delete(item, "id_str")

	posts := Normalize([][]map[string]any{{item}})
	assert.Empty(t, posts)
}

func TestNormalize_FromDecodedJSON(t *testing.T) {
	// numbers arrive as float64 after a real JSON decode
	raw := `[{
		"id_str": "1001",
		"type": "DYNAMIC_TYPE_AV",
		"modules": {
			"module_author": {"mid": 42, "name": "creator-a", "pub_ts": 1717243200},
			"module_dynamic": {
				"desc": {"rich_text_nodes": [{"text": "part one"}, {"raw_text": "part two"}]},
				"major": {"type": "MAJOR_TYPE_ARCHIVE", "archive": {"title": "decoded"}}
			}
		}
	}]`
	var items []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &items))

	posts := Normalize([][]map[string]any{items})
	require.Len(t, posts, 1)
	assert.Equal(t, "42", posts[0].CreatorID)
	assert.Equal(t, "part one part two", posts[0].Text)
	assert.Equal(t, time.Unix(1717243200, 0).UTC(), posts[0].Published)
}
