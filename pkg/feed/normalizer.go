package feed

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/bilifeed/pkg/domain"
)

// upstream dynamic types mapped to normalized post types, anything else is
// domain.PostOther
var postTypes = map[string]domain.PostType{
	"DYNAMIC_TYPE_AV":         domain.PostVideo,
	"DYNAMIC_TYPE_UGC_SEASON": domain.PostVideo,
	"DYNAMIC_TYPE_PGC":        domain.PostPGC,
	"DYNAMIC_TYPE_PGC_UNION":  domain.PostPGC,
	"DYNAMIC_TYPE_ARTICLE":    domain.PostArticle,
}

// major payload sections that may carry a title and descriptive text,
// checked in this order
var majorSections = []string{"archive", "ugc_season", "pgc", "article", "draw", "music", "common", "live", "opus"}

// Normalize converts raw feed pages into a deduplicated post list. First
// occurrence of an id wins since feed order is stable newest-first. Items
// without an id or a parsable publish time are dropped, not fatal.
func Normalize(pages [][]map[string]any) []domain.Post {
	seen := map[string]struct{}{}
	var posts []domain.Post
	for _, items := range pages {
		pagePosts, _ := normalizeItems(items, seen)
		posts = append(posts, pagePosts...)
	}
	return posts
}

// normalizeItems converts one page of raw items, recording seen ids in the
// caller-owned set. The second return is the oldest publish time observed
// on the page (pre-dedup), used by the fetcher's page-stop heuristic.
func normalizeItems(items []map[string]any, seen map[string]struct{}) (posts []domain.Post, oldest time.Time) {
	for _, item := range items {
		post, ok := extractPost(item)
		if !ok {
			continue
		}
		if oldest.IsZero() || post.Published.Before(oldest) {
			oldest = post.Published
		}
		if _, dup := seen[post.ID]; dup {
			continue
		}
		seen[post.ID] = struct{}{}
		posts = append(posts, post)
	}
	return posts, oldest
}

// extractPost validates one untyped feed item into a Post
func extractPost(item map[string]any) (domain.Post, bool) {
	id := asString(item["id_str"])
	if id == "" {
		if n := asInt64(item["id"]); n != 0 {
			id = strconv.FormatInt(n, 10)
		}
	}
	if id == "" {
		lgr.Printf("[WARN] skipping feed item without id")
		return domain.Post{}, false
	}

	modules := asMap(item["modules"])
	author := asMap(modules["module_author"])
	dynamic := asMap(modules["module_dynamic"])

	ts := asInt64(author["pub_ts"])
	if ts == 0 {
		ts = asInt64(item["pub_ts"])
	}
	if ts == 0 {
		lgr.Printf("[WARN] skipping feed item %s with unparsable publish time", id)
		return domain.Post{}, false
	}

	desc := extractText(dynamic["desc"])
	kind, majorTitle, majorDetail := extractMajor(asMap(dynamic["major"]))
	addTitle, addDetail := extractSections(asMap(dynamic["additional"]), []string{"ugc", "common", "article", "music", "live"})

	title := majorTitle
	if title == "" {
		title = addTitle
	}

	rawType := asString(item["type"])
	postType, found := postTypes[rawType]
	if !found {
		postType = domain.PostOther
	}

	creatorID := asString(author["mid"])
	if creatorID == "" {
		if n := asInt64(author["mid"]); n != 0 {
			creatorID = strconv.FormatInt(n, 10)
		}
	}

	return domain.Post{
		ID:          id,
		CreatorID:   creatorID,
		CreatorName: asString(author["name"]),
		Type:        postType,
		Kind:        kind,
		Title:       title,
		Text:        mergeText(desc, majorDetail, addDetail),
		URL:         "https://t.bilibili.com/" + id,
		Published:   time.Unix(ts, 0).UTC(),
	}, true
}

// extractMajor pulls the major type plus the first title and detail text
// found across the known payload sections
func extractMajor(major map[string]any) (kind, title, detail string) {
	kind = asString(major["type"])
	title, detail = extractSections(major, majorSections)
	return kind, title, detail
}

func extractSections(container map[string]any, sections []string) (title, detail string) {
	for _, section := range sections {
		obj := asMap(container[section])
		if obj == nil {
			continue
		}
		if title == "" {
			title = asString(obj["title"])
		}
		if detail == "" {
			detail = extractText(obj)
		}
	}
	return title, detail
}

// textKeys are tried in order when extracting descriptive text from an
// untyped payload node
var textKeys = []string{"text", "desc", "summary", "content", "intro", "sub_title", "subtitle", "description"}

// extractText pulls plain text out of an arbitrarily shaped payload node
func extractText(node any) string {
	switch v := node.(type) {
	case string:
		return strings.TrimSpace(v)
	case []any:
		var parts []string
		for _, el := range v {
			if s := extractText(el); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.TrimSpace(strings.Join(parts, " "))
	case map[string]any:
		for _, key := range textKeys {
			if raw, ok := v[key]; ok {
				if s := extractText(raw); s != "" {
					return s
				}
			}
		}
		if nodes, ok := v["rich_text_nodes"].([]any); ok {
			var parts []string
			for _, n := range nodes {
				nm := asMap(n)
				text := asString(nm["text"])
				if text == "" {
					text = asString(nm["raw_text"])
				}
				if text != "" {
					parts = append(parts, text)
				}
			}
			return strings.TrimSpace(strings.Join(parts, " "))
		}
	}
	return ""
}

// mergeText joins distinct non-empty parts preserving order
func mergeText(parts ...string) string {
	seen := map[string]struct{}{}
	var out []string
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return strings.Join(out, "\n")
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asString(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

// asInt64 coerces JSON numbers and numeric strings
func asInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0
		}
		return parsed
	}
	return 0
}
