// Package filter narrows a normalized post set by time range and keywords
// and aggregates the survivors into per-creator groups.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/umputun/bilifeed/pkg/domain"
)

// Criteria describes one filter pass. Zero time bounds are open, an empty
// keyword string disables keyword filtering.
type Criteria struct {
	From     time.Time
	To       time.Time
	Keywords string // space-separated terms, all must match (AND)
	SortAsc  bool   // group order by post count, ties by creator id ascending
}

// Apply filters posts and groups them by creator. Posts inside a group are
// ordered newest-first, groups by count in the requested direction with
// creator id breaking ties deterministically.
func Apply(posts []domain.Post, c Criteria) []domain.CreatorGroup {
	terms := splitTerms(c.Keywords)

	byCreator := map[string][]domain.Post{}
	names := map[string]string{}
	for _, post := range posts {
		if !inRange(post.Published, c.From, c.To) {
			continue
		}
		if !matchTerms(post, terms) {
			continue
		}
		byCreator[post.CreatorID] = append(byCreator[post.CreatorID], post)
		if names[post.CreatorID] == "" {
			names[post.CreatorID] = post.CreatorName
		}
	}

	groups := make([]domain.CreatorGroup, 0, len(byCreator))
	for id, creatorPosts := range byCreator {
		sort.SliceStable(creatorPosts, func(i, j int) bool {
			return creatorPosts[i].Published.After(creatorPosts[j].Published)
		})
		groups = append(groups, domain.CreatorGroup{
			CreatorID:   id,
			CreatorName: names[id],
			Posts:       creatorPosts,
			Count:       len(creatorPosts),
		})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Count != groups[j].Count {
			if c.SortAsc {
				return groups[i].Count < groups[j].Count
			}
			return groups[i].Count > groups[j].Count
		}
		return groups[i].CreatorID < groups[j].CreatorID
	})

	return groups
}

// inRange checks from <= t <= to, either bound may be open (zero)
func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func splitTerms(keywords string) []string {
	var terms []string
	for _, term := range strings.Fields(strings.ToLower(keywords)) {
		terms = append(terms, term)
	}
	return terms
}

// matchTerms requires every term to appear as a case-insensitive substring
// in the post's title or body text
func matchTerms(post domain.Post, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	haystack := strings.ToLower(post.Title + " " + post.Text)
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}
