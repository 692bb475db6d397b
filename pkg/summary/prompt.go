// Package summary generates per-creator natural-language summaries with
// sentence-level citations back to the source posts. Providers differ only
// in endpoint shape and envelope, the orchestration and citation mapping is
// shared.
package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/umputun/bilifeed/pkg/domain"
)

// snippetLimit caps the body excerpt enumerated into the prompt
const snippetLimit = 120

// Source is one post enumerated into the prompt with its stable 1-based
// reference index
type Source struct {
	Index   int
	Post    domain.Post
	Snippet string
	Time    string
}

// prepareSources selects up to maxItems posts newest-first and assigns
// reference indices. Truncation is silent, the count used is recorded in
// the result.
func prepareSources(posts []domain.Post, maxItems int) []Source {
	if maxItems < 1 {
		maxItems = 1
	}

	selected := make([]domain.Post, len(posts))
	copy(selected, posts)
	sort.SliceStable(selected, func(i, j int) bool {
		return selected[i].Published.After(selected[j].Published)
	})
	if len(selected) > maxItems {
		selected = selected[:maxItems]
	}

	sources := make([]Source, 0, len(selected))
	for i, post := range selected {
		sources = append(sources, Source{
			Index:   i + 1,
			Post:    post,
			Snippet: snippet(post),
			Time:    post.Published.Format("2006-01-02 15:04"),
		})
	}
	return sources
}

// snippet builds the one-line excerpt for a post from its title and body
func snippet(post domain.Post) string {
	title := clip(post.Title, snippetLimit)
	text := clip(post.Text, snippetLimit)
	switch {
	case title != "" && text != "":
		return title + " | " + text
	case title != "":
		return title
	case text != "":
		return text
	}
	return "-"
}

// clip flattens newlines and caps the text at limit runes
func clip(text string, limit int) string {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// buildPrompt creates the provider prompt enumerating the sources
func buildPrompt(sources []Source) string {
	var sb strings.Builder
	sb.WriteString("You are an assistant summarizing one creator's recent feed activity. ")
	sb.WriteString("Given source posts with indices, return strict JSON only.\n")
	sb.WriteString("Required format:\n")
	sb.WriteString(`{"summary":[{"sentence":"...","refs":[1,2]}]}` + "\n")
	sb.WriteString("Rules:\n")
	sb.WriteString("1) 3-8 concise sentences.\n")
	sb.WriteString("2) Every sentence must have refs and refs must only use provided indices.\n")
	sb.WriteString("3) Keep statements factual and grounded in sources.\n")
	sb.WriteString("4) Do not include markdown, comments, or extra fields.\n")
	sb.WriteString("Sources:\n")
	for _, src := range sources {
		sb.WriteString(fmt.Sprintf("[%d] time=%s | %s\n", src.Index, src.Time, src.Snippet))
	}
	return sb.String()
}
