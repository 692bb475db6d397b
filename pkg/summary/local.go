package summary

import "github.com/umputun/bilifeed/pkg/domain"

// localSummary is the deterministic, provider-free fallback: one extractive
// sentence per enumerated post, newest first, each referencing exactly its
// own source. Never fails, an empty source list yields no sentences.
func localSummary(sources []Source) []domain.SummarySentence {
	sentences := make([]domain.SummarySentence, 0, len(sources))
	for _, src := range sources {
		sentences = append(sentences, domain.SummarySentence{
			Text: src.Time + " " + src.Snippet,
			Refs: []string{src.Post.ID},
		})
	}
	return sentences
}
