package domain

import "time"

// PostType is the normalized content type of a feed item
type PostType string

// known post types, anything unrecognized maps to PostOther
const (
	PostVideo   PostType = "video"
	PostPGC     PostType = "pgc"
	PostArticle PostType = "article"
	PostOther   PostType = "other"
)

// Post represents one normalized feed item. Immutable once produced by the
// normalizer, identity is ID.
type Post struct {
	ID          string    `json:"id"`
	CreatorID   string    `json:"creator_id"`
	CreatorName string    `json:"creator_name"`
	Type        PostType  `json:"type"`
	Kind        string    `json:"kind"` // raw upstream major type, e.g. MAJOR_TYPE_ARCHIVE
	Title       string    `json:"title"`
	Text        string    `json:"text"` // plain-text excerpt/description
	URL         string    `json:"url"`
	Published   time.Time `json:"published"`
}

// CreatorGroup aggregates posts of one creator, posts ordered newest-first.
// Derived on every filter pass, never persisted on its own.
type CreatorGroup struct {
	CreatorID   string
	CreatorName string
	Posts       []Post
	Count       int
}
