package post

import "time"

// LimitCap bounds the feed page size: callers may ask for fewer posts
// per page, never more.
const LimitCap = 50

// Default clip length for text snippets in the feed.
const DefaultClipLength = 180

type Post struct {
	Id       int64  `json:"id"`
	Title    string `json:"title"`
	Text     string `json:"text"`
	Score    int    `json:"score"`
	AuthorId int64  `json:"authorId"`

	Created time.Time `json:"createdAt"`
	Updated time.Time `json:"updatedAt"`
}
