package models

import "time"

// Insight is one extracted finding: a short topic plus a sentence of detail.
type Insight struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
}

// SearchRecord is one analyzed video for one user.
type SearchRecord struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	VideoID         string    `json:"video_id"`
	VideoURL        string    `json:"video_url"`
	VideoTitle      string    `json:"video_title"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	PainPoints      []Insight `json:"pain_points"`
	DiscussedTopics []Insight `json:"discussed_topics"`
	CreatedAt       time.Time `json:"created_at"`
}

// SearchSummary is the trimmed list-view shape for search history pages.
type SearchSummary struct {
	ID           string `json:"id"`
	VideoTitle   string `json:"video_title"`
	ThumbnailURL string `json:"thumbnail_url"`
}
