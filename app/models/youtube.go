package models

// VideoDetails holds the snippet fields we keep from the YouTube Data API.
type VideoDetails struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
}
