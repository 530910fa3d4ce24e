// Video snippet and comment-thread fetching via the YouTube Data API.

package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"

	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

var (
	errVideoNotFound = errors.New("video not found")
	errInvalidURL    = errors.New("invalid youtube url")
)

// Matches watch/embed/short-link forms; the capture group is the video id.
var reVideoID = regexp.MustCompile(`(?:youtube\.com/.*(?:/|v=|/v/|embed/|youtu\.be/)|youtu\.be/|v=)([^#&?]*)`)

var reVideoIDCharset = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// ParseVideoID extracts the 11-character video id from a YouTube URL.
// Returns errInvalidURL for anything that does not look like a video link.
func ParseVideoID(url string) (string, error) {
	m := reVideoID.FindStringSubmatch(url)
	if m == nil {
		return "", errInvalidURL
	}
	id := m[1]
	if !reVideoIDCharset.MatchString(id) {
		return "", errInvalidURL
	}
	return id, nil
}

func newYouTubeService(ctx context.Context, cfg *config.Config) (*youtube.Service, error) {
	if cfg.YouTube.APIKey == "" {
		return nil, errors.New("YOUTUBE_API_KEY not configured")
	}
	return youtube.NewService(ctx, option.WithAPIKey(cfg.YouTube.APIKey))
}

// fetchVideoDetails reads the snippet (title, medium thumbnail) for a video.
func fetchVideoDetails(ctx context.Context, svc *youtube.Service, videoID string) (models.VideoDetails, error) {
	resp, err := svc.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return models.VideoDetails{}, fmt.Errorf("youtube videos.list: %w", err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return models.VideoDetails{}, errVideoNotFound
	}

	snippet := resp.Items[0].Snippet
	details := models.VideoDetails{
		ID:    videoID,
		Title: snippet.Title,
	}
	if snippet.Thumbnails != nil && snippet.Thumbnails.Medium != nil {
		details.ThumbnailURL = snippet.Thumbnails.Medium.Url
	}
	return details, nil
}

// fetchComments reads up to MaxComments top-level comments for a video,
// relevance-ordered, as plain text.
func fetchComments(ctx context.Context, svc *youtube.Service, cfg *config.Config, videoID string) ([]string, error) {
	resp, err := svc.CommentThreads.List([]string{"snippet"}).
		VideoId(videoID).
		MaxResults(int64(cfg.YouTube.MaxComments)).
		Order("relevance").
		TextFormat("plainText").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("youtube commentThreads.list: %w", err)
	}

	var out []string
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.TopLevelComment == nil || item.Snippet.TopLevelComment.Snippet == nil {
			continue
		}
		out = append(out, item.Snippet.TopLevelComment.Snippet.TextDisplay)
	}
	return out, nil
}
