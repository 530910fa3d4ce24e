package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"

	_ "github.com/lib/pq"
)

var db *sql.DB

// MustInitDB initializes the global db and logs fatally on error.
func MustInitDB() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s",
		cfg.DB.Username,
		cfg.DB.Password,
		cfg.DB.URL,
		cfg.DB.Port,
	)

	d, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("sql.Open: %v", err)
	}

	if err := d.Ping(); err != nil {
		log.Fatalf("db.Ping: %v", err)
	}

	log.Println("Connected to Postgres")
	db = d
}

const searchPageSize = 20

func insertSearch(ctx context.Context, rec *models.SearchRecord) error {
	if db == nil {
		// Allow test runs without a backing DB.
		return nil
	}

	painPoints, err := json.Marshal(rec.PainPoints)
	if err != nil {
		return err
	}
	topics, err := json.Marshal(rec.DiscussedTopics)
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO youtube_searches (
			user_id, video_id, video_url, video_title, thumbnail_url,
			pain_points, discussed_topics
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at;
	`
	return db.QueryRowContext(
		ctx,
		q,
		rec.UserID,
		rec.VideoID,
		rec.VideoURL,
		rec.VideoTitle,
		rec.ThumbnailURL,
		painPoints,
		topics,
	).Scan(&rec.ID, &rec.CreatedAt)
}

// searchExists reports whether the user has already analyzed this video.
func searchExists(ctx context.Context, userID, videoID string) (bool, error) {
	if db == nil {
		return false, nil
	}

	var exists bool
	err := db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM youtube_searches
			WHERE user_id = $1 AND video_id = $2
		);
	`, userID, videoID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func getSearch(ctx context.Context, userID, searchID string) (models.SearchRecord, error) {
	if db == nil {
		return models.SearchRecord{}, sql.ErrNoRows
	}

	var (
		rec        models.SearchRecord
		painPoints []byte
		topics     []byte
	)

	err := db.QueryRowContext(ctx, `
		SELECT id, user_id, video_id, video_url, video_title, thumbnail_url,
		       pain_points, discussed_topics, created_at
		FROM youtube_searches
		WHERE id = $1 AND user_id = $2;
	`, searchID, userID).Scan(
		&rec.ID,
		&rec.UserID,
		&rec.VideoID,
		&rec.VideoURL,
		&rec.VideoTitle,
		&rec.ThumbnailURL,
		&painPoints,
		&topics,
		&rec.CreatedAt,
	)
	if err != nil {
		return models.SearchRecord{}, err
	}

	if err := json.Unmarshal(painPoints, &rec.PainPoints); err != nil {
		return models.SearchRecord{}, err
	}
	if err := json.Unmarshal(topics, &rec.DiscussedTopics); err != nil {
		return models.SearchRecord{}, err
	}
	return rec, nil
}

// listSearches reads one page of search history, newest first, plus the total
// page count for the pagination footer.
func listSearches(ctx context.Context, userID string, page int) ([]models.SearchSummary, int, error) {
	if db == nil {
		return []models.SearchSummary{}, 0, nil
	}
	if page < 1 {
		page = 1
	}

	var total int
	if err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM youtube_searches WHERE user_id = $1;
	`, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, video_title, thumbnail_url
		FROM youtube_searches
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
		OFFSET $3;
	`, userID, searchPageSize, (page-1)*searchPageSize)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []models.SearchSummary{}
	for rows.Next() {
		var s models.SearchSummary
		if err := rows.Scan(&s.ID, &s.VideoTitle, &s.ThumbnailURL); err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	totalPages := (total + searchPageSize - 1) / searchPageSize
	return out, totalPages, nil
}
