package app

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"
	"github.com/NemoPS/youtube-comments-analyzer/auth"

	"github.com/gin-gonic/gin"
)

type analyzeRequest struct {
	VideoURL string `json:"videoUrl"`
}

// AnalyzeVideo runs the full pipeline for one video: validate, spend a credit,
// fetch snippet and comments, extract insights, persist. The credit is spent
// atomically before the expensive upstream calls; any later failure refunds it.
func AnalyzeVideo(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.VideoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing video url"})
		return
	}

	videoID, err := ParseVideoID(req.VideoURL)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid youtube url"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 90*time.Second)
	defer cancel()

	exists, err := searchExists(ctx, claims.Subject, videoID)
	if err != nil {
		log.Printf("duplicate check failed user=%s video=%s err=%v", claims.Subject, videoID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to check history"})
		return
	}
	if exists {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video already analyzed"})
		return
	}

	if err := SpendCredit(ctx, claims.Subject); err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient credits"})
			return
		}
		log.Printf("spend credit failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to reserve credit"})
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		refundCredit(ctx, claims.Subject)
		log.Printf("analyze config load failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load config"})
		return
	}

	rec, err := runAnalysis(ctx, cfg, claims.Subject, req.VideoURL, videoID)
	if err != nil {
		refundCredit(ctx, claims.Subject)
		status := http.StatusBadGateway
		if errors.Is(err, errVideoNotFound) {
			status = http.StatusNotFound
		}
		log.Printf("analysis failed user=%s video=%s err=%v", claims.Subject, videoID, err)
		c.JSON(status, gin.H{"error": "failed to analyze video"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"search": rec})
}

// runAnalysis is the shared pipeline behind both the synchronous endpoint and
// the queue worker. The caller has already spent the credit.
func runAnalysis(ctx context.Context, cfg *config.Config, userID, videoURL, videoID string) (models.SearchRecord, error) {
	svc, err := newYouTubeService(ctx, cfg)
	if err != nil {
		return models.SearchRecord{}, err
	}

	details, err := fetchVideoDetails(ctx, svc, videoID)
	if err != nil {
		return models.SearchRecord{}, err
	}

	comments, err := fetchComments(ctx, svc, cfg, videoID)
	if err != nil {
		return models.SearchRecord{}, err
	}
	if len(comments) == 0 {
		return models.SearchRecord{}, errors.New("video has no comments to analyze")
	}

	insights, err := analyzeComments(ctx, cfg, comments)
	if err != nil {
		return models.SearchRecord{}, err
	}

	rec := models.SearchRecord{
		UserID:          userID,
		VideoID:         videoID,
		VideoURL:        videoURL,
		VideoTitle:      details.Title,
		ThumbnailURL:    details.ThumbnailURL,
		PainPoints:      insights.PainPoints,
		DiscussedTopics: insights.DiscussedTopics,
	}
	if err := insertSearch(ctx, &rec); err != nil {
		return models.SearchRecord{}, err
	}
	return rec, nil
}

// GetSearch returns one search record, scoped to its owner.
func GetSearch(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	searchID := c.Param("searchid")
	if searchID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing search id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	rec, err := getSearch(ctx, claims.Subject, searchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "search not found"})
			return
		}
		log.Printf("get search failed user=%s id=%s err=%v", claims.Subject, searchID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch search"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"search": rec})
}

// ListSearches returns one page of the user's search history.
func ListSearches(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	page := 1
	if q := c.Query("page"); q != "" {
		if v, err := parsePositiveInt(q); err == nil && v > 0 {
			page = v
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	searches, totalPages, err := listSearches(ctx, claims.Subject, page)
	if err != nil {
		log.Printf("list searches failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch searches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"previousSearches": searches,
		"totalPages":       totalPages,
		"currentPage":      page,
	})
}
