// Optional queue-backed analysis path. A job row tracks one queued analysis;
// an SQS message carries it to the worker.

package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/NemoPS/youtube-comments-analyzer/app/config"
	"github.com/NemoPS/youtube-comments-analyzer/app/models"
	"github.com/NemoPS/youtube-comments-analyzer/auth"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/gin-gonic/gin"
)

const (
	jobQueued    = "queued"
	jobRunning   = "running"
	jobCompleted = "completed"
	jobFailed    = "failed"
)

func createAnalysisJob(ctx context.Context, userID, videoURL string) (string, error) {
	if db == nil {
		return "", errors.New("db not initialized")
	}

	const q = `
		INSERT INTO analysis_jobs (user_id, video_url, status)
		VALUES ($1, $2, $3)
		RETURNING id;
	`
	var jobID string
	if err := db.QueryRowContext(ctx, q, userID, videoURL, jobQueued).Scan(&jobID); err != nil {
		return "", err
	}
	log.Printf("Created analysis job %s for user=%s", jobID, userID)
	return jobID, nil
}

func markJobRunning(ctx context.Context, jobID string) error {
	if db == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = $1, updated_at = now()
		WHERE id = $2;
	`, jobRunning, jobID)
	return err
}

func markJobCompleted(ctx context.Context, jobID, searchID string) error {
	if db == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = $1, search_id = $2, updated_at = now()
		WHERE id = $3;
	`, jobCompleted, searchID, jobID)
	return err
}

func markJobFailed(ctx context.Context, jobID string, cause error) error {
	if db == nil {
		return nil
	}
	_, err := db.ExecContext(ctx, `
		UPDATE analysis_jobs
		SET status = $1, error = $2, updated_at = now()
		WHERE id = $3;
	`, jobFailed, cause.Error(), jobID)
	return err
}

// findJobStatus fetches status and outcome for a job id, owner-scoped.
func findJobStatus(ctx context.Context, userID, jobID string) (models.JobStatus, error) {
	if db == nil {
		return models.JobStatus{}, sql.ErrNoRows
	}

	var (
		js       models.JobStatus
		searchID sql.NullString
		jobErr   sql.NullString
	)

	const q = `
		SELECT id, status, search_id, error
		FROM analysis_jobs
		WHERE id = $1 AND user_id = $2;
	`

	row := db.QueryRowContext(ctx, q, jobID, userID)
	if err := row.Scan(&js.ID, &js.Status, &searchID, &jobErr); err != nil {
		return models.JobStatus{}, err
	}
	js.SearchID = searchID.String
	js.Error = jobErr.String
	return js, nil
}

// EnqueueAnalysis spends a credit and queues the analysis for the worker.
// Only routed when QUEUE_URL is configured.
func EnqueueAnalysis(c *gin.Context) {
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

	cfg, err := config.LoadConfig()
	if err != nil || cfg.QueueURL == "" {
		log.Printf("enqueue requested without queue config err=%v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "queue not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
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

	jobID, err := createAnalysisJob(ctx, claims.Subject, req.VideoURL)
	if err != nil {
		refundCredit(ctx, claims.Subject)
		log.Printf("create job failed user=%s err=%v", claims.Subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	if err := enqueueJobMessage(ctx, cfg.QueueURL, models.JobMessage{
		JobID:    jobID,
		UserID:   claims.Subject,
		VideoURL: req.VideoURL,
	}); err != nil {
		refundCredit(ctx, claims.Subject)
		if markErr := markJobFailed(ctx, jobID, err); markErr != nil {
			log.Printf("mark job failed errored job=%s err=%v", jobID, markErr)
		}
		log.Printf("enqueue failed job=%s err=%v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

func enqueueJobMessage(ctx context.Context, queueURL string, msg models.JobMessage) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = sqsClient.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &queueURL,
		MessageBody: aws.String(string(body)),
	})
	return err
}

// GetJobStatus returns status and outcome for an async analysis job.
func GetJobStatus(c *gin.Context) {
	claims, ok := auth.ClaimsFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing auth context"})
		return
	}

	jobID := c.Param("jobid")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing job id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := findJobStatus(ctx, claims.Subject, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Printf("job status lookup failed job=%s err=%v", jobID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch job"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"job": status})
}

// ProcessAnalysisJob runs one queued analysis on the worker. The credit was
// spent at enqueue time; a permanent failure hands it back.
func ProcessAnalysisJob(ctx context.Context, cfg *config.Config, job models.JobMessage) error {
	videoID, err := ParseVideoID(job.VideoURL)
	if err != nil {
		// Bad payload; refund and fail terminally rather than retry.
		refundCredit(ctx, job.UserID)
		if markErr := markJobFailed(ctx, job.JobID, err); markErr != nil {
			log.Printf("mark job failed errored job=%s err=%v", job.JobID, markErr)
		}
		return nil
	}

	if err := markJobRunning(ctx, job.JobID); err != nil {
		return err
	}

	rec, err := runAnalysis(ctx, cfg, job.UserID, job.VideoURL, videoID)
	if err != nil {
		// Terminal failure: refund once and record it. Returning nil lets the
		// worker delete the message, so an SQS redelivery cannot refund twice.
		log.Printf("analysis job failed job=%s user=%s err=%v", job.JobID, job.UserID, err)
		refundCredit(ctx, job.UserID)
		if markErr := markJobFailed(ctx, job.JobID, err); markErr != nil {
			log.Printf("mark job failed errored job=%s err=%v", job.JobID, markErr)
		}
		return nil
	}

	return markJobCompleted(ctx, job.JobID, rec.ID)
}
