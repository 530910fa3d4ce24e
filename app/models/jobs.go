package models

// JobStatus summarizes an async analysis job.
type JobStatus struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	SearchID string `json:"search_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// JobMessage is the SQS payload for one queued analysis.
type JobMessage struct {
	JobID    string `json:"job_id"`
	UserID   string `json:"user_id"`
	VideoURL string `json:"video_url"`
}
