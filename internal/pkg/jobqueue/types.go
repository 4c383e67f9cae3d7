package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeVideoPoll    JobType = "video_poll"
	JobTypeAssetArchive JobType = "asset_archive"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// VideoPollJobPayload tracks one video workflow request between polls.
type VideoPollJobPayload struct {
	RequestID            string `json:"request_id"`
	UserID               uint   `json:"user_id"`
	Attempt              int    `json:"attempt"`
	Prompt               string `json:"prompt,omitempty"`
	CharacterOrientation string `json:"character_orientation"`
	ImageURL             string `json:"image_url"`
	VideoURL             string `json:"video_url"`
}

// ToMap converts the payload to a map for storage
func (p VideoPollJobPayload) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"request_id":            p.RequestID,
		"user_id":               p.UserID,
		"attempt":               p.Attempt,
		"character_orientation": p.CharacterOrientation,
		"image_url":             p.ImageURL,
		"video_url":             p.VideoURL,
	}
	if p.Prompt != "" {
		m["prompt"] = p.Prompt
	}
	return m
}

func VideoPollJobPayloadFromMap(data map[string]interface{}) (*VideoPollJobPayload, error) {
	var payload VideoPollJobPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// AssetArchiveJobPayload names the avatar generation whose images are copied to S3.
type AssetArchiveJobPayload struct {
	GenerationID   uint   `json:"generation_id"`
	GenerationUUID string `json:"generation_uuid"`
}

// ToMap converts the payload to a map for storage
func (p AssetArchiveJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"generation_id":   p.GenerationID,
		"generation_uuid": p.GenerationUUID,
	}
}

func AssetArchiveJobPayloadFromMap(data map[string]interface{}) (*AssetArchiveJobPayload, error) {
	var payload AssetArchiveJobPayload
	if err := decodePayload(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// decodePayload round-trips through JSON; payload maps come back from Redis
// with float64 numbers.
func decodePayload(data map[string]interface{}, out interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonData, out)
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
