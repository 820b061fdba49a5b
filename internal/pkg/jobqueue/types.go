package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType names the work a job carries
type JobType string

const (
	JobTypeSyncDirectory  JobType = "sync_directory"
	JobTypeSyncAll        JobType = "sync_all"
	JobTypeRebuildVariant JobType = "rebuild_variant"
	JobTypeBackupUpload   JobType = "backup_upload"
	JobTypeBackupDelete   JobType = "backup_delete"
)

// JobStatus is where a job is in its lifecycle
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job is the unit stored in redis and handed to the processor
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

// SyncDirectoryJobPayload reconciles one variant directory
type SyncDirectoryJobPayload struct {
	VariantKey string `json:"variant_key"`
	Rebuild    bool   `json:"rebuild"`
}

func (p SyncDirectoryJobPayload) ToMap() map[string]interface{} { return asMap(p) }

// SyncAllJobPayload reconciles every variant directory
type SyncAllJobPayload struct {
	Rebuild bool `json:"rebuild"`
}

func (p SyncAllJobPayload) ToMap() map[string]interface{} { return asMap(p) }

// RebuildVariantJobPayload generates the To variant from the From variant
type RebuildVariantJobPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (p RebuildVariantJobPayload) ToMap() map[string]interface{} { return asMap(p) }

// BackupJobPayload names one variant file for the upload and delete jobs
type BackupJobPayload struct {
	VariantKey string `json:"variant_key"`
	Filename   string `json:"filename"`
}

func (p BackupJobPayload) ToMap() map[string]interface{} { return asMap(p) }

// asMap turns a payload struct into the generic form stored on the job.
// Payloads only hold strings and bools, so the round trip keeps types.
func asMap(payload interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	data, err := json.Marshal(payload)
	if err != nil {
		return out
	}
	_ = json.Unmarshal(data, &out)
	return out
}

// PayloadFromMap decodes a stored payload into T
func PayloadFromMap[T any](data map[string]interface{}) (*T, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var payload T
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsRetryable reports whether a failed job has attempts left
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

func (j *Job) touch(status JobStatus) time.Time {
	now := time.Now()
	j.Status = status
	j.UpdatedAt = now
	return now
}

func (j *Job) MarkAsProcessing() {
	now := j.touch(JobStatusProcessing)
	j.ProcessedAt = &now
}

func (j *Job) MarkAsCompleted() {
	now := j.touch(JobStatusCompleted)
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed records the error and counts the attempt
func (j *Job) MarkAsFailed(errorMsg string) {
	j.touch(JobStatusFailed)
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

func (j *Job) MarkAsRetrying() {
	j.touch(JobStatusRetrying)
}
