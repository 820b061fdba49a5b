package jobqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJob_IsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		job       *Job
		retryable bool
	}{
		{"Failed job with retries remaining", &Job{Status: JobStatusFailed, RetryCount: 1, MaxRetries: 3}, true},
		{"Failed job with no retries remaining", &Job{Status: JobStatusFailed, RetryCount: 3, MaxRetries: 3}, false},
		{"Completed job", &Job{Status: JobStatusCompleted, RetryCount: 1, MaxRetries: 3}, false},
		{"Pending job", &Job{Status: JobStatusPending, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, tt.job.IsRetryable())
		})
	}
}

func TestJob_Lifecycle(t *testing.T) {
	job := &Job{Status: JobStatusPending, MaxRetries: 2}

	job.MarkAsProcessing()
	assert.Equal(t, JobStatusProcessing, job.Status)
	require.NotNil(t, job.ProcessedAt)

	job.MarkAsFailed("boom")
	assert.Equal(t, JobStatusFailed, job.Status)
	assert.Equal(t, "boom", job.ErrorMsg)
	assert.Equal(t, 1, job.RetryCount)
	assert.True(t, job.IsRetryable())

	job.MarkAsRetrying()
	assert.Equal(t, JobStatusRetrying, job.Status)

	job.MarkAsCompleted()
	assert.Equal(t, JobStatusCompleted, job.Status)
	assert.Empty(t, job.ErrorMsg)
	require.NotNil(t, job.CompletedAt)
}

func TestPayloadFromMap(t *testing.T) {
	// payloads survive the float64 round trip through JSON
	raw := map[string]interface{}{"variant_key": "250", "rebuild": true}
	sync, err := PayloadFromMap[SyncDirectoryJobPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, SyncDirectoryJobPayload{VariantKey: "250", Rebuild: true}, *sync)

	backup, err := PayloadFromMap[BackupJobPayload](BackupJobPayload{VariantKey: "originals", Filename: "a.jpg"}.ToMap())
	require.NoError(t, err)
	assert.Equal(t, "a.jpg", backup.Filename)

	_, err = PayloadFromMap[RebuildVariantJobPayload](map[string]interface{}{"from": 12})
	assert.Error(t, err)
}
