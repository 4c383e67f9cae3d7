package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewQueue tests the queue constructor
func TestNewQueue(t *testing.T) {
	tests := []struct {
		name            string
		workers         int
		expectedWorkers int
	}{
		{"Valid worker count", 5, 5},
		{"Zero workers", 0, 3},
		{"Negative workers", -1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			queue := NewQueue(tt.workers)

			assert.NotNil(t, queue)
			assert.Equal(t, tt.expectedWorkers, queue.workers)
			assert.NotNil(t, queue.workerPool)
			assert.Equal(t, tt.expectedWorkers, cap(queue.workerPool))
			assert.NotNil(t, queue.stopCh)
			assert.False(t, queue.running)
		})
	}
}

func TestConstants(t *testing.T) {
	// Test Redis key constants
	assert.Equal(t, "job:", JobKeyPrefix)
	assert.Equal(t, "job_queue", JobQueueKey)
	assert.Equal(t, "job_processing", JobProcessingKey)
	assert.Equal(t, "job_stats", JobStatsKey)
	assert.Equal(t, "job_delayed", JobDelayedKey)

	// Test job settings constants
	assert.Equal(t, 3, DefaultMaxRetries)
	assert.Equal(t, 24*time.Hour, JobTTL)
}

func TestQueue_DispatchUsesRegisteredHandler(t *testing.T) {
	q := NewQueueWithClient(nil, 1)

	var seen *Job
	q.RegisterHandler(JobTypeVideoPoll, func(ctx context.Context, job *Job) error {
		seen = job
		return nil
	})

	job := &Job{ID: "job-1", Type: JobTypeVideoPoll}
	require.NoError(t, q.dispatch(context.Background(), job))
	assert.Same(t, job, seen)
}

func TestQueue_DispatchPropagatesHandlerError(t *testing.T) {
	q := NewQueueWithClient(nil, 1)
	boom := errors.New("boom")
	q.RegisterHandler(JobTypeAssetArchive, func(ctx context.Context, job *Job) error { return boom })

	err := q.dispatch(context.Background(), &Job{ID: "job-2", Type: JobTypeAssetArchive})
	assert.ErrorIs(t, err, boom)
}

func TestQueue_DispatchUnknownType(t *testing.T) {
	q := NewQueueWithClient(nil, 1)

	err := q.dispatch(context.Background(), &Job{ID: "job-3", Type: JobType("resize")})
	assert.ErrorIs(t, err, ErrUnknownJobType)
}

func TestVideoPollPayloadSurvivesJobStorage(t *testing.T) {
	payload := VideoPollJobPayload{
		RequestID:            "req-42",
		UserID:               7,
		Attempt:              3,
		CharacterOrientation: "video",
		ImageURL:             "https://cdn.example.com/a.png",
		VideoURL:             "https://cdn.example.com/b.mp4",
	}

	// Jobs are stored as JSON, so numbers come back as float64.
	raw, err := json.Marshal(Job{Payload: payload.ToMap()})
	require.NoError(t, err)
	var stored Job
	require.NoError(t, json.Unmarshal(raw, &stored))

	got, err := VideoPollJobPayloadFromMap(stored.Payload)
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
	_, hasPrompt := stored.Payload["prompt"]
	assert.False(t, hasPrompt)
}

func TestQueue_DelayedJobsArePromotedWhenDue(t *testing.T) {
	client := newIsolatedRedisClient(t, isolatedJobQueueTestRedisDB)
	q := NewQueueWithClient(client, 1)
	ctx := context.Background()

	job, err := q.EnqueueJobAfter(ctx, JobTypeVideoPoll, VideoPollJobPayload{RequestID: "req-1", Attempt: 1}.ToMap(), time.Minute)
	require.NoError(t, err)

	pending, err := q.GetQueueSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pending)
	delayed, err := q.GetDelayedSize(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), delayed)

	moved, err := q.promoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, moved)

	moved, err = q.promoteDue(ctx, time.Now().Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	ids, err := client.LRange(ctx, JobQueueKey, 0, -1).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{job.ID}, ids)

	stored, err := q.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobTypeVideoPoll, stored.Type)
	assert.Equal(t, JobStatusPending, stored.Status)
}
