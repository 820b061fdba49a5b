package jobqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	JobKeyPrefix     = "productimages:job:"
	JobQueueKey      = "productimages:job_queue"
	JobProcessingKey = "productimages:job_processing"
	JobDelayedKey    = "productimages:job_delayed"
	JobStatsKey      = "productimages:job_stats"

	DefaultMaxRetries = 3
	DefaultWorkers    = 3
	JobTTL            = 24 * time.Hour

	popTimeout = time.Second
)

// ErrJobNotFound is returned for unknown or expired job ids.
var ErrJobNotFound = errors.New("job not found")

// Processor executes one job. A returned error triggers a retry.
type Processor interface {
	Process(ctx context.Context, job *Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job *Job) error

func (f ProcessorFunc) Process(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

// Queue is a redis backed job list with a fixed number of workers.
// Pending ids live in JobQueueKey, claimed ids in JobProcessingKey and
// ids waiting for a retry in the JobDelayedKey sorted set.
type Queue struct {
	client    *redis.Client
	processor Processor
	workers   int

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	retryDelay time.Duration
	stuckAge   time.Duration
	sweepEvery time.Duration
}

// NewQueue creates a queue. workers <= 0 selects DefaultWorkers.
func NewQueue(client *redis.Client, workers int) *Queue {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Queue{
		client:     client,
		workers:    workers,
		retryDelay: time.Minute,
		stuckAge:   30 * time.Minute,
		sweepEvery: time.Minute,
	}
}

// SetProcessor sets the processor used by the workers. Must be called
// before Start.
func (q *Queue) SetProcessor(p Processor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.processor = p
}

// Start launches the workers and the sweeper
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel != nil {
		return
	}
	if q.processor == nil {
		log.Error("[JobQueue] No processor configured, not starting")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	log.Infof("[JobQueue] Starting %d workers", q.workers)

	q.wg.Add(q.workers + 1)
	for i := 0; i < q.workers; i++ {
		go q.worker(ctx, i)
	}
	go q.sweeper(ctx)
}

// Stop cancels the workers and waits for running jobs
func (q *Queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.cancel == nil {
		return
	}
	log.Info("[JobQueue] Stopping workers...")
	q.cancel()
	q.cancel = nil
	q.wg.Wait()
	log.Info("[JobQueue] All workers stopped")
}

// IsRunning reports whether workers are active
func (q *Queue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.cancel != nil
}

func (q *Queue) worker(ctx context.Context, id int) {
	defer q.wg.Done()
	log.Debugf("[JobQueue] Worker %d started", id)

	for ctx.Err() == nil {
		job, err := q.dequeueJob(ctx)
		switch {
		case err == nil:
		case errors.Is(err, redis.Nil), ctx.Err() != nil:
			continue
		default:
			log.Errorf("[JobQueue] Worker %d: %v", id, err)
			sleep(ctx, time.Second)
			continue
		}

		log.Infof("[JobQueue] Worker %d processing job %s (Type: %s)", id, job.ID, job.Type)
		// a job in flight finishes even when the queue is stopped
		q.processJob(context.WithoutCancel(ctx), job)
	}
	log.Debugf("[JobQueue] Worker %d stopping", id)
}

func (q *Queue) sweeper(ctx context.Context) {
	defer q.wg.Done()
	ticker := time.NewTicker(q.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.sweepOnce(ctx, q.stuckAge)
		}
	}
}

// sweepOnce requeues due retries and jobs claimed longer than maxAge ago.
// A claimed job without data is dropped.
func (q *Queue) sweepOnce(ctx context.Context, maxAge time.Duration) {
	q.promoteDue(ctx, time.Now())

	ids, err := q.client.LRange(ctx, JobProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[JobQueue] Sweeper: %v", err)
		return
	}
	for _, id := range ids {
		job, err := q.GetJob(ctx, id)
		if err != nil || job.Status != JobStatusProcessing {
			q.removeFromProcessing(ctx, id)
			continue
		}
		started := job.UpdatedAt
		if job.ProcessedAt != nil {
			started = *job.ProcessedAt
		}
		if age := time.Since(started); age > maxAge {
			log.Warnf("[JobQueue] Recovering stuck job %s (type=%s), age=%s", job.ID, job.Type, age)
			job.ErrorMsg = "recovered by sweeper"
			if err := q.requeueJob(ctx, job); err != nil {
				log.Errorf("[JobQueue] Failed to recover job %s: %v", job.ID, err)
			}
		}
	}
}

// promoteDue moves retries whose delay has passed back to the pending list
func (q *Queue) promoteDue(ctx context.Context, now time.Time) {
	ids, err := q.client.ZRangeByScore(ctx, JobDelayedKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		log.Errorf("[JobQueue] Failed to read delayed jobs: %v", err)
		return
	}
	for _, id := range ids {
		// ZRem wins for exactly one sweeper when several instances run
		removed, err := q.client.ZRem(ctx, JobDelayedKey, id).Result()
		if err != nil || removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, JobQueueKey, id).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to requeue job %s: %v", id, err)
		}
	}
}

// EnqueueJob stores a new pending job
func (q *Queue) EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error) {
	now := time.Now()
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     JobStatusPending,
		Payload:    payload,
		CreatedAt:  now,
		UpdatedAt:  now,
		MaxRetries: DefaultMaxRetries,
	}
	data, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal job: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, jobKey(job.ID), data, JobTTL)
		pipe.LPush(ctx, JobQueueKey, job.ID)
		pipe.HIncrBy(ctx, JobStatsKey, string(JobStatusPending), 1)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue job: %w", err)
	}

	log.Infof("[JobQueue] Enqueued job %s (Type: %s)", job.ID, job.Type)
	return job, nil
}

// dequeueJob claims the oldest pending job
func (q *Queue) dequeueJob(ctx context.Context) (*Job, error) {
	id, err := q.client.BRPopLPush(ctx, JobQueueKey, JobProcessingKey, popTimeout).Result()
	if err != nil {
		return nil, err
	}
	job, err := q.GetJob(ctx, id)
	if err != nil {
		q.removeFromProcessing(ctx, id)
		return nil, fmt.Errorf("claimed job %s has no data: %w", id, err)
	}
	return job, nil
}

func (q *Queue) processJob(ctx context.Context, job *Job) {
	job.MarkAsProcessing()
	q.updateJob(ctx, job)

	q.finish(ctx, job, q.processor.Process(ctx, job))
	q.removeFromProcessing(ctx, job.ID)
}

// finish records the outcome of one attempt
func (q *Queue) finish(ctx context.Context, job *Job, err error) {
	if err == nil {
		log.Infof("[JobQueue] Job %s completed successfully", job.ID)
		job.MarkAsCompleted()
		q.incrStats(ctx, JobStatusCompleted)
		if err := q.client.Del(ctx, jobKey(job.ID)).Err(); err != nil {
			log.Errorf("[JobQueue] Failed to remove completed job %s: %v", job.ID, err)
		}
		return
	}

	log.Errorf("[JobQueue] Job %s failed: %v", job.ID, err)
	job.MarkAsFailed(err.Error())
	if !job.IsRetryable() {
		log.Errorf("[JobQueue] Job %s permanently failed after %d retries", job.ID, job.RetryCount)
		q.updateJob(ctx, job)
		q.incrStats(ctx, JobStatusFailed)
		return
	}

	due := time.Now().Add(q.retryDelay * time.Duration(job.RetryCount))
	log.Infof("[JobQueue] Retrying job %s at %s (Attempt %d/%d)", job.ID, due.Format(time.RFC3339), job.RetryCount, job.MaxRetries)
	job.MarkAsRetrying()
	q.updateJob(ctx, job)
	if err := q.client.ZAdd(ctx, JobDelayedKey, redis.Z{Score: float64(due.Unix()), Member: job.ID}).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to schedule retry of %s: %v", job.ID, err)
	}
}

func (q *Queue) updateJob(ctx context.Context, job *Job) {
	data, err := json.Marshal(job)
	if err != nil {
		log.Errorf("[JobQueue] Failed to marshal job %s: %v", job.ID, err)
		return
	}
	if err := q.client.Set(ctx, jobKey(job.ID), data, JobTTL).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job %s: %v", job.ID, err)
	}
}

func (q *Queue) requeueJob(ctx context.Context, job *Job) error {
	job.Status = JobStatusPending
	job.UpdatedAt = time.Now()
	q.updateJob(ctx, job)
	q.removeFromProcessing(ctx, job.ID)
	return q.client.RPush(ctx, JobQueueKey, job.ID).Err()
}

func (q *Queue) removeFromProcessing(ctx context.Context, id string) {
	if err := q.client.LRem(ctx, JobProcessingKey, 1, id).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to release job %s: %v", id, err)
	}
}

func (q *Queue) incrStats(ctx context.Context, status JobStatus) {
	if err := q.client.HIncrBy(ctx, JobStatsKey, string(status), 1).Err(); err != nil {
		log.Errorf("[JobQueue] Failed to update job stats: %v", err)
	}
}

// GetJob loads a job by id
func (q *Queue) GetJob(ctx context.Context, id string) (*Job, error) {
	data, err := q.client.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job %s: %w", id, err)
	}
	return &job, nil
}

// GetJobStats returns the counters per status
func (q *Queue) GetJobStats(ctx context.Context) (map[JobStatus]int64, error) {
	raw, err := q.client.HGetAll(ctx, JobStatsKey).Result()
	if err != nil {
		return nil, err
	}
	stats := make(map[JobStatus]int64, len(raw))
	for status, v := range raw {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			stats[JobStatus(status)] = n
		}
	}
	return stats, nil
}

// GetQueueSize returns the number of pending jobs
func (q *Queue) GetQueueSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobQueueKey).Result()
}

// GetProcessingSize returns the number of claimed jobs
func (q *Queue) GetProcessingSize(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, JobProcessingKey).Result()
}

// GetDelayedSize returns the number of jobs waiting for a retry
func (q *Queue) GetDelayedSize(ctx context.Context) (int64, error) {
	return q.client.ZCard(ctx, JobDelayedKey).Result()
}

func jobKey(id string) string {
	return JobKeyPrefix + id
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
