package jobqueue

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/productimages/internal/pkg/imagesync"
	"github.com/ManuelReschke/productimages/internal/pkg/variants"
)

// Engine is the part of the sync engine the workers drive.
type Engine interface {
	SyncDirectory(ctx context.Context, key string, rebuild bool) (*imagesync.SyncResult, error)
	SyncAll(ctx context.Context, rebuild bool) []*imagesync.SyncResult
	RebuildVariant(ctx context.Context, from, to string, opts imagesync.RebuildOptions) (*imagesync.RebuildResult, error)
}

// Backup stores copies of variant files off the host.
type Backup interface {
	Upload(ctx context.Context, variantKey, filename, localPath string) error
	Delete(ctx context.Context, variantKey, filename string) error
}

// Enqueuer is how the processor schedules follow-up jobs.
type Enqueuer interface {
	EnqueueJob(ctx context.Context, jobType JobType, payload map[string]interface{}) (*Job, error)
}

// JobProcessor runs sync, rebuild and backup jobs.
type JobProcessor struct {
	engine  Engine
	backup  Backup
	cfg     *variants.Config
	enqueue Enqueuer
}

// NewJobProcessor creates a processor. backup and enqueue may be nil, in
// which case no backup jobs are run or scheduled.
func NewJobProcessor(engine Engine, cfg *variants.Config, backup Backup, enqueue Enqueuer) *JobProcessor {
	return &JobProcessor{engine: engine, backup: backup, cfg: cfg, enqueue: enqueue}
}

var _ Processor = (*JobProcessor)(nil)

// Process dispatches job by type
func (p *JobProcessor) Process(ctx context.Context, job *Job) error {
	switch job.Type {
	case JobTypeSyncDirectory:
		payload, err := PayloadFromMap[SyncDirectoryJobPayload](job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		res, err := p.engine.SyncDirectory(ctx, payload.VariantKey, payload.Rebuild)
		if err != nil {
			return err
		}
		p.scheduleBackups(ctx, res)
		return nil

	case JobTypeSyncAll:
		payload, err := PayloadFromMap[SyncAllJobPayload](job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		failed := 0
		for _, res := range p.engine.SyncAll(ctx, payload.Rebuild) {
			if res.Error != "" {
				failed++
				continue
			}
			p.scheduleBackups(ctx, res)
		}
		if failed > 0 {
			return fmt.Errorf("%d variant directories failed to sync", failed)
		}
		return nil

	case JobTypeRebuildVariant:
		payload, err := PayloadFromMap[RebuildVariantJobPayload](job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		res, err := p.engine.RebuildVariant(ctx, payload.From, payload.To, imagesync.RebuildOptions{})
		if err != nil {
			return err
		}
		for _, img := range res.Images {
			p.scheduleBackup(ctx, res.To, img.Filename)
		}
		return nil

	case JobTypeBackupUpload:
		payload, err := PayloadFromMap[BackupJobPayload](job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		return p.runBackup(ctx, payload)

	case JobTypeBackupDelete:
		payload, err := PayloadFromMap[BackupJobPayload](job.Payload)
		if err != nil {
			return fmt.Errorf("invalid payload: %w", err)
		}
		if p.backup == nil {
			return fmt.Errorf("backup is not configured")
		}
		return p.backup.Delete(ctx, payload.VariantKey, payload.Filename)
	}
	return fmt.Errorf("unknown job type: %s", job.Type)
}

func (p *JobProcessor) runBackup(ctx context.Context, payload *BackupJobPayload) error {
	if p.backup == nil {
		return fmt.Errorf("backup is not configured")
	}
	key, err := p.cfg.Normalize(payload.VariantKey)
	if err != nil {
		return err
	}
	path, err := p.cfg.Resolve(key, payload.Filename)
	if err != nil {
		return err
	}
	return p.backup.Upload(ctx, key, payload.Filename, path)
}

func (p *JobProcessor) scheduleBackups(ctx context.Context, res *imagesync.SyncResult) {
	if res == nil {
		return
	}
	for _, added := range res.Added {
		p.scheduleBackup(ctx, res.Key, added.Filename)
	}
	for _, removed := range res.Removed {
		p.scheduleDelete(ctx, res.Key, removed.Filename)
	}
}

func (p *JobProcessor) scheduleBackup(ctx context.Context, key, filename string) {
	if p.backup == nil || p.enqueue == nil {
		return
	}
	payload := BackupJobPayload{VariantKey: key, Filename: filename}
	if _, err := p.enqueue.EnqueueJob(ctx, JobTypeBackupUpload, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to schedule backup of %s/%s: %v", key, filename, err)
	}
}

func (p *JobProcessor) scheduleDelete(ctx context.Context, key, filename string) {
	if p.backup == nil || p.enqueue == nil {
		return
	}
	payload := BackupJobPayload{VariantKey: key, Filename: filename}
	if _, err := p.enqueue.EnqueueJob(ctx, JobTypeBackupDelete, payload.ToMap()); err != nil {
		log.Errorf("[JobQueue] Failed to schedule backup removal of %s/%s: %v", key, filename, err)
	}
}
