package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Manager owns the queue and the periodic full sync
type Manager struct {
	queue        *Queue
	syncInterval time.Duration
	syncTicker   *time.Ticker
	stopCh       chan struct{}
	wg           sync.WaitGroup
	mu           sync.Mutex
	running      bool
}

// NewManager creates a manager. A zero syncInterval disables the
// periodic sync_all job.
func NewManager(queue *Queue, syncInterval time.Duration) *Manager {
	return &Manager{queue: queue, syncInterval: syncInterval}
}

// GetQueue returns the managed job queue
func (m *Manager) GetQueue() *Queue {
	return m.queue
}

// Start starts the job queue and background tasks
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return
	}

	// fresh channel per start cycle so the manager can be restarted
	m.stopCh = make(chan struct{})
	m.running = true
	log.Info("[JobQueue Manager] Starting job queue and background tasks")

	m.queue.Start()

	if m.syncInterval > 0 {
		m.syncTicker = time.NewTicker(m.syncInterval)
		m.wg.Add(1)
		go m.syncWorker()
	}

	log.Info("[JobQueue Manager] Started successfully")
}

// Stop stops the job queue and background tasks
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	log.Info("[JobQueue Manager] Stopping job queue and background tasks...")
	if m.syncTicker != nil {
		m.syncTicker.Stop()
	}

	close(m.stopCh)
	m.stopCh = nil
	m.running = false
	m.wg.Wait()

	m.queue.Stop()
	log.Info("[JobQueue Manager] Stopped successfully")
}

// syncWorker enqueues a full sync on every tick
func (m *Manager) syncWorker() {
	defer m.wg.Done()
	log.Infof("[JobQueue Manager] Started sync worker (interval: %s)", m.syncInterval)

	stopCh := m.stopCh
	for {
		select {
		case <-stopCh:
			log.Info("[JobQueue Manager] Sync worker stopping")
			return
		case <-m.syncTicker.C:
			if _, err := m.EnqueueSyncAll(context.Background(), false); err != nil {
				log.Errorf("[JobQueue Manager] Error enqueueing periodic sync: %v", err)
			}
		}
	}
}

// EnqueueSyncAll schedules a sync of every variant directory
func (m *Manager) EnqueueSyncAll(ctx context.Context, rebuild bool) (*Job, error) {
	return m.queue.EnqueueJob(ctx, JobTypeSyncAll, SyncAllJobPayload{Rebuild: rebuild}.ToMap())
}

// EnqueueSyncDirectory schedules a sync of one variant directory
func (m *Manager) EnqueueSyncDirectory(ctx context.Context, key string, rebuild bool) (*Job, error) {
	return m.queue.EnqueueJob(ctx, JobTypeSyncDirectory, SyncDirectoryJobPayload{VariantKey: key, Rebuild: rebuild}.ToMap())
}

// EnqueueRebuild schedules a variant rebuild
func (m *Manager) EnqueueRebuild(ctx context.Context, from, to string) (*Job, error) {
	return m.queue.EnqueueJob(ctx, JobTypeRebuildVariant, RebuildVariantJobPayload{From: from, To: to}.ToMap())
}

// EnqueueBackupDelete schedules removal of backups of every variant of
// filename
func (m *Manager) EnqueueBackupDelete(ctx context.Context, filename string, keys []string) error {
	for _, key := range keys {
		payload := BackupJobPayload{VariantKey: key, Filename: filename}
		if _, err := m.queue.EnqueueJob(ctx, JobTypeBackupDelete, payload.ToMap()); err != nil {
			return err
		}
	}
	return nil
}

// EnqueueBackup schedules an upload of one variant file
func (m *Manager) EnqueueBackup(ctx context.Context, key, filename string) error {
	payload := BackupJobPayload{VariantKey: key, Filename: filename}
	_, err := m.queue.EnqueueJob(ctx, JobTypeBackupUpload, payload.ToMap())
	return err
}

// GetJob returns the stored state of a job
func (m *Manager) GetJob(ctx context.Context, id string) (*Job, error) {
	return m.queue.GetJob(ctx, id)
}

// IsRunning returns whether the manager is currently running
func (m *Manager) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
