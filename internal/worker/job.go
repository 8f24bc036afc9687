package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ayo6706/liquidity-settlement/internal/lock"
	"github.com/ayo6706/liquidity-settlement/internal/observability"
	"go.uber.org/zap"
)

// ErrLocked is returned by RunOnce when another holder owns the job's lock.
var ErrLocked = errors.New("job lock held elsewhere")

const defaultLockTTL = 5 * time.Minute

// Job runs a task on a fixed interval. Each run takes the job's advisory lock
// first, so only one instance across processes works at a time. The lock
// expires after its TTL, so a crashed holder only delays the job.
type Job struct {
	name     string
	interval time.Duration
	lockTTL  time.Duration
	locker   lock.Locker
	task     func(ctx context.Context) error
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewJob creates a job named name. The name doubles as the lock key.
func NewJob(name string, interval time.Duration, locker lock.Locker, task func(ctx context.Context) error) *Job {
	return &Job{
		name:     name,
		interval: interval,
		lockTTL:  defaultLockTTL,
		locker:   locker,
		task:     task,
		stopCh:   make(chan struct{}),
	}
}

// WithLockTTL sets how long a run may hold the lock.
func (j *Job) WithLockTTL(ttl time.Duration) *Job {
	if ttl > 0 {
		j.lockTTL = ttl
	}
	return j
}

// Start blocks and runs the task every interval until Stop is called or the
// context is canceled.
func (j *Job) Start(ctx context.Context) {
	zap.L().Info("worker starting", zap.String("worker", j.name), zap.Duration("interval", j.interval))
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("worker context canceled", zap.String("worker", j.name))
			return
		case <-j.stopCh:
			zap.L().Info("worker stop signal received", zap.String("worker", j.name))
			return
		case <-ticker.C:
			if err := j.RunOnce(ctx); err != nil && !errors.Is(err, ErrLocked) {
				zap.L().Error("worker run failed", zap.String("worker", j.name), zap.Error(err))
			}
		}
	}
}

// Stop stops the running loop.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		close(j.stopCh)
	})
}

// Run starts the job in a goroutine and returns a stop function.
func (j *Job) Run(ctx context.Context) func() {
	go j.Start(ctx)
	return j.Stop
}

// RunOnce performs a single lock-guarded run immediately.
func (j *Job) RunOnce(ctx context.Context) error {
	release, ok, err := j.locker.TryAcquire(ctx, j.name, j.lockTTL)
	if err != nil {
		observability.IncrementWorkerRun(j.name, "lock_failed")
		return fmt.Errorf("acquire %s lock: %w", j.name, err)
	}
	if !ok {
		observability.IncrementWorkerRun(j.name, "skipped")
		return ErrLocked
	}
	defer release()

	runCtx, cancel := context.WithTimeout(ctx, j.lockTTL)
	defer cancel()
	if err := j.task(runCtx); err != nil {
		observability.IncrementWorkerRun(j.name, "failed")
		return err
	}
	observability.IncrementWorkerRun(j.name, "success")
	return nil
}

func (j *Job) String() string {
	return fmt.Sprintf("Job(%s, interval=%v)", j.name, j.interval)
}
