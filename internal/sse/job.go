package sse

import (
	"context"
	"time"

	"fsm-intake/internal/interpreter"
	"fsm-intake/internal/logger"
)

// EventHeartbeat keeps idle connections open through proxies.
const EventHeartbeat = "heartbeat"

// HousekeepingJob sends heartbeats to connected clients and drops interpreter
// sessions that have been idle longer than the session TTL.
type HousekeepingJob struct {
	sseManager *SSEManager
	sessions   *interpreter.Sessions
	logger     *logger.Logger
	interval   time.Duration
	sessionTTL time.Duration
	now        func() time.Time

	// Context for managing the job lifecycle
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHousekeepingJob(
	sseManager *SSEManager,
	sessions *interpreter.Sessions,
	logger *logger.Logger,
	interval time.Duration,
	sessionTTL time.Duration,
) *HousekeepingJob {
	if interval <= 0 {
		interval = 25 * time.Second
	}
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &HousekeepingJob{
		sseManager: sseManager,
		sessions:   sessions,
		logger:     logger,
		interval:   interval,
		sessionTTL: sessionTTL,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// RunOnce performs a single heartbeat and prune pass - exported for testing
func (j *HousekeepingJob) RunOnce() int {
	j.sseManager.Broadcast(EventHeartbeat, map[string]int{"clients": j.sseManager.ConnectionCount()})

	pruned := j.sessions.Prune(j.now().Add(-j.sessionTTL))
	if pruned > 0 {
		j.logger.Infof("Pruned %d idle interpreter sessions", pruned)
	}
	return pruned
}

// Start blocks, running the job every interval until Stop is called.
func (j *HousekeepingJob) Start() {
	j.logger.Infof("Starting housekeeping job with interval %s", j.interval)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-j.ctx.Done():
			j.logger.Info("Housekeeping job stopped")
			return
		}
	}
}

func (j *HousekeepingJob) Stop() {
	j.cancel()
}

func (j *HousekeepingJob) GetInterval() time.Duration {
	return j.interval
}
