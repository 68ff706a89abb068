package worker

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/phishguard/internal/campaign"
	"github.com/ignite/phishguard/internal/directory"
	"github.com/ignite/phishguard/internal/pkg/distlock"
	"github.com/ignite/phishguard/internal/pkg/logger"
)

const (
	// DefaultSchedulerPollInterval is how often to check for due
	// dispatches.
	DefaultSchedulerPollInterval = 30 * time.Second

	// schedulerLockTTL bounds how long a crashed worker can hold the
	// dispatch lock.
	schedulerLockTTL = 2 * time.Minute

	// dueBatchLimit caps campaigns claimed per pass.
	dueBatchLimit = 50
)

// CampaignScheduler polls for campaigns whose next dispatch has arrived,
// plans the batch waves for that occurrence and hands them to the
// delivery collaborator. A distributed lock keeps concurrent workers
// from double-dispatching; with Redis unavailable it degrades to a
// Postgres advisory lock.
type CampaignScheduler struct {
	db        *sql.DB
	store     *campaign.Store
	directory directory.Provider
	deliverer Deliverer

	redisClient  *redis.Client
	workerID     string
	pollInterval time.Duration

	campaignsProcessed int64
	wavesDispatched    int64
	recipientsQueued   int64
	errCount           int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.RWMutex

	log *logger.Logger
}

// NewCampaignScheduler creates a scheduler worker.
func NewCampaignScheduler(db *sql.DB, store *campaign.Store, dir directory.Provider, deliverer Deliverer) *CampaignScheduler {
	hostname, _ := os.Hostname()
	return &CampaignScheduler{
		db:           db,
		store:        store,
		directory:    dir,
		deliverer:    deliverer,
		workerID:     fmt.Sprintf("scheduler-%s-%d", hostname, time.Now().UnixNano()%10000),
		pollInterval: DefaultSchedulerPollInterval,
		log:          logger.Component("scheduler"),
	}
}

// SetRedisClient enables Redis-based locking instead of the Postgres
// advisory-lock fallback.
func (cs *CampaignScheduler) SetRedisClient(client *redis.Client) {
	cs.redisClient = client
}

// SetPollInterval overrides how often the scheduler looks for due work.
func (cs *CampaignScheduler) SetPollInterval(d time.Duration) {
	cs.pollInterval = d
}

// Start begins the polling loop.
func (cs *CampaignScheduler) Start() error {
	cs.mu.Lock()
	if cs.running {
		cs.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	cs.running = true
	cs.ctx, cs.cancel = context.WithCancel(context.Background())
	cs.mu.Unlock()

	cs.log.Info("scheduler starting", "worker_id", cs.workerID, "poll_interval", cs.pollInterval.String())
	cs.wg.Add(1)
	go cs.runLoop()
	return nil
}

// Stop halts the polling loop and waits for the in-flight pass.
func (cs *CampaignScheduler) Stop() {
	cs.mu.Lock()
	if !cs.running {
		cs.mu.Unlock()
		return
	}
	cs.running = false
	cs.cancel()
	cs.mu.Unlock()

	cs.wg.Wait()
	cs.log.Info("scheduler stopped", "worker_id", cs.workerID)
}

// Stats returns a snapshot of the lifetime counters.
func (cs *CampaignScheduler) Stats() (processed, waves, recipients, errs int64) {
	return atomic.LoadInt64(&cs.campaignsProcessed),
		atomic.LoadInt64(&cs.wavesDispatched),
		atomic.LoadInt64(&cs.recipientsQueued),
		atomic.LoadInt64(&cs.errCount)
}

func (cs *CampaignScheduler) runLoop() {
	defer cs.wg.Done()

	ticker := time.NewTicker(cs.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-cs.ctx.Done():
			return
		case <-ticker.C:
			cs.dispatchPass(cs.ctx, time.Now())
		}
	}
}

// dispatchPass claims due campaigns under the dispatch lock and
// dispatches one occurrence for each.
func (cs *CampaignScheduler) dispatchPass(ctx context.Context, now time.Time) {
	lock := distlock.NewLock(cs.redisClient, cs.db, "phishguard:scheduler", schedulerLockTTL)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		cs.log.Warn("lock acquire failed", "error", err)
		return
	}
	if !acquired {
		return
	}
	defer lock.Release(ctx)

	due, err := cs.store.Due(ctx, now, dueBatchLimit)
	if err != nil {
		atomic.AddInt64(&cs.errCount, 1)
		schedulerErrors.Inc()
		cs.log.Error("query due campaigns", "error", err)
		return
	}

	for _, c := range due {
		if err := cs.dispatchOccurrence(ctx, c, now); err != nil {
			atomic.AddInt64(&cs.errCount, 1)
			schedulerErrors.Inc()
			cs.log.Error("dispatch failed", "campaign_id", c.ID.String(), "error", err)
			continue
		}
		atomic.AddInt64(&cs.campaignsProcessed, 1)
	}
}

// dispatchOccurrence sends the due occurrence's waves and advances the
// campaign's dispatch state: recurring campaigns get their next
// occurrence, everything else completes. Status updates are optimistic;
// per-recipient sent confirmations arrive later through the tracking
// stream.
func (cs *CampaignScheduler) dispatchOccurrence(ctx context.Context, c *campaign.Campaign, now time.Time) error {
	if c.Status == campaign.StatusScheduled {
		if err := c.Activate(); err != nil {
			return err
		}
	}

	recipients, err := cs.resolveRecipients(ctx, c)
	if err != nil {
		return fmt.Errorf("resolve recipients: %w", err)
	}

	// The occurrence is due now, so batching expands relative to now.
	plan, err := campaign.Plan(campaign.ScheduleConfig{Type: campaign.ScheduleImmediate}, c.Batch, recipients, now)
	if err != nil {
		return err
	}

	for _, wave := range plan.Waves {
		if err := cs.deliverer.Deliver(ctx, c.ID.String(), c.TemplateID, wave); err != nil {
			return fmt.Errorf("deliver wave %d: %w", wave.Batch, err)
		}
		atomic.AddInt64(&cs.wavesDispatched, 1)
		atomic.AddInt64(&cs.recipientsQueued, int64(len(wave.Recipients)))
		schedulerDispatches.Inc()
		schedulerRecipients.Add(float64(len(wave.Recipients)))
	}

	cs.advance(c, now)
	if err := cs.store.SaveDispatchState(ctx, c); err != nil {
		return fmt.Errorf("save dispatch state: %w", err)
	}

	cs.log.Info("occurrence dispatched",
		"campaign_id", c.ID.String(),
		"waves", len(plan.Waves),
		"recipients", len(recipients),
		"status", c.Status)
	return nil
}

func (cs *CampaignScheduler) advance(c *campaign.Campaign, now time.Time) {
	if c.Schedule.Type == campaign.ScheduleRecurring {
		it, err := campaign.NewOccurrences(c.Schedule, now)
		if err == nil {
			if next, ok := it.Next(); ok {
				c.NextDispatchAt = &next
				return
			}
		}
	}
	// Non-recurring, or the recurrence reached its end date.
	c.Complete()
}

func (cs *CampaignScheduler) resolveRecipients(ctx context.Context, c *campaign.Campaign) ([]string, error) {
	var users []directory.User
	var err error
	if c.TargetsAll() {
		users, err = cs.directory.Users(ctx)
	} else {
		users, err = cs.directory.UsersInDepartments(ctx, c.TargetGroups)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids, nil
}
