package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/config"
	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// userLister enumerates the accounts the sweep visits.
type userLister interface {
	ListUsers(ctx context.Context) ([]auth.User, error)
}

// resetApplier applies the batch reset mutation for one user.
type resetApplier interface {
	ApplyDueResets(ctx context.Context, user auth.User, now time.Time) (int64, error)
}

// Lock serializes the sweep across instances. Acquire returns false when
// another instance holds the lock.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
}

// RedisLock implements Lock with SET NX and a TTL, so a crashed holder
// releases the lock automatically.
type RedisLock struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a RedisLock. Returns nil when client is nil so the
// sweeper falls back to running unconditionally.
func NewRedisLock(client *redis.Client, ttl time.Duration) *RedisLock {
	if client == nil {
		return nil
	}
	return &RedisLock{client: client, key: "sisyphus:sweep:lock", ttl: ttl}
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire sweep lock: %w", err)
	}
	return ok, nil
}

// Sweeper periodically applies due task resets for every user, so that
// completions roll over even for users who never open the app. The sweep and
// the lazy read path share the same classification, so running both is
// harmless.
type Sweeper struct {
	cron    *cron.Cron
	users   userLister
	tasks   resetApplier
	lock    Lock
	log     *zap.Logger
	cfg     config.SchedulerConfig
	nowFunc func() time.Time
}

// NewSweeper constructs a Sweeper. lock may be nil, in which case every tick
// sweeps.
func NewSweeper(users userLister, tasks resetApplier, lock Lock, log *zap.Logger, cfg config.SchedulerConfig) *Sweeper {
	return &Sweeper{
		cron:    cron.New(cron.WithSeconds()),
		users:   users,
		tasks:   tasks,
		lock:    lock,
		log:     log,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Start registers the interval job and starts the cron loop.
func (s *Sweeper) Start() error {
	if !s.cfg.Enabled {
		s.log.Info("reset sweep disabled")
		return nil
	}

	seconds := int(s.cfg.SweepInterval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	spec := fmt.Sprintf("@every %ds", seconds)

	if _, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SweepInterval)
		defer cancel()
		s.Sweep(ctx)
	}); err != nil {
		return fmt.Errorf("schedule reset sweep: %w", err)
	}

	s.cron.Start()
	s.log.Info("reset sweep started", zap.Duration("interval", s.cfg.SweepInterval))
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// Sweep runs one pass over all users. A failure for one user is logged and
// does not stop the pass.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			s.log.Warn("sweep lock unavailable", zap.Error(err))
			return
		}
		if !ok {
			return
		}
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		s.log.Error("sweep: list users", zap.Error(err))
		return
	}

	now := s.nowFunc().UTC()
	var swept, resets int64
	for _, user := range users {
		n, err := s.tasks.ApplyDueResets(ctx, user, now)
		if err != nil {
			s.log.Error("sweep: apply resets",
				zap.String("user_id", user.ID.String()),
				zap.Error(err))
			continue
		}
		swept++
		resets += n
	}

	if resets > 0 {
		s.log.Info("reset sweep complete",
			zap.Int64("users", swept),
			zap.Int64("tasks_reset", resets))
	}
}
