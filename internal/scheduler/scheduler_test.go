package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeLister struct {
	users []auth.User
	err   error
}

func (f *fakeLister) ListUsers(ctx context.Context) ([]auth.User, error) {
	return f.users, f.err
}

type fakeApplier struct {
	mu     sync.Mutex
	calls  []uuid.UUID
	failOn uuid.UUID
}

func (f *fakeApplier) ApplyDueResets(ctx context.Context, user auth.User, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user.ID == f.failOn {
		return 0, errors.New("boom")
	}
	f.calls = append(f.calls, user.ID)
	return 1, nil
}

type fakeLock struct {
	granted bool
	asked   int
}

func (f *fakeLock) Acquire(ctx context.Context) (bool, error) {
	f.asked++
	return f.granted, nil
}

func newTestSweeper(lister *fakeLister, applier *fakeApplier, lock Lock) *Sweeper {
	return NewSweeper(lister, applier, lock, zap.NewNop(), config.SchedulerConfig{
		Enabled:       true,
		SweepInterval: time.Minute,
		LockTTL:       time.Minute,
	})
}

func TestSweepVisitsEveryUser(t *testing.T) {
	users := []auth.User{
		{ID: uuid.New()},
		{ID: uuid.New()},
		{ID: uuid.New()},
	}
	applier := &fakeApplier{}
	sweeper := newTestSweeper(&fakeLister{users: users}, applier, nil)

	sweeper.Sweep(context.Background())

	if len(applier.calls) != len(users) {
		t.Fatalf("swept %d users, want %d", len(applier.calls), len(users))
	}
}

func TestSweepContinuesPastFailures(t *testing.T) {
	users := []auth.User{
		{ID: uuid.New()},
		{ID: uuid.New()},
		{ID: uuid.New()},
	}
	applier := &fakeApplier{failOn: users[1].ID}
	sweeper := newTestSweeper(&fakeLister{users: users}, applier, nil)

	sweeper.Sweep(context.Background())

	if len(applier.calls) != 2 {
		t.Fatalf("swept %d users, want 2 (one failure skipped)", len(applier.calls))
	}
}

func TestSweepSkipsWhenLockDenied(t *testing.T) {
	applier := &fakeApplier{}
	lock := &fakeLock{granted: false}
	sweeper := newTestSweeper(&fakeLister{users: []auth.User{{ID: uuid.New()}}}, applier, lock)

	sweeper.Sweep(context.Background())

	if lock.asked != 1 {
		t.Fatalf("lock asked %d times, want 1", lock.asked)
	}
	if len(applier.calls) != 0 {
		t.Fatalf("swept %d users despite denied lock, want 0", len(applier.calls))
	}
}

func TestSweepRunsWhenLockGranted(t *testing.T) {
	applier := &fakeApplier{}
	lock := &fakeLock{granted: true}
	sweeper := newTestSweeper(&fakeLister{users: []auth.User{{ID: uuid.New()}}}, applier, lock)

	sweeper.Sweep(context.Background())

	if len(applier.calls) != 1 {
		t.Fatalf("swept %d users, want 1", len(applier.calls))
	}
}

func TestNewRedisLockNilClient(t *testing.T) {
	if lock := NewRedisLock(nil, time.Minute); lock != nil {
		t.Fatal("expected nil lock for nil client")
	}
}
