package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"

	"bitbucket.org/mmdatafocus/outlet_backend/config"
)

// All ledger writes, FIFO consumption and recomputes for one business day are
// serialized behind a single per-day lock; different days proceed in
// parallel. The lock is a redis lock across instances, falling back to an
// in-process mutex map when redis is not connected (tests, single-instance
// dev).

var (
	dayLocksMu sync.Mutex
	dayLocks   = map[string]*sync.Mutex{}
)

const dayLockTTL = 30 * time.Second

// AcquireDayLock obtains the lock for a calendar date and returns its release
// func. The release func must be called on every path.
func AcquireDayLock(ctx context.Context, date time.Time) (func(), error) {
	key := "dayLock:" + date.UTC().Format("2006-01-02")

	locker := config.GetRedisLock()
	if locker == nil {
		dayLocksMu.Lock()
		mu := dayLocks[key]
		if mu == nil {
			mu = &sync.Mutex{}
			dayLocks[key] = mu
		}
		dayLocksMu.Unlock()

		mu.Lock()
		return mu.Unlock, nil
	}

	lock, err := locker.Obtain(ctx, key, dayLockTTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 50),
	})
	if err == redislock.ErrNotObtained {
		return nil, errors.New("could not obtain day lock for " + key)
	} else if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
