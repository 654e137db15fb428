package conversation

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// userLocks serialises the events of one user. Entries are dropped once no
// goroutine holds or waits for them.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

func (l *userLocks) lock(userID int64) func() {
	l.mu.Lock()
	ul, ok := l.locks[userID]
	if !ok {
		ul = &userLock{}
		l.locks[userID] = ul
	}
	ul.refs++
	l.mu.Unlock()

	ul.mu.Lock()
	return func() {
		ul.mu.Unlock()
		l.mu.Lock()
		ul.refs--
		if ul.refs == 0 {
			delete(l.locks, userID)
		}
		l.mu.Unlock()
	}
}

// limiters hands out one token bucket per user.
type limiters struct {
	mu      sync.Mutex
	every   time.Duration
	burst   int
	buckets map[int64]*rate.Limiter
}

func newLimiters(every time.Duration, burst int) *limiters {
	return &limiters{every: every, burst: burst, buckets: make(map[int64]*rate.Limiter)}
}

func (l *limiters) allow(userID int64) bool {
	if l.every <= 0 {
		return true
	}
	l.mu.Lock()
	b, ok := l.buckets[userID]
	if !ok {
		b = rate.NewLimiter(rate.Every(l.every), l.burst)
		l.buckets[userID] = b
	}
	l.mu.Unlock()
	return b.Allow()
}
