package limiter

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	fails        int
	blockedUntil time.Time
	updatedAt    time.Time
}

// Memory is an in-process limiter with the same policy as PG.
type Memory struct {
	Policy
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

// NewMemory constructs an in-process limiter.
func NewMemory(p Policy) *Memory {
	return &Memory{Policy: p, now: time.Now, entries: make(map[string]*entry)}
}

func entryKey(email string, ipHash []byte) string { return key(email) + "\x00" + string(ipHash) }

// Allow reports whether login is currently allowed and a retry-after duration.
func (l *Memory) Allow(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[entryKey(email, ipHash)]
	if !ok {
		return true, 0, nil
	}
	if now := l.now(); e.blockedUntil.After(now) {
		return false, e.blockedUntil.Sub(now), nil
	}
	return true, 0, nil
}

// Success resets counters for (email, ip).
func (l *Memory) Success(_ context.Context, email string, ipHash []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entryKey(email, ipHash)] = &entry{updatedAt: l.now()}
	return nil
}

// Failure records a failed attempt; may set a block until a future time.
func (l *Memory) Failure(_ context.Context, email string, ipHash []byte) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	k := entryKey(email, ipHash)
	e, ok := l.entries[k]
	switch {
	case !ok:
		e = &entry{fails: 1}
		l.entries[k] = e
	case now.Sub(e.updatedAt) > l.Window:
		e.fails = 1
	default:
		e.fails++
	}
	e.updatedAt = now
	if e.fails < l.MaxFails {
		return false, 0, nil
	}
	e.blockedUntil = now.Add(l.BlockFor)
	return true, l.BlockFor, nil
}
