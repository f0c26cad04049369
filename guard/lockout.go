package guard

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LockoutConfig controls how many blocked attempts a requester may make before
// being refused outright.
type LockoutConfig struct {
	Threshold int           // blocked attempts inside Window that trigger a lockout
	Window    time.Duration // attempts older than this are forgotten
	Cooldown  time.Duration // lockout duration
	Capacity  int           // requesters tracked at once
}

func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		Threshold: 3,
		Window:    10 * time.Minute,
		Cooldown:  15 * time.Minute,
		Capacity:  10000,
	}
}

type strikes struct {
	first       time.Time
	count       int
	lockedUntil time.Time
}

// Lockout tracks blocked attempts per requester. The least recently seen
// requesters are evicted once Capacity is reached; stale strikes are reset on the
// next Record.
type Lockout struct {
	cfg     LockoutConfig
	mu      sync.Mutex
	entries *lru.Cache[string, *strikes]
	now     func() time.Time
}

func NewLockout(cfg LockoutConfig) *Lockout {
	def := DefaultLockoutConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	entries, _ := lru.New[string, *strikes](cfg.Capacity)
	return &Lockout{
		cfg:     cfg,
		entries: entries,
		now:     time.Now,
	}
}

// SetClock replaces the time source; used by tests.
func (l *Lockout) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Record counts one blocked attempt and reports whether the requester is now locked out.
func (l *Lockout) Record(requester string) bool {
	if l == nil || requester == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s, ok := l.entries.Get(requester)
	if !ok || (now.Sub(s.first) > l.cfg.Window && !now.Before(s.lockedUntil)) {
		s = &strikes{first: now}
	}
	s.count++
	if s.count >= l.cfg.Threshold {
		s.lockedUntil = now.Add(l.cfg.Cooldown)
	}
	l.entries.Add(requester, s)
	return now.Before(s.lockedUntil)
}

// Locked reports whether the requester is inside a cooldown.
func (l *Lockout) Locked(requester string) bool {
	if l == nil || requester == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.entries.Peek(requester)
	if !ok {
		return false
	}
	return l.now().Before(s.lockedUntil)
}

// Reset forgets a requester.
func (l *Lockout) Reset(requester string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries.Remove(requester)
}
