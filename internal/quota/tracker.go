// Package quota enforces global and per-user daily request ceilings.
//
// Counters live in memory and reset at the first check of each new UTC day.
package quota

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Rejection reasons returned by CheckAndIncrement.
const (
	ReasonGlobalLimit = "global daily limit reached"
	ReasonUserLimit   = "daily limit reached for user"
)

// Scopes reported on LimitError.
const (
	ScopeGlobal = "global"
	ScopeUser   = "user"
)

// ErrLimitExceeded is the sentinel wrapped by every LimitError.
var ErrLimitExceeded = errors.New("quota exceeded")

// LimitError reports which ceiling rejected a request.
type LimitError struct {
	Scope  string
	Reason string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("%s: %s", ErrLimitExceeded.Error(), e.Reason)
}

// Unwrap lets errors.Is match ErrLimitExceeded.
func (e *LimitError) Unwrap() error {
	return ErrLimitExceeded
}

// Limits holds the configured ceilings.
type Limits struct {
	GlobalDaily  int
	PerUserDaily int
}

// Stats is a point-in-time snapshot of today's usage.
type Stats struct {
	Date         string `json:"date"`
	GlobalUsed   int    `json:"global_used"`
	GlobalLimit  int    `json:"global_limit"`
	PerUserLimit int    `json:"per_user_limit"`
	ActiveUsers  int    `json:"active_users"`
}

// Usage describes a single user's consumption for today.
type Usage struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`
	Remaining int `json:"remaining"`
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker counts accepted requests per UTC day.
type Tracker struct {
	mu          sync.Mutex
	limits      Limits
	globalCount int
	userCounts  map[string]int
	currentDay  string
	now         func() time.Time
}

// NewTracker creates a Tracker with the given ceilings.
func NewTracker(limits Limits, opts ...Option) *Tracker {
	t := &Tracker{
		limits:     limits,
		userCounts: make(map[string]int),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.currentDay = t.today()
	return t
}

// CheckAndIncrement admits one request for userID if neither ceiling has been
// reached, incrementing both counters. A rejection increments nothing.
func (t *Tracker) CheckAndIncrement(userID string) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	if t.globalCount >= t.limits.GlobalDaily {
		return false, ReasonGlobalLimit
	}
	if t.userCounts[userID] >= t.limits.PerUserDaily {
		return false, ReasonUserLimit
	}

	t.globalCount++
	t.userCounts[userID]++
	return true, ""
}

// Acquire is CheckAndIncrement expressed as an error, returning a *LimitError
// on rejection.
func (t *Tracker) Acquire(userID string) error {
	allowed, reason := t.CheckAndIncrement(userID)
	if allowed {
		return nil
	}
	scope := ScopeUser
	if reason == ReasonGlobalLimit {
		scope = ScopeGlobal
	}
	return &LimitError{Scope: scope, Reason: reason}
}

// Stats returns today's global usage.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	return Stats{
		Date:         t.currentDay,
		GlobalUsed:   t.globalCount,
		GlobalLimit:  t.limits.GlobalDaily,
		PerUserLimit: t.limits.PerUserDaily,
		ActiveUsers:  len(t.userCounts),
	}
}

// UserUsage returns userID's consumption for today.
func (t *Tracker) UserUsage(userID string) Usage {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	used := t.userCounts[userID]
	remaining := t.limits.PerUserDaily - used
	if remaining < 0 {
		remaining = 0
	}
	return Usage{Used: used, Limit: t.limits.PerUserDaily, Remaining: remaining}
}

// rollover resets all counters when the UTC date has changed. Callers hold mu.
func (t *Tracker) rollover() {
	today := t.today()
	if today == t.currentDay {
		return
	}
	t.globalCount = 0
	t.userCounts = make(map[string]int)
	t.currentDay = today
}

func (t *Tracker) today() string {
	return t.now().UTC().Format("2006-01-02")
}
