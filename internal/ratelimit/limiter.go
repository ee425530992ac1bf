// Package ratelimit gates token disbursements with a per-user cooldown.
package ratelimit

import (
	"sync"
	"time"
)

// UserID identifies the chat participant a grant is recorded against.
type UserID string

// Decision is the outcome of TryGrant.
type Decision struct {
	Allowed      bool
	RetryMessage string
	// RetryAfter is how long the user still has to wait. Zero when allowed.
	RetryAfter time.Duration
}

// Limiter records grant timestamps per user and allows a new grant only
// once the cooldown has passed since the most recent one.
//
// Records are append-only and never pruned; memory grows with the number
// of grants for the lifetime of the process.
type Limiter struct {
	mu           sync.Mutex
	grants       map[UserID][]time.Time
	retryMessage string
}

// New returns a Limiter whose denials carry retryMessage.
func New(retryMessage string) *Limiter {
	return &Limiter{
		grants:       make(map[UserID][]time.Time),
		retryMessage: retryMessage,
	}
}

// TryGrant checks the cooldown for user and, if it has elapsed, records
// now as a new grant. Check and append happen under one lock so two
// concurrent calls for the same user cannot both be allowed.
func (l *Limiter) TryGrant(user UserID, now time.Time, cooldown time.Duration) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := l.grants[user]
	if n := len(record); n > 0 {
		elapsed := now.Sub(record[n-1])
		if elapsed <= cooldown {
			return Decision{RetryMessage: l.retryMessage, RetryAfter: cooldown - elapsed}
		}
	}
	l.grants[user] = append(record, now)
	return Decision{Allowed: true}
}

// Revoke removes the grant stamped at if it is the user's most recent
// one. It is used when the disbursement that followed a grant could not
// be submitted, so the failed attempt does not start a cooldown.
// Reports whether a grant was removed.
func (l *Limiter) Revoke(user UserID, at time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	record := l.grants[user]
	n := len(record)
	if n == 0 || !record[n-1].Equal(at) {
		return false
	}
	if n == 1 {
		delete(l.grants, user)
	} else {
		l.grants[user] = record[:n-1]
	}
	return true
}

// Grants returns a copy of the grant history for user, oldest first.
func (l *Limiter) Grants(user UserID) []time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Time(nil), l.grants[user]...)
}
