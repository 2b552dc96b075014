// Package account holds the single managed credential record and its lockout
// counters. Every read and write goes through one mutex.
package account

import (
	"crypto/subtle"
	"sync"
	"time"
)

// RecoveryFacts are the knowledge factors checked before a credential reset.
type RecoveryFacts struct {
	BirthDate  time.Time
	FatherName string
	MotherName string
}

// Record is the mutable state. It is only reachable inside Account.Update.
type Record struct {
	identity         string
	credentialDigest string
	facts            RecoveryFacts
	failedAttempts   int
	maxAttempts      int
	lockedUntil      *time.Time
	lastAttemptAt    *time.Time
}

// Snapshot is an immutable copy of a Record.
type Snapshot struct {
	Identity         string
	CredentialDigest string
	Facts            RecoveryFacts
	FailedAttempts   int
	LockedUntil      *time.Time
	LastAttemptAt    *time.Time
}

type Account struct {
	mu  sync.Mutex
	rec Record
}

// New creates the account. maxAttempts bounds the failed-attempt counter.
func New(identity, digest string, facts RecoveryFacts, maxAttempts int) *Account {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Account{
		rec: Record{
			identity:         identity,
			credentialDigest: digest,
			facts:            facts,
			maxAttempts:      maxAttempts,
		},
	}
}

// Identity is immutable and can be read without the lock.
func (a *Account) Identity() string {
	return a.rec.identity
}

// Matches reports whether identity names this account. Comparison is exact.
func (a *Account) Matches(identity string) bool {
	return subtle.ConstantTimeCompare([]byte(identity), []byte(a.rec.identity)) == 1
}

// Update runs fn as one critical section.
func (a *Account) Update(fn func(r *Record)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.rec)
}

func (a *Account) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rec.Snapshot()
}

func (a *Account) ResetAttempts() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.ResetAttempts()
}

func (a *Account) ReplaceCredentialDigest(digest string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rec.ReplaceCredentialDigest(digest)
}

func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		Identity:         r.identity,
		CredentialDigest: r.credentialDigest,
		Facts:            r.facts,
		FailedAttempts:   r.failedAttempts,
		LockedUntil:      copyTime(r.lockedUntil),
		LastAttemptAt:    copyTime(r.lastAttemptAt),
	}
}

func (r *Record) CredentialDigest() string  { return r.credentialDigest }
func (r *Record) FailedAttempts() int       { return r.failedAttempts }
func (r *Record) MaxAttempts() int          { return r.maxAttempts }
func (r *Record) LockedUntil() *time.Time   { return copyTime(r.lockedUntil) }
func (r *Record) LastAttemptAt() *time.Time { return copyTime(r.lastAttemptAt) }

// IsLocked reports whether a lock is set and still in the future at now.
func (r *Record) IsLocked(now time.Time) bool {
	return r.lockedUntil != nil && now.Before(*r.lockedUntil)
}

// LockExpired reports whether a lock is set but no longer in force at now.
func (r *Record) LockExpired(now time.Time) bool {
	return r.lockedUntil != nil && !now.Before(*r.lockedUntil)
}

// RecordFailedAttempt increments the counter, saturating at the threshold,
// and returns the new count.
func (r *Record) RecordFailedAttempt(now time.Time) int {
	if r.failedAttempts < r.maxAttempts {
		r.failedAttempts++
	}
	r.lastAttemptAt = &now
	return r.failedAttempts
}

func (r *Record) RecordSuccess(now time.Time) {
	r.failedAttempts = 0
	r.lockedUntil = nil
	r.lastAttemptAt = &now
}

func (r *Record) ApplyLock(until time.Time) {
	r.lockedUntil = &until
}

// ClearLock drops an expired lock and its counter.
func (r *Record) ClearLock() {
	r.lockedUntil = nil
	r.failedAttempts = 0
}

func (r *Record) ResetAttempts() {
	r.failedAttempts = 0
	r.lockedUntil = nil
	r.lastAttemptAt = nil
}

func (r *Record) ReplaceCredentialDigest(digest string) {
	r.credentialDigest = digest
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
