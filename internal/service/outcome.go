package service

import "time"

// Outcome is the typed result of an engine operation. Engines never return
// errors for expected conditions; the HTTP layer maps outcomes to status codes.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInvalidInput
	OutcomeCredentialsInvalid
	OutcomeAccountLocked
	OutcomeNotFound
	OutcomeIdentityMismatch
	OutcomeNotificationFailed
	OutcomeInternal
)

var outcomeNames = map[Outcome]string{
	OutcomeSuccess:            "SUCCESS",
	OutcomeInvalidInput:       "INVALID_INPUT",
	OutcomeCredentialsInvalid: "CREDENTIALS_INVALID",
	OutcomeAccountLocked:      "ACCOUNT_LOCKED",
	OutcomeNotFound:           "NOT_FOUND",
	OutcomeIdentityMismatch:   "IDENTITY_MISMATCH",
	OutcomeNotificationFailed: "NOTIFICATION_FAILED",
	OutcomeInternal:           "INTERNAL",
}

func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "UNKNOWN"
}

// LoginResult carries a token only when Outcome is OutcomeSuccess.
type LoginResult struct {
	Outcome           Outcome
	Token             string
	LastLogin         time.Time
	AttemptsRemaining int
	LockedUntil       *time.Time
	Err               error
}

// AccountStatus is the read-only projection returned by Status.
type AccountStatus struct {
	Identity      string
	Attempts      int
	MaxAttempts   int
	Locked        bool
	LockedUntil   *time.Time
	LastAttemptAt *time.Time
}

type StatusResult struct {
	Outcome Outcome
	Status  AccountStatus
}

// RecoveryRequest holds the four identity facts. BirthDate is YYYY-MM-DD.
type RecoveryRequest struct {
	Identity   string
	BirthDate  string
	FatherName string
	MotherName string
}

// RecoveryResult never carries the temporary secret.
type RecoveryResult struct {
	Outcome Outcome
	Err     error
}
