package domain

import "time"

// MutationOutcome labels the terminal state of one rule-mutation attempt:
// Start -> SnapshotFetched -> BackupWritten -> MutationAttempted ->
// {unblocked | already_allowed | replaced | rolled_back | rollback_failed},
// with aborted covering failures before the mutation is attempted.
type MutationOutcome string

const (
	OutcomeUnblocked      MutationOutcome = "unblocked"
	OutcomeAlreadyAllowed MutationOutcome = "already_allowed"
	OutcomeReplaced       MutationOutcome = "replaced"
	OutcomeRolledBack     MutationOutcome = "rolled_back"
	OutcomeRollbackFailed MutationOutcome = "rollback_failed"
	OutcomeAborted        MutationOutcome = "aborted"
)

// Attempt is the audit record of one rule-mutation attempt.
type Attempt struct {
	Seq        uint64          `json:"seq"`
	Domain     string          `json:"domain,omitempty"`
	BackupFile string          `json:"backup_file,omitempty"`
	Outcome    MutationOutcome `json:"outcome"`
	Error      string          `json:"error,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
}

// BackupRecord describes one persisted pre-mutation rules backup.
type BackupRecord struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
