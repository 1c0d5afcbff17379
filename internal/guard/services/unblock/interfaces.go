package unblock

import (
	"context"
	"time"

	"github.com/guardhome/guardhome/internal/guard/domain"
)

// FilteringClient is the slice of the upstream control API the guard
// needs. The concrete client handles session auth, timeouts and response
// validation; the guard only sees domain objects and the shared error
// taxonomy.
type FilteringClient interface {
	CheckHost(ctx context.Context, name domain.Name) (domain.CheckResult, error)
	Status(ctx context.Context) (domain.FilterStatus, error)
	UserRules(ctx context.Context) ([]string, error)
	SetRules(ctx context.Context, rules []string) error
}

// BackupStore persists pre-mutation rule snapshots. Save must be durable
// before it returns; records are never overwritten.
type BackupStore interface {
	Save(rules []string, now time.Time) (string, error)
	List() ([]domain.BackupRecord, error)
}

// AttemptJournal records mutation attempts for auditing. Journal failures
// must not fail the user-facing call.
type AttemptJournal interface {
	Append(domain.Attempt) error
	Recent(n int) ([]domain.Attempt, error)
}
