package unblock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/guardhome/guardhome/internal/guard/common/clock"
	"github.com/guardhome/guardhome/internal/guard/common/log"
	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/metrics"
)

const (
	defaultHealthTTL = 5 * time.Second
	healthCacheKey   = "health"
)

// Guard orchestrates rule mutations against the upstream filtering
// service so the prior rule set is never lost: it snapshots the current
// rules, persists them to a durable backup, applies the mutation, and
// rolls back to the snapshot when the mutation fails.
//
// Each invocation is self-contained; there is no locking. Two concurrent
// mutations race on the same upstream rule list and one can clobber the
// other's addition. The upstream service offers no concurrency token, so
// this is an accepted limitation.
type Guard struct {
	client  FilteringClient
	backups BackupStore
	journal AttemptJournal
	clock   clock.Clock
	logger  log.Logger
	health  *expirable.LRU[string, Health]
}

// Options defines dependencies and settings for the guard service.
type Options struct {
	Client  FilteringClient
	Backups BackupStore
	Journal AttemptJournal
	Clock   clock.Clock
	Logger  log.Logger
	// HealthTTL is how long a composite health result is served from
	// cache; zero means the 5 second default.
	HealthTTL time.Duration
}

// New creates the guard service. Client and Backups are required by every
// mutation path; Journal may be nil, in which case attempts are only logged.
func New(opts Options) *Guard {
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = log.GetLogger()
	}
	if opts.HealthTTL <= 0 {
		opts.HealthTTL = defaultHealthTTL
	}
	return &Guard{
		client:  opts.Client,
		backups: opts.Backups,
		journal: opts.Journal,
		clock:   opts.Clock,
		logger:  opts.Logger,
		health:  expirable.NewLRU[string, Health](1, nil, opts.HealthTTL),
	}
}

// Result reports the outcome of a successful guarded mutation.
type Result struct {
	Domain     string `json:"domain,omitempty"`
	Already    bool   `json:"already,omitempty"`
	BackupFile string `json:"backup_file,omitempty"`
}

// Health is the composite service health: this app, upstream
// reachability, and the upstream filtering enabled flag.
type Health struct {
	Status           string `json:"status"`
	Upstream         string `json:"upstream"`
	FilteringEnabled bool   `json:"filtering_enabled"`
	Error            string `json:"error,omitempty"`
}

// Check validates the raw domain name and asks the upstream service
// whether it is filtered. Invalid input never reaches the upstream.
func (g *Guard) Check(ctx context.Context, raw string) (domain.CheckResult, error) {
	name, err := domain.NewName(raw)
	if err != nil {
		return domain.CheckResult{}, err
	}
	return g.client.CheckHost(ctx, name)
}

// Status returns the current upstream filtering snapshot.
func (g *Guard) Status(ctx context.Context) (domain.FilterStatus, error) {
	return g.client.Status(ctx)
}

// Backups lists the persisted pre-mutation backups, newest first.
func (g *Guard) Backups() ([]domain.BackupRecord, error) {
	return g.backups.List()
}

// Attempts lists the most recent journaled mutation attempts.
func (g *Guard) Attempts(n int) ([]domain.Attempt, error) {
	if g.journal == nil {
		return nil, nil
	}
	return g.journal.Recent(n)
}

// Unblock adds an allow rule for the domain while guaranteeing the prior
// rule set is never lost:
//
//  1. validate the name
//  2. fetch the current rules (fail fast, no mutation without a snapshot)
//  3. persist the snapshot to a durable backup (fail fast on write error)
//  4. no-op when an equivalent allow rule already exists
//  5. replace the upstream rule set with snapshot + allow rule
//  6. on failure, restore the snapshot best-effort; the original error is
//     always reported, joined with ErrRollbackFailed when the restore
//     itself fails
func (g *Guard) Unblock(ctx context.Context, raw string) (Result, error) {
	name, err := domain.NewName(raw)
	if err != nil {
		return Result{}, err
	}
	started := g.clock.Now()

	snapshot, err := g.client.UserRules(ctx)
	if err != nil {
		g.record(domain.Attempt{
			Domain:    name.String(),
			Outcome:   domain.OutcomeAborted,
			Error:     err.Error(),
			StartedAt: started,
		})
		return Result{}, fmt.Errorf("fetching rule snapshot: %w", err)
	}

	backupFile, err := g.backups.Save(snapshot, started)
	if err != nil {
		g.record(domain.Attempt{
			Domain:    name.String(),
			Outcome:   domain.OutcomeAborted,
			Error:     err.Error(),
			StartedAt: started,
		})
		return Result{}, err
	}
	metrics.Get().BackupsWritten.Inc()

	if domain.HasAllowRule(snapshot, name) {
		g.record(domain.Attempt{
			Domain:     name.String(),
			BackupFile: backupFile,
			Outcome:    domain.OutcomeAlreadyAllowed,
			StartedAt:  started,
		})
		return Result{Domain: name.String(), Already: true, BackupFile: backupFile}, nil
	}

	newRules := domain.AppendAllowRule(snapshot, name)
	if err := g.client.SetRules(ctx, newRules); err != nil {
		return Result{}, g.rollback(ctx, name.String(), backupFile, snapshot, started, err)
	}

	g.record(domain.Attempt{
		Domain:     name.String(),
		BackupFile: backupFile,
		Outcome:    domain.OutcomeUnblocked,
		StartedAt:  started,
	})
	g.logger.Info(map[string]any{
		"domain": name.String(),
		"backup": backupFile,
	}, "Domain unblocked")
	return Result{Domain: name.String(), BackupFile: backupFile}, nil
}

// ReplaceRules applies a caller-supplied complete rule list under the
// same snapshot/backup/rollback protection as Unblock.
func (g *Guard) ReplaceRules(ctx context.Context, rules []string) (Result, error) {
	started := g.clock.Now()

	snapshot, err := g.client.UserRules(ctx)
	if err != nil {
		g.record(domain.Attempt{
			Outcome:   domain.OutcomeAborted,
			Error:     err.Error(),
			StartedAt: started,
		})
		return Result{}, fmt.Errorf("fetching rule snapshot: %w", err)
	}

	backupFile, err := g.backups.Save(snapshot, started)
	if err != nil {
		g.record(domain.Attempt{
			Outcome:   domain.OutcomeAborted,
			Error:     err.Error(),
			StartedAt: started,
		})
		return Result{}, err
	}
	metrics.Get().BackupsWritten.Inc()

	if err := g.client.SetRules(ctx, rules); err != nil {
		return Result{}, g.rollback(ctx, "", backupFile, snapshot, started, err)
	}

	g.record(domain.Attempt{
		BackupFile: backupFile,
		Outcome:    domain.OutcomeReplaced,
		StartedAt:  started,
	})
	return Result{BackupFile: backupFile}, nil
}

// Health probes the upstream and reports composite health. Results are
// cached briefly so monitoring polls don't hammer the upstream service.
func (g *Guard) Health(ctx context.Context) Health {
	if h, ok := g.health.Get(healthCacheKey); ok {
		return h
	}

	var h Health
	st, err := g.client.Status(ctx)
	switch {
	case err == nil:
		h = Health{Status: "healthy", Upstream: "connected", FilteringEnabled: st.Enabled}
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		h = Health{Status: "degraded", Upstream: "failed", Error: "could not connect to the filtering service"}
	default:
		h = Health{Status: "error", Upstream: "failed", Error: err.Error()}
	}

	g.health.Add(healthCacheKey, h)
	return h
}

// rollback restores the snapshot after a failed mutation. The original
// failure is always what the caller sees; a failed restore is joined in
// so operators know the upstream may be left in the attempted state.
func (g *Guard) rollback(ctx context.Context, name, backupFile string, snapshot []string, started time.Time, cause error) error {
	if rbErr := g.client.SetRules(ctx, snapshot); rbErr != nil {
		metrics.Get().Rollbacks.WithLabelValues("failed").Inc()
		g.record(domain.Attempt{
			Domain:     name,
			BackupFile: backupFile,
			Outcome:    domain.OutcomeRollbackFailed,
			Error:      cause.Error(),
			StartedAt:  started,
		})
		g.logger.Error(map[string]any{
			"domain": name,
			"backup": backupFile,
			"cause":  cause.Error(),
			"error":  rbErr.Error(),
		}, "Rollback failed, upstream rule set may be in the attempted state")
		return errors.Join(
			fmt.Errorf("applying new rule set: %w", cause),
			fmt.Errorf("%w: %v", domain.ErrRollbackFailed, rbErr),
		)
	}

	metrics.Get().Rollbacks.WithLabelValues("ok").Inc()
	g.record(domain.Attempt{
		Domain:     name,
		BackupFile: backupFile,
		Outcome:    domain.OutcomeRolledBack,
		Error:      cause.Error(),
		StartedAt:  started,
	})
	g.logger.Warn(map[string]any{
		"domain": name,
		"backup": backupFile,
		"error":  cause.Error(),
	}, "Rule mutation failed, previous rule set restored")
	return fmt.Errorf("applying new rule set (previous rules restored): %w", cause)
}

// record journals one attempt and bumps the attempt counter. Journal
// errors are logged and swallowed; auditing must not fail the call.
func (g *Guard) record(a domain.Attempt) {
	metrics.Get().UnblockAttempts.WithLabelValues(string(a.Outcome)).Inc()
	if g.journal == nil {
		return
	}
	if err := g.journal.Append(a); err != nil {
		g.logger.Warn(map[string]any{
			"domain": a.Domain,
			"error":  err.Error(),
		}, "Failed to journal mutation attempt")
	}
}
