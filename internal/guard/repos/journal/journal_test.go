package journal

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/guardhome/guardhome/internal/guard/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := New(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestAppend_AssignsSequence(t *testing.T) {
	j := newTestJournal(t)

	started := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, j.Append(domain.Attempt{
		Domain:     "ads.example",
		BackupFile: "rules-1.txt",
		Outcome:    domain.OutcomeUnblocked,
		StartedAt:  started,
	}))
	require.NoError(t, j.Append(domain.Attempt{
		Domain:    "other.example",
		Outcome:   domain.OutcomeRolledBack,
		Error:     "upstream rejected rule set",
		StartedAt: started.Add(time.Minute),
	}))

	n, err := j.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := j.Recent(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	// newest first
	assert.Equal(t, uint64(2), entries[0].Seq)
	assert.Equal(t, "other.example", entries[0].Domain)
	assert.Equal(t, domain.OutcomeRolledBack, entries[0].Outcome)
	assert.Equal(t, uint64(1), entries[1].Seq)
	assert.Equal(t, "ads.example", entries[1].Domain)
	assert.True(t, entries[1].StartedAt.Equal(started))
}

func TestRecent_LimitsResults(t *testing.T) {
	j := newTestJournal(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(domain.Attempt{
			Domain:    "ads.example",
			Outcome:   domain.OutcomeAlreadyAllowed,
			StartedAt: time.Now().UTC(),
		}))
	}

	entries, err := j.Recent(3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(5), entries[0].Seq)
	assert.Equal(t, uint64(3), entries[2].Seq)
}

func TestRecent_RejectsNonPositive(t *testing.T) {
	j := newTestJournal(t)
	_, err := j.Recent(0)
	assert.Error(t, err)
}

func TestRecent_EmptyJournal(t *testing.T) {
	j := newTestJournal(t)
	entries, err := j.Recent(10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNew_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := New(path)
	require.NoError(t, err)
	require.NoError(t, j.Append(domain.Attempt{Outcome: domain.OutcomeReplaced, StartedAt: time.Now().UTC()}))
	require.NoError(t, j.Close())

	j2, err := New(path)
	require.NoError(t, err)
	defer j2.Close()

	n, err := j2.Len()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
