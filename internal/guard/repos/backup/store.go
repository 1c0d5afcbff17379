package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/guardhome/guardhome/internal/guard/domain"
	"github.com/guardhome/guardhome/internal/guard/services/unblock"
)

const (
	filePrefix = "rules-"
	fileSuffix = ".txt"

	// maxNameCollisions bounds the O_EXCL retry loop when several
	// attempts land on the same timestamp.
	maxNameCollisions = 1000
)

// Store persists one rule-set backup per mutation attempt as a flat file
// in a single directory. Records are append-only: nothing here deletes
// or rewrites them, so the directory doubles as an audit trail. Retention
// is left to the operator.
type Store struct {
	dir string
}

// New creates the backup directory if needed and returns a store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backup directory path.
func (s *Store) Dir() string { return s.dir }

// Save writes the rule list verbatim, one rule per line, to a new
// uniquely-named file and syncs it to disk before returning. The file is
// created with O_EXCL so a record is never overwritten; timestamp
// collisions bump a numeric suffix. Failures wrap ErrBackupWrite.
func (s *Store) Save(rules []string, now time.Time) (string, error) {
	stamp := now.UTC().Format("20060102T150405.000000000Z")

	var f *os.File
	var name string
	for i := 0; ; i++ {
		if i >= maxNameCollisions {
			return "", fmt.Errorf("%w: no free name for stamp %s in %s", domain.ErrBackupWrite, stamp, s.dir)
		}
		name = filePrefix + stamp
		if i > 0 {
			name += fmt.Sprintf("-%d", i)
		}
		name += fileSuffix

		var err error
		f, err = os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			break
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("%w: %v", domain.ErrBackupWrite, err)
		}
	}

	var b strings.Builder
	for _, r := range rules {
		b.WriteString(r)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: writing %s: %v", domain.ErrBackupWrite, name, err)
	}
	// The backup is advertised as a safety net, so it must actually be on
	// disk before the mutation is allowed to start.
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("%w: syncing %s: %v", domain.ErrBackupWrite, name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: closing %s: %v", domain.ErrBackupWrite, name, err)
	}
	return name, nil
}

// Read returns the rule list stored in a named backup record, in the
// exact order it was written.
func (s *Store) Read(name string) ([]string, error) {
	if filepath.Base(name) != name {
		return nil, fmt.Errorf("invalid backup name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return nil, fmt.Errorf("reading backup %s: %w", name, err)
	}
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return []string{}, nil
	}
	return strings.Split(text, "\n"), nil
}

// List returns all backup records, newest first.
func (s *Store) List() ([]domain.BackupRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing backups: %w", err)
	}
	var records []domain.BackupRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), filePrefix) || !strings.HasSuffix(e.Name(), fileSuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		records = append(records, domain.BackupRecord{
			Name:      e.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime().UTC(),
		})
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name > records[j].Name
	})
	return records, nil
}

var _ unblock.BackupStore = (*Store)(nil)
