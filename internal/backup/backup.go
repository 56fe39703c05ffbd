// Package backup creates rotating copies of the ratchet database.
//
// Before most commands run, the CLI asks the manager for a backup; a copy
// is taken only when the newest one is older than the configured interval.
// Copies live next to the database (or in a configured directory) as
// ratchet.db.bak.1 through ratchet.db.bak.N, with 1 the most recent.
package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spannerworks/ratchet/internal/config"
)

// Prefix is the file name prefix shared by all backup copies.
const Prefix = "ratchet.db.bak."

// Manager takes and rotates database backups per the backup config.
type Manager struct {
	dbPath string
	dir    string
	cfg    config.BackupConfig
}

// NewManager creates a manager for the database at dbPath. When the config
// does not name a backup directory, copies go next to the database.
func NewManager(dbPath string, cfg config.BackupConfig) *Manager {
	dir := cfg.Path
	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	return &Manager{dbPath: dbPath, dir: dir, cfg: cfg}
}

// Dir returns the directory backups are written to.
func (m *Manager) Dir() string {
	return m.dir
}

// BackupIfNeeded takes a backup when the newest copy is stale or missing,
// and returns the path of the new copy or "" when nothing was done. Backups
// being disabled, or the database not existing yet, are not errors.
func (m *Manager) BackupIfNeeded() (string, error) {
	if !m.cfg.Enabled {
		return "", nil
	}
	if _, err := os.Stat(m.dbPath); os.IsNotExist(err) {
		return "", nil
	}

	stale, err := m.newestIsStale()
	if err != nil {
		return "", fmt.Errorf("checking backup age: %w", err)
	}
	if !stale {
		return "", nil
	}

	path, err := m.take()
	if err != nil {
		return "", fmt.Errorf("creating backup: %w", err)
	}
	return path, nil
}

// newestIsStale reports whether the most recent copy is older than the
// configured interval. Having no copies at all counts as stale.
func (m *Manager) newestIsStale() (bool, error) {
	backups, err := m.Backups()
	if err != nil {
		return false, err
	}
	if len(backups) == 0 {
		return true, nil
	}
	info, err := os.Stat(backups[0])
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", backups[0], err)
	}
	return time.Since(info.ModTime()) > time.Duration(m.cfg.IntervalHours)*time.Hour, nil
}

// Backups returns existing backup paths, newest (bak.1) first. Files in the
// backup directory that do not parse as <prefix><number> are ignored.
func (m *Manager) Backups() ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", m.dir, err)
	}

	var numbers []int
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), Prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(entry.Name(), Prefix))
		if err != nil || n < 1 {
			continue
		}
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	paths := make([]string, len(numbers))
	for i, n := range numbers {
		paths[i] = filepath.Join(m.dir, fmt.Sprintf("%s%d", Prefix, n))
	}
	return paths, nil
}

// take rotates the existing copies up one slot and writes a fresh bak.1.
func (m *Manager) take() (string, error) {
	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	if err := m.rotate(); err != nil {
		return "", fmt.Errorf("rotating: %w", err)
	}

	dst := filepath.Join(m.dir, Prefix+"1")
	if err := copyFile(m.dbPath, dst); err != nil {
		return "", fmt.Errorf("copying database: %w", err)
	}
	return dst, nil
}

// rotate renames bak.N to bak.N+1, oldest first so nothing is overwritten,
// and removes copies that would fall past MaxCount.
func (m *Manager) rotate() error {
	backups, err := m.Backups()
	if err != nil {
		return err
	}

	for i := len(backups) - 1; i >= 0; i-- {
		path := backups[i]
		n, _ := strconv.Atoi(strings.TrimPrefix(filepath.Base(path), Prefix))
		if n+1 > m.cfg.MaxCount {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing %s: %w", path, err)
			}
			continue
		}
		next := filepath.Join(m.dir, fmt.Sprintf("%s%d", Prefix, n+1))
		if err := os.Rename(path, next); err != nil {
			return fmt.Errorf("renaming %s: %w", path, err)
		}
	}
	return nil
}

// copyFile copies src to dst with the source's mode and syncs the result.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening source: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_RDWR|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return fmt.Errorf("creating destination: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return out.Sync()
}
