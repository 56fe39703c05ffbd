package backup

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spannerworks/ratchet/internal/config"
)

func testBackupConfig() config.BackupConfig {
	return config.BackupConfig{
		Enabled:       true,
		IntervalHours: 24,
		MaxCount:      5,
		Path:          "",
	}
}

// writeAged writes a file and pushes its mtime back by the given age.
func writeAged(t *testing.T, path string, data []byte, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
	if age > 0 {
		old := time.Now().Add(-age)
		require.NoError(t, os.Chtimes(path, old, old))
	}
}

func TestNewManager_Dir(t *testing.T) {
	t.Run("custom backup path", func(t *testing.T) {
		cfg := testBackupConfig()
		cfg.Path = "/var/backups/ratchet"

		m := NewManager("/data/ratchet.db", cfg)
		assert.Equal(t, "/var/backups/ratchet", m.Dir())
	})

	t.Run("defaults to the database directory", func(t *testing.T) {
		m := NewManager("/data/ratchet.db", testBackupConfig())
		assert.Equal(t, "/data", m.Dir())
	})
}

func TestBackupIfNeeded_Disabled(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("data"), 0644))

	cfg := testBackupConfig()
	cfg.Enabled = false

	path, err := NewManager(dbPath, cfg).BackupIfNeeded()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupIfNeeded_NoDatabase(t *testing.T) {
	dir := t.TempDir()

	path, err := NewManager(filepath.Join(dir, "missing.db"), testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)
	assert.Empty(t, path)
}

func TestBackupIfNeeded_FirstCopy(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("data"), 0644))

	path, err := NewManager(dbPath, testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ratchet.db.bak.1"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("data"), content)
}

func TestBackupIfNeeded_FreshCopySkips(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("data"), 0644))
	writeAged(t, filepath.Join(dir, "ratchet.db.bak.1"), []byte("recent"), 0)

	path, err := NewManager(dbPath, testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)
	assert.Empty(t, path, "a copy younger than the interval should be kept as-is")
}

func TestBackupIfNeeded_StaleCopyRotates(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("current"), 0644))
	writeAged(t, filepath.Join(dir, "ratchet.db.bak.1"), []byte("old"), 25*time.Hour)

	path, err := NewManager(dbPath, testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ratchet.db.bak.1"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("current"), content)

	rotated, err := os.ReadFile(filepath.Join(dir, "ratchet.db.bak.2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), rotated)
}

func TestRotation_ShiftsEverySlot(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("current"), 0644))

	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("ratchet.db.bak.%d", i)
		writeAged(t, filepath.Join(dir, name), []byte(fmt.Sprintf("copy %d", i)), time.Duration(25+i)*time.Hour)
	}

	m := NewManager(dbPath, testBackupConfig())
	_, err := m.BackupIfNeeded()
	require.NoError(t, err)

	backups, err := m.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 4)

	content, err := os.ReadFile(filepath.Join(dir, "ratchet.db.bak.1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("current"), content)

	content, err = os.ReadFile(filepath.Join(dir, "ratchet.db.bak.2"))
	require.NoError(t, err)
	assert.Equal(t, []byte("copy 1"), content)
}

func TestRotation_DropsPastMaxCount(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("current"), 0644))

	for i := 1; i <= 3; i++ {
		name := fmt.Sprintf("ratchet.db.bak.%d", i)
		writeAged(t, filepath.Join(dir, name), []byte(fmt.Sprintf("copy %d", i)), time.Duration(25+i)*time.Hour)
	}

	cfg := testBackupConfig()
	cfg.MaxCount = 3

	m := NewManager(dbPath, cfg)
	_, err := m.BackupIfNeeded()
	require.NoError(t, err)

	backups, err := m.Backups()
	require.NoError(t, err)
	assert.Len(t, backups, 3)

	_, err = os.Stat(filepath.Join(dir, "ratchet.db.bak.4"))
	assert.True(t, os.IsNotExist(err), "the oldest copy should be dropped, not rotated")
}

func TestRotation_MaxCountOfOne(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("first"), 0644))

	cfg := testBackupConfig()
	cfg.MaxCount = 1

	m := NewManager(dbPath, cfg)
	_, err := m.BackupIfNeeded()
	require.NoError(t, err)

	old := time.Now().Add(-25 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "ratchet.db.bak.1"), old, old))
	require.NoError(t, os.WriteFile(dbPath, []byte("second"), 0644))

	_, err = m.BackupIfNeeded()
	require.NoError(t, err)

	backups, err := m.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 1)

	content, err := os.ReadFile(backups[0])
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), content)
}

func TestBackups_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	m := NewManager(dbPath, testBackupConfig())

	backups, err := m.Backups()
	require.NoError(t, err)
	assert.Empty(t, backups)

	for _, n := range []int{3, 1, 2} {
		name := fmt.Sprintf("ratchet.db.bak.%d", n)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.db"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ratchet.db.bak.junk"), []byte("x"), 0644))

	backups, err = m.Backups()
	require.NoError(t, err)
	require.Len(t, backups, 3)
	assert.Equal(t, filepath.Join(dir, "ratchet.db.bak.1"), backups[0])
	assert.Equal(t, filepath.Join(dir, "ratchet.db.bak.2"), backups[1])
	assert.Equal(t, filepath.Join(dir, "ratchet.db.bak.3"), backups[2])
}

func TestBackup_CustomDirectoryIsCreated(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "db")
	backupDir := filepath.Join(dir, "backups")
	require.NoError(t, os.MkdirAll(dbDir, 0755))

	dbPath := filepath.Join(dbDir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("data"), 0644))

	cfg := testBackupConfig()
	cfg.Path = backupDir

	path, err := NewManager(dbPath, cfg).BackupIfNeeded()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(backupDir, "ratchet.db.bak.1"), path)

	info, err := os.Stat(backupDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestBackup_PreservesMode(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")
	require.NoError(t, os.WriteFile(dbPath, []byte("data"), 0600))

	path, err := NewManager(dbPath, testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)

	src, err := os.Stat(dbPath)
	require.NoError(t, err)
	dst, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, src.Mode(), dst.Mode())
}

func TestBackup_CopiesLargeFileIntact(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "ratchet.db")

	data := make([]byte, 1024*1024)
	for i := range data {
		data[i] = byte(i % 256)
	}
	require.NoError(t, os.WriteFile(dbPath, data, 0644))

	path, err := NewManager(dbPath, testBackupConfig()).BackupIfNeeded()
	require.NoError(t, err)

	copied, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, data, copied)
}
