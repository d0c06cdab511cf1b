package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/trendyx/identity-service/internal/domain"
)

// backupStamp is sortable so retention pruning can drop oldest-first by name.
const backupStamp = "20060102-150405.000"

// backupExisting copies the current snapshot files into a new timestamped
// directory under backups/. Called with saveMu held, before any snapshot is
// overwritten. A data dir with no snapshots yet produces no backup.
func (s *Store) backupExisting() error {
	var present []string
	for _, name := range []string{usersFile, profilesFile, sessionsFile} {
		if _, err := os.Stat(filepath.Join(s.dataDir, name)); err == nil {
			present = append(present, name)
		}
	}
	if len(present) == 0 {
		return nil
	}

	dir := filepath.Join(s.dataDir, backupsDir, s.now().UTC().Format(backupStamp))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create backup dir: %v", domain.ErrPersistence, err)
	}
	for _, name := range present {
		if err := copyFile(filepath.Join(s.dataDir, name), filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("%w: backup %s: %v", domain.ErrPersistence, name, err)
		}
	}
	return nil
}

// pruneBackups removes backup directories beyond the retention count,
// oldest first. Called with saveMu held.
func (s *Store) pruneBackups() error {
	root := filepath.Join(s.dataDir, backupsDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: list backups: %v", domain.ErrPersistence, err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	if len(dirs) <= s.retention {
		return nil
	}
	sort.Strings(dirs)
	for _, name := range dirs[:len(dirs)-s.retention] {
		if err := os.RemoveAll(filepath.Join(root, name)); err != nil {
			return fmt.Errorf("%w: prune backup %s: %v", domain.ErrPersistence, name, err)
		}
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
