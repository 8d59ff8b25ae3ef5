// Local persistence for the app. Conversations live on the host; only small
// per-user snapshots are cached here.
package db

import (
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DefaultPath returns the sqlite file under the user's home directory.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "get user home dir")
	}
	dir := filepath.Join(home, ".sagekit")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir %s", dir)
	}
	return filepath.Join(dir, "sagekit.db"), nil
}

// Open opens (and migrates) the local database at the given path.
// An empty path uses DefaultPath.
func Open(path string) (*gorm.DB, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open sqlite db %s", path)
	}

	if err := gdb.AutoMigrate(&UserProfile{}); err != nil {
		return nil, errors.Wrap(err, "migrate local db")
	}

	return gdb, nil
}
