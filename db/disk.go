package db

import (
	"os"
	"path/filepath"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/teranos/orbits/errors"
)

// ErrInsufficientSpace is returned when the volume holding the database has
// less free space than configured.
var ErrInsufficientSpace = errors.New("insufficient disk space")

// FreeBytes returns the free space on the volume holding path. The nearest
// existing ancestor is measured when path does not exist yet.
func FreeBytes(path string) (uint64, error) {
	dir := existingDir(path)
	usage, err := disk.Usage(dir)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get disk usage for %s", dir)
	}
	return usage.Free, nil
}

// CheckFreeSpace fails when fewer than minimumMB megabytes are free where
// path lives. A zero minimum disables the check.
func CheckFreeSpace(path string, minimumMB uint64) error {
	if minimumMB == 0 {
		return nil
	}
	free, err := FreeBytes(path)
	if err != nil {
		return err
	}
	if free < minimumMB*1024*1024 {
		return errors.WithHintf(
			errors.Wrapf(ErrInsufficientSpace, "%d MB free at %s, need %d MB", free/(1024*1024), path, minimumMB),
			"free space or lower database.minimum_free_mb",
		)
	}
	return nil
}

func existingDir(path string) string {
	dir, err := filepath.Abs(path)
	if err != nil {
		dir = path
	}
	for {
		if info, err := os.Stat(dir); err == nil {
			if info.IsDir() {
				return dir
			}
			return filepath.Dir(dir)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}
