// Package store persists small string values in a flat KEY=value file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/azagal258/objektdl/internal/logutil"
)

const (
	// KeyUpdateFinished is "false" while an update attempt is in flight and
	// "true" once a full install committed.
	KeyUpdateFinished = "has_update_finished"
	// KeyGitHubToken holds an optional GitHub API credential.
	KeyGitHubToken = "gh_api_token"
)

// File is a key/value store backed by a .env formatted file. Reads take a
// shared lock and writes an exclusive one on path+".lock".
type File struct {
	path string
	log  logrus.FieldLogger
}

// Open returns a store for path. The file does not need to exist yet. A nil
// logger discards store logging.
func Open(path string, logger logrus.FieldLogger) *File {
	if logger == nil {
		logger = logutil.Discard()
	}
	return &File{path: path, log: logger}
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

// Get returns the value for key and whether it was present.
func (f *File) Get(key string) (string, bool, error) {
	fileLock, err := f.lock(false)
	if err != nil {
		return "", false, err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	values, err := f.read()
	if err != nil {
		return "", false, err
	}
	v, ok := values[key]
	return v, ok, nil
}

// All returns every stored value.
func (f *File) All() (map[string]string, error) {
	fileLock, err := f.lock(false)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()
	return f.read()
}

// Set stores value under key. The file is rewritten through a synced temp
// file and a rename, so the value is durable when Set returns.
func (f *File) Set(key, value string) error {
	fileLock, err := f.lock(true)
	if err != nil {
		return err
	}
	defer func() {
		_ = fileLock.Unlock()
	}()

	values, err := f.read()
	if err != nil {
		return err
	}
	values[key] = value

	content, err := godotenv.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}
	if err := writeAtomic(f.path, []byte(content+"\n")); err != nil {
		return err
	}
	f.log.WithFields(logrus.Fields{"key": key, "file": f.path}).Debug("stored value")
	return nil
}

func (f *File) read() (map[string]string, error) {
	values, err := godotenv.Read(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return values, nil
}

// lock takes the advisory lock beside the store file, creating its
// directory first.
func (f *File) lock(exclusive bool) (*flock.Flock, error) {
	dir := filepath.Dir(f.path)
	// #nosec G301 -- store lives in the install root
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}
	fileLock := flock.New(f.path + ".lock")
	lockFn := fileLock.RLock
	if exclusive {
		lockFn = fileLock.Lock
	}
	if err := lockFn(); err != nil {
		return nil, fmt.Errorf("lock %s: %w", f.path, err)
	}
	return fileLock, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpPath, err)
	}
	if err := errors.Join(tmp.Sync(), tmp.Close()); err != nil {
		return fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	committed = true
	return nil
}
