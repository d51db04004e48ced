// Package archive unpacks untrusted update packages.
//
// Every entry is checked before anything is written: a package containing a
// single entry that would land outside the destination is rejected as a whole.
package archive

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// SecurityViolationError reports an archive entry that would escape the
// extraction root.
type SecurityViolationError struct {
	Entry  string
	Reason string
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("unsafe archive entry %q: %s", e.Entry, e.Reason)
}

// IsSecurityViolation reports whether err carries a SecurityViolationError.
func IsSecurityViolation(err error) bool {
	var sv *SecurityViolationError
	return errors.As(err, &sv)
}

// Extract unpacks the zip at archivePath into destDir. destDir is created if
// missing. No file is written unless every entry passes the path check.
func Extract(archivePath, destDir string) (err error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", destDir, err)
	}
	root, err := canonicalPath(destDir)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", destDir, err)
	}

	// An insecure-path error still comes with a usable reader; the entry scan
	// below reports those names itself.
	zr, err := zip.OpenReader(archivePath)
	if zr == nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	err = nil
	defer func() {
		if closeErr := zr.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	targets := make([]string, len(zr.File))
	for i, file := range zr.File {
		target, checkErr := entryTarget(root, file)
		if checkErr != nil {
			return checkErr
		}
		targets[i] = target
	}

	for i, file := range zr.File {
		if file.FileInfo().IsDir() {
			if mkErr := os.MkdirAll(targets[i], dirMode(file)); mkErr != nil {
				return fmt.Errorf("create directory %s: %w", file.Name, mkErr)
			}
			continue
		}
		if mkErr := os.MkdirAll(filepath.Dir(targets[i]), 0o755); mkErr != nil {
			return fmt.Errorf("create parent of %s: %w", file.Name, mkErr)
		}
		if exErr := extractFile(file, targets[i]); exErr != nil {
			return fmt.Errorf("extract %s: %w", file.Name, exErr)
		}
	}
	return nil
}

// entryTarget returns the destination of file under root, or a
// SecurityViolationError.
func entryTarget(root string, file *zip.File) (string, error) {
	name := file.Name
	if isAbsoluteName(name) {
		return "", &SecurityViolationError{Entry: name, Reason: "absolute path"}
	}
	if file.Mode()&os.ModeSymlink != 0 {
		return "", &SecurityViolationError{Entry: name, Reason: "symbolic link"}
	}

	joined := filepath.Join(root, filepath.FromSlash(name))
	resolved, err := canonicalPath(joined)
	if err != nil {
		return "", &SecurityViolationError{Entry: name, Reason: err.Error()}
	}
	if !within(root, resolved) {
		return "", &SecurityViolationError{Entry: name, Reason: "resolves outside " + root}
	}
	return resolved, nil
}

func isAbsoluteName(name string) bool {
	if name == "" {
		return false
	}
	if name[0] == '/' || name[0] == '\\' {
		return true
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return true
	}
	// drive letters are not volumes on unix but are on the machines packages target
	if len(name) >= 2 && name[1] == ':' {
		c := name[0] | 0x20
		return c >= 'a' && c <= 'z'
	}
	return false
}

// within reports whether target is root or lies below it. A sibling such as
// root+"-evil" does not match.
func within(root, target string) bool {
	if target == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(target, prefix)
}

// canonicalPath makes path absolute and resolves symlinks in its longest
// existing prefix. The missing tail is appended unchanged.
func canonicalPath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	existing := abs
	var tail []string
	for {
		if _, statErr := os.Lstat(existing); statErr == nil {
			break
		}
		parent := filepath.Dir(existing)
		if parent == existing {
			break
		}
		tail = append([]string{filepath.Base(existing)}, tail...)
		existing = parent
	}

	resolved, err := filepath.EvalSymlinks(existing)
	if err != nil {
		return "", err
	}
	return filepath.Join(append([]string{resolved}, tail...)...), nil
}

func dirMode(file *zip.File) os.FileMode {
	perm := file.Mode().Perm()
	if perm == 0 {
		return 0o755
	}
	return perm | 0o700
}

func extractFile(file *zip.File, destPath string) (err error) {
	rc, err := file.Open()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := rc.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	perm := file.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}
	// #nosec G304 -- destPath passed the containment check in entryTarget
	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// #nosec G110 -- package digest is verified before extraction
	_, err = io.Copy(out, rc)
	return err
}
