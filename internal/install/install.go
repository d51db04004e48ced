// Package install moves extracted package files from the staging area over
// the live install.
package install

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/inconshreveable/go-update"
	"github.com/samber/lo"
)

// Outcome records what happened to every staged file.
type Outcome struct {
	// Results maps the slash-separated path relative to the staging root to
	// the error that occurred while installing it, or nil.
	Results        map[string]error
	StagingDrained bool
}

// Installed returns the relative paths that were replaced, sorted.
func (o Outcome) Installed() []string {
	return sortedKeys(lo.PickBy(o.Results, func(_ string, err error) bool { return err == nil }))
}

// Failed returns the relative paths that could not be replaced, sorted.
func (o Outcome) Failed() []string {
	return sortedKeys(lo.OmitBy(o.Results, func(_ string, err error) bool { return err == nil }))
}

// Complete reports whether every file was installed and staging is gone.
func (o Outcome) Complete() bool {
	return o.StagingDrained && len(o.Failed()) == 0
}

// Err returns an *IncompleteError when the outcome is not complete.
func (o Outcome) Err() error {
	if o.Complete() {
		return nil
	}
	return &IncompleteError{Failed: o.Failed(), StagingDrained: o.StagingDrained}
}

// IncompleteError reports an install that left files behind in staging.
type IncompleteError struct {
	Failed         []string
	StagingDrained bool
}

func (e *IncompleteError) Error() string {
	if len(e.Failed) == 0 {
		return "staging area not drained after install"
	}
	return fmt.Sprintf("%d file(s) not installed: %s", len(e.Failed), strings.Join(e.Failed, ", "))
}

// Installer replaces files under Root with their staged counterparts.
type Installer struct {
	Root string
	// Executable is the path of the running program. A staged file that
	// lands on it is applied with go-update instead of a plain rename.
	Executable string

	rename        func(oldPath, newPath string) error
	applyToTarget func(src, target string) error
}

// New returns an Installer for root. executable may be empty.
func New(root, executable string) *Installer {
	return &Installer{
		Root:          root,
		Executable:    executable,
		rename:        os.Rename,
		applyToTarget: applyExecutable,
	}
}

// Commit installs every regular file found under staging. A failure on one
// file is recorded and the loop moves on; there is no rollback. When nothing
// is left in staging afterwards the directory is removed.
//
// The returned error covers problems reading staging itself. Per-file
// failures are reported through the Outcome.
func (i *Installer) Commit(staging string) (Outcome, error) {
	files, err := stagedFiles(staging)
	if err != nil {
		return Outcome{}, fmt.Errorf("scan staging %s: %w", staging, err)
	}

	out := Outcome{Results: make(map[string]error, len(files))}
	for _, rel := range files {
		out.Results[rel] = i.installOne(staging, rel)
	}

	left, err := stagedFiles(staging)
	if err != nil {
		return out, fmt.Errorf("rescan staging %s: %w", staging, err)
	}
	if len(left) == 0 {
		if err := os.RemoveAll(staging); err != nil {
			return out, fmt.Errorf("remove staging %s: %w", staging, err)
		}
		out.StagingDrained = true
	}
	return out, nil
}

func (i *Installer) installOne(staging, rel string) error {
	src := filepath.Join(staging, filepath.FromSlash(rel))
	dst := filepath.Join(i.Root, filepath.FromSlash(rel))

	// #nosec G301 -- parent lies under the install root
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", rel, err)
	}

	if i.isExecutable(dst) {
		if err := i.applyToTarget(src, dst); err != nil {
			return fmt.Errorf("replace running executable: %w", err)
		}
		if err := os.Remove(src); err != nil {
			return fmt.Errorf("remove staged executable: %w", err)
		}
		return nil
	}

	if err := i.rename(src, dst); err != nil {
		return fmt.Errorf("rename %s: %w", rel, err)
	}
	return nil
}

func (i *Installer) isExecutable(dst string) bool {
	if i.Executable == "" {
		return false
	}
	a, err := filepath.Abs(dst)
	if err != nil {
		return false
	}
	b, err := filepath.Abs(i.Executable)
	if err != nil {
		return false
	}
	if ra, err := filepath.EvalSymlinks(a); err == nil {
		a = ra
	}
	if rb, err := filepath.EvalSymlinks(b); err == nil {
		b = rb
	}
	return a == b
}

// applyExecutable writes src beside target and swaps it in, keeping the old
// binary until the swap succeeds.
func applyExecutable(src, target string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	// #nosec G304 -- src is inside the staging area
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	err = update.Apply(f, update.Options{TargetPath: target, TargetMode: info.Mode().Perm()})
	if err != nil {
		if rerr := update.RollbackError(err); rerr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rerr)
		}
		return err
	}
	return nil
}

// stagedFiles lists regular files under staging as slash-separated relative
// paths in lexical order.
func stagedFiles(staging string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(staging, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(staging, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	return files, err
}

func sortedKeys(m map[string]error) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}
