// Package selfupdate locates the running program and the install root it
// updates.
package selfupdate

import (
	"fmt"
	"os"
	"path/filepath"
)

// Install describes where an update lands.
type Install struct {
	// Root is the directory whose files the package replaces.
	Root string
	// Executable is the path the running program occupies inside Root.
	Executable string
}

// ExecutablePath returns the symlink-resolved path of the running program.
func ExecutablePath() (string, error) {
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("determine current executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exePath); err == nil {
		exePath = resolved
	}
	return exePath, nil
}

// ResolveInstall returns the install root and executable target. An empty dir
// selects the directory of the running program; otherwise dir is made
// absolute and the executable keeps its basename inside it.
func ResolveInstall(dir string) (Install, error) {
	exePath, err := ExecutablePath()
	if err != nil {
		return Install{}, err
	}

	root := filepath.Dir(exePath)
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return Install{}, fmt.Errorf("resolve install dir %s: %w", dir, err)
		}
		root = abs
	}
	return Install{Root: root, Executable: filepath.Join(root, filepath.Base(exePath))}, nil
}

// Join resolves p against the install root unless it is already absolute.
func (in Install) Join(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(in.Root, p)
}
