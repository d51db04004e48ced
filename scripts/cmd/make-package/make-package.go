// Command make-package zips a release directory into package-<tag>.zip and
// prints the digest GitHub reports for the uploaded asset.
package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/spf13/pflag"

	"github.com/azagal258/objektdl/internal/verify"
	"github.com/azagal258/objektdl/pkg/update"
)

// fixedTime keeps archives reproducible.
var fixedTime = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func main() {
	dir := pflag.String("dir", "dist/package", "directory whose contents become the package")
	tag := pflag.String("tag", "", "release tag, e.g. v.0.2.0")
	out := pflag.String("out", "dist/release", "directory the package is written to")
	pflag.Parse()

	path, sum, err := run(*dir, *tag, *out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n%s\n", path, sum)
}

func run(dir, tag, out string) (string, string, error) {
	dir = strings.TrimSpace(dir)
	tag = strings.TrimSpace(tag)
	if dir == "" {
		return "", "", errors.New("directory is required")
	}
	if tag == "" {
		return "", "", errors.New("tag is required")
	}
	if err := ensureDir(dir); err != nil {
		return "", "", err
	}

	files, err := collectFiles(dir)
	if err != nil {
		return "", "", err
	}
	if len(files) == 0 {
		return "", "", fmt.Errorf("no files found in %s", dir)
	}

	// #nosec G301 -- build tool output directory
	if err := os.MkdirAll(out, 0o755); err != nil {
		return "", "", fmt.Errorf("create %s: %w", out, err)
	}
	pkgPath := filepath.Join(out, update.PackageName(tag))
	if err := writeZip(pkgPath, dir, files); err != nil {
		return "", "", err
	}

	d, err := verify.HashFile(pkgPath)
	if err != nil {
		return "", "", err
	}
	return pkgPath, d.String(), nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("directory %s not found", dir)
		}
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

// collectFiles returns slash-separated relative paths of regular files under
// dir, sorted. Symlinks are refused since the updater rejects them too.
func collectFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&fs.ModeSymlink != 0 {
			return fmt.Errorf("%s is a symlink", path)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func writeZip(pkgPath, dir string, files []string) (err error) {
	f, err := os.Create(pkgPath) // #nosec G304 -- build tool output path
	if err != nil {
		return fmt.Errorf("create %s: %w", pkgPath, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", pkgPath, closeErr)
		}
	}()

	zw := zip.NewWriter(f)
	for _, name := range files {
		if err := addFile(zw, filepath.Join(dir, filepath.FromSlash(name)), name); err != nil {
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish %s: %w", pkgPath, err)
	}
	return nil
}

func addFile(zw *zip.Writer, src, name string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("header %s: %w", src, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate
	hdr.Modified = fixedTime

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	in, err := os.Open(src) // #nosec G304 -- build tool reading package contents
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
