package main

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/azagal258/objektdl/internal/archive"
)

func TestRunBuildsExtractablePackage(t *testing.T) {
	src := t.TempDir()
	writeFile := func(name, contents string) {
		path := filepath.Join(src, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	writeFile("objektdl.txt", "binary")
	writeFile("docs/readme.txt", "read me")

	out := filepath.Join(t.TempDir(), "release")
	path, sum, err := run(src, "v.0.2.0", out)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if filepath.Base(path) != "package-v.0.2.0.zip" {
		t.Fatalf("package name: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw := sha256.Sum256(data)
	if want := "sha256:" + hex.EncodeToString(raw[:]); sum != want {
		t.Fatalf("digest: got %s want %s", sum, want)
	}

	dest := t.TempDir()
	if err := archive.Extract(path, dest); err != nil {
		t.Fatalf("extract: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "docs", "readme.txt"))
	if err != nil || string(got) != "read me" {
		t.Fatalf("extracted file: %q, %v", got, err)
	}
}

func TestRunIsReproducible(t *testing.T) {
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, first, err := run(src, "v1", filepath.Join(t.TempDir(), "one"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	_, second, err := run(src, "v1", filepath.Join(t.TempDir(), "two"))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if first != second {
		t.Fatalf("digests differ: %s vs %s", first, second)
	}
}

func TestRunErrors(t *testing.T) {
	empty := t.TempDir()
	tests := []struct {
		name string
		dir  string
		tag  string
	}{
		{"no dir", "", "v1"},
		{"no tag", empty, ""},
		{"missing dir", filepath.Join(empty, "nope"), "v1"},
		{"empty dir", empty, "v1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := run(tt.dir, tt.tag, t.TempDir()); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
