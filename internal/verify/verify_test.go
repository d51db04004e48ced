package verify

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/azagal258/objektdl/internal/model"
)

const helloSHA256 = "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9"

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestVerify(t *testing.T) {
	t.Parallel()

	path := writeFile(t, t.TempDir(), "package-v.0.2.0.zip", []byte("hello world"))

	tests := []struct {
		name       string
		expected   string
		want       bool
		wantFormat bool
	}{
		{name: "match", expected: "sha256:" + helloSHA256, want: true},
		{name: "match uppercase hex", expected: "sha256:" + strings.ToUpper(helloSHA256), want: true},
		{name: "uppercase algorithm unsupported", expected: "SHA256:" + helloSHA256, wantFormat: true},
		{name: "mismatch", expected: "sha256:" + strings.Repeat("0", 64), want: false},
		{name: "md5 unsupported", expected: "md5:5eb63bbbe01eeed093cb22bb8f5acdc3", wantFormat: true},
		{name: "sha512 unsupported", expected: "sha512:" + strings.Repeat("a", 128), wantFormat: true},
		{name: "no prefix", expected: helloSHA256, wantFormat: true},
		{name: "empty hex", expected: "sha256:", wantFormat: true},
		{name: "short hex", expected: "sha256:abcd", wantFormat: true},
		{name: "non hex", expected: "sha256:" + strings.Repeat("z", 64), wantFormat: true},
		{name: "empty", expected: "", wantFormat: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := Verify(tc.expected, path)
			if tc.wantFormat {
				if err == nil || !IsFormatError(err) {
					t.Fatalf("expected format error, got ok=%v err=%v", got, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if got != tc.want {
				t.Fatalf("match: got %v want %v", got, tc.want)
			}
		})
	}
}

func TestVerifyDetectsMutation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	data := []byte(strings.Repeat("objektdl package payload ", 1000))
	path := writeFile(t, dir, "pkg.zip", data)

	d, err := HashFile(path)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	ok, err := Verify(d.String(), path)
	if err != nil || !ok {
		t.Fatalf("pristine file: ok=%v err=%v", ok, err)
	}

	data[len(data)/2] ^= 0x01
	writeFile(t, dir, "pkg.zip", data)
	ok, err = Verify(d.String(), path)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatalf("flipped bit was not detected")
	}
}

func TestHashFileSpansChunks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	small := writeFile(t, dir, "small", []byte("hello world"))
	d, err := HashFile(small)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if d.Encoded() != helloSHA256 {
		t.Fatalf("digest: got %s want %s", d.Encoded(), helloSHA256)
	}

	// one byte past a chunk boundary
	big := writeFile(t, dir, "big", make([]byte, chunkSize*3+1))
	d1, err := HashFile(big)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	d2, err := HashFile(big)
	if err != nil {
		t.Fatalf("HashFile: %v", err)
	}
	if d1 != d2 {
		t.Fatalf("digest not stable: %s vs %s", d1, d2)
	}
}

func TestHashFileMissing(t *testing.T) {
	t.Parallel()

	_, err := HashFile(filepath.Join(t.TempDir(), "missing.zip"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if IsFormatError(err) {
		t.Fatalf("missing file reported as format error: %v", err)
	}
}

func TestParseDigestNormalises(t *testing.T) {
	t.Parallel()

	d, err := ParseDigest("  sha256:" + strings.ToUpper(helloSHA256) + "\n")
	if err != nil {
		t.Fatalf("ParseDigest: %v", err)
	}
	if d.String() != "sha256:"+helloSHA256 {
		t.Fatalf("digest: got %q", d.String())
	}

	_, err = ParseDigest("md5:abc")
	if !errors.Is(err, ErrUnsupportedDigest) {
		t.Fatalf("md5: got %v want ErrUnsupportedDigest", err)
	}
	_, err = ParseDigest("SHA256:" + helloSHA256)
	if !errors.Is(err, ErrUnsupportedDigest) {
		t.Fatalf("SHA256: got %v want ErrUnsupportedDigest", err)
	}
}

// minisignFixture signs content the way the minisign tool does for legacy
// (non-prehashed) signatures and returns the encoded public key and the
// signature file contents.
func minisignFixture(t *testing.T, content []byte) (string, string) {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	keyID := []byte{1, 2, 3, 4, 5, 6, 7, 8}

	pkBlob := append([]byte("Ed"), keyID...)
	pkBlob = append(pkBlob, pub...)

	sig := ed25519.Sign(priv, content)
	sigBlob := append([]byte("Ed"), keyID...)
	sigBlob = append(sigBlob, sig...)

	trusted := "timestamp:1700000000\tfile:package.zip"
	global := ed25519.Sign(priv, append(append([]byte(nil), sig...), []byte(trusted)...))

	sigFile := "untrusted comment: signature from objektdl test key\n" +
		base64.StdEncoding.EncodeToString(sigBlob) + "\n" +
		"trusted comment: " + trusted + "\n" +
		base64.StdEncoding.EncodeToString(global) + "\n"
	return base64.StdEncoding.EncodeToString(pkBlob), sigFile
}

func TestVerifyMinisignFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := []byte("package contents")
	pkgPath := writeFile(t, dir, "package-v.0.2.0.zip", content)
	pubKey, sigFile := minisignFixture(t, content)
	sigPath := writeFile(t, dir, "package-v.0.2.0.zip"+SignatureSuffix, []byte(sigFile))

	if err := VerifyMinisignFile(pkgPath, sigPath, pubKey); err != nil {
		t.Fatalf("VerifyMinisignFile with inline key: %v", err)
	}

	keyPath := writeFile(t, dir, "objektdl.pub", []byte("untrusted comment: minisign public key\n"+pubKey+"\n"))
	if err := VerifyMinisignFile(pkgPath, sigPath, keyPath); err != nil {
		t.Fatalf("VerifyMinisignFile with key file: %v", err)
	}

	tampered := writeFile(t, dir, "tampered.zip", []byte("package contentz"))
	err := VerifyMinisignFile(tampered, sigPath, pubKey)
	if !errors.Is(err, ErrSignatureInvalid) {
		t.Fatalf("tampered: got %v want ErrSignatureInvalid", err)
	}

	if err := VerifyMinisignFile(pkgPath, sigPath, ""); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestFindSignatureAsset(t *testing.T) {
	t.Parallel()

	rel := &model.Release{TagName: "v.0.2.0", Assets: []model.Asset{
		{Name: "package-v.0.2.0.zip"},
		{Name: "package-v.0.2.0.zip.minisig"},
		{Name: "package-v.0.1.0.zip.minisig"},
	}}
	got := FindSignatureAsset(rel, "package-v.0.2.0.zip")
	if got == nil || got.Name != "package-v.0.2.0.zip.minisig" {
		t.Fatalf("FindSignatureAsset: got %+v", got)
	}
	if got := FindSignatureAsset(rel, "package-v.0.3.0.zip"); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
	if got := FindSignatureAsset(rel, "package-v.0.2.0"); got != nil {
		t.Fatalf("prefix match: got %+v", got)
	}
	// the returned pointer aliases the release entry
	if got := FindSignatureAsset(rel, "package-v.0.2.0.zip"); got != &rel.Assets[1] {
		t.Fatalf("expected pointer into release assets")
	}
}

func TestFormatSize(t *testing.T) {
	t.Parallel()

	if got := FormatSize(512); got != "512 B" {
		t.Fatalf("FormatSize(512): got %q", got)
	}
	if got := FormatSize(1536); !strings.Contains(got, "KB") {
		t.Fatalf("FormatSize(1536): got %q", got)
	}
}
