package verify

import (
	_ "crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/opencontainers/go-digest"
)

const chunkSize = 8192

var (
	// ErrUnsupportedDigest is returned for digests whose algorithm is not sha256.
	ErrUnsupportedDigest = errors.New("unsupported digest algorithm")
	// ErrMalformedDigest is returned for digests that do not decompose into "sha256:<hex>".
	ErrMalformedDigest = errors.New("malformed digest")
)

// ParseDigest validates an "algorithm:hex" string and returns it normalised to
// lowercase hex. Only the lowercase algorithm name sha256 is accepted; the hex
// payload may be in either case.
func ParseDigest(expected string) (digest.Digest, error) {
	trimmed := strings.TrimSpace(expected)
	algo, encoded, ok := strings.Cut(trimmed, ":")
	if !ok || algo == "" {
		return "", fmt.Errorf("%w: %q has no algorithm prefix", ErrMalformedDigest, expected)
	}
	if algo != string(digest.SHA256) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDigest, algo)
	}
	if encoded == "" {
		return "", fmt.Errorf("%w: %q has an empty hex payload", ErrMalformedDigest, expected)
	}

	d := digest.NewDigestFromEncoded(digest.SHA256, strings.ToLower(encoded))
	if err := d.Validate(); err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrMalformedDigest, expected, err)
	}
	return d, nil
}

// HashFile computes the sha256 digest of the file at path, reading it in
// fixed-size chunks.
func HashFile(path string) (digest.Digest, error) {
	// #nosec G304 -- path is the downloaded package
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	digester := digest.SHA256.Digester()
	h := digester.Hash()
	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			// hash.Hash.Write never returns an error
			_, _ = h.Write(buf[:n])
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read %s: %w", path, readErr)
		}
	}
	return digester.Digest(), nil
}

// Verify reports whether the file at path matches the expected digest.
// A malformed or unsupported digest is returned as an error, never as a
// mismatch.
func Verify(expected, path string) (bool, error) {
	want, err := ParseDigest(expected)
	if err != nil {
		return false, err
	}
	got, err := HashFile(path)
	if err != nil {
		return false, err
	}
	return got.Encoded() == want.Encoded(), nil
}

// IsFormatError reports whether err came from digest parsing rather than from
// reading the file.
func IsFormatError(err error) bool {
	return errors.Is(err, ErrUnsupportedDigest) || errors.Is(err, ErrMalformedDigest)
}
