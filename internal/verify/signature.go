package verify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedisct1/go-minisign"
)

// SignatureSuffix is appended to a package name to form its detached minisign signature name.
const SignatureSuffix = ".minisig"

// ErrSignatureInvalid is returned when a minisign signature does not verify.
var ErrSignatureInvalid = errors.New("minisign signature verification failed")

// LoadPublicKey accepts either an encoded minisign public key ("RW...") or a
// path to a minisign .pub file.
func LoadPublicKey(keyOrPath string) (minisign.PublicKey, error) {
	trimmed := strings.TrimSpace(keyOrPath)
	if trimmed == "" {
		return minisign.PublicKey{}, fmt.Errorf("minisign public key is required")
	}
	if pk, err := minisign.NewPublicKey(trimmed); err == nil {
		return pk, nil
	}
	pk, err := minisign.NewPublicKeyFromFile(trimmed)
	if err != nil {
		return minisign.PublicKey{}, fmt.Errorf("read minisign pubkey: %w", err)
	}
	return pk, nil
}

// VerifyMinisignFile checks the detached signature at sigPath against the
// contents of path.
func VerifyMinisignFile(path, sigPath, publicKey string) error {
	pk, err := LoadPublicKey(publicKey)
	if err != nil {
		return err
	}

	sig, err := minisign.NewSignatureFromFile(sigPath)
	if err != nil {
		return fmt.Errorf("read minisign signature: %w", err)
	}

	// #nosec G304 -- path is the downloaded package
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	valid, err := pk.Verify(content, sig)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	}
	if !valid {
		return ErrSignatureInvalid
	}
	return nil
}
