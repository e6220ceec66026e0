package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"github.com/arthur-debert/distsync/pkg/types"
)

// Prefix marks a SHA256 checksum string.
const Prefix = "sha256:"

// FileChecksum calculates the SHA256 checksum of a file as "sha256:<hex>".
func FileChecksum(fsys types.SourceReader, path string) (string, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = file.Close()
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return Prefix + hex.EncodeToString(hash.Sum(nil)), nil
}

// Normalize lowercases a checksum and adds the sha256 prefix when missing,
// so "ABC..." and "sha256:abc..." compare equal.
func Normalize(checksum string) string {
	c := strings.ToLower(strings.TrimSpace(checksum))
	if c == "" || strings.HasPrefix(c, Prefix) {
		return c
	}
	return Prefix + c
}

// Equal compares two checksums after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
