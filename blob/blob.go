// Package blob provides the content stores used by the resource service.
//
// Refs have the form <path>@<sha256 hex>; content is verified against the
// digest on every read.
package blob

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a ref points at no content.
	ErrNotFound = errors.New("blob not found")

	// ErrCorrupt is returned when stored content no longer matches its ref.
	ErrCorrupt = errors.New("blob content does not match its digest")
)

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func makeRef(path string, data []byte) string {
	return path + "@" + Digest(data)
}

func parseRef(ref string) (path, digest string, err error) {
	i := strings.LastIndexByte(ref, '@')
	if i <= 0 || i == len(ref)-1 {
		return "", "", fmt.Errorf("malformed blob ref %q", ref)
	}

	return ref[:i], ref[i+1:], nil
}

func verify(ref, digest string, data []byte) error {
	if Digest(data) != digest {
		return fmt.Errorf("%s: %w", ref, ErrCorrupt)
	}

	return nil
}
