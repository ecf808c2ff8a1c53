package store

import (
	"encoding/base64"
	"fmt"
)

// EncodeCursor returns an opaque cursor that resumes a query after the record
// with the given sort key.
func EncodeCursor(lastSortKey string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(lastSortKey))
}

// DecodeCursor is the inverse of [EncodeCursor]. An empty cursor decodes to
// an empty sort key and ok=false.
func DecodeCursor(cursor string) (lastSortKey string, ok bool, err error) {
	if cursor == "" {
		return "", false, nil
	}

	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", false, fmt.Errorf("invalid cursor: %w", err)
	}

	return string(b), true, nil
}
