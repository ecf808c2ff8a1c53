package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileStore keeps content as files below a root directory.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("blob directory cannot be empty")
	}

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create blob directory %s: %w", dir, err)
	}

	return &FileStore{root: dir}, nil
}

func (f *FileStore) Store(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full, err := f.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("failed to create directory for blob %s: %w", path, err)
	}

	if err := os.WriteFile(full, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob %s: %w", path, err)
	}

	return makeRef(path, data), nil
}

func (f *FileStore) Retrieve(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, digest, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	full, err := f.resolve(path)
	if err != nil {
		return nil, err
	}

	//nolint:gosec // G304: path is confined to the store root by resolve
	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", ref, ErrNotFound)
		}

		return nil, fmt.Errorf("failed to read blob %s: %w", ref, err)
	}

	if err := verify(ref, digest, data); err != nil {
		return nil, err
	}

	return data, nil
}

// Delete removes the content of ref. Deleting missing content is not an
// error.
func (f *FileStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, _, err := parseRef(ref)
	if err != nil {
		return err
	}

	full, err := f.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob %s: %w", ref, err)
	}

	return nil
}

func (f *FileStore) resolve(path string) (string, error) {
	if path == "" || filepath.IsAbs(path) {
		return "", fmt.Errorf("invalid blob path %q", path)
	}

	full := filepath.Join(f.root, filepath.FromSlash(path))

	rel, err := filepath.Rel(f.root, full)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("blob path %q escapes the store root", path)
	}

	return full, nil
}
