package recipes

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// recipeUploadDir is the subdirectory under the media root for recipe images
const recipeUploadDir = "uploads/recipe"

// ImageStore persists uploaded recipe images and returns a stable relative
// path for each stored file.
type ImageStore interface {
	// Save stores the image bytes under a generated filename carrying ext
	// (including the leading dot) and returns the relative path.
	Save(ext string, r io.Reader) (string, error)
	// Remove deletes a previously stored image. Removing a path that no
	// longer exists is not an error.
	Remove(path string) error
}

// FilesystemImageStore stores images under a media root on local disk.
// Filenames are random uuids preserving the original extension.
type FilesystemImageStore struct {
	root string
}

// NewFilesystemImageStore creates a store rooted at the media directory
func NewFilesystemImageStore(root string) *FilesystemImageStore {
	return &FilesystemImageStore{root: root}
}

// Save implements ImageStore
func (s *FilesystemImageStore) Save(ext string, r io.Reader) (string, error) {
	relPath := filepath.Join(recipeUploadDir, uuid.NewString()+strings.ToLower(ext))
	fullPath := filepath.Join(s.root, relPath)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(fullPath)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}
	return relPath, nil
}

// Remove implements ImageStore
func (s *FilesystemImageStore) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(filepath.Join(s.root, path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}
