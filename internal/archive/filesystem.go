package archive

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore implements Store on a local directory
type FilesystemStore struct {
	basePath string
}

// NewFilesystemStore creates a filesystem-backed snapshot store rooted at basePath
func NewFilesystemStore(basePath string) *FilesystemStore {
	return &FilesystemStore{
		basePath: basePath,
	}
}

// Put stores an object on the filesystem
func (f *FilesystemStore) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	if err := f.validateKey(key); err != nil {
		return err
	}

	fullPath := filepath.Join(f.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return err
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return err
	}
	defer file.Close()

	_, err = io.Copy(file, data)
	return err
}

// Get retrieves an object from the filesystem
func (f *FilesystemStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := f.validateKey(key); err != nil {
		return nil, err
	}

	file, err := os.Open(filepath.Join(f.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return file, nil
}

// Delete removes an object from the filesystem
func (f *FilesystemStore) Delete(ctx context.Context, key string) error {
	if err := f.validateKey(key); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(f.basePath, key))
	if err != nil && os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}

// Exists checks if an object exists on the filesystem
func (f *FilesystemStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := f.validateKey(key); err != nil {
		return false, err
	}

	_, err := os.Stat(filepath.Join(f.basePath, key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns objects whose keys start with prefix
func (f *FilesystemStore) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	var objects []ObjectInfo

	err := filepath.Walk(f.basePath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(f.basePath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		objects = append(objects, ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []ObjectInfo{}, nil
		}
		return nil, err
	}

	return objects, nil
}

// validateKey rejects empty keys and path traversal
func (f *FilesystemStore) validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	if strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

var _ Store = (*FilesystemStore)(nil)
