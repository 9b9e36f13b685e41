package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/tessloc/tessloc/internal/errors"
)

// LocalStorage implements ObjectStorage on the local filesystem, for tests
// and deployments that mirror onto a shared mount.
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a local store rooted at basePath.
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("creating storage root %s", basePath), err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (l *LocalStorage) fullPath(objectPath string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(objectPath))
}

// Upload copies a local file into the store.
func (l *LocalStorage) Upload(ctx context.Context, localPath, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dest := l.fullPath(objectPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("creating parent directory for %s", objectPath), err)
	}
	if err := copyFile(localPath, dest); err != nil {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("uploading %s", objectPath), err)
	}
	return nil
}

// Download copies an object out of the store.
func (l *LocalStorage) Download(ctx context.Context, objectPath, localPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src := l.fullPath(objectPath)
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return errors.NewStorageError(errors.CodeObjectNotFound,
			fmt.Sprintf("object %s does not exist", objectPath), nil)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("creating parent directory for %s", localPath), err)
	}
	if err := copyFile(src, localPath); err != nil {
		return errors.NewStorageError(errors.CodeDownloadFailed,
			fmt.Sprintf("downloading %s", objectPath), err)
	}
	return nil
}

// Exists reports whether an object is present.
func (l *LocalStorage) Exists(ctx context.Context, objectPath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, err := os.Stat(l.fullPath(objectPath))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes an object; missing objects are ignored.
func (l *LocalStorage) Delete(ctx context.Context, objectPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(l.fullPath(objectPath)); err != nil && !os.IsNotExist(err) {
		return errors.NewStorageError(errors.CodeUploadFailed,
			fmt.Sprintf("deleting %s", objectPath), err)
	}
	return nil
}

// ListObjects walks the store under prefix and returns the object paths.
func (l *LocalStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var objects []string
	err := filepath.Walk(l.fullPath(prefix), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			rel, err := filepath.Rel(l.basePath, path)
			if err != nil {
				return err
			}
			objects = append(objects, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
