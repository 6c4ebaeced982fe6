package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage stores objects as files below a base directory.
type LocalStorage struct {
	basePath string
	baseURL  string
	logger   *slog.Logger
}

// NewLocalStorage creates the base directory if needed.
func NewLocalStorage(cfg LocalConfig, logger *slog.Logger) (*LocalStorage, error) {
	if cfg.BasePath == "" {
		return nil, errors.New("local storage base path is required")
	}

	absPath, err := filepath.Abs(cfg.BasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base path: %w", err)
	}
	if err := os.MkdirAll(absPath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("initialized local storage", "base_path", absPath)

	return &LocalStorage{
		basePath: absPath,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:   logger,
	}, nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return opError("put", key, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return opError("put", key, fmt.Errorf("failed to create directory: %w", err))
	}

	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !opts.Overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o640)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return opError("put", key, ErrKeyExists)
		}
		return opError("put", key, fmt.Errorf("failed to create file: %w", err))
	}

	src := data
	if opts.MaxSize > 0 {
		src = io.LimitReader(data, opts.MaxSize+1)
	}
	written, err := io.Copy(file, src)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err == nil && opts.MaxSize > 0 && written > opts.MaxSize {
		err = ErrTooLarge
	}
	if err != nil {
		os.Remove(path)
		if errors.Is(err, ErrTooLarge) {
			return opError("put", key, err)
		}
		return opError("put", key, fmt.Errorf("failed to write file: %w", err))
	}

	s.logger.Debug("stored file", "key", key, "size", written)
	return nil
}

func (s *LocalStorage) Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return nil, ObjectInfo{}, opError("get", key, err)
	}

	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ObjectInfo{}, opError("get", key, ErrNotFound)
		}
		return nil, ObjectInfo{}, opError("get", key, err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ObjectInfo{}, opError("get", key, err)
	}

	return file, ObjectInfo{
		Key:          key,
		Size:         stat.Size(),
		ContentType:  DetectContentType(key, nil),
		LastModified: stat.ModTime(),
	}, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolvePath(key)
	if err != nil {
		return opError("delete", key, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return opError("delete", key, err)
	}
	return nil
}

// URL ignores expires; local files are served unsigned.
func (s *LocalStorage) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	if _, err := s.resolvePath(key); err != nil {
		return "", opError("url", key, err)
	}
	return s.baseURL + "/" + key, nil
}

func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	path, err := s.resolvePath(key)
	if err != nil {
		return false, opError("exists", key, err)
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, opError("exists", key, err)
	}
	return true, nil
}

// resolvePath maps a key to a file path inside basePath.
func (s *LocalStorage) resolvePath(key string) (string, error) {
	if err := validKey(key); err != nil {
		return "", err
	}
	path := filepath.Join(s.basePath, filepath.FromSlash(key))
	if !strings.HasPrefix(path, s.basePath+string(filepath.Separator)) {
		return "", ErrInvalidKey
	}
	return path, nil
}
