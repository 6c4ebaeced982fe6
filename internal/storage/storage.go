// Package storage archives uploaded compliance documents and generated
// reports.
//
// Two backends implement Storage: LocalStorage writes under a directory on
// disk for development, R2Storage writes to a Cloudflare R2 bucket through
// the S3 API.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage is an object store keyed by slash-separated paths.
type Storage interface {
	// Put writes data at key. It fails with ErrKeyExists unless
	// opts.Overwrite is set, and with ErrTooLarge when opts.MaxSize is
	// exceeded.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Get opens the object at key. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)

	// Delete removes the object at key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a download URL, presigned for expires when the backend
	// supports it.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)

	// Exists reports whether an object is stored at key.
	Exists(ctx context.Context, key string) (bool, error)
}

// PutOptions configures a write.
type PutOptions struct {
	ContentType string // detected from the key when empty
	MaxSize     int64  // bytes, 0 for no limit
	Overwrite   bool
	Metadata    map[string]string
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
	ETag         string
}

// LocalConfig configures LocalStorage.
type LocalConfig struct {
	BasePath string // e.g. "./data/documents"
	BaseURL  string // prefix for URL(), e.g. "http://localhost:8080/files"
}

// R2Config configures R2Storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // custom domain; presigned URLs are used when empty
	Region          string // "auto" when empty

	// Endpoint overrides the account endpoint. Used in tests.
	Endpoint string
}

// Provider names accepted by New.
const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	Local    LocalConfig
	R2       R2Config
}

// New creates the backend named by cfg.Provider.
func New(cfg Config, logger *slog.Logger) (Storage, error) {
	switch cfg.Provider {
	case ProviderLocal, "":
		return NewLocalStorage(cfg.Local, logger)
	case ProviderR2:
		return NewR2Storage(cfg.R2, logger)
	default:
		return nil, fmt.Errorf("unknown storage provider %q", cfg.Provider)
	}
}

// DocumentKey is where an uploaded source document is archived.
// Format: documents/{userID}/{reportID}{ext}
func DocumentKey(userID, reportID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("documents/%s/%s%s", userID, reportID, ext)
}

// ReportKey is where the generated report text is stored.
// Format: reports/{userID}/{reportID}.md
func ReportKey(userID, reportID uuid.UUID) string {
	return fmt.Sprintf("reports/%s/%s.md", userID, reportID)
}

// validKey rejects empty keys, absolute keys and keys that climb out of the
// store.
func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, 0) {
		return ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return ErrInvalidKey
		}
	}
	return nil
}
