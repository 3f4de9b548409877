// Package storage implements the object store gateway backing uploaded
// documents: size-limited writes to a local base directory and HMAC-signed
// time-limited GET URLs served back through the API.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ledgerstack/ledgerstack/internal/common"
)

// ObjectStore is the gateway the pipeline depends on.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	SignedGetURL(key string, ttl time.Duration) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DiskStore stores objects under a base directory.
type DiskStore struct {
	baseDir  string
	baseURL  string
	secret   string
	maxBytes int64
	log      *slog.Logger
}

func NewDiskStore(baseDir, baseURL, secret string, maxBytes int64, log *slog.Logger) (*DiskStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", baseDir, err)
	}
	return &DiskStore{
		baseDir:  baseDir,
		baseURL:  strings.TrimRight(baseURL, "/"),
		secret:   secret,
		maxBytes: maxBytes,
		log:      log,
	}, nil
}

func (s *DiskStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if strings.Contains(clean, "..") {
		return "", common.StorageError("invalid object key", nil)
	}
	return filepath.Join(s.baseDir, clean), nil
}

func (s *DiskStore) Put(_ context.Context, key, contentType string, r io.Reader) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return common.StorageError("create object dir", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return common.StorageError("create object", err)
	}

	cleanup := func(err error) error {
		out.Close()
		os.Remove(path)
		return err
	}

	var total int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if s.maxBytes > 0 && total > s.maxBytes {
				return cleanup(common.StorageError("object exceeds maximum size", nil))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(common.StorageError("write object", werr))
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return cleanup(common.StorageError("read object content", rerr))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return common.StorageError("close object", err)
	}

	s.log.Info("object stored", "key", key, "bytes", total, "content_type", contentType)
	return nil
}

func (s *DiskStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return common.StorageError("object not found", err)
		}
		return common.StorageError("delete object", err)
	}
	s.log.Info("object deleted", "key", key)
	return nil
}

// DeletePrefix removes every object under prefix and returns how many were
// deleted. A missing prefix directory counts as zero, not an error.
func (s *DiskStore) DeletePrefix(_ context.Context, prefix string) (int, error) {
	dir, err := s.path(prefix)
	if err != nil {
		return 0, err
	}
	count := 0
	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if err := os.Remove(path); err != nil {
			return err
		}
		count++
		return nil
	})
	if walkErr != nil {
		if os.IsNotExist(walkErr) {
			return 0, nil
		}
		return count, common.StorageError("delete prefix", walkErr)
	}
	_ = os.Remove(dir)
	s.log.Info("object prefix deleted", "prefix", prefix, "count", count)
	return count, nil
}

// SignedGetURL returns a time-limited URL for fetching the object through the
// API's /objects route.
func (s *DiskStore) SignedGetURL(key string, ttl time.Duration) (string, error) {
	if _, err := s.path(key); err != nil {
		return "", err
	}
	expiresAt := time.Now().Add(ttl).Unix()
	path := "/objects/" + strings.TrimPrefix(key, "/")
	return s.baseURL + SignURL(path, expiresAt, s.secret), nil
}

// ValidateSignedPath checks the signature and expiry for a /objects request.
func (s *DiskStore) ValidateSignedPath(path string, expiresAt int64, signature string) bool {
	if time.Now().Unix() > expiresAt {
		return false
	}
	return ValidateSignature(path, expiresAt, signature, s.secret)
}

func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, common.StorageError("object not found", err)
		}
		return nil, common.StorageError("open object", err)
	}
	return f, nil
}
