package fs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"hospitalsync/application/ports"
	"hospitalsync/utils"
)

// Storage implements ports.Storage on the local filesystem. A bucket is a
// subdirectory of basePath; the empty bucket is basePath itself.
type Storage struct {
	basePath string
	logger   ports.Logger
	metrics  ports.Metrics
}

// NewStorage creates a new filesystem-based object storage
func NewStorage(basePath string, logger ports.Logger, metrics ports.Metrics) (*Storage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		logger.Error("Failed to create base path", "path", basePath, "error", err)
		return nil, fmt.Errorf("failed to create base path: %w", err)
	}

	logger.Info("Filesystem storage initialized", "base_path", basePath)

	return &Storage{
		basePath: basePath,
		logger:   logger.WithFields(map[string]interface{}{"storage": "filesystem"}),
		metrics:  metrics.WithTags(map[string]string{"storage": "filesystem"}),
	}, nil
}

// Put streams reader into a temp file next to the target and renames it into
// place once the whole stream was written. A failed Put leaves any previous
// object untouched.
func (s *Storage) Put(ctx context.Context, bucket, key string, reader io.Reader, metadata ports.ObjectMetadata) error {
	startTime := time.Now()

	objectPath, err := s.getObjectPath(bucket, key)
	if err != nil {
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "key"})
		return err
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("put %s cancelled: %w", key, err)
	}

	bytesWritten, err := utils.WriteFileAtomic(objectPath, &ctxReader{ctx: ctx, r: reader}, 0o644)
	if err != nil {
		s.logger.Error("Failed to write object", "key", key, "error", err)
		s.metrics.IncrementCounter("storage.put.errors", map[string]string{"error": "write"})
		return fmt.Errorf("failed to write object %s: %w", key, err)
	}

	duration := time.Since(startTime)
	s.logger.Debug("Object stored",
		"key", key,
		"bytes", bytesWritten,
		"content_type", metadata.ContentType,
		"duration_ms", duration.Milliseconds())

	s.metrics.IncrementCounter("storage.put.success", nil)
	s.metrics.RecordHistogram("storage.put.bytes", float64(bytesWritten), nil)
	s.metrics.RecordHistogram("storage.put.duration_seconds", duration.Seconds(), nil)

	return nil
}

// List returns objects in a bucket whose key starts with prefix, sorted by key.
// In-flight temp files are skipped.
func (s *Storage) List(ctx context.Context, bucket, prefix string) ([]ports.ObjectInfo, error) {
	bucketPath := filepath.Join(s.basePath, bucket)

	var objects []ports.ObjectInfo
	err := filepath.WalkDir(bucketPath, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == bucketPath {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(bucketPath, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, ports.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to list objects", "bucket", bucket, "prefix", prefix, "error", err)
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// getObjectPath resolves key under the bucket and refuses keys that escape it
func (s *Storage) getObjectPath(bucket, key string) (string, error) {
	root := filepath.Join(s.basePath, bucket)
	key = strings.TrimPrefix(key, "/")
	p := filepath.Join(root, filepath.FromSlash(key))

	rel, err := filepath.Rel(root, p)
	if key == "" || err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return p, nil
}

// ctxReader stops a copy once ctx is done
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
