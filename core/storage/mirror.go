package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"mcp-manager/core/backup"

	"github.com/minio/minio-go/v7"
)

// BackupMirror copies local backup artifacts into a bucket and applies the
// same retention remotely.
type BackupMirror struct {
	client Client
	bucket string
	prefix string
}

// NewBackupMirror creates a mirror writing under prefix in bucket.
func NewBackupMirror(client Client, bucket, prefix string) *BackupMirror {
	return &BackupMirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
	}
}

// FamilyKey returns the object prefix holding the backups of source. The
// directory of source is hashed so files sharing a base name in different
// directories never prune each other.
func (m *BackupMirror) FamilyKey(source string) string {
	dir := filepath.Dir(source)
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	sum := sha256.Sum256([]byte(filepath.Clean(dir)))
	return path.Join(m.prefix, hex.EncodeToString(sum[:6]), filepath.Base(source)) + "/"
}

// ObjectKey returns the object name the backup artifact of source is stored under.
func (m *BackupMirror) ObjectKey(source, artifact string) string {
	return m.FamilyKey(source) + filepath.Base(artifact)
}

type mirrored struct {
	key     string
	created time.Time
}

// Mirror uploads the backup at backupPath. Remote backups of the same source
// are pruned newest-first down to keep entries.
func (m *BackupMirror) Mirror(ctx context.Context, source, backupPath string, keep int) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", m.bucket, err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", m.bucket, err)
		}
	}

	f, err := os.Open(backupPath)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	key := m.ObjectKey(source, backupPath)
	if _, err := m.client.PutObject(ctx, m.bucket, key, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/json",
	}); err != nil {
		return fmt.Errorf("failed to upload %s: %w", key, err)
	}

	if keep <= 0 {
		return nil
	}

	family := m.FamilyKey(source)
	var objects []mirrored
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix: family,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("failed to list mirrored backups: %w", obj.Err)
		}
		name := strings.TrimPrefix(obj.Key, family)
		if strings.Contains(name, "/") {
			continue
		}
		created, ok := backup.Stamp(source, name)
		if !ok {
			continue
		}
		objects = append(objects, mirrored{key: obj.Key, created: created})
	}

	sort.Slice(objects, func(i, j int) bool {
		return objects[i].created.After(objects[j].created)
	})
	for _, obj := range objects[min(keep, len(objects)):] {
		if err := m.client.RemoveObject(ctx, m.bucket, obj.key, minio.RemoveObjectOptions{}); err != nil {
			return fmt.Errorf("failed to prune %s: %w", obj.key, err)
		}
	}

	return nil
}
