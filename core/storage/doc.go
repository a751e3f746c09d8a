// Package storage provides an abstraction layer for object storage services.
//
// It wraps the MinIO Go client behind a small interface so backup artifacts can be
// mirrored to AWS S3 or a self-hosted MinIO instance, and so the interaction can be
// mocked in unit tests (see core/storage/mocks).
//
// # Backup Mirror
//
// BackupMirror uploads every local backup file under
// <prefix>/<directory hash>/<base name>/ and prunes the remote copies of the same
// source file to the retention count used locally.
//
// # Usage
//
//	client, err := storage.NewClient(cfg.Storage)
//	mirror := storage.NewBackupMirror(client, cfg.Storage.Bucket, cfg.Storage.Prefix)
package storage
