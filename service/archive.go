package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vitorsj/lawyerless/backend/config"
)

// ArchiveService stores uploaded PDFs in object storage for later audit.
// Archival is best-effort and never blocks or fails an analysis; the job
// store itself stays memory-resident.
type ArchiveService struct {
	client *minio.Client
	bucket string
}

// NewArchiveService creates an ArchiveService from the archive config.
func NewArchiveService(cfg *config.ArchiveConfig) (*ArchiveService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &ArchiveService{
		client: client,
		bucket: cfg.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *ArchiveService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// Archive uploads the original document under the document ID. Errors are
// logged, not propagated.
func (s *ArchiveService) Archive(ctx context.Context, documentID, filename string, content []byte) {
	objectName := fmt.Sprintf("%s/%s", documentID, filename)

	_, err := s.client.PutObject(ctx, s.bucket, objectName,
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/pdf"})
	if err != nil {
		slog.Error("failed to archive document",
			"document_id", documentID,
			"object", objectName,
			"error", err,
		)
		return
	}

	slog.Info("document archived",
		"document_id", documentID,
		"object", objectName,
		"size", len(content),
	)
}
