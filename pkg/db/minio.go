package db

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"fleet-alert-service/pkg/config"
	"fleet-alert-service/pkg/models"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioClient struct {
	*minio.Client
	bucket string
}

func NewMinioClient(cfg *config.Config) (*MinioClient, error) {
	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if _, err := client.ListBuckets(ctx); err != nil {
		return nil, fmt.Errorf("failed to list MinIO buckets: %w", err)
	}

	// Ensure export bucket exists
	if err := client.MakeBucket(ctx, cfg.ExportBucket, minio.MakeBucketOptions{}); err != nil {
		// Bucket might already exist, which is fine
		exists, errBucketExists := client.BucketExists(ctx, cfg.ExportBucket)
		if errBucketExists != nil || !exists {
			return nil, fmt.Errorf("failed to create export bucket: %w", err)
		}
	}

	return &MinioClient{Client: client, bucket: cfg.ExportBucket}, nil
}

func (m *MinioClient) HealthCheck(ctx context.Context) error {
	_, err := m.ListBuckets(ctx)
	return err
}

func (m *MinioClient) Close() {
	// MinIO client doesn't require explicit close
}

// ExportStorage uploads retention export artifacts to MinIO
type ExportStorage struct {
	client *minio.Client
	bucket string
}

func NewExportStorage(client *MinioClient) *ExportStorage {
	return &ExportStorage{client: client.Client, bucket: client.bucket}
}

// Export writes one CSV object per category per sweep. Rows include the header.
// The object must be fully stored before the caller is allowed to delete anything.
func (es *ExportStorage) Export(ctx context.Context, category models.RetentionCategory, sweptAt time.Time, header []string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}

	// Format: retention/{category}/{year}/{month}/{day}T{hhmmss}.csv
	objectName := fmt.Sprintf("retention/%s/%s.csv",
		category,
		sweptAt.UTC().Format("2006/01/02T150405"),
	)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}

	_, err := es.client.PutObject(ctx, es.bucket, objectName, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return fmt.Errorf("failed to store export %s: %w", objectName, err)
	}

	return nil
}
