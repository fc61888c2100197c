package usage

import (
	"context"
	"fmt"

	"tenantcrm/internal/models"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const bytesPerMB = 1024 * 1024

// ObjectLister is the subset of *minio.Client the storage counter needs.
type ObjectLister interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// StorageCounter sums object sizes under tenants/<tenantID>/ and reports
// whole megabytes, rounded up.
type StorageCounter struct {
	client ObjectLister
	bucket string
}

func NewStorageCounter(client ObjectLister, bucket string) *StorageCounter {
	return &StorageCounter{client: client, bucket: bucket}
}

// NewMinioClient builds the client backing StorageCounter.
func NewMinioClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return client, nil
}

func TenantPrefix(tenantID uuid.UUID) string {
	return "tenants/" + tenantID.String() + "/"
}

func (c *StorageCounter) Resource() models.Resource { return models.ResourceStorageMB }

func (c *StorageCounter) Count(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	objects := c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    TenantPrefix(tenantID),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return 0, fmt.Errorf("failed to list tenant objects: %w", obj.Err)
		}
		total += obj.Size
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return (total + bytesPerMB - 1) / bytesPerMB, nil
}
