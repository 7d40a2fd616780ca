// Package s3 stores attachments in an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"docdesk/internal/attachment"
	"docdesk/internal/platform/config"
	"docdesk/pkg/platform/sentinel"
)

type Store struct {
	cl     *minio.Client
	bucket string
}

// New connects to the bucket in cfg, creating it when missing.
func New(ctx context.Context, cfg config.S3) (*Store, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:        credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:       cfg.UseSSL,
		Region:       cfg.Region,
		BucketLookup: minio.BucketLookupPath,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := cl.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %q: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cl.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
	}
	return &Store{cl: cl, bucket: cfg.Bucket}, nil
}

func (s *Store) Put(ctx context.Context, u attachment.Upload) (string, error) {
	key := attachment.NewKey(u.ContentType)
	size := u.Size
	if size <= 0 {
		size = -1
	}
	_, err := s.cl.PutObject(ctx, s.bucket, key, u.Body, size, minio.PutObjectOptions{
		ContentType: attachment.NormalizeContentType(u.ContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put attachment: %w", err)
	}
	return key, nil
}

func (s *Store) Open(ctx context.Context, ref string) (*attachment.Object, error) {
	info, err := s.cl.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	obj, err := s.cl.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get attachment: %w", err)
	}
	return &attachment.Object{Body: obj, Size: info.Size, ContentType: info.ContentType}, nil
}

func (s *Store) Delete(ctx context.Context, ref string) error {
	if err := s.cl.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove attachment: %w", err)
	}
	return nil
}
