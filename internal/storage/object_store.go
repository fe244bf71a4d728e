package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"hcadmin/internal/config"
)

// ObjectMeta travels with an attachment into the bucket so objects can be
// traced back to their owner without the database.
type ObjectMeta struct {
	ContentType string
	OwnerID     string
	FileName    string
	SHA256      []byte
}

// ObjectStore keeps attachment bodies in an S3 compatible bucket.
type ObjectStore struct {
	client *minio.Client
	bucket string
	region string
}

func NewObjectStore(cfg config.StorageConfig) (*ObjectStore, error) {
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}

	return &ObjectStore{client: client, bucket: cfg.BucketAttachments, region: cfg.Region}, nil
}

// splitEndpoint accepts either host:port or a URL whose scheme decides TLS.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse endpoint: %w", err)
	}
	return u.Host, u.Scheme == "https", nil
}

// EnsureBuckets creates the attachment bucket on first start.
func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put stores an object and returns the size the server recorded.
func (s *ObjectStore) Put(ctx context.Context, bucket, key string, r io.Reader, size int64, meta ObjectMeta) (int64, error) {
	opts := minio.PutObjectOptions{
		ContentType:    meta.ContentType,
		SendContentMd5: true,
		UserMetadata:   map[string]string{},
	}
	if meta.OwnerID != "" {
		opts.UserMetadata["owner"] = meta.OwnerID
	}
	if len(meta.SHA256) > 0 {
		opts.UserMetadata["sha256"] = hex.EncodeToString(meta.SHA256)
	}
	if meta.FileName != "" {
		opts.ContentDisposition = mime.FormatMediaType("inline", map[string]string{"filename": meta.FileName})
	}

	info, err := s.client.PutObject(ctx, bucket, key, r, size, opts)
	if err != nil {
		return 0, fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}
	return info.Size, nil
}

// Remove deletes an object whose metadata could not be recorded.
func (s *ObjectStore) Remove(ctx context.Context, bucket, key string) error {
	if err := s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %s/%s: %w", bucket, key, err)
	}
	return nil
}

func (s *ObjectStore) Ping(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.bucket)
	return err
}
