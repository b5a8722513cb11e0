package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectConfig describes an S3-compatible bucket.
type ObjectConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	// Region skips the bucket location lookup when set.
	Region    string
	UseSSL    bool
}

// ObjectBackend stores each key as one JSON object; PutObject replaces the
// object atomically.
type ObjectBackend struct {
	client *minio.Client
	bucket string
	prefix string
}

func NewObjectBackend(ctx context.Context, cfg ObjectConfig) (*ObjectBackend, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}

	return &ObjectBackend{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func (b *ObjectBackend) objectName(key string) string {
	return b.prefix + key + ".json"
}

func (b *ObjectBackend) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := b.client.GetObject(ctx, b.bucket, b.objectName(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, translateObjectError(key, err)
	}
	defer func() {
		_ = obj.Close()
	}()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, translateObjectError(key, err)
	}
	return data, nil
}

func (b *ObjectBackend) Put(ctx context.Context, key string, value []byte) error {
	_, err := b.client.PutObject(
		ctx,
		b.bucket,
		b.objectName(key),
		bytes.NewReader(value),
		int64(len(value)),
		minio.PutObjectOptions{ContentType: "application/json"},
	)
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

func (b *ObjectBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.RemoveObject(ctx, b.bucket, b.objectName(key), minio.RemoveObjectOptions{}); err != nil {
		if err := translateObjectError(key, err); err != ErrNotFound {
			return err
		}
	}
	return nil
}

func (b *ObjectBackend) Close() error {
	return nil
}

func translateObjectError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound
	}
	return fmt.Errorf("object %s: %w", key, err)
}
