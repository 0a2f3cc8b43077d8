package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"bucket-rag/internal/config"
)

// Object is one entry in the bucket listing. Fingerprint is the object's
// ETag with surrounding quotes stripped; it is empty when the store did not
// report one.
type Object struct {
	Name        string
	Fingerprint string
}

// Store wraps a MinIO client scoped to a single bucket.
type Store struct {
	client *minio.Client
	bucket string
}

func New(cfg config.MinioConfig) (*Store, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("objectstore: connect %s: %w", cfg.Endpoint, err)
	}
	return &Store{client: client, bucket: cfg.Bucket}, nil
}

// NormalizeFingerprint strips the quoting MinIO/S3 wrap around ETags so the
// value can be used as a dedup key.
func NormalizeFingerprint(etag string) string {
	return strings.ReplaceAll(etag, `"`, "")
}

// List returns every object in the bucket with its normalized fingerprint.
func (s *Store) List(ctx context.Context) ([]Object, error) {
	var objects []Object
	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			return nil, fmt.Errorf("objectstore: list %s: %w", s.bucket, info.Err)
		}
		objects = append(objects, Object{
			Name:        info.Key,
			Fingerprint: NormalizeFingerprint(info.ETag),
		})
	}
	return objects, nil
}

// Get downloads the full object content.
func (s *Store) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("objectstore: get %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("objectstore: read %s: %w", name, err)
	}
	return data, nil
}

// Put uploads an object. Operator helper, not used by the ingestion path.
func (s *Store) Put(ctx context.Context, name string, data []byte, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("objectstore: put %s: %w", name, err)
	}
	return nil
}

// Remove deletes an object. Operator helper.
func (s *Store) Remove(ctx context.Context, name string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, name, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("objectstore: remove %s: %w", name, err)
	}
	return nil
}
