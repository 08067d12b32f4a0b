package service

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
)

// Storage 图片对象存储，生产环境由 MinIO 实现
type Storage interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, objectName string) (io.ReadCloser, string, error)
	Remove(ctx context.Context, objectName string) error
}

type MinioStorage struct {
	client *minio.Client
	bucket string
}

func NewMinioStorage(client *minio.Client, bucket string) *MinioStorage {
	return &MinioStorage{client: client, bucket: bucket}
}

func (s *MinioStorage) Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", objectName, err)
	}
	return nil
}

// Open 返回对象流和 Content-Type；对象不存在时返回 ErrImageNotFound
func (s *MinioStorage) Open(ctx context.Context, objectName string) (io.ReadCloser, string, error) {
	object, err := s.client.GetObject(ctx, s.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("minio get %s: %w", objectName, err)
	}
	// GetObject 是惰性的，Stat 才会真正请求
	stat, err := object.Stat()
	if err != nil {
		object.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, "", ErrImageNotFound
		}
		return nil, "", fmt.Errorf("minio stat %s: %w", objectName, err)
	}
	return object, stat.ContentType, nil
}

func (s *MinioStorage) Remove(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove %s: %w", objectName, err)
	}
	return nil
}
