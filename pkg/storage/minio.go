// Package storage提供了与对象存储服务（如 MinIO）交互的功能。
package storage

import (
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/johnpham4/legal-rag-llm/internal/config"
	"github.com/johnpham4/legal-rag-llm/pkg/log"
)

// MinioClient 是一个全局的 MinIO 客户端实例。
var MinioClient *minio.Client

// Bucket 封装了单个存储桶上的对象读写。
type Bucket struct {
	client *minio.Client
	name   string
}

// NewBucket 创建 MinIO 客户端并确保存储桶存在。
func NewBucket(ctx context.Context, cfg config.MinIOConfig) (*Bucket, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化 MinIO 客户端失败: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("检查 MinIO 存储桶失败: %w", err)
	}
	if !exists {
		log.Infof("存储桶 '%s' 不存在，正在创建...", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("创建 MinIO 存储桶失败: %w", err)
		}
		log.Infof("存储桶 '%s' 创建成功", cfg.BucketName)
	}
	return &Bucket{client: client, name: cfg.BucketName}, nil
}

// InitMinIO 初始化全局 MinIO 客户端，失败时退出进程。
func InitMinIO(cfg config.MinIOConfig) *Bucket {
	bucket, err := NewBucket(context.Background(), cfg)
	if err != nil {
		log.Fatal("初始化 MinIO 失败", err)
	}
	MinioClient = bucket.client
	log.Info("MinIO 客户端初始化成功")
	return bucket
}

// Name 返回存储桶名称。
func (b *Bucket) Name() string { return b.name }

// Exists 判断对象是否存在。
func (b *Bucket) Exists(ctx context.Context, object string) (bool, error) {
	_, err := b.client.StatObject(ctx, b.name, object, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, err
}

// UploadFile 将本地文件上传为对象。
func (b *Bucket) UploadFile(ctx context.Context, object, path string) error {
	info, err := b.client.FPutObject(ctx, b.name, object, path, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("上传对象 '%s' 失败: %w", object, err)
	}
	log.Infof("对象 '%s' 上传成功, size: %d", object, info.Size)
	return nil
}

// DownloadFile 将对象下载到本地路径。
func (b *Bucket) DownloadFile(ctx context.Context, object, path string) error {
	if err := b.client.FGetObject(ctx, b.name, object, path, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("下载对象 '%s' 失败: %w", object, err)
	}
	log.Infof("对象 '%s' 已下载到 %s", object, path)
	return nil
}
