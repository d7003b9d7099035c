package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/johnpham4/legal-rag-llm/pkg/log"
	"github.com/johnpham4/legal-rag-llm/pkg/sparse"
)

// ObjectStore 是稀疏模型远端副本所需的对象存储能力，由 storage.Bucket 实现。
type ObjectStore interface {
	Exists(ctx context.Context, object string) (bool, error)
	UploadFile(ctx context.Context, object, path string) error
	DownloadFile(ctx context.Context, object, path string) error
}

// SparseModelRepository 负责稀疏模型的本地文件与对象存储副本。
type SparseModelRepository interface {
	// Load 将模型加载到 enc；本地文件缺失时先尝试从对象存储下载。
	Load(ctx context.Context, enc sparse.Encoder) error
	// Save 写入本地文件，并在配置了对象存储时上传。
	Save(ctx context.Context, enc sparse.Encoder) error
	Path() string
}

type sparseModelRepository struct {
	path   string
	object string
	store  ObjectStore
}

// NewSparseModelRepository 创建一个新的 SparseModelRepository 实例，store 可以为 nil。
func NewSparseModelRepository(path, object string, store ObjectStore) SparseModelRepository {
	return &sparseModelRepository{path: path, object: object, store: store}
}

func (r *sparseModelRepository) Path() string { return r.path }

func (r *sparseModelRepository) Load(ctx context.Context, enc sparse.Encoder) error {
	if _, err := os.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		if r.store == nil {
			return fmt.Errorf("sparse model %s not found: %w", r.path, err)
		}
		exists, err := r.store.Exists(ctx, r.object)
		if err != nil {
			return fmt.Errorf("check sparse model object: %w", err)
		}
		if !exists {
			return fmt.Errorf("sparse model not found locally (%s) or in object store (%s)", r.path, r.object)
		}
		if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
			return err
		}
		log.Infof("[SparseModel] 本地模型不存在，从对象存储下载 %s", r.object)
		if err := r.store.DownloadFile(ctx, r.object, r.path); err != nil {
			return err
		}
	}
	if err := enc.Load(r.path); err != nil {
		return err
	}
	log.Infof("[SparseModel] 已加载 %s 模型, 词表大小: %d", enc.Algorithm(), enc.VocabSize())
	return nil
}

func (r *sparseModelRepository) Save(ctx context.Context, enc sparse.Encoder) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return err
	}
	if err := enc.Save(r.path); err != nil {
		return err
	}
	log.Infof("[SparseModel] 模型已保存到 %s", r.path)
	if r.store == nil {
		return nil
	}
	return r.store.UploadFile(ctx, r.object, r.path)
}
