package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/johnpham4/legal-rag-llm/internal/model"
)

// ChunkRepository 定义了对 legal_chunks 表的数据操作接口。
type ChunkRepository interface {
	Upsert(ctx context.Context, chunks []model.Chunk, modelVersion string) error
	FindByDocumentID(ctx context.Context, documentID string) ([]model.Chunk, error)
	IterateContents(ctx context.Context, batchSize int, fn func(contents []string) error) error
	Count(ctx context.Context) (int64, error)
	DeleteByDocumentID(ctx context.Context, documentID string) error
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// Upsert 批量写入片段记录，chunk_id 冲突时覆盖内容与元数据。
func (r *chunkRepository) Upsert(ctx context.Context, chunks []model.Chunk, modelVersion string) error {
	if len(chunks) == 0 {
		return nil
	}
	records := make([]*model.ChunkRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, model.NewChunkRecord(c, modelVersion))
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "chunk_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"document_id", "document_number", "document_type", "field",
				"link", "platform", "content", "model_version", "updated_at",
			}),
		}).
		CreateInBatches(records, 100).Error // 每100条记录一批
}

// FindByDocumentID 返回某个法律文件的全部片段。
func (r *chunkRepository) FindByDocumentID(ctx context.Context, documentID string) ([]model.Chunk, error) {
	var records []*model.ChunkRecord
	if err := r.db.WithContext(ctx).Where("document_id = ?", documentID).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	chunks := make([]model.Chunk, 0, len(records))
	for _, rec := range records {
		chunks = append(chunks, rec.ToChunk())
	}
	return chunks, nil
}

// IterateContents 按主键顺序分批读取片段正文，供稀疏模型训练使用。
func (r *chunkRepository) IterateContents(ctx context.Context, batchSize int, fn func(contents []string) error) error {
	if batchSize <= 0 {
		batchSize = 500
	}
	var records []*model.ChunkRecord
	return r.db.WithContext(ctx).
		Select("id", "content").
		FindInBatches(&records, batchSize, func(tx *gorm.DB, _ int) error {
			contents := make([]string, 0, len(records))
			for _, rec := range records {
				contents = append(contents, rec.Content)
			}
			return fn(contents)
		}).Error
}

// Count 返回片段总数。
func (r *chunkRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ChunkRecord{}).Count(&n).Error
	return n, err
}

// DeleteByDocumentID 删除某个法律文件的全部片段记录。
func (r *chunkRepository) DeleteByDocumentID(ctx context.Context, documentID string) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentID).Delete(&model.ChunkRecord{}).Error
}
