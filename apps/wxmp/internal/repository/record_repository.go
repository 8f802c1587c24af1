package repository

import (
	"context"
	"errors"
	"time"

	"WxAIServer/model"
	"WxAIServer/pkg/id"

	"gorm.io/gorm"
)

// IRecordRepository AI 回复记录数据访问层接口。
type IRecordRepository interface {
	// FindNotReplied 查询 (appId, fromUser, message) 下状态为未回复的记录，
	// 不存在时返回 (nil, nil)。
	FindNotReplied(ctx context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error)
	// Create 新建一条未回复记录并返回
	Create(ctx context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error)
	// MarkReplied 写入回复内容并把状态置为已回复（单条 UPDATE，原子生效）
	MarkReplied(ctx context.Context, recordId, replyMessage string) error
	// MarkStatusReplied 仅翻转状态位，不动回复内容（复用已有回复的竞态收敛路径）
	MarkStatusReplied(ctx context.Context, recordId string) error
	// ListByApp 按公众号分页查询回复记录（管理后台用），按创建时间倒序
	ListByApp(ctx context.Context, appId string, page, pageSize int) ([]model.AiReplyRecord, int64, error)
}

// recordRepositoryImpl AI 回复记录数据访问层实现
type recordRepositoryImpl struct {
	db *gorm.DB
}

// NewRecordRepository 创建回复记录仓储实例
func NewRecordRepository(db *gorm.DB) IRecordRepository {
	return &recordRepositoryImpl{db: db}
}

func (r *recordRepositoryImpl) FindNotReplied(ctx context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error) {
	var record model.AiReplyRecord
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND from_user = ? AND message = ? AND reply_status = ?",
			appId, fromUser, message, model.ReplyStatusNotReplied).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, WrapDBError(err)
	}
	return &record, nil
}

func (r *recordRepositoryImpl) Create(ctx context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error) {
	now := time.Now()
	record := &model.AiReplyRecord{
		Id:          id.GenerateULID(),
		AppId:       appId,
		FromUser:    fromUser,
		Message:     message,
		ReplyStatus: model.ReplyStatusNotReplied,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, WrapDBError(err)
	}
	return record, nil
}

func (r *recordRepositoryImpl) MarkReplied(ctx context.Context, recordId, replyMessage string) error {
	err := r.db.WithContext(ctx).
		Model(&model.AiReplyRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"reply_message": replyMessage,
			"reply_status":  model.ReplyStatusReplied,
			"updated_at":    time.Now(),
		}).Error
	return WrapDBError(err)
}

func (r *recordRepositoryImpl) MarkStatusReplied(ctx context.Context, recordId string) error {
	err := r.db.WithContext(ctx).
		Model(&model.AiReplyRecord{}).
		Where("id = ?", recordId).
		Updates(map[string]interface{}{
			"reply_status": model.ReplyStatusReplied,
			"updated_at":   time.Now(),
		}).Error
	return WrapDBError(err)
}

func (r *recordRepositoryImpl) ListByApp(ctx context.Context, appId string, page, pageSize int) ([]model.AiReplyRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	query := r.db.WithContext(ctx).Model(&model.AiReplyRecord{}).Where("app_id = ?", appId)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, WrapDBError(err)
	}

	var records []model.AiReplyRecord
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, WrapDBError(err)
	}
	return records, total, nil
}
