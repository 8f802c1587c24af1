package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/id"
	"WxAIServer/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// accountCacheTTL 公众号信息缓存时间。
const accountCacheTTL = 10 * time.Minute

// IAccountRepository 公众号账号数据访问层接口。
type IAccountRepository interface {
	// GetByAppId 按 appId 查询公众号，不存在返回 ErrRecordNotFound
	GetByAppId(ctx context.Context, appId string) (*model.WxAccount, error)
	// MarkVerified 标记公众号通过微信服务器认证
	MarkVerified(ctx context.Context, appId string) error
	// Create 新建公众号
	Create(ctx context.Context, account *model.WxAccount) error
	// List 查询全部公众号（管理后台用）
	List(ctx context.Context) ([]model.WxAccount, error)
}

// accountRepositoryImpl 公众号账号数据访问层实现
type accountRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewAccountRepository 创建公众号仓储实例。redisClient 可为 nil。
func NewAccountRepository(db *gorm.DB, redisClient *redis.Client) IAccountRepository {
	return &accountRepositoryImpl{db: db, redisClient: redisClient}
}

func (r *accountRepositoryImpl) GetByAppId(ctx context.Context, appId string) (*model.WxAccount, error) {
	cacheKey := consts.AccountCacheKeyPrefix + appId

	// 每条微信消息都要取 token 校验签名，账号信息加缓存
	if r.redisClient != nil {
		cached, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var account model.WxAccount
			if jsonErr := json.Unmarshal([]byte(cached), &account); jsonErr == nil {
				return &account, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			logger.Warn(ctx, "查询公众号缓存失败，降级查库", logger.ErrorField("error", WrapRedisError(err)))
		}
	}

	var account model.WxAccount
	err := r.db.WithContext(ctx).Where("app_id = ?", appId).First(&account).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	if r.redisClient != nil {
		if data, jsonErr := json.Marshal(account); jsonErr == nil {
			if err := r.redisClient.Set(ctx, cacheKey, data, accountCacheTTL).Err(); err != nil {
				logger.Warn(ctx, "写入公众号缓存失败", logger.ErrorField("error", WrapRedisError(err)))
			}
		}
	}
	return &account, nil
}

func (r *accountRepositoryImpl) MarkVerified(ctx context.Context, appId string) error {
	err := r.db.WithContext(ctx).
		Model(&model.WxAccount{}).
		Where("app_id = ?", appId).
		Updates(map[string]interface{}{
			"verified":   int8(1),
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return WrapDBError(err)
	}
	r.invalidateCache(ctx, appId)
	return nil
}

func (r *accountRepositoryImpl) Create(ctx context.Context, account *model.WxAccount) error {
	now := time.Now()
	if account.Id == "" {
		account.Id = id.GenerateULID()
	}
	account.CreatedAt = now
	account.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(account).Error; err != nil {
		return WrapDBError(err)
	}
	return nil
}

func (r *accountRepositoryImpl) List(ctx context.Context) ([]model.WxAccount, error) {
	var accounts []model.WxAccount
	err := r.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return accounts, nil
}

func (r *accountRepositoryImpl) invalidateCache(ctx context.Context, appId string) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Del(ctx, consts.AccountCacheKeyPrefix+appId).Err(); err != nil {
		logger.Warn(ctx, "删除公众号缓存失败", logger.ErrorField("error", WrapRedisError(err)))
	}
}
