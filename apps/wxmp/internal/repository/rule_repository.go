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

// ruleCacheTTL 规则列表缓存时间。规则改动低频，管理接口写入时主动失效。
const ruleCacheTTL = 5 * time.Minute

// IRuleRepository 自动回复规则数据访问层接口。
type IRuleRepository interface {
	// ListEnabled 查询公众号启用中的规则（带 Redis 缓存，故障时降级走库）
	ListEnabled(ctx context.Context, appId string) ([]model.WxReplyRule, error)
	// GetById 按 id 查询规则，不存在返回 ErrRecordNotFound
	GetById(ctx context.Context, ruleId string) (*model.WxReplyRule, error)
	// ListByApp 按公众号查询全部规则（管理后台用）
	ListByApp(ctx context.Context, appId string) ([]model.WxReplyRule, error)
	// Create 新建规则
	Create(ctx context.Context, rule *model.WxReplyRule) error
	// Update 更新规则
	Update(ctx context.Context, rule *model.WxReplyRule) error
	// Delete 删除规则
	Delete(ctx context.Context, ruleId string) error
}

// ruleRepositoryImpl 自动回复规则数据访问层实现
type ruleRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewRuleRepository 创建规则仓储实例。redisClient 可为 nil（纯库模式，测试用）。
func NewRuleRepository(db *gorm.DB, redisClient *redis.Client) IRuleRepository {
	return &ruleRepositoryImpl{db: db, redisClient: redisClient}
}

func (r *ruleRepositoryImpl) ListEnabled(ctx context.Context, appId string) ([]model.WxReplyRule, error) {
	cacheKey := consts.RuleCacheKeyPrefix + appId

	// ==================== 1. 先查 Redis 缓存 ====================
	if r.redisClient != nil {
		cached, err := r.redisClient.Get(ctx, cacheKey).Result()
		if err == nil {
			var rules []model.WxReplyRule
			if jsonErr := json.Unmarshal([]byte(cached), &rules); jsonErr == nil {
				return rules, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			// 缓存故障降级走库
			logger.Warn(ctx, "查询规则缓存失败，降级查库", logger.ErrorField("error", WrapRedisError(err)))
		}
	}

	// ==================== 2. 缓存未命中，查询 MySQL ====================
	var rules []model.WxReplyRule
	err := r.db.WithContext(ctx).
		Where("app_id = ? AND enabled = 1", appId).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	// ==================== 3. 回填缓存 ====================
	if r.redisClient != nil {
		if data, jsonErr := json.Marshal(rules); jsonErr == nil {
			if err := r.redisClient.Set(ctx, cacheKey, data, ruleCacheTTL).Err(); err != nil {
				// 回填失败不影响主流程
				logger.Warn(ctx, "写入规则缓存失败", logger.ErrorField("error", WrapRedisError(err)))
			}
		}
	}
	return rules, nil
}

func (r *ruleRepositoryImpl) GetById(ctx context.Context, ruleId string) (*model.WxReplyRule, error) {
	var rule model.WxReplyRule
	err := r.db.WithContext(ctx).Where("id = ?", ruleId).First(&rule).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return &rule, nil
}

func (r *ruleRepositoryImpl) ListByApp(ctx context.Context, appId string) ([]model.WxReplyRule, error) {
	var rules []model.WxReplyRule
	err := r.db.WithContext(ctx).
		Where("app_id = ?", appId).
		Order("created_at ASC").
		Find(&rules).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return rules, nil
}

func (r *ruleRepositoryImpl) Create(ctx context.Context, rule *model.WxReplyRule) error {
	now := time.Now()
	if rule.Id == "" {
		rule.Id = id.GenerateULID()
	}
	rule.CreatedAt = now
	rule.UpdatedAt = now
	if err := r.db.WithContext(ctx).Create(rule).Error; err != nil {
		return WrapDBError(err)
	}
	r.invalidateCache(ctx, rule.AppId)
	return nil
}

func (r *ruleRepositoryImpl) Update(ctx context.Context, rule *model.WxReplyRule) error {
	rule.UpdatedAt = time.Now()
	result := r.db.WithContext(ctx).
		Model(&model.WxReplyRule{}).
		Where("id = ?", rule.Id).
		Updates(map[string]interface{}{
			"rule_name":    rule.RuleName,
			"rule_type":    rule.RuleType,
			"match_type":   rule.MatchType,
			"keyword":      rule.Keyword,
			"content_type": rule.ContentType,
			"content":      rule.Content,
			"enabled":      rule.Enabled,
			"updated_at":   rule.UpdatedAt,
		})
	if result.Error != nil {
		return WrapDBError(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	r.invalidateCache(ctx, rule.AppId)
	return nil
}

func (r *ruleRepositoryImpl) Delete(ctx context.Context, ruleId string) error {
	rule, err := r.GetById(ctx, ruleId)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&model.WxReplyRule{}, "id = ?", ruleId).Error; err != nil {
		return WrapDBError(err)
	}
	r.invalidateCache(ctx, rule.AppId)
	return nil
}

// invalidateCache 规则变更后删除列表缓存，失败只记录（TTL 兜底）。
func (r *ruleRepositoryImpl) invalidateCache(ctx context.Context, appId string) {
	if r.redisClient == nil {
		return
	}
	if err := r.redisClient.Del(ctx, consts.RuleCacheKeyPrefix+appId).Err(); err != nil {
		logger.Warn(ctx, "删除规则缓存失败", logger.ErrorField("error", WrapRedisError(err)))
	}
}
