package service

import (
	"context"

	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/model"
)

// AccountService 公众号账号服务。
type AccountService struct {
	accountRepo repository.IAccountRepository
}

// NewAccountService 创建公众号服务实例
func NewAccountService(accountRepo repository.IAccountRepository) *AccountService {
	return &AccountService{accountRepo: accountRepo}
}

// GetByAppId 查询公众号，不存在返回 repository.ErrRecordNotFound。
func (s *AccountService) GetByAppId(ctx context.Context, appId string) (*model.WxAccount, error) {
	return s.accountRepo.GetByAppId(ctx, appId)
}

// MarkVerified 接入校验通过后标记公众号已认证。
func (s *AccountService) MarkVerified(ctx context.Context, appId string) error {
	return s.accountRepo.MarkVerified(ctx, appId)
}

// Create 新建公众号。
func (s *AccountService) Create(ctx context.Context, account *model.WxAccount) error {
	return s.accountRepo.Create(ctx, account)
}

// List 查询全部公众号。
func (s *AccountService) List(ctx context.Context) ([]model.WxAccount, error) {
	return s.accountRepo.List(ctx)
}
