package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"WxAIServer/model"
	pkglogger "WxAIServer/pkg/logger"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var repoLoggerOnce sync.Once

func initRepoTestLogger() {
	repoLoggerOnce.Do(func() {
		pkglogger.ReplaceGlobal(zap.NewNop())
	})
}

// newTestDB 每个用例独立的内存 SQLite，验证仓储的 SQL 语义
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:wxmprepo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AiReplyRecord{}, &model.WxReplyRule{}, &model.WxAccount{}))
	return db
}

// ==================== 回复记录 ====================

func TestRecordRepository(t *testing.T) {
	initRepoTestLogger()
	ctx := context.Background()

	t.Run("find_absent_returns_nil_nil", func(t *testing.T) {
		repo := NewRecordRepository(newTestDB(t))

		rec, err := repo.FindNotReplied(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("create_then_find", func(t *testing.T) {
		repo := NewRecordRepository(newTestDB(t))

		created, err := repo.Create(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)
		require.NotEmpty(t, created.Id)
		assert.Equal(t, model.ReplyStatusNotReplied, created.ReplyStatus)

		found, err := repo.FindNotReplied(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, created.Id, found.Id)
	})

	t.Run("mark_replied_hides_from_find", func(t *testing.T) {
		repo := NewRecordRepository(newTestDB(t))

		created, err := repo.Create(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)

		require.NoError(t, repo.MarkReplied(ctx, created.Id, "AI 的回复"))

		// 已回复的记录不再出现在待回复查询里
		found, err := repo.FindNotReplied(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)
		assert.Nil(t, found)

		records, total, err := repo.ListByApp(ctx, "wx123", 1, 10)
		require.NoError(t, err)
		require.EqualValues(t, 1, total)
		assert.Equal(t, model.ReplyStatusReplied, records[0].ReplyStatus)
		require.NotNil(t, records[0].ReplyMessage)
		assert.Equal(t, "AI 的回复", *records[0].ReplyMessage)
	})

	t.Run("mark_status_keeps_reply_message", func(t *testing.T) {
		db := newTestDB(t)
		repo := NewRecordRepository(db)

		created, err := repo.Create(ctx, "wx123", "user1", "你好")
		require.NoError(t, err)

		// 模拟上一轮写入了回复但没来得及翻状态位
		stored := "历史回复"
		require.NoError(t, db.Model(&model.AiReplyRecord{}).
			Where("id = ?", created.Id).
			Update("reply_message", &stored).Error)

		require.NoError(t, repo.MarkStatusReplied(ctx, created.Id))

		var rec model.AiReplyRecord
		require.NoError(t, db.First(&rec, "id = ?", created.Id).Error)
		assert.Equal(t, model.ReplyStatusReplied, rec.ReplyStatus)
		require.NotNil(t, rec.ReplyMessage)
		assert.Equal(t, "历史回复", *rec.ReplyMessage, "只翻状态位，回复内容不动")
	})

	t.Run("list_by_app_pages_desc", func(t *testing.T) {
		repo := NewRecordRepository(newTestDB(t))

		for i := 0; i < 5; i++ {
			_, err := repo.Create(ctx, "wx123", "user1", fmt.Sprintf("消息%d", i))
			require.NoError(t, err)
			time.Sleep(2 * time.Millisecond) // created_at 需要可排序
		}
		_, err := repo.Create(ctx, "wx999", "user1", "别的公众号")
		require.NoError(t, err)

		records, total, err := repo.ListByApp(ctx, "wx123", 1, 3)
		require.NoError(t, err)
		assert.EqualValues(t, 5, total)
		require.Len(t, records, 3)
		assert.Equal(t, "消息4", records[0].Message, "按创建时间倒序")

		records, _, err = repo.ListByApp(ctx, "wx123", 2, 3)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})
}

// ==================== 回复规则 ====================

func TestRuleRepository(t *testing.T) {
	initRepoTestLogger()
	ctx := context.Background()

	t.Run("list_enabled_filters_disabled", func(t *testing.T) {
		repo := NewRuleRepository(newTestDB(t), nil)

		require.NoError(t, repo.Create(ctx, &model.WxReplyRule{
			AppId: "wx123", RuleName: "启用", RuleType: model.RuleTypeMessage,
			MatchType: model.MatchTypeFull, Keyword: "帮助",
			ContentType: model.ContentTypeText, Content: "帮助内容", Enabled: 1,
		}))
		require.NoError(t, repo.Create(ctx, &model.WxReplyRule{
			AppId: "wx123", RuleName: "停用", RuleType: model.RuleTypeMessage,
			MatchType: model.MatchTypeFull, Keyword: "旧关键词",
			ContentType: model.ContentTypeText, Content: "旧内容", Enabled: 0,
		}))

		rules, err := repo.ListEnabled(ctx, "wx123")
		require.NoError(t, err)
		require.Len(t, rules, 1)
		assert.Equal(t, "启用", rules[0].RuleName)
	})

	t.Run("update_missing_returns_not_found", func(t *testing.T) {
		repo := NewRuleRepository(newTestDB(t), nil)

		err := repo.Update(ctx, &model.WxReplyRule{Id: "missing", RuleName: "改名"})
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("crud_round_trip", func(t *testing.T) {
		repo := NewRuleRepository(newTestDB(t), nil)

		rule := &model.WxReplyRule{
			AppId: "wx123", RuleName: "规则A", RuleType: model.RuleTypeMessage,
			MatchType: model.MatchTypeFull, Keyword: "帮助",
			ContentType: model.ContentTypeText, Content: "帮助内容", Enabled: 1,
		}
		require.NoError(t, repo.Create(ctx, rule))
		require.NotEmpty(t, rule.Id)

		got, err := repo.GetById(ctx, rule.Id)
		require.NoError(t, err)
		assert.Equal(t, "规则A", got.RuleName)

		rule.Content = "更新后的内容"
		require.NoError(t, repo.Update(ctx, rule))

		got, err = repo.GetById(ctx, rule.Id)
		require.NoError(t, err)
		assert.Equal(t, "更新后的内容", got.Content)

		require.NoError(t, repo.Delete(ctx, rule.Id))
		_, err = repo.GetById(ctx, rule.Id)
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("delete_missing_returns_not_found", func(t *testing.T) {
		repo := NewRuleRepository(newTestDB(t), nil)
		require.ErrorIs(t, repo.Delete(ctx, "missing"), ErrRecordNotFound)
	})
}

// ==================== 公众号账号 ====================

func TestAccountRepository(t *testing.T) {
	initRepoTestLogger()
	ctx := context.Background()

	t.Run("create_then_get", func(t *testing.T) {
		repo := NewAccountRepository(newTestDB(t), nil)

		require.NoError(t, repo.Create(ctx, &model.WxAccount{
			AppId: "wx123", Name: "测试号", Token: "tok", AesKey: "",
		}))

		got, err := repo.GetByAppId(ctx, "wx123")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "测试号", got.Name)
		assert.EqualValues(t, 0, got.Verified)
	})

	t.Run("get_missing_returns_not_found", func(t *testing.T) {
		repo := NewAccountRepository(newTestDB(t), nil)

		_, err := repo.GetByAppId(ctx, "absent")
		require.ErrorIs(t, err, ErrRecordNotFound)
	})

	t.Run("mark_verified", func(t *testing.T) {
		repo := NewAccountRepository(newTestDB(t), nil)

		require.NoError(t, repo.Create(ctx, &model.WxAccount{
			AppId: "wx123", Name: "测试号", Token: "tok",
		}))
		require.NoError(t, repo.MarkVerified(ctx, "wx123"))

		got, err := repo.GetByAppId(ctx, "wx123")
		require.NoError(t, err)
		assert.EqualValues(t, 1, got.Verified)
	})

	t.Run("list", func(t *testing.T) {
		repo := NewAccountRepository(newTestDB(t), nil)

		require.NoError(t, repo.Create(ctx, &model.WxAccount{AppId: "wx1", Name: "一号", Token: "t1"}))
		require.NoError(t, repo.Create(ctx, &model.WxAccount{AppId: "wx2", Name: "二号", Token: "t2"}))

		accounts, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, accounts, 2)
	})
}
