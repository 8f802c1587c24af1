package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/cache"
	"WxAIServer/pkg/limiter"
	"WxAIServer/pkg/lock"
	"WxAIServer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var serviceLoggerOnce sync.Once

func initServiceTestLogger() {
	serviceLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
	})
}

// ==================== 进程内测试替身 ====================

// memoryLockStore 进程内锁存储
type memoryLockStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{tokens: make(map[string]string)}
}

func (s *memoryLockStore) TryAcquire(_ context.Context, key, token string, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.tokens[key]; held {
		return false, nil
	}
	s.tokens[key] = token
	return true, nil
}

func (s *memoryLockStore) Release(_ context.Context, key, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens[key] == token {
		delete(s.tokens, key)
	}
	return nil
}

// memoryCounter 进程内限流计数器
type memoryCounter struct {
	mu      sync.Mutex
	counts  map[string]int64
	expires map[string]time.Time
	now     time.Time
}

func newMemoryCounter() *memoryCounter {
	return &memoryCounter{
		counts:  make(map[string]int64),
		expires: make(map[string]time.Time),
		now:     time.Now(),
	}
}

func (c *memoryCounter) IncrementWithExpiry(_ context.Context, key string, window time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if exp, ok := c.expires[key]; ok && !c.now.Before(exp) {
		delete(c.counts, key)
		delete(c.expires, key)
	}
	c.counts[key]++
	if c.counts[key] == 1 {
		c.expires[key] = c.now.Add(window)
	}
	return c.counts[key], nil
}

func (c *memoryCounter) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *memoryCounter) total() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	var total int64
	for _, v := range c.counts {
		total += v
	}
	return total
}

// memoryCacheStore 进程内缓存存储
type memoryCacheStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryCacheStore() *memoryCacheStore {
	return &memoryCacheStore{values: make(map[string]string)}
}

func (s *memoryCacheStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memoryCacheStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memoryCacheStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// memoryRecordRepo 进程内回复记录仓储，保留全部行便于断言
type memoryRecordRepo struct {
	mu      sync.Mutex
	records []*model.AiReplyRecord
	nextId  int
}

func newMemoryRecordRepo() *memoryRecordRepo {
	return &memoryRecordRepo{}
}

func (r *memoryRecordRepo) FindNotReplied(_ context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.AppId == appId && rec.FromUser == fromUser && rec.Message == message &&
			rec.ReplyStatus == model.ReplyStatusNotReplied {
			clone := *rec
			return &clone, nil
		}
	}
	return nil, nil
}

func (r *memoryRecordRepo) Create(_ context.Context, appId, fromUser, message string) (*model.AiReplyRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextId++
	rec := &model.AiReplyRecord{
		Id:          strings.Repeat("0", 25) + string(rune('A'+r.nextId%26)),
		AppId:       appId,
		FromUser:    fromUser,
		Message:     message,
		ReplyStatus: model.ReplyStatusNotReplied,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	r.records = append(r.records, rec)
	clone := *rec
	return &clone, nil
}

func (r *memoryRecordRepo) MarkReplied(_ context.Context, recordId, replyMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Id == recordId {
			msg := replyMessage
			rec.ReplyMessage = &msg
			rec.ReplyStatus = model.ReplyStatusReplied
			return nil
		}
	}
	return nil
}

func (r *memoryRecordRepo) MarkStatusReplied(_ context.Context, recordId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Id == recordId {
			rec.ReplyStatus = model.ReplyStatusReplied
			return nil
		}
	}
	return nil
}

func (r *memoryRecordRepo) ListByApp(_ context.Context, appId string, _, _ int) ([]model.AiReplyRecord, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.AiReplyRecord
	for _, rec := range r.records {
		if rec.AppId == appId {
			out = append(out, *rec)
		}
	}
	return out, int64(len(out)), nil
}

func (r *memoryRecordRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *memoryRecordRepo) first() *model.AiReplyRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.records) == 0 {
		return nil
	}
	clone := *r.records[0]
	return &clone
}

func (r *memoryRecordRepo) seed(rec *model.AiReplyRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
}

// fakeRuleRepo 规则仓储替身，只实现测试涉及的方法
type fakeRuleRepo struct {
	listEnabledFn func(ctx context.Context, appId string) ([]model.WxReplyRule, error)
}

func (f *fakeRuleRepo) ListEnabled(ctx context.Context, appId string) ([]model.WxReplyRule, error) {
	if f.listEnabledFn == nil {
		return nil, nil
	}
	return f.listEnabledFn(ctx, appId)
}

func (f *fakeRuleRepo) GetById(context.Context, string) (*model.WxReplyRule, error) {
	return nil, errors.New("unexpected GetById call")
}

func (f *fakeRuleRepo) ListByApp(context.Context, string) ([]model.WxReplyRule, error) {
	return nil, errors.New("unexpected ListByApp call")
}

func (f *fakeRuleRepo) Create(context.Context, *model.WxReplyRule) error {
	return errors.New("unexpected Create call")
}

func (f *fakeRuleRepo) Update(context.Context, *model.WxReplyRule) error {
	return errors.New("unexpected Update call")
}

func (f *fakeRuleRepo) Delete(context.Context, string) error {
	return errors.New("unexpected Delete call")
}

// countingChatClient AI 客户端替身，记录调用次数
type countingChatClient struct {
	mu         sync.Mutex
	calls      int
	generateFn func(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

func (c *countingChatClient) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.generateFn == nil {
		return "", errors.New("unexpected Generate call")
	}
	return c.generateFn(ctx, systemPrompt, userMessage)
}

func (c *countingChatClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// ==================== 测试装配 ====================

type replyServiceFixture struct {
	svc        *ReplyService
	lockStore  *memoryLockStore
	counter    *memoryCounter
	cacheStore *memoryCacheStore
	recordRepo *memoryRecordRepo
	ruleRepo   *fakeRuleRepo
	chatClient *countingChatClient
}

func newReplyServiceFixture() *replyServiceFixture {
	lockStore := newMemoryLockStore()
	counter := newMemoryCounter()
	cacheStore := newMemoryCacheStore()
	recordRepo := newMemoryRecordRepo()
	ruleRepo := &fakeRuleRepo{}
	chatClient := &countingChatClient{
		generateFn: func(_ context.Context, _, _ string) (string, error) {
			return "AI生成的回复", nil
		},
	}

	aiSvc := NewAiReplyService(
		recordRepo,
		cache.NewReplyCache(cacheStore, 30*time.Minute),
		limiter.NewFixedWindowLimiter(counter, 2, time.Minute),
		chatClient,
	)
	svc := NewReplyService(
		lock.NewManager(lockStore, 30*time.Second),
		NewRuleService(ruleRepo),
		recordRepo,
		aiSvc,
	)

	return &replyServiceFixture{
		svc:        svc,
		lockStore:  lockStore,
		counter:    counter,
		cacheStore: cacheStore,
		recordRepo: recordRepo,
		ruleRepo:   ruleRepo,
		chatClient: chatClient,
	}
}

// ==================== 编排流程 ====================

func TestReplyAIFlow(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	t.Run("first_message_resolves_via_ai", func(t *testing.T) {
		f := newReplyServiceFixture()

		got := f.svc.Reply(ctx, "wx123", "user1", "你好")

		require.Equal(t, "AI生成的回复", got)
		assert.Equal(t, 1, f.chatClient.callCount())

		rec := f.recordRepo.first()
		require.NotNil(t, rec)
		assert.Equal(t, model.ReplyStatusReplied, rec.ReplyStatus)
		require.NotNil(t, rec.ReplyMessage)
		assert.Equal(t, "AI生成的回复", *rec.ReplyMessage)
		assert.Equal(t, 1, f.cacheStore.size(), "解析成功后回复应入缓存")
	})

	t.Run("repeat_message_served_from_cache", func(t *testing.T) {
		f := newReplyServiceFixture()

		first := f.svc.Reply(ctx, "wx123", "user1", "你好")
		second := f.svc.Reply(ctx, "wx123", "user1", "你好")

		assert.Equal(t, first, second)
		assert.Equal(t, 1, f.chatClient.callCount(), "缓存期内同一条消息只调用一次 AI")
	})

	t.Run("different_users_resolve_independently", func(t *testing.T) {
		f := newReplyServiceFixture()

		f.svc.Reply(ctx, "wx123", "user1", "你好")
		f.svc.Reply(ctx, "wx123", "user2", "你好")

		assert.Equal(t, 2, f.chatClient.callCount(), "缓存按发送方隔离")
	})
}

// ==================== 并发去重 ====================

func TestReplyConcurrentDuplicates(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	f := newReplyServiceFixture()

	const workers = 8
	started := make(chan struct{})
	release := make(chan struct{})
	f.chatClient.generateFn = func(_ context.Context, _, _ string) (string, error) {
		close(started)
		// 占住锁，确保其余请求都在锁被持有期间进来
		<-release
		return "AI生成的回复", nil
	}

	results := make(chan string, workers)
	go func() {
		results <- f.svc.Reply(ctx, "wx123", "user1", "并发消息")
	}()
	<-started

	var wg sync.WaitGroup
	for i := 0; i < workers-1; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- f.svc.Reply(ctx, "wx123", "user1", "并发消息")
		}()
	}
	wg.Wait()
	close(release)

	replies := make(map[string]int)
	for i := 0; i < workers; i++ {
		replies[<-results]++
	}

	assert.Equal(t, 1, f.chatClient.callCount(), "并发重复消息只允许一次 AI 调用")
	assert.Equal(t, 1, replies["AI生成的回复"])
	assert.Equal(t, workers-1, replies[consts.ReplyProcessing], "落败方立即收到占位回复")
	assert.Equal(t, 1, f.recordRepo.count(), "只落一条记录")
}

func TestReplyLockHeldReturnsProcessing(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	f := newReplyServiceFixture()

	// 预先占住这条消息的锁
	lockKey := replyLockKey("wx123", "user1", "你好")
	ok, err := f.lockStore.TryAcquire(ctx, lockKey, "other-holder", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	got := f.svc.Reply(ctx, "wx123", "user1", "你好")

	assert.Equal(t, consts.ReplyProcessing, got)
	assert.Equal(t, 0, f.chatClient.callCount())
	assert.Equal(t, 0, f.recordRepo.count())
}

// ==================== 输入检查 ====================

func TestReplyInputGuards(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	cases := []struct {
		name    string
		message string
		want    string
	}{
		{"blank", "   ", consts.ReplyEmptyMessage},
		{"punctuation_cn_question", "？", consts.ReplyPunctuationOnly},
		{"punctuation_period", ".", consts.ReplyPunctuationOnly},
		{"too_long", strings.Repeat("长", 501), consts.ReplyTooLong},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newReplyServiceFixture()

			got := f.svc.Reply(ctx, "wx123", "user1", tc.message)

			assert.Equal(t, tc.want, got)
			assert.Equal(t, 0, f.chatClient.callCount(), "无效输入不调用 AI")
			assert.EqualValues(t, 0, f.counter.total(), "无效输入不消耗限流额度")
			assert.Equal(t, 0, f.cacheStore.size())

			// 记录已建档但保持未回复，下次有效输入可继续走重试路径
			if rec := f.recordRepo.first(); rec != nil {
				assert.Equal(t, model.ReplyStatusNotReplied, rec.ReplyStatus)
			}
		})
	}

	t.Run("boundary_500_runes_allowed", func(t *testing.T) {
		f := newReplyServiceFixture()

		got := f.svc.Reply(ctx, "wx123", "user1", strings.Repeat("长", 500))

		assert.Equal(t, "AI生成的回复", got)
		assert.Equal(t, 1, f.chatClient.callCount())
	})
}

// ==================== 限流 ====================

func TestReplyRateLimit(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	t.Run("third_distinct_message_limited", func(t *testing.T) {
		f := newReplyServiceFixture()

		assert.Equal(t, "AI生成的回复", f.svc.Reply(ctx, "wx123", "user1", "问题一"))
		assert.Equal(t, "AI生成的回复", f.svc.Reply(ctx, "wx123", "user1", "问题二"))
		assert.Equal(t, consts.ReplyRateLimited, f.svc.Reply(ctx, "wx123", "user1", "问题三"))

		assert.Equal(t, 2, f.chatClient.callCount(), "被限流的请求不调用 AI")
	})

	t.Run("limited_message_retryable_next_window", func(t *testing.T) {
		f := newReplyServiceFixture()

		f.svc.Reply(ctx, "wx123", "user1", "问题一")
		f.svc.Reply(ctx, "wx123", "user1", "问题二")
		require.Equal(t, consts.ReplyRateLimited, f.svc.Reply(ctx, "wx123", "user1", "问题三"))

		f.counter.advance(61 * time.Second)

		// 用户重发同一条消息即是重试：复用被限流时建的档
		assert.Equal(t, "AI生成的回复", f.svc.Reply(ctx, "wx123", "user1", "问题三"))
		assert.Equal(t, 3, f.recordRepo.count(), "重试不新建记录")
	})

	t.Run("cached_reply_bypasses_limit", func(t *testing.T) {
		f := newReplyServiceFixture()

		f.svc.Reply(ctx, "wx123", "user1", "问题一")
		f.svc.Reply(ctx, "wx123", "user1", "问题二")

		// 第三次是已缓存的消息：命中缓存不消耗限流额度
		got := f.svc.Reply(ctx, "wx123", "user1", "问题一")
		assert.Equal(t, "AI生成的回复", got)
		assert.EqualValues(t, 2, f.counter.total())
	})
}

// ==================== AI 失败与重试 ====================

func TestReplyAIFailure(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	t.Run("error_returns_apology_record_retryable", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.chatClient.generateFn = func(_ context.Context, _, _ string) (string, error) {
			return "", errors.New("upstream timeout")
		}

		got := f.svc.Reply(ctx, "wx123", "user1", "你好")

		assert.Equal(t, consts.ReplyAIFailure, got)
		rec := f.recordRepo.first()
		require.NotNil(t, rec)
		assert.Equal(t, model.ReplyStatusNotReplied, rec.ReplyStatus, "失败的记录保持可重试")
		assert.Equal(t, 0, f.cacheStore.size(), "失败不入缓存")
	})

	t.Run("blank_completion_treated_as_failure", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.chatClient.generateFn = func(_ context.Context, _, _ string) (string, error) {
			return "   ", nil
		}

		got := f.svc.Reply(ctx, "wx123", "user1", "你好")
		assert.Equal(t, consts.ReplyAIFailure, got)
	})

	t.Run("retry_reuses_record", func(t *testing.T) {
		f := newReplyServiceFixture()
		fail := true
		f.chatClient.generateFn = func(_ context.Context, _, _ string) (string, error) {
			if fail {
				return "", errors.New("upstream timeout")
			}
			return "恢复后的回复", nil
		}

		require.Equal(t, consts.ReplyAIFailure, f.svc.Reply(ctx, "wx123", "user1", "你好"))

		fail = false
		got := f.svc.Reply(ctx, "wx123", "user1", "你好")

		assert.Equal(t, "恢复后的回复", got)
		assert.Equal(t, 1, f.recordRepo.count(), "重试复用原记录，不新建")
		rec := f.recordRepo.first()
		require.NotNil(t, rec.ReplyMessage)
		assert.Equal(t, "恢复后的回复", *rec.ReplyMessage)
	})
}

// ==================== 存量回复复用 ====================

func TestReplyReusesStoredReply(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	f := newReplyServiceFixture()

	// 回复已写入但状态位还没翻转：典型于进程在两步之间中断
	stored := "历史回复"
	f.recordRepo.seed(&model.AiReplyRecord{
		Id:           "01HISTORYRECORD0000000000A",
		AppId:        "wx123",
		FromUser:     "user1",
		Message:      "你好",
		ReplyMessage: &stored,
		ReplyStatus:  model.ReplyStatusNotReplied,
	})

	got := f.svc.Reply(ctx, "wx123", "user1", "你好")

	assert.Equal(t, "历史回复", got, "存量回复直接复用，不得覆盖")
	assert.Equal(t, 0, f.chatClient.callCount())
	rec := f.recordRepo.first()
	assert.Equal(t, model.ReplyStatusReplied, rec.ReplyStatus, "复用时收敛状态位")
	assert.Equal(t, "历史回复", *rec.ReplyMessage)
}

// ==================== 规则命中 ====================

func TestReplyRuleHit(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	t.Run("rule_hit_bypasses_ai", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.ruleRepo.listEnabledFn = func(_ context.Context, _ string) ([]model.WxReplyRule, error) {
			return []model.WxReplyRule{
				{RuleType: model.RuleTypeMessage, MatchType: model.MatchTypeFull,
					Keyword: "帮助", ContentType: model.ContentTypeText, Content: "这是帮助信息"},
			}, nil
		}

		got := f.svc.Reply(ctx, "wx123", "user1", "帮助")

		assert.Equal(t, "这是帮助信息", got)
		assert.Equal(t, 0, f.chatClient.callCount())
		assert.Equal(t, 0, f.recordRepo.count(), "规则命中不落记录")
		assert.EqualValues(t, 0, f.counter.total(), "规则命中不消耗限流额度")
	})

	t.Run("unknown_content_type", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.ruleRepo.listEnabledFn = func(_ context.Context, _ string) ([]model.WxReplyRule, error) {
			return []model.WxReplyRule{
				{RuleType: model.RuleTypeMessage, MatchType: model.MatchTypeFull,
					Keyword: "帮助", ContentType: 99, Content: "不支持的内容"},
			}, nil
		}

		got := f.svc.Reply(ctx, "wx123", "user1", "帮助")
		assert.Equal(t, consts.ReplyUnknownContentType, got)
	})

	t.Run("rule_query_error_falls_back", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.ruleRepo.listEnabledFn = func(_ context.Context, _ string) ([]model.WxReplyRule, error) {
			return nil, errors.New("connection refused")
		}

		got := f.svc.Reply(ctx, "wx123", "user1", "你好")
		assert.Equal(t, consts.ReplyFallback, got)
		assert.Equal(t, 0, f.chatClient.callCount())
	})
}

// ==================== 关注事件 ====================

func TestReplySubscribe(t *testing.T) {
	initServiceTestLogger()
	ctx := context.Background()

	t.Run("configured_rule", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.ruleRepo.listEnabledFn = func(_ context.Context, _ string) ([]model.WxReplyRule, error) {
			return []model.WxReplyRule{
				{RuleType: model.RuleTypeSubscribe, ContentType: model.ContentTypeText, Content: "欢迎关注！"},
			}, nil
		}

		assert.Equal(t, "欢迎关注！", f.svc.ReplySubscribe(ctx, "wx123"))
	})

	t.Run("no_rule_uses_default", func(t *testing.T) {
		f := newReplyServiceFixture()
		assert.Equal(t, consts.ReplySubscribeDefault, f.svc.ReplySubscribe(ctx, "wx123"))
	})

	t.Run("query_error_uses_default", func(t *testing.T) {
		f := newReplyServiceFixture()
		f.ruleRepo.listEnabledFn = func(_ context.Context, _ string) ([]model.WxReplyRule, error) {
			return nil, errors.New("connection refused")
		}
		assert.Equal(t, consts.ReplySubscribeDefault, f.svc.ReplySubscribe(ctx, "wx123"))
	})
}
