package v1

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/apps/wxmp/internal/service"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/cache"
	"WxAIServer/pkg/limiter"
	"WxAIServer/pkg/lock"
	pkglogger "WxAIServer/pkg/logger"
	"WxAIServer/pkg/wxcrypto"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var portalLoggerOnce sync.Once

func initPortalTestLogger() {
	portalLoggerOnce.Do(func() {
		pkglogger.ReplaceGlobal(zap.NewNop())
		gin.SetMode(gin.TestMode)
	})
}

// testAESKey 43 字符合法 EncodingAESKey
var testAESKey = base64.StdEncoding.EncodeToString(make([]byte, 32))[:43]

// ==================== 进程内替身 ====================

type memoryLockStore struct {
	mu     sync.Mutex
	tokens map[string]string
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

type memoryCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (c *memoryCounter) IncrementWithExpiry(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

type memoryCacheStore struct {
	mu     sync.Mutex
	values map[string]string
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

type fakeChatClient struct {
	generateFn func(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

func (c *fakeChatClient) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	if c.generateFn == nil {
		return "AI生成的回复", nil
	}
	return c.generateFn(ctx, systemPrompt, userMessage)
}

// ==================== 装配 ====================

type portalFixture struct {
	handler     *PortalHandler
	db          *gorm.DB
	accountRepo repository.IAccountRepository
}

func newPortalFixture(t *testing.T) *portalFixture {
	t.Helper()
	initPortalTestLogger()

	dsn := fmt.Sprintf("file:wxmpportal_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.AiReplyRecord{}, &model.WxReplyRule{}, &model.WxAccount{}))

	recordRepo := repository.NewRecordRepository(db)
	ruleRepo := repository.NewRuleRepository(db, nil)
	accountRepo := repository.NewAccountRepository(db, nil)

	aiSvc := service.NewAiReplyService(
		recordRepo,
		cache.NewReplyCache(&memoryCacheStore{values: make(map[string]string)}, 30*time.Minute),
		limiter.NewFixedWindowLimiter(&memoryCounter{counts: make(map[string]int64)}, 2, time.Minute),
		&fakeChatClient{},
	)
	replySvc := service.NewReplyService(
		lock.NewManager(&memoryLockStore{tokens: make(map[string]string)}, 30*time.Second),
		service.NewRuleService(ruleRepo),
		recordRepo,
		aiSvc,
	)

	return &portalFixture{
		handler:     NewPortalHandler(service.NewAccountService(accountRepo), replySvc),
		db:          db,
		accountRepo: accountRepo,
	}
}

func (f *portalFixture) router() *gin.Engine {
	r := gin.New()
	r.GET("/wx/msg/:appId", f.handler.Verify)
	r.POST("/wx/msg/:appId", f.handler.Receive)
	return r
}

func (f *portalFixture) seedAccount(t *testing.T, appId, token, aesKey string) {
	t.Helper()
	require.NoError(t, f.accountRepo.Create(context.Background(), &model.WxAccount{
		AppId: appId, Name: "测试号", Token: token, AesKey: aesKey,
	}))
}

func signedQuery(token string, extra map[string]string) string {
	timestamp := "1700000000"
	nonce := "nonce123"
	values := url.Values{}
	values.Set("signature", wxcrypto.Signature(token, timestamp, nonce))
	values.Set("timestamp", timestamp)
	values.Set("nonce", nonce)
	for k, v := range extra {
		values.Set(k, v)
	}
	return values.Encode()
}

func textMessageXml(content string) string {
	return `<xml>
<ToUserName><![CDATA[gh_123]]></ToUserName>
<FromUserName><![CDATA[openid_user1]]></FromUserName>
<CreateTime>1700000000</CreateTime>
<MsgType><![CDATA[text]]></MsgType>
<Content><![CDATA[` + content + `]]></Content>
<MsgId>1234567890</MsgId>
</xml>`
}

// ==================== 接入校验 ====================

func TestPortalVerify(t *testing.T) {
	t.Run("valid_signature_echoes_and_verifies", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		query := signedQuery("mytoken", map[string]string{"echostr": "echo-abc"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/wx/msg/wx123?"+query, nil)
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "echo-abc", w.Body.String())

		account, err := f.accountRepo.GetByAppId(context.Background(), "wx123")
		require.NoError(t, err)
		assert.EqualValues(t, 1, account.Verified)
	})

	t.Run("bad_signature_rejected", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		query := signedQuery("wrongtoken", map[string]string{"echostr": "echo-abc"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/wx/msg/wx123?"+query, nil)
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "非法请求", w.Body.String())
	})

	t.Run("unknown_account_rejected", func(t *testing.T) {
		f := newPortalFixture(t)

		query := signedQuery("mytoken", map[string]string{"echostr": "echo-abc"})
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/wx/msg/absent?"+query, nil)
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "非法请求", w.Body.String())
	})
}

// ==================== 消息回调 ====================

func TestPortalReceive(t *testing.T) {
	t.Run("plaintext_text_message", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+signedQuery("mytoken", nil),
			strings.NewReader(textMessageXml("你好")))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var out struct {
			ToUserName   string `xml:"ToUserName"`
			FromUserName string `xml:"FromUserName"`
			MsgType      string `xml:"MsgType"`
			Content      string `xml:"Content"`
		}
		require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &out))
		assert.Equal(t, "openid_user1", out.ToUserName, "收发方互换")
		assert.Equal(t, "gh_123", out.FromUserName)
		assert.Equal(t, "text", out.MsgType)
		assert.Equal(t, "AI生成的回复", out.Content)
	})

	t.Run("bad_signature_rejected", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+signedQuery("wrongtoken", nil),
			strings.NewReader(textMessageXml("你好")))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "非法请求", w.Body.String())
	})

	t.Run("subscribe_event_default_reply", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		body := `<xml>
<ToUserName><![CDATA[gh_123]]></ToUserName>
<FromUserName><![CDATA[openid_user1]]></FromUserName>
<CreateTime>1700000000</CreateTime>
<MsgType><![CDATA[event]]></MsgType>
<Event><![CDATA[subscribe]]></Event>
</xml>`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+signedQuery("mytoken", nil),
			strings.NewReader(body))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), consts.ReplySubscribeDefault)
	})

	t.Run("unsupported_msg_type_no_reply", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", "")

		body := `<xml>
<ToUserName><![CDATA[gh_123]]></ToUserName>
<FromUserName><![CDATA[openid_user1]]></FromUserName>
<CreateTime>1700000000</CreateTime>
<MsgType><![CDATA[image]]></MsgType>
</xml>`
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+signedQuery("mytoken", nil),
			strings.NewReader(body))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String(), "不支持的消息类型回空响应")
	})

	t.Run("aes_mode_round_trip", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", testAESKey)

		crypt, err := wxcrypto.NewMsgCrypt("wx123", testAESKey)
		require.NoError(t, err)

		encrypt, err := crypt.Encrypt([]byte(textMessageXml("你好")))
		require.NoError(t, err)

		timestamp := "1700000000"
		nonce := "nonce123"
		query := signedQuery("mytoken", map[string]string{
			"encrypt_type":  "aes",
			"msg_signature": wxcrypto.Signature("mytoken", timestamp, nonce, encrypt),
		})
		body := `<xml><Encrypt><![CDATA[` + encrypt + `]]></Encrypt></xml>`

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+query, strings.NewReader(body))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		// 响应是加密报文，解密后才能看到回复内容
		var envelope struct {
			Encrypt string `xml:"Encrypt"`
		}
		require.NoError(t, xml.Unmarshal(w.Body.Bytes(), &envelope))
		require.NotEmpty(t, envelope.Encrypt)

		plain, err := crypt.Decrypt(envelope.Encrypt)
		require.NoError(t, err)
		assert.Contains(t, string(plain), "AI生成的回复")
	})

	t.Run("aes_mode_bad_msg_signature_no_reply", func(t *testing.T) {
		f := newPortalFixture(t)
		f.seedAccount(t, "wx123", "mytoken", testAESKey)

		crypt, err := wxcrypto.NewMsgCrypt("wx123", testAESKey)
		require.NoError(t, err)
		encrypt, err := crypt.Encrypt([]byte(textMessageXml("你好")))
		require.NoError(t, err)

		query := signedQuery("mytoken", map[string]string{
			"encrypt_type":  "aes",
			"msg_signature": "deadbeef",
		})
		body := `<xml><Encrypt><![CDATA[` + encrypt + `]]></Encrypt></xml>`

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/wx/msg/wx123?"+query, strings.NewReader(body))
		f.router().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, w.Body.String())
	})
}
