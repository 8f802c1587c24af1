package service

import (
	"context"
	"errors"
	"time"

	"WxAIServer/config"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
)

// ErrEmptyCompletion AI 返回了空结果。
var ErrEmptyCompletion = errors.New("ai returned empty completion")

// ChatClient 生成式后端的最小接口。
// 调用方只关心 (系统预设, 用户消息) -> (回复文本, 错误)。
type ChatClient interface {
	Generate(ctx context.Context, systemPrompt, userMessage string) (string, error)
}

// OpenAIChatClient 基于 OpenAI 兼容接口的实现。
// 外层套熔断器：AI 服务持续失败时快速失败，不再消耗 4 秒超时预算。
type OpenAIChatClient struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
}

// NewOpenAIChatClient 创建 AI 调用客户端。
func NewOpenAIChatClient(cfg config.AIConfig) *OpenAIChatClient {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	maxFails := cfg.MaxConsecutiveFails
	if maxFails == 0 {
		maxFails = 5
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-chat",
		MaxRequests: 1,
		Timeout:     30 * time.Second, // 熔断后的恢复探测间隔
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFails
		},
	})

	return &OpenAIChatClient{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   cfg.Model,
		timeout: cfg.Timeout,
		breaker: breaker,
	}
}

// Generate 调用 chat completion 接口。超时与熔断都体现为 error 返回，
// 由调用方统一走"AI 失败"分支。
func (c *OpenAIChatClient) Generate(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: userMessage},
			},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Choices) == 0 {
			return nil, ErrEmptyCompletion
		}
		return resp.Choices[0].Message.Content, nil
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}
