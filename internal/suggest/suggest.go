package suggest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"github.com/nerdneilsfield/go-overlay-translator/pkg/overlay"
)

// 预定义错误
var (
	ErrCircuitOpen = errors.New("suggestion service unavailable")
	ErrNoAPIKey    = errors.New("openai key not configured")
	ErrEmptyReply  = errors.New("empty suggestion")
)

// Options 建议服务选项
type Options struct {
	BaseURL     string
	Key         string
	Model       string
	Timeout     time.Duration
	Concurrency int
	// MaxFailures 连续失败多少次后熔断
	MaxFailures uint32
	// Cooldown 熔断后多久允许试探请求
	Cooldown time.Duration
	Cache    Cache
	Logger   *zap.Logger
}

// Suggestion 一个节点的建议译文
type Suggestion struct {
	NodeID string
	Text   string
	Err    error
}

// Suggester 通过 OpenAI 兼容接口生成译文草稿
type Suggester struct {
	client  *openai.Client
	model   string
	breaker *gobreaker.CircuitBreaker
	cache   Cache
	workers int
	logger  *zap.Logger
}

// New 创建建议服务
func New(opts Options) (*Suggester, error) {
	if strings.TrimSpace(opts.Key) == "" {
		return nil, ErrNoAPIKey
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.MaxFailures == 0 {
		opts.MaxFailures = 3
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 30 * time.Second
	}
	if opts.Cache == nil {
		opts.Cache = NewMemoryCache()
	}

	cfg := openai.DefaultConfig(opts.Key)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}

	logger := opts.Logger
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openai",
		MaxRequests: 1,
		Timeout:     opts.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= opts.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Suggester{
		client:  openai.NewClientWithConfig(cfg),
		model:   opts.Model,
		breaker: breaker,
		cache:   opts.Cache,
		workers: opts.Concurrency,
		logger:  logger,
	}, nil
}

// languageName 返回语言标签的英文名称，无法识别时原样返回
func languageName(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return lang
}

// Suggest 为一段原文生成目标语言的译文
func (s *Suggester) Suggest(ctx context.Context, text, lang string) (string, error) {
	key := CacheKey(s.model, lang, text)
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}

	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.complete(ctx, text, lang)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return "", err
	}

	suggestion := out.(string)
	if err := s.cache.Set(key, suggestion); err != nil {
		s.logger.Debug("failed to cache suggestion", zap.Error(err))
	}
	return suggestion, nil
}

func (s *Suggester) complete(ctx context.Context, text, lang string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleSystem,
				Content: "You translate short user interface strings from a web page. " +
					"Respond with only the translation, keep punctuation and placeholders.",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Translate into %s:\n\n%s", languageName(lang), text),
			},
		},
		Temperature: 0.2,
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	reply := strings.TrimSpace(resp.Choices[0].Message.Content)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return reply, nil
}

// SuggestAll 并发为多个描述生成建议，结果顺序与输入一致
//
// 单个节点失败记录在 Suggestion.Err 中；熔断时停止剩余请求并返回错误。
func (s *Suggester) SuggestAll(ctx context.Context, descriptors []overlay.Descriptor, lang string) ([]Suggestion, error) {
	out := make([]Suggestion, len(descriptors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, d := range descriptors {
		i, d := i, d
		g.Go(func() error {
			text, err := s.Suggest(gctx, d.OriginalText, lang)
			out[i] = Suggestion{NodeID: d.NodeID, Text: text, Err: err}
			if errors.Is(err, ErrCircuitOpen) {
				return err
			}
			if err != nil {
				s.logger.Debug("suggestion failed", zap.String("nodeId", d.NodeID), zap.Error(err))
			}
			return nil
		})
	}
	err := g.Wait()
	return out, err
}
