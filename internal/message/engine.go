// Package message 实现会话/消息对账引擎：把拦截到的接口缓存和
// DOM 兜底提取这两份独立来源、形状各异的数据合并成一份无重复、
// 无脏覆盖的视图。接口来源始终优先；DOM 结果只用来补足。
package message

import (
	"errors"
	"strings"
	"sync"
	"time"

	"idlemsg/internal/domx"
	"idlemsg/internal/intercept"
	"idlemsg/internal/logger"
	"idlemsg/internal/normalize"
	"idlemsg/internal/verify"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

// ErrNoSession 浏览器会话未启动，调用方的硬前置条件
var ErrNoSession = errors.New("浏览器会话未启动")

// Options 引擎配置
type Options struct {
	IMURL        string
	PollCount    int           // 打开会话后轮询消息缓存的次数
	PollInterval time.Duration // 轮询间隔
}

// Engine 对账引擎。生命周期与一个浏览器会话一致，
// 上下文缓存和最近打开时间都由引擎实例自己持有，不使用全局状态。
type Engine struct {
	sess    browser.Session
	cache   *intercept.Cache
	checker *verify.Checker
	dom     *domx.Extractor
	log     logger.Logger

	imURL        string
	pollCount    int
	pollInterval time.Duration
	now          func() time.Time

	mu           sync.RWMutex
	contextCache map[string]model.ItemContext
	lastOpened   map[string]time.Time
	reason       string // 最近一次页面级检测的拦截原因
}

// New 创建对账引擎
func New(sess browser.Session, cache *intercept.Cache, checker *verify.Checker, dom *domx.Extractor, log logger.Logger, opts Options) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.IMURL == "" {
		opts.IMURL = "https://www.goofish.com/im"
	}
	if opts.PollCount <= 0 {
		opts.PollCount = 5
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Second
	}
	return &Engine{
		sess:         sess,
		cache:        cache,
		checker:      checker,
		dom:          dom,
		log:          log,
		imURL:        opts.IMURL,
		pollCount:    opts.PollCount,
		pollInterval: opts.PollInterval,
		now:          time.Now,
		contextCache: make(map[string]model.ItemContext),
		lastOpened:   make(map[string]time.Time),
	}
}

// ensurePage 确保当前位于消息页，并刷新页面级拦截检测
func (e *Engine) ensurePage() error {
	if e.sess == nil {
		return ErrNoSession
	}
	if !strings.Contains(e.sess.CurrentURL(), "/im") {
		if err := e.sess.Navigate(e.imURL); err != nil {
			return err
		}
		e.sess.WaitMS(3000)
	}
	e.setReason(e.checker.Detect())
	return nil
}

// BlockReason 返回最近一次检测到的拦截原因
func (e *Engine) BlockReason() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reason
}

func (e *Engine) setReason(reason string) {
	e.mu.Lock()
	e.reason = reason
	e.mu.Unlock()
}

// GetConversations 获取会话列表。接口缓存充足时直接返回；
// 不足且未被拦截时做 DOM 兜底并合并；被拦截且无数据时立即
// 返回空结果加原因。
func (e *Engine) GetConversations(limit int) (model.ConversationResult, error) {
	if err := e.ensurePage(); err != nil {
		return model.ConversationResult{}, err
	}

	convs := e.conversationsFromCache(limit)
	if len(convs) > 0 {
		e.log.Info("通过接口缓存获取到会话", "count", len(convs))
		if len(convs) >= limit {
			return model.ConversationResult{Conversations: e.enrich(convs)}, nil
		}
		if e.BlockReason() == "" {
			convs = e.mergeConversations(convs, e.domConversations(limit), limit)
		}
		return model.ConversationResult{Conversations: e.enrich(convs), BlockReason: e.BlockReason()}, nil
	}

	if reason := e.BlockReason(); reason != "" {
		e.log.Warn(reason)
		return model.ConversationResult{BlockReason: reason}, nil
	}

	convs = e.domConversations(limit)
	return model.ConversationResult{Conversations: e.enrich(convs), BlockReason: e.BlockReason()}, nil
}

// conversationsFromCache 从 session.sync 接口缓存解析会话列表
func (e *Engine) conversationsFromCache(limit int) []model.Conversation {
	payload, ok := e.cache.Payload(intercept.APISessionSync)
	if !ok {
		return nil
	}
	return normalize.ConversationsFromSessionSync(payload, limit)
}

// domConversations 经过验证恢复检查后做 DOM 兜底提取
func (e *Engine) domConversations(limit int) []model.Conversation {
	if !e.checker.EnsureReady() {
		e.setReason(e.checker.LastReason())
		return nil
	}
	e.setReason("")
	return e.dom.Conversations(limit)
}

// mergeConversations 合并接口和 DOM 会话。接口记录原样保留；
// DOM 记录缺少稳定 id，按 (用户名, 最后消息) 组合键去重后追加。
func (e *Engine) mergeConversations(apiConvs, domConvs []model.Conversation, limit int) []model.Conversation {
	type mergeKey struct{ name, lastMessage string }

	merged := make([]model.Conversation, 0, len(apiConvs))
	seen := make(map[mergeKey]struct{}, len(apiConvs))
	for _, conv := range apiConvs {
		merged = append(merged, conv)
		seen[mergeKey{strings.TrimSpace(conv.UserName), strings.TrimSpace(conv.LastMessage)}] = struct{}{}
	}

	for _, conv := range domConvs {
		key := mergeKey{strings.TrimSpace(conv.UserName), strings.TrimSpace(conv.LastMessage)}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, conv)
		if len(merged) >= limit {
			break
		}
	}

	merged = rank(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// enrich 用上下文缓存补全商品关联和最近打开时间，然后排序。
// 已有值的字段绝不覆盖。
func (e *Engine) enrich(convs []model.Conversation) []model.Conversation {
	e.mu.RLock()
	for i := range convs {
		if ctx, ok := e.contextCache[convs[i].ID]; ok {
			if convs[i].ItemID == "" {
				convs[i].ItemID = ctx.ItemID
			}
			if convs[i].ItemTitle == "" {
				convs[i].ItemTitle = ctx.ItemTitle
			}
		}
		convs[i].HasContext = convs[i].ItemID != "" || convs[i].ItemTitle != ""
		if t, ok := e.lastOpened[convs[i].ID]; ok {
			opened := t
			convs[i].LastOpenedAt = &opened
		}
	}
	e.mu.RUnlock()
	return rank(convs)
}
