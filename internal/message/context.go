package message

import (
	"time"

	"idlemsg/internal/intercept"
	"idlemsg/internal/normalize"
	"idlemsg/pkg/model"
)

// extractHeadContext 从当前 headinfo 接口缓存提取商品上下文
func (e *Engine) extractHeadContext() model.ItemContext {
	payload, ok := e.cache.Payload(intercept.APIHeadInfo)
	if !ok {
		return model.ItemContext{}
	}
	return normalize.HeadInfoContext(payload)
}

// cacheCurrentContext 把当前 headinfo 缓存绑定到指定会话。
// 只有至少一个字段非空才写入；幂等，重复调用不改变已缓存的值。
func (e *Engine) cacheCurrentContext(conversationID string) model.ItemContext {
	ctx := e.extractHeadContext()

	e.mu.Lock()
	if !ctx.Empty() {
		e.contextCache[conversationID] = ctx
	}
	stored, ok := e.contextCache[conversationID]
	e.mu.Unlock()

	if ok {
		return stored
	}
	return ctx
}

// WarmContext 预热指定会话的商品上下文：打开会话、等待链路数据
// 到达后把 headinfo 绑定到该会话。返回（可能是之前缓存的）上下文。
func (e *Engine) WarmContext(conversationID string) (model.ItemContext, error) {
	if err := e.ensurePage(); err != nil {
		return model.ItemContext{}, err
	}
	if !e.checker.EnsureReady() {
		e.setReason(e.checker.LastReason())
		e.log.Warn(e.checker.LastReason())
		return model.ItemContext{}, nil
	}
	e.setReason("")

	if err := e.openConversation(conversationID); err != nil {
		return model.ItemContext{}, err
	}
	e.sess.WaitMS(1500)
	return e.cacheCurrentContext(conversationID), nil
}

// MarkOpened 记录会话最近一次被打开的时间；只影响排序，不影响数据正确性
func (e *Engine) MarkOpened(conversationID string) {
	e.mu.Lock()
	e.lastOpened[conversationID] = e.now()
	e.mu.Unlock()
}

// lastOpenedAt 测试辅助：读取最近打开时间
func (e *Engine) lastOpenedAt(conversationID string) (time.Time, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	t, ok := e.lastOpened[conversationID]
	return t, ok
}
