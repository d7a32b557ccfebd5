// Package domx 实现 DOM 兜底提取：当接口缓存不可用时，从页面上
// 已渲染的内容里尽力还原会话/消息记录。提取基于结构选择器和
// 位置启发式，天然是 best-effort 的——单个元素解析失败只跳过
// 该元素，绝不影响兄弟元素或整个提取流程。
package domx

import (
	"regexp"
	"time"

	"idlemsg/internal/logger"
	"idlemsg/pkg/browser"
)

// 会话列表项选择器，从具体到宽泛
const (
	convItemsPrimary  = "[class*='conversation-list'] [class*='conversation-item'], [class*='conv-list-scroll'] [class*='conversation-item'], [class*='conversation-item']"
	convItemsFallback = "[class*='conversation-item']"
)

// 消息列表项选择器：优先只取顶层列表项，避免同时抓到嵌套的
// message-row 导致重复
const (
	msgItemsPrimary  = ".ant-list-items .ant-list-item"
	msgItemsFallback = "[class*='message-row']"
)

const unreadBadgeSelector = ".ant-badge-count, [class*='badge-count'], sup"

// IDAttributes 页面上可能暴露稳定会话 id 的 data 属性，按优先级排列
var IDAttributes = []string{"data-id", "data-key", "data-conversation-id", "data-session-id"}

// 已知的系统会话名称，这类会话不可回复
var systemSessionNames = map[string]struct{}{"通知消息": {}, "系统消息": {}}

// 消息气泡内容的候选选择器，按优先级排列
var messageContentSelectors = []string{
	"[class*='message-content'] [class*='message-text']",
	"[class*='message-content']",
	"[class*='message-text']",
	"[class*='msg-dx-content']",
	"[class*='msg-dx-title']",
	".tpl-wrapper",
}

// 已读/未读状态文案，不属于消息内容
var statusLines = map[string]struct{}{"已读": {}, "未读": {}}

var reNumber = regexp.MustCompile(`\d+`)

// Extractor DOM 兜底提取器
type Extractor struct {
	sess browser.Session
	log  logger.Logger
	now  func() time.Time
}

// New 创建提取器
func New(sess browser.Session, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Extractor{sess: sess, log: log, now: time.Now}
}
