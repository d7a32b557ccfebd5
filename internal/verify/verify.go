package verify

import (
	"fmt"
	"strings"
	"time"

	"idlemsg/internal/logger"
	"idlemsg/pkg/browser"
)

// State 验证恢复状态机的状态
type State int

const (
	StateClear State = iota
	StateChallenged
	StateRecovering
	StateUnrecoverable
	StateRecoveringTimedOut
)

// 页面文本里出现任意一个即认为触发了安全验证
var challengeMarkers = []string{"请按住滑块", "拖动到最右边", "验证码", "安全验证"}

// 内嵌的验证挑战 iframe
const challengeFrameSelector = "iframe[src*='punish'], iframe[src*='captcha']"

// 只取页面文本开头部分做标记扫描，验证提示总在首屏
const bodySnippetJS = "(document.body && document.body.innerText ? document.body.innerText : '').slice(0, 3000)"

const pollIntervalMS = 2000

// Checker 检测当前页面是否被反自动化验证拦截，并在允许时
// 轮询等待人工完成验证。每次页面级读取前重新检测，结果不持久化。
type Checker struct {
	sess    browser.Session
	timeout time.Duration
	log     logger.Logger

	lastReason string
	lastState  State
}

// New 创建验证检测器
func New(sess browser.Session, timeout time.Duration, log logger.Logger) *Checker {
	if log == nil {
		log = logger.NewNop()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Checker{sess: sess, timeout: timeout, log: log}
}

// Detect 扫描当前页面快照，返回拦截原因；空串表示页面可信
func (c *Checker) Detect() string {
	if c.sess == nil {
		return "浏览器会话未启动"
	}

	body, err := c.sess.EvaluateScript(bodySnippetJS)
	if err == nil {
		for _, marker := range challengeMarkers {
			if strings.Contains(body, marker) {
				return "消息页面触发了安全验证，当前会话数据被拦截"
			}
		}
	}

	frames, err := c.sess.QuerySelectorAll(challengeFrameSelector)
	if err == nil && len(frames) > 0 {
		return "消息页面触发了验证码挑战，当前会话数据无法直接加载"
	}

	return ""
}

// EnsureReady 运行完整状态机：检测到验证后，无头模式直接进入不可恢复
// 终态；交互模式按固定间隔轮询，直到验证消失或超时。
// 返回 true 表示页面可信，false 时用 LastReason 取拦截原因。
func (c *Checker) EnsureReady() bool {
	reason := c.Detect()
	if reason == "" {
		c.lastReason = ""
		c.lastState = StateClear
		return true
	}
	c.lastState = StateChallenged

	// 无头模式无法请求人工交互，不做任何轮询
	if c.sess.Headless() {
		c.lastReason = reason + "；当前为无头模式，无法完成人工验证，请使用有头模式重试"
		c.lastState = StateUnrecoverable
		c.log.Warn(c.lastReason)
		return false
	}

	c.lastState = StateRecovering
	timeoutS := int(c.timeout / time.Second)
	c.log.Warn(reason)
	c.log.Warn("请在浏览器中手动完成验证", "timeoutSeconds", timeoutS)

	elapsed := 0
	for elapsed < timeoutS {
		c.sess.WaitMS(pollIntervalMS)
		elapsed += pollIntervalMS / 1000

		reason = c.Detect()
		if reason == "" {
			c.lastReason = ""
			c.lastState = StateClear
			c.log.Info("页面验证已完成，继续执行后续操作")
			return true
		}
	}

	c.lastReason = fmt.Sprintf("%s；等待人工验证超时（%d 秒）", reason, timeoutS)
	c.lastState = StateRecoveringTimedOut
	c.log.Error(c.lastReason)
	return false
}

// LastReason 返回最近一次检测/恢复的拦截原因
func (c *Checker) LastReason() string { return c.lastReason }

// LastState 返回最近一次状态机的终止状态
func (c *Checker) LastState() State { return c.lastState }
