package cdp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/input"
	"github.com/mafredri/cdp/protocol/network"
	"github.com/mafredri/cdp/protocol/page"
	"github.com/mafredri/cdp/protocol/runtime"
	"github.com/mafredri/cdp/rpcc"

	"idlemsg/internal/logger"
	"idlemsg/pkg/browser"
)

// Options 连接选项
type Options struct {
	DevToolsURL string
	Headless    bool
	Target      string
}

// Session 基于CDP的浏览器会话实现
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	conn     *rpcc.Conn
	client   *cdp.Client
	headless bool
	log      logger.Logger

	mu       sync.RWMutex
	handlers []func(browser.ResponseEvent)
}

// Dial 连接DevTools端点并附加到页面目标
func Dial(ctx context.Context, opts Options, l logger.Logger) (*Session, error) {
	if l == nil {
		l = logger.NewNop()
	}
	sctx, cancel := context.WithCancel(context.Background())

	dt := devtool.New(opts.DevToolsURL)
	targets, err := dt.List(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("获取目标列表失败: %w", err)
	}
	var sel *devtool.Target
	for i := range targets {
		if targets[i].Type != devtool.Page {
			continue
		}
		if opts.Target == "" || string(targets[i].ID) == opts.Target {
			sel = targets[i]
			break
		}
	}
	if sel == nil {
		cancel()
		return nil, fmt.Errorf("未找到可附加的页面目标")
	}

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("连接目标失败: %w", err)
	}

	s := &Session{
		ctx:      sctx,
		cancel:   cancel,
		conn:     conn,
		client:   cdp.NewClient(conn),
		headless: opts.Headless,
		log:      l,
	}

	if err := s.client.Network.Enable(sctx, nil); err != nil {
		s.Close()
		return nil, fmt.Errorf("启用网络域失败: %w", err)
	}
	go s.consume()

	l.Info("已附加页面目标", "url", sel.URL, "headless", opts.Headless)
	return s, nil
}

// Close 断开连接
func (s *Session) Close() error {
	s.cancel()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

// Headless 是否为无头模式
func (s *Session) Headless() bool {
	return s.headless
}

// OnResponse 注册响应事件处理器
func (s *Session) OnResponse(fn func(browser.ResponseEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

func (s *Session) consume() {
	rr, err := s.client.Network.ResponseReceived(s.ctx)
	if err != nil {
		s.log.Err(err, "订阅响应事件失败")
		return
	}
	defer rr.Close()
	for {
		ev, err := rr.Recv()
		if err != nil {
			return
		}
		s.dispatch(ev)
	}
}

func (s *Session) dispatch(ev *network.ResponseReceivedReply) {
	// 只抓取JSON响应体，跳过页面资源
	if !strings.Contains(strings.ToLower(ev.Response.MimeType), "json") {
		return
	}
	s.mu.RLock()
	handlers := s.handlers
	s.mu.RUnlock()
	if len(handlers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(s.ctx, 3*time.Second)
	defer cancel()
	body, err := s.client.Network.GetResponseBody(ctx, network.NewGetResponseBodyArgs(ev.RequestID))
	if err != nil {
		s.log.Debug("读取响应体失败", "url", ev.Response.URL, "error", err)
		return
	}
	raw := []byte(body.Body)
	if body.Base64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body.Body)
		if err != nil {
			return
		}
		raw = decoded
	}

	event := browser.ResponseEvent{
		URL:         ev.Response.URL,
		ContentType: ev.Response.MimeType,
		Body:        raw,
	}
	for _, fn := range handlers {
		fn(event)
	}
}

// Navigate 导航到指定地址
func (s *Session) Navigate(url string) error {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()
	_, err := s.client.Page.Navigate(ctx, page.NewNavigateArgs(url))
	if err != nil {
		return fmt.Errorf("导航失败: %w", err)
	}
	return nil
}

// CurrentURL 获取当前页面地址
func (s *Session) CurrentURL() string {
	out, err := s.EvaluateScript("window.location.href")
	if err != nil {
		return ""
	}
	return out
}

// EvaluateScript 执行脚本并返回字符串结果
func (s *Session) EvaluateScript(js string) (string, error) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	reply, err := s.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(js).SetReturnByValue(true))
	if err != nil {
		return "", fmt.Errorf("执行脚本失败: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return "", fmt.Errorf("脚本异常: %s", reply.ExceptionDetails.Text)
	}
	return rawToString(reply.Result.Value), nil
}

// QuerySelectorAll 查询页面元素
func (s *Session) QuerySelectorAll(sel string) ([]browser.ElementHandle, error) {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()
	expr := fmt.Sprintf("Array.from(document.querySelectorAll(%q))", sel)
	reply, err := s.client.Runtime.Evaluate(ctx, runtime.NewEvaluateArgs(expr))
	if err != nil {
		return nil, fmt.Errorf("查询元素失败: %w", err)
	}
	if reply.ExceptionDetails != nil {
		return nil, fmt.Errorf("选择器异常: %s", reply.ExceptionDetails.Text)
	}
	return s.arrayElements(ctx, reply.Result)
}

// arrayElements 展开数组RemoteObject为元素句柄列表
func (s *Session) arrayElements(ctx context.Context, arr runtime.RemoteObject) ([]browser.ElementHandle, error) {
	if arr.ObjectID == nil {
		return nil, nil
	}
	props, err := s.client.Runtime.GetProperties(ctx, runtime.NewGetPropertiesArgs(*arr.ObjectID).SetOwnProperties(true))
	if err != nil {
		return nil, fmt.Errorf("读取元素列表失败: %w", err)
	}
	var out []browser.ElementHandle
	for i := range props.Result {
		p := props.Result[i]
		if !isIndexName(p.Name) || p.Value == nil || p.Value.ObjectID == nil {
			continue
		}
		out = append(out, &element{sess: s, objectID: *p.Value.ObjectID})
	}
	return out, nil
}

// Click 点击元素
func (s *Session) Click(el browser.ElementHandle) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("不支持的元素句柄类型")
	}
	_, err := e.call("function() { this.scrollIntoView({block: 'center'}); this.click(); }")
	return err
}

// Fill 在输入元素中填入文本
func (s *Session) Fill(el browser.ElementHandle, text string) error {
	e, ok := el.(*element)
	if !ok {
		return fmt.Errorf("不支持的元素句柄类型")
	}
	arg, _ := json.Marshal(text)
	_, err := e.callWith(`function(text) {
		this.focus();
		if ('value' in this) {
			this.value = text;
		} else {
			this.textContent = text;
		}
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`, arg)
	return err
}

// PressKey 向页面发送按键
func (s *Session) PressKey(key string) error {
	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Second)
	defer cancel()
	down := input.NewDispatchKeyEventArgs("keyDown").SetKey(key)
	up := input.NewDispatchKeyEventArgs("keyUp").SetKey(key)
	if key == "Enter" {
		code := 13
		down = down.SetCode("Enter").SetWindowsVirtualKeyCode(code).SetText("\r")
		up = up.SetCode("Enter").SetWindowsVirtualKeyCode(code)
	}
	if err := s.client.Input.DispatchKeyEvent(ctx, down); err != nil {
		return fmt.Errorf("按键失败: %w", err)
	}
	if err := s.client.Input.DispatchKeyEvent(ctx, up); err != nil {
		return fmt.Errorf("按键失败: %w", err)
	}
	return nil
}

// WaitMS 等待指定毫秒数
func (s *Session) WaitMS(ms int) {
	select {
	case <-s.ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

// rawToString 把ReturnByValue结果还原为字符串
func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	return string(raw)
}

// isIndexName 数组索引属性名均为十进制数字
func isIndexName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
