// Package testutil 提供测试用的假浏览器会话和接口载荷构造器。
package testutil

import (
	"sync"

	"idlemsg/pkg/browser"
)

// FillCall 一次 Fill 调用的记录
type FillCall struct {
	Element browser.ElementHandle
	Text    string
}

// FakeElement 脚本化的页面元素
type FakeElement struct {
	TextValue string
	TextErr   error
	Attrs     map[string]string
	Children  map[string][]browser.ElementHandle
}

// Text 返回预置文本
func (e *FakeElement) Text() (string, error) {
	return e.TextValue, e.TextErr
}

// Attribute 返回预置属性
func (e *FakeElement) Attribute(name string) (string, error) {
	return e.Attrs[name], nil
}

// QuerySelectorAll 返回预置子元素
func (e *FakeElement) QuerySelectorAll(selector string) ([]browser.ElementHandle, error) {
	return e.Children[selector], nil
}

// FakeSession 脚本化的浏览器会话。查询结果按选择器预置，
// 所有交互调用都被记录下来供断言。
type FakeSession struct {
	mu sync.Mutex

	URL          string
	HeadlessMode bool

	// EvaluateFunc 为空时 EvaluateScript 返回空串
	EvaluateFunc func(js string) (string, error)
	// ElementsFunc 优先于 Elements，可按调用动态返回
	ElementsFunc func(selector string) []browser.ElementHandle
	Elements     map[string][]browser.ElementHandle
	// WaitFunc 每次 WaitMS 后调用，参数为累计等待次数
	WaitFunc func(call int)

	handlers []func(browser.ResponseEvent)

	NavigatedTo []string
	WaitCalls   []int
	Clicked     []browser.ElementHandle
	Filled      []FillCall
	Keys        []string
}

// Navigate 记录导航并更新当前地址
func (s *FakeSession) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NavigatedTo = append(s.NavigatedTo, url)
	s.URL = url
	return nil
}

// CurrentURL 返回当前地址
func (s *FakeSession) CurrentURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.URL
}

// EvaluateScript 委托给 EvaluateFunc
func (s *FakeSession) EvaluateScript(js string) (string, error) {
	if s.EvaluateFunc != nil {
		return s.EvaluateFunc(js)
	}
	return "", nil
}

// QuerySelectorAll 返回预置元素
func (s *FakeSession) QuerySelectorAll(selector string) ([]browser.ElementHandle, error) {
	if s.ElementsFunc != nil {
		return s.ElementsFunc(selector), nil
	}
	return s.Elements[selector], nil
}

// OnResponse 注册响应回调
func (s *FakeSession) OnResponse(fn func(browser.ResponseEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// EmitResponse 同步触发所有已注册的响应回调
func (s *FakeSession) EmitResponse(ev browser.ResponseEvent) {
	s.mu.Lock()
	handlers := append([]func(browser.ResponseEvent){}, s.handlers...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(ev)
	}
}

// Click 记录点击
func (s *FakeSession) Click(el browser.ElementHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clicked = append(s.Clicked, el)
	return nil
}

// Fill 记录输入
func (s *FakeSession) Fill(el browser.ElementHandle, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filled = append(s.Filled, FillCall{Element: el, Text: text})
	return nil
}

// PressKey 记录按键
func (s *FakeSession) PressKey(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Keys = append(s.Keys, key)
	return nil
}

// WaitMS 记录等待，不真正睡眠
func (s *FakeSession) WaitMS(ms int) {
	s.mu.Lock()
	s.WaitCalls = append(s.WaitCalls, ms)
	call := len(s.WaitCalls)
	fn := s.WaitFunc
	s.mu.Unlock()
	if fn != nil {
		fn(call)
	}
}

// Headless 返回预置模式
func (s *FakeSession) Headless() bool {
	return s.HeadlessMode
}
