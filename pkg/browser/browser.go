package browser

// ResponseEvent 一次已完成的网络响应
type ResponseEvent struct {
	URL         string
	ContentType string
	Body        []byte
}

// ElementHandle 页面元素的只读句柄
type ElementHandle interface {
	// Text 返回元素的可见文本
	Text() (string, error)

	// Attribute 返回指定属性值，属性不存在时返回空串
	Attribute(name string) (string, error)

	// QuerySelectorAll 在元素内部查询子元素
	QuerySelectorAll(selector string) ([]ElementHandle, error)
}

// Session 浏览器会话边界。核心代码只通过该接口驱动页面，
// 不直接进行任何网络 I/O。
type Session interface {
	// Navigate 导航到指定 URL 并等待加载完成
	Navigate(url string) error

	// CurrentURL 返回当前页面地址
	CurrentURL() string

	// EvaluateScript 在页面上下文执行表达式并返回字符串结果
	EvaluateScript(js string) (string, error)

	// QuerySelectorAll 查询页面元素
	QuerySelectorAll(selector string) ([]ElementHandle, error)

	// OnResponse 注册网络响应回调；回调在后台触发，不得阻塞主流程
	OnResponse(fn func(ResponseEvent))

	// Click 点击元素
	Click(el ElementHandle) error

	// Fill 向输入类元素写入文本
	Fill(el ElementHandle, text string) error

	// PressKey 在当前焦点元素上按键（如 "Enter"）
	PressKey(key string) error

	// WaitMS 挂起指定毫秒数
	WaitMS(ms int)

	// Headless 会话是否运行在无头模式
	Headless() bool
}
