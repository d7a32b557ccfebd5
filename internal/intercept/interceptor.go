package intercept

import (
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"idlemsg/internal/logger"
	"idlemsg/pkg/browser"
)

// mtop 内部接口的 URL 路径片段，不匹配的响应一律忽略
const mtopPathFragment = "/h5/mtop."

// 消息中心相关的 mtop 接口标识
const (
	APISessionSync   = "mtop.taobao.idlemessage.pc.session.sync"
	APIMessageSync   = "mtop.taobao.idlemessage.pc.message.sync"
	APIRedpointQuery = "mtop.taobao.idlemessage.pc.redpoint.query"
	APIHeadInfo      = "mtop.idle.trade.pc.message.headinfo"
)

// CapturedPayload 一条已解码的接口响应
type CapturedPayload struct {
	APIName    string
	Raw        []byte
	CapturedAt time.Time
}

// Archiver 可选的载荷归档下游，写入失败不影响捕获
type Archiver interface {
	SaveCapture(apiName, sessionID string, body []byte, capturedAt time.Time) error
}

// Cache 响应拦截器：订阅浏览器会话的网络响应，按接口名缓存最近一次
// 载荷；消息同步接口额外按会话 id 建立索引，避免不同会话互相覆盖。
// 捕获是尽力而为的：任何解码失败都静默吞掉，下游把"缓存为空"当作
// 正常状态处理。
type Cache struct {
	mu         sync.RWMutex
	byAPI      map[string]CapturedPayload
	bySession  map[string]CapturedPayload
	registered bool

	maxAge  time.Duration // 0 表示不过期
	archive Archiver
	log     logger.Logger
	now     func() time.Time
}

// New 创建响应拦截器缓存
func New(maxAge time.Duration, archive Archiver, log logger.Logger) *Cache {
	if log == nil {
		log = logger.NewNop()
	}
	return &Cache{
		byAPI:     make(map[string]CapturedPayload),
		bySession: make(map[string]CapturedPayload),
		maxAge:    maxAge,
		archive:   archive,
		log:       log,
		now:       time.Now,
	}
}

// Register 在浏览器会话上注册响应监听；对同一个 Cache 幂等
func (c *Cache) Register(sess browser.Session) {
	c.mu.Lock()
	if c.registered || sess == nil {
		c.mu.Unlock()
		return
	}
	c.registered = true
	c.mu.Unlock()

	sess.OnResponse(c.handle)
	c.log.Debug("响应监听器已注册")
}

// handle 处理一次网络响应；所有错误都在本地吸收，不向上传播
func (c *Cache) handle(ev browser.ResponseEvent) {
	if !strings.Contains(ev.URL, mtopPathFragment) {
		return
	}
	if !strings.Contains(strings.ToLower(ev.ContentType), "json") {
		return
	}
	if !gjson.ValidBytes(ev.Body) {
		return
	}

	payload := gjson.ParseBytes(ev.Body)
	apiName := payload.Get("api").String()
	if apiName == "" {
		return
	}

	capturedAt := c.now()

	c.mu.Lock()
	c.byAPI[apiName] = CapturedPayload{APIName: apiName, Raw: ev.Body, CapturedAt: capturedAt}
	c.mu.Unlock()

	if apiName == APIMessageSync {
		c.cacheMessageSync(payload, capturedAt)
	}

	if c.archive != nil {
		if err := c.archive.SaveCapture(apiName, payload.Get("data.sessionId").String(), ev.Body, capturedAt); err != nil {
			c.log.Debug("载荷归档失败", "api", apiName, "error", err)
		}
	}

	c.log.Debug("已缓存接口响应", "api", apiName)
}

// cacheMessageSync 按 sessionId 缓存消息同步载荷。
// 载荷可能只带单个会话（data 本身），也可能是跨会话批量（data.fetchs）。
func (c *Cache) cacheMessageSync(payload gjson.Result, capturedAt time.Time) {
	data := payload.Get("data")
	if !data.IsObject() {
		return
	}

	store := func(entry gjson.Result) {
		sessionID := entry.Get("sessionId").String()
		if sessionID == "" {
			sessionID = data.Get("sessionId").String()
		}
		if sessionID == "" {
			return
		}
		c.mu.Lock()
		c.bySession[sessionID] = CapturedPayload{
			APIName:    APIMessageSync,
			Raw:        []byte(entry.Raw),
			CapturedAt: capturedAt,
		}
		c.mu.Unlock()
	}

	fetchs := data.Get("fetchs")
	if fetchs.IsArray() {
		fetchs.ForEach(func(_, entry gjson.Result) bool {
			if entry.IsObject() {
				store(entry)
			}
			return true
		})
		return
	}
	store(data)
}

// Payload 返回指定接口最近一次的载荷
func (c *Cache) Payload(apiName string) (gjson.Result, bool) {
	c.mu.RLock()
	p, ok := c.byAPI[apiName]
	c.mu.RUnlock()
	if !ok || c.expired(p) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(p.Raw), true
}

// SessionPayload 返回指定会话最近一次的消息同步载荷
func (c *Cache) SessionPayload(sessionID string) (gjson.Result, bool) {
	c.mu.RLock()
	p, ok := c.bySession[sessionID]
	c.mu.RUnlock()
	if !ok || c.expired(p) {
		return gjson.Result{}, false
	}
	return gjson.ParseBytes(p.Raw), true
}

func (c *Cache) expired(p CapturedPayload) bool {
	return c.maxAge > 0 && c.now().Sub(p.CapturedAt) > c.maxAge
}
