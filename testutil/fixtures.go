package testutil

import (
	"encoding/json"

	"github.com/tidwall/sjson"

	"idlemsg/pkg/browser"
)

// 消息中心相关的 mtop 接口标识，与拦截层保持一致
const (
	APISessionSync   = "mtop.taobao.idlemessage.pc.session.sync"
	APIMessageSync   = "mtop.taobao.idlemessage.pc.message.sync"
	APIRedpointQuery = "mtop.taobao.idlemessage.pc.redpoint.query"
	APIHeadInfo      = "mtop.idle.trade.pc.message.headinfo"
)

// MtopEvent 构造一次命中拦截路径的 JSON 响应事件
func MtopEvent(api string, body []byte) browser.ResponseEvent {
	return browser.ResponseEvent{
		URL:         "https://h5api.m.goofish.com/h5/" + api + "/1.0/",
		ContentType: "application/json; charset=utf-8",
		Body:        body,
	}
}

// SessionEntry 构造 session.sync 载荷里的单个会话条目
func SessionEntry(sessionID, userID, nick, summary string, unread int, tsMilli int64) string {
	s, _ := sjson.Set("{}", "session.sessionId", sessionID)
	s, _ = sjson.Set(s, "session.userInfo.userId", userID)
	s, _ = sjson.Set(s, "session.userInfo.nick", nick)
	s, _ = sjson.Set(s, "message.summary.summary", summary)
	s, _ = sjson.Set(s, "message.summary.unread", unread)
	if tsMilli > 0 {
		s, _ = sjson.Set(s, "message.summary.ts", tsMilli)
	}
	return s
}

// SystemSessionEntry 构造系统会话条目（sessionType=3，不可回复）
func SystemSessionEntry(sessionID, nick string) string {
	s := SessionEntry(sessionID, "", nick, "", 0, 0)
	s, _ = sjson.Set(s, "session.sessionType", 3)
	return s
}

// SessionSyncBody 构造完整的 session.sync 响应体
func SessionSyncBody(entries ...string) []byte {
	body, _ := sjson.Set("{}", "api", APISessionSync)
	body, _ = sjson.SetRaw(body, "data.sessions", "[]")
	for _, e := range entries {
		body, _ = sjson.SetRaw(body, "data.sessions.-1", e)
	}
	return []byte(body)
}

// MessageEntry 构造 message.sync 载荷里的单条消息
func MessageEntry(id, senderID, senderNick, content string, tsMilli int64, fromSelf bool) string {
	s, _ := sjson.Set("{}", "messageId", id)
	s, _ = sjson.Set(s, "senderInfo.userId", senderID)
	s, _ = sjson.Set(s, "senderInfo.nick", senderNick)
	s, _ = sjson.Set(s, "content", content)
	s, _ = sjson.Set(s, "timeStamp", tsMilli)
	if fromSelf {
		s, _ = sjson.Set(s, "fromSelf", true)
	}
	return s
}

// MessageSyncBody 构造单会话形态的 message.sync 响应体
func MessageSyncBody(sessionID string, entries ...string) []byte {
	body, _ := sjson.Set("{}", "api", APIMessageSync)
	body, _ = sjson.Set(body, "data.sessionId", sessionID)
	body, _ = sjson.SetRaw(body, "data.messages", "[]")
	for _, e := range entries {
		body, _ = sjson.SetRaw(body, "data.messages.-1", e)
	}
	return []byte(body)
}

// FetchEntry 构造批量形态下的单会话块
func FetchEntry(sessionID string, entries ...string) string {
	s, _ := sjson.Set("{}", "sessionId", sessionID)
	s, _ = sjson.SetRaw(s, "messages", "[]")
	for _, e := range entries {
		s, _ = sjson.SetRaw(s, "messages.-1", e)
	}
	return s
}

// MessageSyncBatchBody 构造批量形态的 message.sync 响应体
func MessageSyncBatchBody(fetchEntries ...string) []byte {
	body, _ := sjson.Set("{}", "api", APIMessageSync)
	body, _ = sjson.SetRaw(body, "data.fetchs", "[]")
	for _, e := range fetchEntries {
		body, _ = sjson.SetRaw(body, "data.fetchs.-1", e)
	}
	return []byte(body)
}

// RedpointBody 构造 redpoint.query 响应体
func RedpointBody(total int) []byte {
	body, _ := sjson.Set("{}", "api", APIRedpointQuery)
	body, _ = sjson.Set(body, "data.total", total)
	return []byte(body)
}

// HeadInfoBody 构造 headinfo 响应体；itemPreInfo 是嵌套的 JSON 字符串
func HeadInfoBody(itemID, title string) []byte {
	body, _ := sjson.Set("{}", "api", APIHeadInfo)
	body, _ = sjson.Set(body, "data.commonData.itemId", itemID)

	pre, _ := json.Marshal(map[string]string{"title": title, "itemId": itemID})
	body, _ = sjson.Set(body, "data.commonData.itemPreInfo", string(pre))
	return []byte(body)
}
