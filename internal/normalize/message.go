package normalize

import (
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"idlemsg/pkg/model"
)

// 消息内容可能出现的字段名，按历史接口版本的优先级排列
var contentKeys = []string{"content", "summary", "text", "body"}

// BuildMessage 将单条接口消息转换为规范化 Message。
// 字段名在历史接口版本间不稳定，按优先级逐个尝试取"最可用值"。
// id、发送者、内容全空的消息视为无效，ok=false。
func BuildMessage(conversationID string, entry gjson.Result, sessionCtx gjson.Result) (model.Message, bool) {
	if !entry.IsObject() {
		return model.Message{}, false
	}

	msg := model.Message{
		ConversationID: conversationID,
		Source:         model.SourceAPI,
	}

	msg.ID = firstString(entry, "messageUuid", "messageId", "id")
	msg.FromUserID = firstString(entry, "senderInfo.userId", "fromUserId", "senderId")
	msg.FromUserName = firstString(entry, "senderInfo.nick", "senderInfo.displayName", "fromUserName")
	msg.FromUserAvatar = entry.Get("senderInfo.logo").String()

	for _, key := range contentKeys {
		if c := ExtractText(entry.Get(key)); c != "" {
			msg.Content = c
			break
		}
	}

	msg.MessageType = firstString(entry, "msgType", "messageType", "arg1", "type")
	if msg.MessageType == "" {
		msg.MessageType = "text"
	}

	if ts, ok := coerceTimestamp(firstResult(entry, "timeStamp", "ts", "timestamp")); ok {
		msg.Timestamp = &ts
	}

	readFlag := entry.Get("isRead")
	if !readFlag.Exists() {
		readFlag = entry.Get("read")
	}
	msg.IsRead = readFlag.Exists() && readFlag.Bool()

	msg.IsFromMe = inferOutgoing(entry, sessionCtx, msg.FromUserID)

	if !msg.Valid() {
		return model.Message{}, false
	}
	return msg, true
}

// inferOutgoing 推断消息是否由自己发出：显式布尔标记优先，
// 其次是 direction 字段，最后回退到会话上下文里的 owner 比对。
func inferOutgoing(entry, sessionCtx gjson.Result, fromUserID string) bool {
	for _, key := range []string{"fromSelf", "isSelf", "out", "isOut"} {
		if entry.Get(key).Type == gjson.True {
			return true
		}
	}

	switch strings.ToLower(entry.Get("direction").String()) {
	case "out", "send", "sent":
		return true
	}

	if sessionCtx.IsObject() && fromUserID != "" {
		owner := firstString(sessionCtx, "ownerInfo.userId", "ownerInfo.fishUserId")
		if owner != "" && owner == fromUserID {
			return true
		}
	}
	return false
}

// firstString 按优先级返回第一个非空字段的文本值
func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() {
			if s := strings.TrimSpace(r.String()); s != "" {
				return s
			}
		}
	}
	return ""
}

// firstResult 按优先级返回第一个存在的字段
func firstResult(v gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() {
			return r
		}
	}
	return gjson.Result{}
}

// coerceTimestamp 将秒/毫秒（数字或数字字符串）统一转换为时间
func coerceTimestamp(v gjson.Result) (time.Time, bool) {
	var n int64
	switch v.Type {
	case gjson.Number:
		n = v.Int()
	case gjson.String:
		s := strings.TrimSpace(v.String())
		if s == "" {
			return time.Time{}, false
		}
		parsed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		n = parsed
	default:
		return time.Time{}, false
	}

	if n <= 0 {
		return time.Time{}, false
	}
	if n > 10_000_000_000 {
		return time.UnixMilli(n), true
	}
	return time.Unix(n, 0), true
}
