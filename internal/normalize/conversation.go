package normalize

import (
	"strconv"

	"github.com/tidwall/gjson"

	"idlemsg/pkg/model"
)

// 官方/营销号等特殊用户类型，不支持私聊回复
const userTypeOfficial = 10

// ConversationsFromSessionSync 从 session.sync 载荷解析会话列表。
// payload 是整个接口响应，会话在 data.sessions 下；limit<=0 表示不截断。
func ConversationsFromSessionSync(payload gjson.Result, limit int) []model.Conversation {
	sessions := payload.Get("data.sessions")
	if !sessions.IsArray() {
		return nil
	}

	var out []model.Conversation
	index := 0
	sessions.ForEach(func(_, entry gjson.Result) bool {
		if limit > 0 && len(out) >= limit {
			return false
		}

		sess := entry.Get("session")
		summary := entry.Get("message.summary")
		userInfo := sess.Get("userInfo")

		sessionType := int(sess.Get("sessionType").Int())
		userType := int(userInfo.Get("type").Int())

		conv := model.Conversation{
			ID:            sess.Get("sessionId").String(),
			UserID:        userInfo.Get("userId").String(),
			UserName:      userInfo.Get("nick").String(),
			UserAvatarURL: userInfo.Get("logo").String(),
			LastMessage:   summary.Get("summary").String(),
			UnreadCount:   int(summary.Get("unread").Int()),
			SessionType:   sessionType,
			CanSend:       sessionType != model.SessionTypeSystem && userType != userTypeOfficial,
			Source:        model.SourceAPI,
		}
		if conv.ID == "" {
			conv.ID = strconv.Itoa(index)
		}
		if conv.UserName == "" {
			conv.UserName = sess.Get("ownerInfo.fishNick").String()
		}
		if ts, ok := coerceTimestamp(summary.Get("ts")); ok {
			conv.LastMessageTime = &ts
		}

		out = append(out, conv)
		index++
		return true
	})
	return out
}

// UnreadTotalFromRedpoint 从 redpoint.query 载荷提取未读总数
func UnreadTotalFromRedpoint(payload gjson.Result) (int, bool) {
	total := payload.Get("data.total")
	if !total.Exists() {
		return 0, false
	}
	switch total.Type {
	case gjson.Number:
		return int(total.Int()), true
	case gjson.String:
		n, err := strconv.Atoi(total.String())
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// HeadInfoContext 从 headinfo 载荷提取当前会话绑定的商品上下文。
// itemPreInfo 是嵌套的 JSON 字符串，标题只在其中出现。
func HeadInfoContext(payload gjson.Result) model.ItemContext {
	common := payload.Get("data.commonData")
	ctx := model.ItemContext{ItemID: common.Get("itemId").String()}

	pre := common.Get("itemPreInfo").String()
	if pre != "" && gjson.Valid(pre) {
		parsed := gjson.Parse(pre)
		if parsed.IsObject() {
			ctx.ItemTitle = parsed.Get("title").String()
			if ctx.ItemID == "" {
				ctx.ItemID = parsed.Get("itemId").String()
			}
		}
	}
	return ctx
}
