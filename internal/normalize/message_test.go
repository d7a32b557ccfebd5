package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestBuildMessage(t *testing.T) {
	t.Run("full entry", func(t *testing.T) {
		entry := gjson.Parse(`{
			"messageId": "m1",
			"senderInfo": {"userId": "u1", "nick": "小鱼", "logo": "https://img/1.png"},
			"content": "还能便宜点吗",
			"timeStamp": 1686800000000,
			"isRead": true
		}`)

		msg, ok := BuildMessage("s1", entry, gjson.Result{})
		require.True(t, ok)
		assert.Equal(t, "m1", msg.ID)
		assert.Equal(t, "s1", msg.ConversationID)
		assert.Equal(t, "u1", msg.FromUserID)
		assert.Equal(t, "小鱼", msg.FromUserName)
		assert.Equal(t, "还能便宜点吗", msg.Content)
		assert.Equal(t, "text", msg.MessageType)
		assert.True(t, msg.IsRead)
		assert.False(t, msg.IsFromMe)
		require.NotNil(t, msg.Timestamp)
		assert.Equal(t, time.UnixMilli(1686800000000).Unix(), msg.Timestamp.Unix())
	})

	t.Run("seconds timestamp", func(t *testing.T) {
		entry := gjson.Parse(`{"messageId": "m2", "content": "ok", "ts": 1686800000}`)
		msg, ok := BuildMessage("s1", entry, gjson.Result{})
		require.True(t, ok)
		require.NotNil(t, msg.Timestamp)
		assert.Equal(t, int64(1686800000), msg.Timestamp.Unix())
	})

	t.Run("explicit self flag wins", func(t *testing.T) {
		entry := gjson.Parse(`{"messageId": "m3", "content": "已发货", "fromSelf": true}`)
		msg, ok := BuildMessage("s1", entry, gjson.Result{})
		require.True(t, ok)
		assert.True(t, msg.IsFromMe)
	})

	t.Run("owner match marks outgoing", func(t *testing.T) {
		entry := gjson.Parse(`{"messageId": "m4", "senderInfo": {"userId": "me"}, "content": "好的"}`)
		sessionCtx := gjson.Parse(`{"ownerInfo": {"userId": "me"}}`)
		msg, ok := BuildMessage("s1", entry, sessionCtx)
		require.True(t, ok)
		assert.True(t, msg.IsFromMe)
	})

	t.Run("id sender content all empty is invalid", func(t *testing.T) {
		entry := gjson.Parse(`{"timeStamp": 1686800000000, "isRead": true}`)
		_, ok := BuildMessage("s1", entry, gjson.Result{})
		assert.False(t, ok)
	})

	t.Run("non-object entry", func(t *testing.T) {
		_, ok := BuildMessage("s1", gjson.Parse(`"hello"`), gjson.Result{})
		assert.False(t, ok)
	})

	t.Run("content only is valid", func(t *testing.T) {
		entry := gjson.Parse(`{"summary": "系统通知内容"}`)
		msg, ok := BuildMessage("s1", entry, gjson.Result{})
		require.True(t, ok)
		assert.Equal(t, "系统通知内容", msg.Content)
	})
}
