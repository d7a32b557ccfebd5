package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
	"idlemsg/testutil"
)

func TestUnreadCount(t *testing.T) {
	t.Run("redpoint cache wins", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		engine, _ := newTestEngine(sess)

		sess.EmitResponse(testutil.MtopEvent(testutil.APIRedpointQuery, testutil.RedpointBody(7)))

		res, err := engine.UnreadCount()
		require.NoError(t, err)
		assert.Equal(t, 7, res.Total)
		assert.Empty(t, res.BlockReason)
	})

	t.Run("blocked without cache returns reason", func(t *testing.T) {
		sess := &testutil.FakeSession{
			EvaluateFunc: func(string) (string, error) { return "安全验证", nil },
		}
		engine, _ := newTestEngine(sess)

		res, err := engine.UnreadCount()
		require.NoError(t, err)
		assert.Zero(t, res.Total)
		assert.NotEmpty(t, res.BlockReason)
	})

	t.Run("dom badge sum fallback", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			unreadBadgePageSelector: {
				&testutil.FakeElement{TextValue: "3"},
				&testutil.FakeElement{TextValue: "2"},
				&testutil.FakeElement{TextValue: "·"},
			},
		}
		engine, _ := newTestEngine(sess)

		res, err := engine.UnreadCount()
		require.NoError(t, err)
		assert.Equal(t, 5, res.Total)
	})
}

func TestSendReplyRefusesSystemSession(t *testing.T) {
	sess := &testutil.FakeSession{}
	engine, _ := newTestEngine(sess)

	sess.EmitResponse(testutil.MtopEvent(testutil.APISessionSync, testutil.SessionSyncBody(
		testutil.SystemSessionEntry("s9", "系统消息"),
	)))

	ok, msg, err := engine.SendReply("s9", "你好")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "系统消息")
	assert.Empty(t, sess.Filled, "被拒绝的会话不应触碰页面")
}

func TestSendReplyBlocked(t *testing.T) {
	sess := &testutil.FakeSession{
		HeadlessMode: true,
		EvaluateFunc: func(string) (string, error) { return "验证码", nil },
	}
	engine, _ := newTestEngine(sess)

	ok, msg, err := engine.SendReply("s1", "你好")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, msg, "无头模式")
}

func TestSendReplyWithButton(t *testing.T) {
	input := &testutil.FakeElement{}
	button := &testutil.FakeElement{TextValue: "发送"}
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector:              {conversationItem("s1", "小明")},
		"textarea[placeholder*='输入消息']": {input},
		"[class*='sendbox'] button":           {button},
	}
	engine, _ := newTestEngine(sess)

	ok, msg, err := engine.SendReply("s1", "95包邮发顺丰")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "发送成功", msg)

	require.Len(t, sess.Filled, 1)
	assert.Same(t, browser.ElementHandle(input), sess.Filled[0].Element)
	assert.Equal(t, "95包邮发顺丰", sess.Filled[0].Text)
	assert.Contains(t, sess.Clicked, browser.ElementHandle(button))
	assert.Empty(t, sess.Keys)
}

func TestSendReplyEnterFallback(t *testing.T) {
	input := &testutil.FakeElement{}
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector: {conversationItem("s1", "小明")},
		"textarea":               {input},
	}
	engine, _ := newTestEngine(sess)

	ok, _, err := engine.SendReply("s1", "好的")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"Enter"}, sess.Keys)
}

func TestSendReplyNoInput(t *testing.T) {
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector: {conversationItem("s1", "小明")},
	}
	engine, _ := newTestEngine(sess)

	ok, msg, err := engine.SendReply("s1", "你好")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "未找到输入框", msg)
}

func TestWarmContext(t *testing.T) {
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector: {conversationItem("s1", "小明")},
	}
	engine, _ := newTestEngine(sess)

	sess.EmitResponse(testutil.MtopEvent(testutil.APIHeadInfo, testutil.HeadInfoBody("9527", "九成新键盘")))

	ctx, err := engine.WarmContext("s1")
	require.NoError(t, err)
	assert.Equal(t, model.ItemContext{ItemID: "9527", ItemTitle: "九成新键盘"}, ctx)

	// 预热后会话列表立刻带上上下文
	sess.EmitResponse(testutil.MtopEvent(testutil.APISessionSync, testutil.SessionSyncBody(
		testutil.SessionEntry("s1", "u1", "小明", "在吗", 0, 0),
	)))
	res, err := engine.GetConversations(10)
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.True(t, res.Conversations[0].HasContext)
	assert.Equal(t, "9527", res.Conversations[0].ItemID)
	assert.NotNil(t, res.Conversations[0].LastOpenedAt)
}

func TestMarkAsRead(t *testing.T) {
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector: {conversationItem("s1", "小明")},
	}
	engine, _ := newTestEngine(sess)

	require.NoError(t, engine.MarkAsRead("s1"))
	assert.Len(t, sess.Clicked, 1)
}
