package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
	"idlemsg/testutil"
)

func conversationItem(id, text string) *testutil.FakeElement {
	return &testutil.FakeElement{
		TextValue: text,
		Attrs:     map[string]string{"data-id": id},
	}
}

func TestGetMessagesFromCache(t *testing.T) {
	sess := &testutil.FakeSession{}
	engine, _ := newTestEngine(sess)

	sess.EmitResponse(testutil.MtopEvent(testutil.APIMessageSync, testutil.MessageSyncBody("s1",
		testutil.MessageEntry("m1", "u1", "小明", "还能便宜点吗", 1686800000000, false),
		testutil.MessageEntry("m2", "me", "我", "95包邮", 1686800001000, true),
	)))

	res, err := engine.GetMessages("s1", 10)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Empty(t, res.BlockReason)

	assert.Equal(t, "s1", res.Messages[0].ConversationID)
	assert.Equal(t, model.SourceAPI, res.Messages[0].Source)
	assert.False(t, res.Messages[0].IsFromMe)
	assert.True(t, res.Messages[1].IsFromMe)
	assert.Empty(t, sess.Clicked, "缓存命中时不应触碰页面")
}

func TestGetMessagesCacheLimitKeepsLatest(t *testing.T) {
	sess := &testutil.FakeSession{}
	engine, _ := newTestEngine(sess)

	entries := make([]string, 5)
	for i := range entries {
		entries[i] = testutil.MessageEntry(
			"m"+string(rune('a'+i)), "u1", "小明", "第"+string(rune('1'+i))+"条",
			1686800000000+int64(i)*1000, false,
		)
	}
	sess.EmitResponse(testutil.MtopEvent(testutil.APIMessageSync, testutil.MessageSyncBody("s1", entries...)))

	res, err := engine.GetMessages("s1", 2)
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "第4条", res.Messages[0].Content)
	assert.Equal(t, "第5条", res.Messages[1].Content)
}

func TestGetMessagesPollPicksUpLateCapture(t *testing.T) {
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector: {conversationItem("s1", "小明 在吗")},
	}
	engine, _ := newTestEngine(sess)

	// 打开会话后页面异步发起同步请求，第二轮轮询时载荷才到达
	sess.WaitFunc = func(call int) {
		if call == 2 {
			sess.EmitResponse(testutil.MtopEvent(testutil.APIMessageSync, testutil.MessageSyncBody("s1",
				testutil.MessageEntry("m1", "u1", "小明", "在吗", 1686800000000, false),
			)))
		}
	}

	res, err := engine.GetMessages("s1", 10)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "在吗", res.Messages[0].Content)
	assert.Len(t, sess.WaitCalls, 2, "载荷到达后应立即停止轮询")
	require.Len(t, sess.Clicked, 1, "应先点击会话触发同步")
}

func TestGetMessagesBlocked(t *testing.T) {
	sess := &testutil.FakeSession{
		HeadlessMode: true,
		EvaluateFunc: func(string) (string, error) { return "请按住滑块", nil },
	}
	engine, _ := newTestEngine(sess)

	res, err := engine.GetMessages("s1", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Messages)
	assert.Contains(t, res.BlockReason, "无头模式")
	assert.True(t, res.RequiresManualVerification())
}

func TestGetMessagesDOMFallbackWithContext(t *testing.T) {
	msgItem := &testutil.FakeElement{
		TextValue: "小明\n还在吗\n01-15 09:30",
		Children: map[string][]browser.ElementHandle{
			"[class*='message-content'] [class*='message-text']": {&testutil.FakeElement{TextValue: "还在吗"}},
		},
	}
	sess := &testutil.FakeSession{}
	sess.Elements = map[string][]browser.ElementHandle{
		conversationItemSelector:         {conversationItem("s1", "小明 在吗")},
		".ant-list-items .ant-list-item": {msgItem},
	}
	engine, _ := newTestEngine(sess)

	sess.EmitResponse(testutil.MtopEvent(testutil.APIHeadInfo, testutil.HeadInfoBody("9527", "九成新键盘")))

	res, err := engine.GetMessages("s1", 10)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)

	msg := res.Messages[0]
	assert.Equal(t, model.SourceDOM, msg.Source)
	assert.Equal(t, "s1", msg.ConversationID)
	assert.Equal(t, "9527", msg.ItemID, "DOM 消息也要补上商品上下文")
	assert.Equal(t, "九成新键盘", msg.ItemTitle)
}

func TestOpenConversationResolution(t *testing.T) {
	t.Run("attribute match", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			conversationItemSelector: {
				conversationItem("other", "小红"),
				conversationItem("s1", "小明"),
			},
		}
		engine, _ := newTestEngine(sess)

		require.NoError(t, engine.openConversation("s1"))
		require.Len(t, sess.Clicked, 1)
		assert.Same(t, sess.Elements[conversationItemSelector][1], sess.Clicked[0])
	})

	t.Run("cached username match", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			conversationItemSelector: {
				&testutil.FakeElement{TextValue: "小红 已付款"},
				&testutil.FakeElement{TextValue: "小明 在吗"},
			},
		}
		engine, _ := newTestEngine(sess)
		sess.EmitResponse(testutil.MtopEvent(testutil.APISessionSync, testutil.SessionSyncBody(
			testutil.SessionEntry("s1", "u1", "小明", "在吗", 0, 0),
		)))

		require.NoError(t, engine.openConversation("s1"))
		require.Len(t, sess.Clicked, 1)
		assert.Same(t, sess.Elements[conversationItemSelector][1], sess.Clicked[0])
	})

	t.Run("dom index fallback", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			conversationItemSelector: {
				&testutil.FakeElement{TextValue: "小红"},
				&testutil.FakeElement{TextValue: "小明"},
			},
		}
		engine, _ := newTestEngine(sess)

		require.NoError(t, engine.openConversation("dom:1"))
		require.Len(t, sess.Clicked, 1)
		assert.Same(t, sess.Elements[conversationItemSelector][1], sess.Clicked[0])
	})

	t.Run("not found", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			conversationItemSelector: {&testutil.FakeElement{TextValue: "小红"}},
		}
		engine, _ := newTestEngine(sess)

		err := engine.openConversation("不存在的人")
		assert.Error(t, err)
		assert.Empty(t, sess.Clicked)
	})

	t.Run("records opened time", func(t *testing.T) {
		sess := &testutil.FakeSession{}
		sess.Elements = map[string][]browser.ElementHandle{
			conversationItemSelector: {conversationItem("s1", "小明")},
		}
		engine, _ := newTestEngine(sess)

		require.NoError(t, engine.openConversation("s1"))
		_, ok := engine.lastOpenedAt("s1")
		assert.True(t, ok)
	})
}
