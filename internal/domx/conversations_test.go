package domx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
	"idlemsg/testutil"
)

func newTestExtractor(sess browser.Session) *Extractor {
	e := New(sess, nil)
	e.now = func() time.Time { return time.Date(2023, 6, 15, 14, 0, 0, 0, time.Local) }
	return e
}

func TestConversationsPartialFailure(t *testing.T) {
	items := []browser.ElementHandle{
		&testutil.FakeElement{TextValue: "小明\n还能便宜点吗\n01-15"},
		&testutil.FakeElement{TextValue: "", TextErr: assert.AnError},
		&testutil.FakeElement{TextValue: "小红\n已拍下\n06-14 18:30"},
	}
	sess := &testutil.FakeSession{
		Elements: map[string][]browser.ElementHandle{convItemsPrimary: items},
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 2, "单个元素失败只跳过该元素")

	assert.Equal(t, "小明", convs[0].UserName)
	assert.Equal(t, "还能便宜点吗", convs[0].LastMessage)
	require.NotNil(t, convs[0].LastMessageTime)
	assert.Equal(t, model.SourceDOM, convs[0].Source)
	assert.True(t, convs[0].CanSend)

	assert.Equal(t, "小红", convs[1].UserName)
}

func TestConversationsSyntheticIDs(t *testing.T) {
	items := []browser.ElementHandle{
		&testutil.FakeElement{TextValue: "小明\n在吗\n01-15", Attrs: map[string]string{"data-id": "s1"}},
		&testutil.FakeElement{TextValue: "小红\n好的\n01-16"},
	}
	sess := &testutil.FakeSession{
		Elements: map[string][]browser.ElementHandle{convItemsPrimary: items},
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 2)
	assert.Equal(t, "s1", convs[0].ID, "页面暴露的稳定 id 优先")
	assert.Equal(t, "dom:1", convs[1].ID, "无稳定 id 时用列表索引占位")
}

func TestConversationsSystemSession(t *testing.T) {
	items := []browser.ElementHandle{
		&testutil.FakeElement{TextValue: "通知消息\n你有一条新通知\n01-15"},
	}
	sess := &testutil.FakeSession{
		Elements: map[string][]browser.ElementHandle{convItemsPrimary: items},
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 1)
	assert.False(t, convs[0].CanSend)
	assert.Equal(t, model.SessionTypeSystem, convs[0].SessionType)
}

func TestConversationsUnreadBadgeAndAvatar(t *testing.T) {
	item := &testutil.FakeElement{
		TextValue: "小明\n发货了吗\n01-15",
		Children: map[string][]browser.ElementHandle{
			unreadBadgeSelector: {&testutil.FakeElement{TextValue: "3"}},
			"img":               {&testutil.FakeElement{Attrs: map[string]string{"src": "https://img/a.png"}}},
		},
	}
	sess := &testutil.FakeSession{
		Elements: map[string][]browser.ElementHandle{convItemsPrimary: {item}},
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 1)
	assert.Equal(t, 3, convs[0].UnreadCount)
	assert.Equal(t, "https://img/a.png", convs[0].UserAvatarURL)
}

func TestConversationsFallbackAfterWait(t *testing.T) {
	calls := 0
	sess := &testutil.FakeSession{}
	sess.ElementsFunc = func(selector string) []browser.ElementHandle {
		calls++
		if selector == convItemsFallback {
			return []browser.ElementHandle{&testutil.FakeElement{TextValue: "小明\n在吗\n01-15"}}
		}
		return nil
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 1)
	assert.Equal(t, []int{2000}, sess.WaitCalls, "主选择器落空后等待一次再回退")
}

func TestConversationsTwoLineItem(t *testing.T) {
	items := []browser.ElementHandle{
		&testutil.FakeElement{TextValue: "小明\n01-15"},
		&testutil.FakeElement{TextValue: "小红\n还在吗"},
	}
	sess := &testutil.FakeSession{
		Elements: map[string][]browser.ElementHandle{convItemsPrimary: items},
	}

	convs := newTestExtractor(sess).Conversations(10)
	require.Len(t, convs, 2)
	assert.NotNil(t, convs[0].LastMessageTime)
	assert.Empty(t, convs[0].LastMessage)
	assert.Nil(t, convs[1].LastMessageTime)
	assert.Equal(t, "还在吗", convs[1].LastMessage)
}
