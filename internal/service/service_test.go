package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlemsg/internal/config"
	"idlemsg/pkg/browser"
	"idlemsg/testutil"
)

func newTestService(sess *testutil.FakeSession) *Service {
	sess.URL = "https://www.goofish.com/im"
	return New(config.NewConfig(), nil, WithDialer(func(context.Context) (browser.Session, error) {
		return sess, nil
	}))
}

func TestSessionLifecycle(t *testing.T) {
	svc := newTestService(&testutil.FakeSession{})

	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, svc.StopSession(id))
	assert.Error(t, svc.StopSession(id), "重复停止应报会话不存在")
}

func TestOperationsRequireSession(t *testing.T) {
	svc := newTestService(&testutil.FakeSession{})

	_, err := svc.GetConversations("missing", 10)
	assert.Error(t, err)
	_, err = svc.GetMessages("missing", "s1", 10)
	assert.Error(t, err)
	_, err = svc.UnreadCount("missing")
	assert.Error(t, err)
}

func TestGetConversationsThroughService(t *testing.T) {
	sess := &testutil.FakeSession{}
	svc := newTestService(sess)

	id, err := svc.StartSession(context.Background())
	require.NoError(t, err)

	// 拨号时注册的拦截器应已挂在会话上
	sess.EmitResponse(testutil.MtopEvent(testutil.APISessionSync, testutil.SessionSyncBody(
		testutil.SessionEntry("s1", "u1", "小明", "在吗", 1, 1686800000000),
	)))

	res, err := svc.GetConversations(id, 10)
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "小明", res.Conversations[0].UserName)

	unread, err := svc.UnreadCount(id)
	require.NoError(t, err)
	assert.Zero(t, unread.Total)
}
