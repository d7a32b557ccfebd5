package verify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idlemsg/pkg/browser"
	"idlemsg/testutil"
)

func TestDetect(t *testing.T) {
	t.Run("clean page", func(t *testing.T) {
		sess := &testutil.FakeSession{
			EvaluateFunc: func(string) (string, error) { return "消息列表 小明 在吗", nil },
		}
		c := New(sess, 0, nil)
		assert.Empty(t, c.Detect())
	})

	t.Run("slider marker in body", func(t *testing.T) {
		sess := &testutil.FakeSession{
			EvaluateFunc: func(string) (string, error) { return "请按住滑块，拖动到最右边", nil },
		}
		c := New(sess, 0, nil)
		assert.NotEmpty(t, c.Detect())
	})

	t.Run("captcha iframe", func(t *testing.T) {
		sess := &testutil.FakeSession{
			EvaluateFunc: func(string) (string, error) { return "正常内容", nil },
			Elements: map[string][]browser.ElementHandle{
				challengeFrameSelector: {&testutil.FakeElement{}},
			},
		}
		c := New(sess, 0, nil)
		assert.NotEmpty(t, c.Detect())
	})
}

func TestEnsureReadyHeadless(t *testing.T) {
	sess := &testutil.FakeSession{
		HeadlessMode: true,
		EvaluateFunc: func(string) (string, error) { return "安全验证", nil },
	}
	c := New(sess, 10*time.Second, nil)

	ok := c.EnsureReady()
	require.False(t, ok)
	assert.Equal(t, StateUnrecoverable, c.LastState())
	assert.Contains(t, c.LastReason(), "无头模式")
	assert.Empty(t, sess.WaitCalls, "无头模式不应轮询等待")
}

func TestEnsureReadyRecoversAfterPolling(t *testing.T) {
	calls := 0
	sess := &testutil.FakeSession{
		EvaluateFunc: func(string) (string, error) {
			calls++
			// 第 1 次是初始检测，第 2~3 次轮询仍被拦截，第 4 次恢复
			if calls <= 3 {
				return "请按住滑块", nil
			}
			return "消息列表", nil
		},
	}
	c := New(sess, 60*time.Second, nil)

	ok := c.EnsureReady()
	require.True(t, ok)
	assert.Equal(t, StateClear, c.LastState())
	assert.Empty(t, c.LastReason())

	require.Len(t, sess.WaitCalls, 3)
	for _, ms := range sess.WaitCalls {
		assert.Equal(t, 2000, ms)
	}
}

func TestEnsureReadyTimesOut(t *testing.T) {
	sess := &testutil.FakeSession{
		EvaluateFunc: func(string) (string, error) { return "验证码", nil },
	}
	c := New(sess, 6*time.Second, nil)

	ok := c.EnsureReady()
	require.False(t, ok)
	assert.Equal(t, StateRecoveringTimedOut, c.LastState())
	assert.True(t, strings.Contains(c.LastReason(), "超时"))
	assert.Len(t, sess.WaitCalls, 3, "6 秒超时应恰好轮询 3 次")
}
