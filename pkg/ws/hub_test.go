package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_PublishOnlyToSessionSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	a := NewClient(hub, nil, "session-a", nil)
	b := NewClient(hub, nil, "session-b", nil)
	a.Register()
	b.Register()

	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, 1, hub.SessionClientCount("session-a"))

	hub.PublishSession("session-a", MsgTypeSummary, map[string]string{"total": "498"})

	msg := receive(t, a)
	assert.Equal(t, MsgTypeSummary, msg.Type)
	assert.Equal(t, map[string]interface{}{"total": "498"}, msg.Data)

	select {
	case <-b.send:
		t.Fatal("session-b must not receive session-a messages")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Unregister(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "s", nil)
	c.Register()
	c.Unregister()

	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)

	_, ok := <-c.send
	assert.False(t, ok, "send channel is closed on unregister")

	// 已注销的客户端不再接收
	c.Send(MsgTypeError, "ignored")
}

func TestClient_Send(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	c := NewClient(hub, nil, "s", nil)
	c.Register()
	c.Send(MsgTypeInit, map[string]string{"id": "s"})

	msg := receive(t, c)
	assert.Equal(t, MsgTypeInit, msg.Type)
	assert.Equal(t, "s", c.SessionID())
}

func TestHub_CloseSession(t *testing.T) {
	hub := NewHub(zap.NewNop())
	go hub.Run()
	defer hub.Stop()

	a1 := NewClient(hub, nil, "expired", nil)
	a2 := NewClient(hub, nil, "expired", nil)
	b := NewClient(hub, nil, "live", nil)
	a1.Register()
	a2.Register()
	b.Register()

	hub.CloseSession("expired")

	assert.Equal(t, 0, hub.SessionClientCount("expired"))
	assert.Equal(t, 1, hub.ClientCount())
	for _, c := range []*Client{a1, a2} {
		_, ok := <-c.send
		assert.False(t, ok)
		assert.Error(t, c.Context().Err())
	}
	assert.NoError(t, b.Context().Err())

	// 已移除的客户端再注销不会重复关闭
	a1.Unregister()
	hub.CloseSession("unknown")
}
