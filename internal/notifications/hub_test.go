package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				return out
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

func TestHub_RegisterJoinsPersonalGroup(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(7, nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Group{UserGroup(7)}, hub.Groups(c))

	anon, err := hub.Register(0, nil)
	require.NoError(t, err)
	assert.Empty(t, hub.Groups(anon))
	assert.Equal(t, 2, hub.Members(AllGroup))
}

func TestHub_DeliverByGroup(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	viewer, err := hub.Register(1, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, nil)
	require.NoError(t, err)
	anon, err := hub.Register(0, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Subscribe(viewer, QuestionGroup(5)))
	require.NoError(t, hub.Subscribe(anon, QuestionGroup(5)))

	assert.Equal(t, 2, hub.Deliver(QuestionGroup(5), []byte("q5")))
	assert.Len(t, drain(viewer), 1)
	assert.Len(t, drain(anon), 1)
	assert.Empty(t, drain(other))

	assert.Equal(t, 1, hub.Deliver(UserGroup(2), []byte("personal")))
	assert.Equal(t, [][]byte{[]byte("personal")}, drain(other))
	assert.Empty(t, drain(viewer))

	assert.Equal(t, 3, hub.Deliver(AllGroup, []byte("everyone")))
	assert.Equal(t, 0, hub.Deliver(QuestionGroup(99), []byte("nobody")))
}

func TestHub_SubscribeRules(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(3, nil)
	require.NoError(t, err)

	assert.ErrorIs(t, hub.Subscribe(c, UserGroup(4)), ErrForbiddenGroup)
	assert.NoError(t, hub.Subscribe(c, UserGroup(3)))
	assert.NoError(t, hub.Subscribe(c, AllGroup))
	assert.Equal(t, 0, hub.Members(UserGroup(4)))

	// Subscribing twice does not duplicate delivery.
	require.NoError(t, hub.Subscribe(c, QuestionGroup(1)))
	require.NoError(t, hub.Subscribe(c, QuestionGroup(1)))
	assert.Equal(t, 1, hub.Members(QuestionGroup(1)))

	hub.Unsubscribe(c, QuestionGroup(1))
	assert.Equal(t, 0, hub.Members(QuestionGroup(1)))

	// The personal group cannot be left.
	hub.Unsubscribe(c, UserGroup(3))
	assert.Equal(t, 1, hub.Members(UserGroup(3)))
}

func TestHub_SubscriptionLimit(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(0, nil)
	require.NoError(t, err)
	for i := 1; i <= maxGroupsPerClient; i++ {
		require.NoError(t, hub.Subscribe(c, QuestionGroup(uint(i))))
	}
	assert.ErrorIs(t, hub.Subscribe(c, QuestionGroup(uint(maxGroupsPerClient+1))), ErrTooManyGroups)
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(11, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(11, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	// Anonymous viewers only count toward the global cap.
	for i := 0; i < maxConnsPerUser+1; i++ {
		_, err := hub.Register(0, nil)
		require.NoError(t, err)
	}
}

func TestHub_UnregisterClientLeavesGroups(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(5, nil)
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(c, QuestionGroup(2)))

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)

	assert.Equal(t, 0, hub.Members(QuestionGroup(2)))
	assert.Equal(t, 0, hub.Members(UserGroup(5)))
	assert.Equal(t, 0, hub.Members(AllGroup))

	_, open := <-c.Send
	assert.False(t, open)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(8, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, open := <-c.Send
	assert.False(t, open)

	_, err = hub.Register(8, nil)
	assert.ErrorIs(t, err, ErrHubClosed)

	// ReadPump calls this after shutdown; it must not panic or double count.
	hub.UnregisterClient(c)
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(0, nil)
	require.NoError(t, err)
	for i := 0; i < sendBufferSize; i++ {
		require.True(t, c.TrySend([]byte("x")))
	}
	assert.False(t, c.TrySend([]byte("overflow")))
	assert.Len(t, drain(c), sendBufferSize)
}

func TestHub_InboundFrames(t *testing.T) {
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	c, err := hub.Register(4, nil)
	require.NoError(t, err)

	reply := func(frame string) controlFrame {
		t.Helper()
		c.IncomingHandler(c, []byte(frame))
		msgs := drain(c)
		require.Len(t, msgs, 1)
		var out controlFrame
		require.NoError(t, json.Unmarshal(msgs[0], &out))
		return out
	}

	got := reply(`{"action":"subscribe","group":"Question_5"}`)
	assert.Equal(t, "subscribed", got.Event)
	assert.Equal(t, QuestionGroup(5), got.Group)
	assert.Equal(t, 1, hub.Members(QuestionGroup(5)))

	got = reply(`{"action":"subscribe","group":"9"}`)
	assert.Equal(t, "error", got.Event)
	assert.Contains(t, got.Error, "another user")

	got = reply(`{"action":"unsubscribe","group":"Question_5"}`)
	assert.Equal(t, "unsubscribed", got.Event)
	assert.Equal(t, 0, hub.Members(QuestionGroup(5)))

	assert.Equal(t, "pong", reply(`{"action":"ping"}`).Event)
	assert.Equal(t, "error", reply(`{"action":"dance"}`).Event)
	assert.Equal(t, "error", reply(`not json`).Event)
	assert.Equal(t, "error", reply(`{"action":"subscribe","group":"bogus"}`).Event)
}
