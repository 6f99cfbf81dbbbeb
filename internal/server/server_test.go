package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sihhaapp/sihha/internal/stats"
	"github.com/sihhaapp/sihha/internal/testutil"
	"github.com/sihhaapp/sihha/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestChatServer(t *testing.T, su *stats.MockStatsUpdater) *ChatServer {
	return NewChatServer(testutil.TestLogger(t), su)
}

func TestNewChatServer(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	assert.NotNil(t, cs, "expected ChatServer to be non-nil")
	assert.NotNil(t, cs.registerChan, "expected registerChan to be initialized")
	assert.NotNil(t, cs.broadcastChan, "expected broadcastChan to be initialized")
	assert.NotNil(t, cs.stop, "expected stop channel to be initialized")
	assert.NotNil(t, cs.clients, "expected clients map to be initialized")
	assert.NotNil(t, cs.userMap, "expected userMap to be initialized")
}

func TestChatServerShutdown(t *testing.T) {
	t.Run("successful shutdown", func(t *testing.T) {
		cs := newTestChatServer(t, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		go func() {
			select {
			case req := <-cs.stop:
				assert.NotNil(t, req.done, "expected done channel in stop request")
				close(req.done)
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.NoError(t, err, "expected successful shutdown without error")
	})

	t.Run("fails with context deadline exceeded", func(t *testing.T) {
		cs := newTestChatServer(t, &stats.MockStatsUpdater{})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		go func() {
			select {
			case <-cs.stop:
				// never signal done
			case <-time.After(100 * time.Millisecond):
				t.Error("expected signal on stop chan")
			}
		}()

		err := cs.Shutdown(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("stops connected clients", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.WsConnections).Once()

		cs := newTestChatServer(t, su)
		client := &Client{user: types.User{Id: "u-1"}, stop: make(chan struct{})}
		cs.addClient(client)
		go cs.Run()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, cs.Shutdown(ctx))

		select {
		case <-client.stop:
		default:
			t.Error("expected client stop channel to be closed")
		}
	})
}

func TestChatServer_addClient_removeClient(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.WsConnections).Once()
	su.On("Decr", stats.WsConnections).Once()
	defer su.AssertExpectations(t)

	cs := newTestChatServer(t, su)
	client := &Client{user: types.User{Id: "u-1"}}
	cs.addClient(client)
	assert.Contains(t, cs.clients, client, "expected client to be added to clients map")
	assert.Len(t, cs.userMap["u-1"], 1, "expected userMap to have 1 client for user")

	cs.removeClient(client)
	assert.Empty(t, cs.clients, "expected 0 clients after removing")
	assert.Empty(t, cs.userMap, "expected userMap to be empty after removing client")

	// removing twice does not decrement again
	cs.removeClient(client)
}

func Test_getClients(t *testing.T) {
	user := types.User{Id: "u-1"}
	tcases := []struct {
		name    string
		clients []*Client
	}{
		{name: "single client", clients: []*Client{{user: user}}},
		{name: "multiple clients", clients: []*Client{{user: user}, {user: user}}},
		{name: "no clients", clients: []*Client{}},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			su := &stats.MockStatsUpdater{}
			if len(tc.clients) > 0 {
				su.On("Incr", stats.WsConnections).Times(len(tc.clients))
			}
			defer su.AssertExpectations(t)

			cs := newTestChatServer(t, su)
			for _, client := range tc.clients {
				cs.addClient(client)
			}

			clients := cs.getClients(user.Id)
			assert.Len(t, clients, len(tc.clients))
			for _, client := range tc.clients {
				assert.Contains(t, clients, client)
			}
		})
	}
}

func TestChatServer_handleBroadcast(t *testing.T) {
	t.Run("delivers to every connection of the user", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.WsConnections).Times(3)
		defer su.AssertExpectations(t)

		cs := newTestChatServer(t, su)
		client1 := &Client{user: types.User{Id: "u-1"}, send: make(chan *ServerMessage, 1)}
		client2 := &Client{user: types.User{Id: "u-1"}, send: make(chan *ServerMessage, 1)}
		other := &Client{user: types.User{Id: "u-2"}, send: make(chan *ServerMessage, 1)}
		cs.addClient(client1)
		cs.addClient(client2)
		cs.addClient(other)

		msg := &ServerMessage{UserId: "u-1"}
		cs.handleBroadcast(msg)

		assert.Len(t, client1.send, 1)
		assert.Len(t, client2.send, 1)
		assert.Len(t, other.send, 0, "expected no message for another user")
	})

	t.Run("skip client", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.WsConnections).Twice()

		cs := newTestChatServer(t, su)
		client1 := &Client{user: types.User{Id: "u-1"}, send: make(chan *ServerMessage, 1)}
		client2 := &Client{user: types.User{Id: "u-1"}, send: make(chan *ServerMessage, 1)}
		cs.addClient(client1)
		cs.addClient(client2)

		cs.handleBroadcast(&ServerMessage{UserId: "u-1", SkipClient: client2})

		assert.Len(t, client1.send, 1)
		assert.Len(t, client2.send, 0)
	})
}

func TestPush(t *testing.T) {
	t.Run("queues one copy per user", func(t *testing.T) {
		cs := newTestChatServer(t, &stats.MockStatsUpdater{})
		msg := RoomChanged(types.Room{Id: "d-1_p-1"})

		cs.Push(msg, "p-1", "d-1")

		require.Len(t, cs.broadcastChan, 2)
		first, second := <-cs.broadcastChan, <-cs.broadcastChan
		assert.Equal(t, "p-1", first.UserId)
		assert.Equal(t, "d-1", second.UserId)
		assert.Equal(t, msg.Notification, first.Notification)
		assert.Empty(t, msg.UserId, "expected the original message to be left untouched")
	})

	t.Run("drops when the queue is full", func(t *testing.T) {
		cs := newTestChatServer(t, &stats.MockStatsUpdater{})
		cs.broadcastChan = make(chan *ServerMessage, 1)

		cs.Push(RoomChanged(types.Room{Id: "r"}), "a", "b")
		assert.Len(t, cs.broadcastChan, 1)
	})

	t.Run("nil hub", func(t *testing.T) {
		var cs *ChatServer
		assert.NotPanics(t, func() { cs.Push(RoomChanged(types.Room{}), "a") })
	})
}

func TestPush_Integration(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.WsConnections).Once()
	su.On("Decr", stats.WsConnections).Maybe()

	cs := newTestChatServer(t, su)
	go cs.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		cs.Shutdown(ctx)
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(types.User{Id: "p-1"}, conn, cs, testutil.TestLogger(t))
		cs.RegisterClient(client)
		go client.Write()
		go client.Read()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	// registration is asynchronous
	require.Eventually(t, func() bool { return len(cs.getClients("p-1")) == 1 }, time.Second, 10*time.Millisecond)

	cs.Push(MessagePosted(types.Message{Id: "m-1", RoomId: "d-1_p-1", Content: "hello"}), "p-1")

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var got ServerMessage
	require.NoError(t, json.Unmarshal(raw, &got))
	require.NotNil(t, got.Notification)
	assert.Equal(t, EventMessage, got.Notification.Event)
	assert.Equal(t, "d-1_p-1", got.Notification.RoomId)
	assert.Equal(t, "hello", got.Notification.Message.Content)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":7,"ping":{}}`)))
	_, raw, err = conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, 7, got.Id)
	assert.Equal(t, http.StatusOK, got.Response.ResponseCode)

	su.AssertCalled(t, "Incr", mock.Anything)
}
