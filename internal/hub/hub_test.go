package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, redisClient *redis.Client) *httptest.Server {
	t.Helper()

	Setup(zap.NewNop().Sugar(), redisClient, redisClient == nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, _ := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		HandleClient(userID, w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, userID int64, sessionID int64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=" + strconv.FormatInt(userID, 10)
	header := http.Header{"Cookie": {SessionCookieName + "=" + strconv.FormatInt(sessionID, 10)}}

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return IsConnected(userID, sessionID) }, time.Second, 5*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) (string, string) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)

	eventType, payload, err := ParseFrame(frame)
	require.NoError(t, err)
	return eventType, string(payload)
}

func assertNoFrame(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestEmitReachesSubscribedSessions(t *testing.T) {
	srv := startHub(t, nil)
	first := dial(t, srv, 1, 100)
	second := dial(t, srv, 2, 200)

	require.NoError(t, SubscribeChat(1, 100, 10))
	require.NoError(t, SubscribeChat(2, 200, 20))

	require.NoError(t, Emit(MessageCreated, ChatMessagesKey(10), map[string]string{"content": "hi"}))

	eventType, payload := readFrame(t, first)
	assert.Equal(t, MessageCreated, eventType)
	assert.JSONEq(t, `{"content":"hi"}`, payload)

	assertNoFrame(t, second)
}

func TestSubscribeChatLeavesPreviousChat(t *testing.T) {
	srv := startHub(t, nil)
	dial(t, srv, 1, 100)

	require.NoError(t, SubscribeChat(1, 100, 10))
	require.NoError(t, SubscribeChat(1, 100, 11))

	assert.Empty(t, localPubSub.Subscribers(ChatMessagesKey(10)))
	assert.Empty(t, localPubSub.Subscribers(ChatUpdateKey(10)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ChatMessagesKey(11)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ChatUpdateKey(11)))
}

func TestSubscribeChecksSession(t *testing.T) {
	srv := startHub(t, nil)
	dial(t, srv, 1, 100)

	err := SubscribeServer(2, 100, 5)
	assert.ErrorIs(t, err, ErrWrongUser)

	err = SubscribeServer(1, 999, 5)
	assert.ErrorIs(t, err, ErrNotConnected)

	assert.NoError(t, SubscribeServer(1, 100, 5))
	assert.NoError(t, SubscribeServer(1, 100, 6))
	assert.Empty(t, localPubSub.Subscribers(ServerKey(5)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ServerKey(6)))
}

func TestSubscribeServerListReplacesKeys(t *testing.T) {
	srv := startHub(t, nil)
	conn := dial(t, srv, 1, 100)

	require.NoError(t, SubscribeServerList(1, 100, []int64{1, 2}))
	require.NoError(t, SubscribeServerList(1, 100, []int64{2, 3}))

	assert.Empty(t, localPubSub.Subscribers(ServerListKey(1)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ServerListKey(2)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ServerListKey(3)))

	require.NoError(t, Emit(ServerModified, ServerListKey(3), map[string]string{"name": "renamed"}))
	eventType, _ := readFrame(t, conn)
	assert.Equal(t, ServerModified, eventType)
}

func TestDisconnectRemovesSubscriptions(t *testing.T) {
	srv := startHub(t, nil)
	conn := dial(t, srv, 1, 100)

	require.NoError(t, SubscribeChat(1, 100, 10))
	conn.Close()

	require.Eventually(t, func() bool { return !IsConnected(1, 100) }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, localPubSub.Subscribers(ChatMessagesKey(10)))
}

func TestMissingSessionCookie(t *testing.T) {
	srv := startHub(t, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user=1"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRedisEmit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	srv := startHub(t, client)
	t.Cleanup(func() { Setup(zap.NewNop().Sugar(), nil, true) })
	conn := dial(t, srv, 1, 100)

	require.NoError(t, SubscribeChat(1, 100, 10))
	key := ChatUpdateKey(10)
	require.Eventually(t, func() bool { return mr.PubSubNumSub(key)[key] == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, Emit(MessageDeleted, key, map[string]bool{"deleted": true}))

	eventType, payload := readFrame(t, conn)
	assert.Equal(t, MessageDeleted, eventType)
	assert.JSONEq(t, `{"deleted":true}`, payload)
}

func TestDeliverDropsWhenFull(t *testing.T) {
	Setup(zap.NewNop().Sugar(), nil, true)

	client := &Client{SessionID: 1, send: make(chan []byte, 1), ctx: context.Background()}
	client.deliver([]byte("first"))
	client.deliver([]byte("second"))

	require.Len(t, client.send, 1)
	assert.Equal(t, "first", string(<-client.send))
}

func TestParseFrame(t *testing.T) {
	frame, err := Frame(ChannelCreated, map[string]string{"name": "memes"})
	require.NoError(t, err)
	assert.Equal(t, "ChannelCreated\n{\"name\":\"memes\"}", string(frame))

	_, _, err = ParseFrame([]byte("no newline"))
	assert.Error(t, err)
}

func TestReconnectStartsWithoutSubscriptions(t *testing.T) {
	srv := startHub(t, nil)
	dial(t, srv, 1, 100)
	require.NoError(t, SubscribeChat(1, 100, 10))

	old, _ := GetClient(100)
	conn := dial(t, srv, 1, 100)
	require.Eventually(t, func() bool {
		current, exists := GetClient(100)
		return exists && current != old
	}, time.Second, 5*time.Millisecond)

	assert.Empty(t, localPubSub.Subscribers(ChatMessagesKey(10)))

	require.NoError(t, SubscribeChat(1, 100, 11))
	require.NoError(t, Emit(MessageCreated, ChatMessagesKey(10), map[string]string{"content": "old chat"}))
	assertNoFrame(t, conn)

	require.NoError(t, Emit(MessageCreated, ChatMessagesKey(11), map[string]string{"content": "new chat"}))
	_, payload := readFrame(t, conn)
	assert.JSONEq(t, `{"content":"new chat"}`, payload)
}

func TestAddToServerList(t *testing.T) {
	srv := startHub(t, nil)
	conn := dial(t, srv, 1, 100)

	require.NoError(t, SubscribeServerList(1, 100, []int64{1}))
	require.NoError(t, AddToServerList(1, 100, 2))
	require.NoError(t, AddToServerList(1, 100, 2))

	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ServerListKey(1)))
	assert.Equal(t, []int64{100}, localPubSub.Subscribers(ServerListKey(2)))

	require.NoError(t, Emit(ServerDeleted, ServerListKey(2), map[string]string{"id": "2"}))
	eventType, _ := readFrame(t, conn)
	assert.Equal(t, ServerDeleted, eventType)

	assert.ErrorIs(t, AddToServerList(1, 999, 3), ErrNotConnected)
}

func TestUnsubscribeUser(t *testing.T) {
	srv := startHub(t, nil)
	first := dial(t, srv, 1, 100)
	second := dial(t, srv, 2, 200)

	for _, user := range []int64{1, 2} {
		session := user * 100
		require.NoError(t, SubscribeChat(user, session, 10))
		require.NoError(t, SubscribeServer(user, session, 5))
		require.NoError(t, SubscribeServerList(user, session, []int64{5, 6}))
	}

	require.NoError(t, UnsubscribeUser(1, ServerKey(5), ServerListKey(5), ChatMessagesKey(10), ChatUpdateKey(10)))

	assert.Equal(t, []int64{200}, localPubSub.Subscribers(ChatMessagesKey(10)))
	assert.Equal(t, []int64{200}, localPubSub.Subscribers(ChatUpdateKey(10)))
	assert.Equal(t, []int64{200}, localPubSub.Subscribers(ServerKey(5)))
	assert.Equal(t, []int64{200}, localPubSub.Subscribers(ServerListKey(5)))
	assert.ElementsMatch(t, []int64{100, 200}, localPubSub.Subscribers(ServerListKey(6)))

	require.NoError(t, Emit(MessageCreated, ChatMessagesKey(10), map[string]string{"content": "members only"}))
	assertNoFrame(t, first)
	_, payload := readFrame(t, second)
	assert.JSONEq(t, `{"content":"members only"}`, payload)

	// the released chat can be subscribed again
	require.NoError(t, SubscribeChat(1, 100, 10))
	assert.ElementsMatch(t, []int64{100, 200}, localPubSub.Subscribers(ChatMessagesKey(10)))
}

func TestUnsubscribeEveryone(t *testing.T) {
	srv := startHub(t, nil)
	dial(t, srv, 1, 100)
	dial(t, srv, 2, 200)

	require.NoError(t, SubscribeChat(1, 100, 10))
	require.NoError(t, SubscribeChat(2, 200, 10))
	require.NoError(t, SubscribeServer(2, 200, 5))

	require.NoError(t, UnsubscribeEveryone(ChatMessagesKey(10), ChatUpdateKey(10)))

	assert.Empty(t, localPubSub.Subscribers(ChatMessagesKey(10)))
	assert.Empty(t, localPubSub.Subscribers(ChatUpdateKey(10)))
	assert.Equal(t, []int64{200}, localPubSub.Subscribers(ServerKey(5)))
}

func TestRedisUnsubscribeUser(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	srv := startHub(t, client)
	t.Cleanup(func() { Setup(zap.NewNop().Sugar(), nil, true) })
	dial(t, srv, 1, 100)

	require.NoError(t, SubscribeChat(1, 100, 10))
	key := ChatMessagesKey(10)
	require.Eventually(t, func() bool { return mr.PubSubNumSub(key)[key] == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, UnsubscribeUser(2, key))
	require.NoError(t, UnsubscribeUser(1, key))

	require.Eventually(t, func() bool { return mr.PubSubNumSub(key)[key] == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, mr.PubSubNumSub(releaseChannel)[releaseChannel])
}
