package hub

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	SessionCookieName = "session"

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 512
	sendBufferSize = 64
)

var (
	ErrNotConnected = errors.New("session isn't connected to hub")
	ErrWrongUser    = errors.New("session belongs to another user")
)

type Client struct {
	UserID    int64
	SessionID int64

	conn *websocket.Conn
	send chan []byte
	ctx  context.Context

	pubsub *redis.PubSub

	mutex           sync.Mutex
	currentChatID   int64
	currentServerID int64
	serverListKeys  []string
}

var clients = make(map[int64]*Client)
var clientsMutex sync.Mutex

var sugar *zap.SugaredLogger
var redisClient *redis.Client
var redisCtx = context.Background()
var selfContained = true
var localPubSub = NewLocalPubSub()

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Setup selects redis pub/sub, or when selfContained is true, delivery
// between the sessions of this process only.
func Setup(_sugar *zap.SugaredLogger, _redisClient *redis.Client, _selfContained bool) {
	sugar = _sugar
	redisClient = _redisClient
	selfContained = _selfContained

	clientsMutex.Lock()
	clients = make(map[int64]*Client)
	clientsMutex.Unlock()

	localPubSub = NewLocalPubSub()
}

// AllowOrigins makes the upgrader accept cross origin connections, needed
// when the client is served from another address.
func AllowOrigins() {
	upgrader.CheckOrigin = func(r *http.Request) bool { return true }
}

// HandleClient upgrades the request of an authenticated user and serves the
// websocket until it closes. The session cookie names the connection so
// later requests can subscribe it.
func HandleClient(userID int64, w http.ResponseWriter, r *http.Request) {
	sugar.Debugf("Connecting user ID [%d] to WebSocket", userID)

	sessionCookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "No session cookie was provided", http.StatusUnauthorized)
		return
	}

	sessionID, err := strconv.ParseInt(sessionCookie.Value, 10, 64)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "Session cookie is in improper format", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the request
		sugar.Debug(err)
		return
	}
	defer conn.Close()

	clientCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &Client{
		UserID:    userID,
		SessionID: sessionID,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		ctx:       clientCtx,
	}

	if !selfContained {
		client.pubsub = redisClient.Subscribe(clientCtx, releaseChannel)
		defer client.pubsub.Close()
		go client.forwardRedis()
	}

	setClient(client)
	defer removeClient(client)

	go client.writePump()
	client.readPump()
}

// forwardRedis moves frames published to the session's redis channels into
// its send buffer.
func (c *Client) forwardRedis() {
	ch := c.pubsub.Channel()
	for {
		select {
		case <-c.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if msg.Channel == releaseChannel {
				c.handleRelease(msg.Payload)
				continue
			}
			c.deliver([]byte(msg.Payload))
		}
	}
}

// deliver never blocks, a session that can't keep up loses frames.
func (c *Client) deliver(frame []byte) {
	select {
	case <-c.ctx.Done():
	case c.send <- frame:
	default:
		sugar.Warnf("Send buffer of session ID %d is full, dropping frame", c.SessionID)
	}
}

// writePump is the only goroutine writing to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case frame := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.TextMessage, frame)
			if err != nil {
				sugar.Debug(err)
				c.conn.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			if err != nil {
				sugar.Debug(err)
				c.conn.Close()
				return
			}
		}
	}
}

// readPump discards what the client sends, it only keeps the connection
// alive and notices when it closes.
func (c *Client) readPump() {
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, _, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				sugar.Debug(err)
			}
			return
		}
	}
}

// setClient registers the client, closing an older connection of the same
// session.
func setClient(client *Client) {
	sugar.Debugf("Adding user ID [%d] to clients as session ID [%d]", client.UserID, client.SessionID)

	clientsMutex.Lock()
	old, exists := clients[client.SessionID]
	if exists && selfContained {
		// the new connection starts without subscriptions
		localPubSub.UnsubscribeFromAll(client.SessionID)
	}
	clients[client.SessionID] = client
	clientsMutex.Unlock()

	if exists {
		old.conn.Close()
	}
}

func removeClient(client *Client) {
	sugar.Debugf("Removing session ID [%d] from clients", client.SessionID)

	clientsMutex.Lock()
	current, exists := clients[client.SessionID]
	replaced := exists && current != client
	if !replaced {
		delete(clients, client.SessionID)
	}
	clientsMutex.Unlock()

	if selfContained && !replaced {
		localPubSub.UnsubscribeFromAll(client.SessionID)
	}
}

func GetClient(sessionID int64) (*Client, bool) {
	clientsMutex.Lock()
	defer clientsMutex.Unlock()

	client, exists := clients[sessionID]
	return client, exists
}

// IsConnected reports whether the session of the user has a live websocket.
func IsConnected(userID int64, sessionID int64) bool {
	client, exists := GetClient(sessionID)
	return exists && client.UserID == userID
}
