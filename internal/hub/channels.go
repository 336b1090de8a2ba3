package hub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// clientFor returns the connected session if it belongs to userID.
func clientFor(userID int64, sessionID int64) (*Client, error) {
	client, exists := GetClient(sessionID)
	if !exists {
		return nil, fmt.Errorf("session ID [%d]: %w", sessionID, ErrNotConnected)
	}
	if client.UserID != userID {
		return nil, fmt.Errorf("session ID [%d] user ID [%d]: %w", sessionID, userID, ErrWrongUser)
	}
	return client, nil
}

func (c *Client) subscribe(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if selfContained {
		for _, key := range keys {
			localPubSub.Subscribe(key, c.SessionID)
		}
		return nil
	}
	return c.pubsub.Subscribe(c.ctx, keys...)
}

func (c *Client) unsubscribe(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if selfContained {
		for _, key := range keys {
			localPubSub.Unsubscribe(key, c.SessionID)
		}
		return nil
	}
	return c.pubsub.Unsubscribe(c.ctx, keys...)
}

// SubscribeChat moves the session to the messages of a channel or
// conversation, leaving the chat it was following before.
func SubscribeChat(userID int64, sessionID int64, chatID int64) error {
	client, err := clientFor(userID, sessionID)
	if err != nil {
		return err
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.currentChatID == chatID {
		return nil
	}

	if client.currentChatID != 0 {
		err = client.unsubscribe(ChatMessagesKey(client.currentChatID), ChatUpdateKey(client.currentChatID))
		if err != nil {
			return err
		}
		sugar.Debugf("Session ID %d unsubscribed from chat ID %d", sessionID, client.currentChatID)
	}

	err = client.subscribe(ChatMessagesKey(chatID), ChatUpdateKey(chatID))
	if err != nil {
		return err
	}
	client.currentChatID = chatID

	sugar.Debugf("Session ID %d subscribed to chat ID %d", sessionID, chatID)
	return nil
}

// SubscribeServer moves the session to the server in view.
func SubscribeServer(userID int64, sessionID int64, serverID int64) error {
	client, err := clientFor(userID, sessionID)
	if err != nil {
		return err
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	if client.currentServerID == serverID {
		return nil
	}

	if client.currentServerID != 0 {
		err = client.unsubscribe(ServerKey(client.currentServerID))
		if err != nil {
			return err
		}
	}

	err = client.subscribe(ServerKey(serverID))
	if err != nil {
		return err
	}
	client.currentServerID = serverID

	sugar.Debugf("Session ID %d subscribed to server ID %d", sessionID, serverID)
	return nil
}

// SubscribeServerList replaces the sidebar subscriptions of the session with
// the given servers.
func SubscribeServerList(userID int64, sessionID int64, serverIDs []int64) error {
	client, err := clientFor(userID, sessionID)
	if err != nil {
		return err
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	keys := make([]string, 0, len(serverIDs))
	for _, serverID := range serverIDs {
		keys = append(keys, ServerListKey(serverID))
	}

	var stale []string
	for _, key := range client.serverListKeys {
		if !slices.Contains(keys, key) {
			stale = append(stale, key)
		}
	}

	err = client.unsubscribe(stale...)
	if err != nil {
		return err
	}

	err = client.subscribe(keys...)
	if err != nil {
		return err
	}
	client.serverListKeys = keys

	sugar.Debugf("Session ID %d subscribed to %d server list keys", sessionID, len(keys))
	return nil
}

// Frame formats an event as "<eventType>\n<json payload>".
func Frame(eventType string, payload any) ([]byte, error) {
	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Grow(len(eventType) + 1 + len(jsonBytes))
	buf.WriteString(eventType)
	buf.WriteByte('\n')
	buf.Write(jsonBytes)

	return buf.Bytes(), nil
}

// ParseFrame splits a frame into its event type and json payload.
func ParseFrame(frame []byte) (string, []byte, error) {
	eventType, payload, found := bytes.Cut(frame, []byte{'\n'})
	if !found || len(eventType) == 0 {
		return "", nil, fmt.Errorf("malformed frame")
	}
	return string(eventType), payload, nil
}

// Emit sends the event to every session subscribed to key, on this instance
// or, through redis, on any other.
func Emit(eventType string, key string, payload any) error {
	frame, err := Frame(eventType, payload)
	if err != nil {
		return err
	}

	sugar.Debugf("Sending %s to those on %s", eventType, key)

	if selfContained {
		localPubSub.Publish(key, frame)
		return nil
	}

	return redisClient.Publish(redisCtx, key, frame).Err()
}
