package hub

import (
	"encoding/json"
	"slices"
)

// releaseChannel is subscribed by every session in clustered mode so any
// instance can take keys away from sessions connected to the others.
const releaseChannel = "hub:release"

type releaseRequest struct {
	UserID int64    `json:"userID,string,omitempty"`
	Keys   []string `json:"keys"`
}

// AddToServerList adds one server to the sidebar subscriptions of the
// session, after the user created or joined it.
func AddToServerList(userID int64, sessionID int64, serverID int64) error {
	client, err := clientFor(userID, sessionID)
	if err != nil {
		return err
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	key := ServerListKey(serverID)
	if slices.Contains(client.serverListKeys, key) {
		return nil
	}

	err = client.subscribe(key)
	if err != nil {
		return err
	}
	client.serverListKeys = append(client.serverListKeys, key)
	return nil
}

// UnsubscribeUser drops the keys from every session of the user, used once
// the user lost access to what they carry.
func UnsubscribeUser(userID int64, keys ...string) error {
	return release(releaseRequest{UserID: userID, Keys: keys})
}

// UnsubscribeEveryone drops the keys from all sessions, used when what they
// carry was deleted.
func UnsubscribeEveryone(keys ...string) error {
	return release(releaseRequest{Keys: keys})
}

func release(req releaseRequest) error {
	if len(req.Keys) == 0 {
		return nil
	}

	if selfContained {
		clientsMutex.Lock()
		targets := make([]*Client, 0, len(clients))
		for _, client := range clients {
			if req.UserID == 0 || client.UserID == req.UserID {
				targets = append(targets, client)
			}
		}
		clientsMutex.Unlock()

		for _, client := range targets {
			err := client.release(req.Keys)
			if err != nil {
				sugar.Debug(err)
			}
		}
		return nil
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return redisClient.Publish(redisCtx, releaseChannel, payload).Err()
}

func (c *Client) handleRelease(payload string) {
	var req releaseRequest
	err := json.Unmarshal([]byte(payload), &req)
	if err != nil {
		sugar.Warnf("Malformed release request: %v", err)
		return
	}

	if req.UserID != 0 && req.UserID != c.UserID {
		return
	}

	err = c.release(req.Keys)
	if err != nil {
		sugar.Debug(err)
	}
}

// release unsubscribes the client from those of keys it's subscribed to.
func (c *Client) release(keys []string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var dropped []string

	if c.currentChatID != 0 {
		messagesKey, updateKey := ChatMessagesKey(c.currentChatID), ChatUpdateKey(c.currentChatID)
		if slices.Contains(keys, messagesKey) || slices.Contains(keys, updateKey) {
			dropped = append(dropped, messagesKey, updateKey)
			c.currentChatID = 0
		}
	}

	if c.currentServerID != 0 && slices.Contains(keys, ServerKey(c.currentServerID)) {
		dropped = append(dropped, ServerKey(c.currentServerID))
		c.currentServerID = 0
	}

	kept := make([]string, 0, len(c.serverListKeys))
	for _, key := range c.serverListKeys {
		if slices.Contains(keys, key) {
			dropped = append(dropped, key)
		} else {
			kept = append(kept, key)
		}
	}
	c.serverListKeys = kept

	if len(dropped) > 0 {
		sugar.Debugf("Session ID %d released %d keys", c.SessionID, len(dropped))
	}
	return c.unsubscribe(dropped...)
}
