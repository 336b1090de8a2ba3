package hub

import (
	"sync"
)

// LocalPubSub routes frames between sessions of this process when there is
// no redis to publish through.
type LocalPubSub struct {
	mutex   sync.RWMutex
	hashMap map[string]map[int64]struct{}
}

func NewLocalPubSub() *LocalPubSub {
	return &LocalPubSub{hashMap: make(map[string]map[int64]struct{})}
}

func (ps *LocalPubSub) Subscribe(key string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	sessionIDs, ok := ps.hashMap[key]
	if !ok {
		sessionIDs = make(map[int64]struct{})
		ps.hashMap[key] = sessionIDs
	}
	sessionIDs[sessionID] = struct{}{}
}

func (ps *LocalPubSub) Unsubscribe(key string, sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	ps.unsubscribe(key, sessionID)
}

func (ps *LocalPubSub) unsubscribe(key string, sessionID int64) {
	sessionIDs := ps.hashMap[key]
	delete(sessionIDs, sessionID)

	// delete key from map if no session is subscribed to it
	if len(sessionIDs) == 0 {
		delete(ps.hashMap, key)
	}
}

func (ps *LocalPubSub) UnsubscribeFromAll(sessionID int64) {
	ps.mutex.Lock()
	defer ps.mutex.Unlock()

	for key := range ps.hashMap {
		ps.unsubscribe(key, sessionID)
	}
}

// Subscribers returns the sessions subscribed to key.
func (ps *LocalPubSub) Subscribers(key string) []int64 {
	ps.mutex.RLock()
	defer ps.mutex.RUnlock()

	sessionIDs := make([]int64, 0, len(ps.hashMap[key]))
	for sessionID := range ps.hashMap[key] {
		sessionIDs = append(sessionIDs, sessionID)
	}
	return sessionIDs
}

func (ps *LocalPubSub) Publish(key string, frame []byte) {
	for _, sessionID := range ps.Subscribers(key) {
		client, exists := GetClient(sessionID)
		if exists {
			client.deliver(frame)
		} else {
			sugar.Warnf("Session ID %d is subscribed to %s but isn't connected", sessionID, key)
		}
	}
}
