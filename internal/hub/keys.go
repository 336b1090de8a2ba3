package hub

import "fmt"

// ChatMessagesKey carries new messages of a channel or conversation.
func ChatMessagesKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:messages", chatID)
}

// ChatUpdateKey carries edits and deletions of messages.
func ChatUpdateKey(chatID int64) string {
	return fmt.Sprintf("chat:%d:messages:update", chatID)
}

// ServerKey carries channel and member changes of the server in view.
func ServerKey(serverID int64) string {
	return fmt.Sprintf("server:%d", serverID)
}

// ServerListKey carries changes shown in the server sidebar.
func ServerListKey(serverID int64) string {
	return fmt.Sprintf("serverList:%d", serverID)
}
