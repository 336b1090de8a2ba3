package handlers

import (
	"concord-backend/internal/hub"
	"net/http"
)

type messageBody struct {
	Content string `json:"content" validate:"required,max=2000"`
	FileURL string `json:"fileUrl" validate:"omitempty,max=2048"`
}

type messageEditBody struct {
	Content string  `json:"content" validate:"required,max=2000"`
	FileURL *string `json:"fileUrl"`
}

// decodeEdit rejects edits that try to swap the attachment.
func decodeEdit(w http.ResponseWriter, r *http.Request) (messageEditBody, bool) {
	var body messageEditBody
	if !decodeBody(w, r, &body) {
		return body, false
	}

	if body.FileURL != nil && *body.FileURL != "" {
		http.Error(w, "Files can't be edited", http.StatusConflict)
		return body, false
	}
	return body, true
}

func GetMessageList(userID int64, w http.ResponseWriter, r *http.Request) {
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}
	cursor, ok := queryCursor(w, r)
	if !ok {
		return
	}

	messages, err := store.ListMessages(r.Context(), userID, channelID, cursor, messagesBatch)
	if err != nil {
		writeError(w, err)
		return
	}

	// only opening the chat subscribes, older pages are fetched while it's open
	if cursor == 0 {
		subscribeChat(userID, r, channelID)
	}

	writeJSON(w, messagePage(messages))
}

func CreateMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}

	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}

	message, err := store.CreateMessage(r.Context(), userID, serverID, channelID, body.Content, body.FileURL)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageCreated, hub.ChatMessagesKey(channelID), message)
	searcher.IndexMessage(message, serverID)

	writeJSON(w, message)
}

func UpdateMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}
	messageID, ok := queryID(w, r, "messageID")
	if !ok {
		return
	}

	body, ok := decodeEdit(w, r)
	if !ok {
		return
	}

	message, err := store.EditMessage(r.Context(), userID, serverID, channelID, messageID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageModified, hub.ChatUpdateKey(channelID), message)
	searcher.IndexMessage(message, serverID)

	writeJSON(w, message)
}

func DeleteMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}
	messageID, ok := queryID(w, r, "messageID")
	if !ok {
		return
	}

	message, err := store.DeleteMessage(r.Context(), userID, serverID, channelID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageDeleted, hub.ChatUpdateKey(channelID), message)
	searcher.RemoveMessage(message.ID)

	writeJSON(w, message)
}

func GetDirectMessageList(userID int64, w http.ResponseWriter, r *http.Request) {
	conversationID, ok := queryID(w, r, "conversationID")
	if !ok {
		return
	}
	cursor, ok := queryCursor(w, r)
	if !ok {
		return
	}

	messages, err := store.ListDirectMessages(r.Context(), userID, conversationID, cursor, messagesBatch)
	if err != nil {
		writeError(w, err)
		return
	}

	if cursor == 0 {
		subscribeChat(userID, r, conversationID)
	}

	writeJSON(w, messagePage(messages))
}

func CreateDirectMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	conversationID, ok := queryID(w, r, "conversationID")
	if !ok {
		return
	}

	var body messageBody
	if !decodeBody(w, r, &body) {
		return
	}

	message, err := store.CreateDirectMessage(r.Context(), userID, conversationID, body.Content, body.FileURL)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageCreated, hub.ChatMessagesKey(conversationID), message)
	writeJSON(w, message)
}

func UpdateDirectMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	conversationID, ok := queryID(w, r, "conversationID")
	if !ok {
		return
	}
	messageID, ok := queryID(w, r, "directMessageID")
	if !ok {
		return
	}

	body, ok := decodeEdit(w, r)
	if !ok {
		return
	}

	message, err := store.EditDirectMessage(r.Context(), userID, conversationID, messageID, body.Content)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageModified, hub.ChatUpdateKey(conversationID), message)
	writeJSON(w, message)
}

func DeleteDirectMessage(userID int64, w http.ResponseWriter, r *http.Request) {
	conversationID, ok := queryID(w, r, "conversationID")
	if !ok {
		return
	}
	messageID, ok := queryID(w, r, "directMessageID")
	if !ok {
		return
	}

	message, err := store.DeleteDirectMessage(r.Context(), userID, conversationID, messageID)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MessageDeleted, hub.ChatUpdateKey(conversationID), message)
	writeJSON(w, message)
}
