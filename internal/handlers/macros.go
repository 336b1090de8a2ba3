package handlers

import (
	"concord-backend/internal/database"
	"concord-backend/internal/hub"
	"concord-backend/internal/models"
	"concord-backend/internal/validator"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

const messagesBatch = 10

const maxBodySize = 1 << 20

type userHandler func(userID int64, w http.ResponseWriter, r *http.Request)

// withUserID passes the id UserVerifier stored in the request context.
func withUserID(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := r.Context().Value(UserIDKeyType{}).(int64)
		if !ok {
			http.Error(w, "", http.StatusUnauthorized)
			return
		}
		h(userID, w, r)
	}
}

// sessionFrom returns the websocket session the request came with, if any.
func sessionFrom(r *http.Request) (int64, bool) {
	sessionID, ok := r.Context().Value(SessionIDKeyType{}).(int64)
	return sessionID, ok
}

// queryID reads a required id from the query string, answering 400 when it's
// missing or malformed.
func queryID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, fmt.Sprintf("Invalid %s", name), http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryCursor reads the optional pagination cursor, 0 means the newest page.
func queryCursor(w http.ResponseWriter, r *http.Request) (int64, bool) {
	value := r.URL.Query().Get("cursor")
	if value == "" {
		return 0, true
	}

	cursor, err := strconv.ParseInt(value, 10, 64)
	if err != nil || cursor <= 0 {
		http.Error(w, "Invalid cursor", http.StatusBadRequest)
		return 0, false
	}
	return cursor, true
}

// decodeBody decodes and validates a json body. On failure the response is
// already written.
func decodeBody(w http.ResponseWriter, r *http.Request, body any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	err := json.NewDecoder(r.Body).Decode(body)
	if err != nil {
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
		return false
	}

	fields := validator.Struct(body)
	if fields != nil {
		writeJSONStatus(w, http.StatusUnprocessableEntity, fields)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		sugar.Error(err)
	}
}

// writeError answers with the status that matches a database error. Anything
// unexpected is logged and answered with 500.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		sugar.Debug(err)
		http.Error(w, "", http.StatusNotFound)
	case errors.Is(err, database.ErrForbidden):
		sugar.Debug(err)
		http.Error(w, "", http.StatusForbidden)
	case errors.Is(err, database.ErrGeneralChannel):
		http.Error(w, "Name can't be general", http.StatusConflict)
	case errors.Is(err, database.ErrConflict):
		sugar.Debug(err)
		http.Error(w, "", http.StatusConflict)
	default:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
	}
}

// emit logs failures instead of failing the request, the change is already
// stored and clients still see it on their next fetch.
func emit(eventType string, key string, payload any) {
	err := hub.Emit(eventType, key, payload)
	if err != nil {
		sugar.Errorf("Emitting %s to %s: %v", eventType, key, err)
	}
}

func subscribeChat(userID int64, r *http.Request, chatID int64) {
	sessionID, ok := sessionFrom(r)
	if !ok {
		return
	}

	err := hub.SubscribeChat(userID, sessionID, chatID)
	if err != nil {
		sugar.Debug(err)
	}
}

func subscribeServer(userID int64, r *http.Request, serverID int64) {
	sessionID, ok := sessionFrom(r)
	if !ok {
		return
	}

	err := hub.SubscribeServer(userID, sessionID, serverID)
	if err != nil {
		sugar.Debug(err)
	}
}

func subscribeServerList(userID int64, r *http.Request, servers []models.Server) {
	sessionID, ok := sessionFrom(r)
	if !ok {
		return
	}

	serverIDs := make([]int64, 0, len(servers))
	for _, server := range servers {
		serverIDs = append(serverIDs, server.ID)
	}

	err := hub.SubscribeServerList(userID, sessionID, serverIDs)
	if err != nil {
		sugar.Debug(err)
	}
}

func addToServerList(userID int64, r *http.Request, serverID int64) {
	sessionID, ok := sessionFrom(r)
	if !ok {
		return
	}

	err := hub.AddToServerList(userID, sessionID, serverID)
	if err != nil {
		sugar.Debug(err)
	}
}

func chatKeys(chatIDs ...int64) []string {
	keys := make([]string, 0, 2*len(chatIDs))
	for _, chatID := range chatIDs {
		keys = append(keys, hub.ChatMessagesKey(chatID), hub.ChatUpdateKey(chatID))
	}
	return keys
}

// serverKeys are the keys of the server's events, its sidebar entry and the
// messages of its channels.
func serverKeys(ctx context.Context, serverID int64) ([]string, error) {
	channels, err := store.ListChannels(ctx, serverID)
	if err != nil {
		return nil, err
	}

	keys := []string{hub.ServerKey(serverID), hub.ServerListKey(serverID)}
	for _, channel := range channels {
		keys = append(keys, chatKeys(channel.ID)...)
	}
	return keys, nil
}

// releaseMember stops realtime delivery to a profile that is no longer a
// member of the server. Its conversations were deleted with the membership.
func releaseMember(ctx context.Context, serverID int64, member models.Member, conversationIDs []int64) {
	keys, err := serverKeys(ctx, serverID)
	if err != nil {
		sugar.Error(err)
		keys = []string{hub.ServerKey(serverID), hub.ServerListKey(serverID)}
	}

	err = hub.UnsubscribeUser(member.ProfileID, keys...)
	if err != nil {
		sugar.Errorf("Unsubscribing user ID %d from server ID %d: %v", member.ProfileID, serverID, err)
	}

	unsubscribeEveryone(chatKeys(conversationIDs...))
}

func unsubscribeEveryone(keys []string) {
	err := hub.UnsubscribeEveryone(keys...)
	if err != nil {
		sugar.Errorf("Unsubscribing everyone from %d keys: %v", len(keys), err)
	}
}

// messagePage only has a cursor when the batch was full, a shorter batch
// means the oldest message was reached.
func messagePage(messages []models.Message) models.MessagePage {
	page := models.MessagePage{Items: messages}
	if len(messages) == messagesBatch {
		cursor := strconv.FormatInt(messages[len(messages)-1].ID, 10)
		page.NextCursor = &cursor
	}
	return page
}

// publicProfile strips what other users shouldn't see.
func publicProfile(p models.Profile) models.Profile {
	return models.Profile{ID: p.ID, UserName: p.UserName, Name: p.Name, ImageURL: p.ImageURL}
}
