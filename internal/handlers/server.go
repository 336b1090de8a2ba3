package handlers

import (
	"concord-backend/internal/hub"
	"net/http"
	"strconv"
	"strings"
)

type serverBody struct {
	Name     string `json:"name" validate:"chatname=100"`
	ImageURL string `json:"imageUrl" validate:"omitempty,max=2048"`
}

type deletedPayload struct {
	ID string `json:"id"`
}

func CreateServer(userID int64, w http.ResponseWriter, r *http.Request) {
	var body serverBody
	if !decodeBody(w, r, &body) {
		return
	}

	server, err := store.CreateServer(r.Context(), userID, strings.TrimSpace(body.Name), body.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}

	addToServerList(userID, r, server.ID)

	sugar.Debugf("User ID %d created server ID %d", userID, server.ID)
	writeJSON(w, server)
}

func GetServerList(userID int64, w http.ResponseWriter, r *http.Request) {
	servers, err := store.ListServers(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	subscribeServerList(userID, r, servers)
	writeJSON(w, servers)
}

func GetServerInfo(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	server, err := store.GetServerForMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	subscribeServer(userID, r, serverID)
	writeJSON(w, server)
}

// GetInitialServer is where the client lands after logging in.
func GetInitialServer(userID int64, w http.ResponseWriter, r *http.Request) {
	server, err := store.FirstServer(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, server)
}

func UpdateServer(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	var body serverBody
	if !decodeBody(w, r, &body) {
		return
	}

	server, err := store.UpdateServer(r.Context(), serverID, userID, strings.TrimSpace(body.Name), body.ImageURL)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ServerModified, hub.ServerListKey(serverID), server)
	emit(hub.ServerModified, hub.ServerKey(serverID), server)

	writeJSON(w, server)
}

func DeleteServer(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	// collected first, channels and conversations are deleted with the server
	keys, err := serverKeys(r.Context(), serverID)
	if err != nil {
		writeError(w, err)
		return
	}
	conversationIDs, err := store.ConversationIDsOfServer(r.Context(), serverID)
	if err != nil {
		writeError(w, err)
		return
	}

	server, err := store.DeleteServer(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	payload := deletedPayload{ID: strconv.FormatInt(serverID, 10)}
	emit(hub.ServerDeleted, hub.ServerListKey(serverID), payload)
	emit(hub.ServerDeleted, hub.ServerKey(serverID), payload)

	unsubscribeEveryone(append(keys, chatKeys(conversationIDs...)...))
	searcher.RemoveServer(serverID)

	sugar.Debugf("User ID %d deleted server ID %d", userID, serverID)
	writeJSON(w, server)
}

func RegenerateInviteCode(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	server, err := store.RegenerateInviteCode(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, server)
}

// JoinServer answers with the server also when the user already was a member,
// the client navigates to it either way.
func JoinServer(userID int64, w http.ResponseWriter, r *http.Request) {
	inviteCode := r.URL.Query().Get("inviteCode")
	if inviteCode == "" {
		http.Error(w, "Invalid inviteCode", http.StatusBadRequest)
		return
	}

	server, member, joined, err := store.JoinServer(r.Context(), inviteCode, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if joined {
		emit(hub.MemberJoined, hub.ServerKey(server.ID), member)
	}
	addToServerList(userID, r, server.ID)

	server, err = store.GetServerForMember(r.Context(), server.ID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, server)
}

func LeaveServer(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	member, err := store.GetMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}
	conversationIDs, err := store.ConversationIDsOfMember(r.Context(), member.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	member, err = store.LeaveServer(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MemberLeft, hub.ServerKey(serverID), member)
	releaseMember(r.Context(), serverID, member, conversationIDs)
	searcher.RemoveMember(member.ID)

	w.WriteHeader(http.StatusOK)
}
