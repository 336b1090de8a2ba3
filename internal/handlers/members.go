package handlers

import (
	"concord-backend/internal/hub"
	"concord-backend/internal/models"
	"net/http"
)

func GetMemberList(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	_, err := store.GetMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	members, err := store.ListMembers(r.Context(), serverID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, members)
}

func UpdateMemberRole(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	memberID, ok := queryID(w, r, "memberID")
	if !ok {
		return
	}

	type RoleBody struct {
		Role string `json:"role" validate:"oneof=Admin Moderator Guest"`
	}

	var body RoleBody
	if !decodeBody(w, r, &body) {
		return
	}

	server, member, err := store.UpdateMemberRole(r.Context(), serverID, userID, memberID, models.MemberRole(body.Role))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MemberModified, hub.ServerKey(serverID), member)
	writeJSON(w, server)
}

func KickMember(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	memberID, ok := queryID(w, r, "memberID")
	if !ok {
		return
	}

	conversationIDs, err := store.ConversationIDsOfMember(r.Context(), memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	server, member, err := store.KickMember(r.Context(), serverID, userID, memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.MemberLeft, hub.ServerKey(serverID), member)
	releaseMember(r.Context(), serverID, member, conversationIDs)
	searcher.RemoveMember(member.ID)

	writeJSON(w, server)
}
