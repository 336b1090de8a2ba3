package handlers

import (
	"concord-backend/internal/hub"
	"concord-backend/internal/models"
	"net/http"
	"strings"
)

type channelBody struct {
	Name string `json:"name" validate:"chatname=3-100"`
	Type string `json:"type" validate:"oneof=Text Audio Video"`
}

func CreateChannel(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	var body channelBody
	if !decodeBody(w, r, &body) {
		return
	}

	channel, err := store.CreateChannel(r.Context(), serverID, userID, strings.TrimSpace(body.Name), models.ChannelType(body.Type))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelCreated, hub.ServerKey(serverID), channel)
	writeJSON(w, channel)
}

func GetChannelList(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	channels, err := store.ListChannelsForMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, channels)
}

func GetGeneralChannel(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}

	_, err := store.GetMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	channel, err := store.GeneralChannel(r.Context(), serverID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, channel)
}

func UpdateChannel(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}

	var body channelBody
	if !decodeBody(w, r, &body) {
		return
	}

	channel, err := store.UpdateChannel(r.Context(), serverID, channelID, userID, strings.TrimSpace(body.Name), models.ChannelType(body.Type))
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelModified, hub.ServerKey(serverID), channel)
	writeJSON(w, channel)
}

func DeleteChannel(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	channelID, ok := queryID(w, r, "channelID")
	if !ok {
		return
	}

	channel, err := store.DeleteChannel(r.Context(), serverID, channelID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	emit(hub.ChannelDeleted, hub.ServerKey(serverID), channel)
	unsubscribeEveryone(chatKeys(channelID))
	searcher.RemoveChannel(channelID)

	writeJSON(w, channel)
}
