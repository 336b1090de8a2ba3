package handlers

import (
	"concord-backend/internal/models"
	"net/http"
	"strings"
)

const messageSearchLimit = 20

func searchQuery(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		http.Error(w, "Invalid q", http.StatusBadRequest)
		return "", false
	}
	return q, true
}

// SearchServer filters the channels and members of a server by name.
func SearchServer(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	q, ok := searchQuery(w, r)
	if !ok {
		return
	}

	server, err := store.GetServerForMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	q = strings.ToLower(q)

	type ServerSearch struct {
		Channels []models.Channel `json:"channels"`
		Members  []models.Member  `json:"members"`
	}

	result := ServerSearch{Channels: []models.Channel{}, Members: []models.Member{}}
	for _, channel := range server.Channels {
		if strings.Contains(strings.ToLower(channel.Name), q) {
			result.Channels = append(result.Channels, channel)
		}
	}
	for _, member := range server.Members {
		if member.Profile == nil {
			continue
		}
		if strings.Contains(strings.ToLower(member.Profile.Name), q) || strings.Contains(strings.ToLower(member.Profile.UserName), q) {
			result.Members = append(result.Members, member)
		}
	}

	writeJSON(w, result)
}

func SearchMessages(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	q, ok := searchQuery(w, r)
	if !ok {
		return
	}

	_, err := store.GetMember(r.Context(), serverID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	results, err := searcher.SearchMessages(r.Context(), serverID, q, messageSearchLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, results)
}
