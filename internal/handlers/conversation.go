package handlers

import "net/http"

// OpenConversation returns the direct conversation between the user and
// another member of the server, creating it on first use.
func OpenConversation(userID int64, w http.ResponseWriter, r *http.Request) {
	serverID, ok := queryID(w, r, "serverID")
	if !ok {
		return
	}
	memberID, ok := queryID(w, r, "memberID")
	if !ok {
		return
	}

	conversation, err := store.GetOrCreateConversation(r.Context(), userID, serverID, memberID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, conversation)
}
