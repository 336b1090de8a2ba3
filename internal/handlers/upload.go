package handlers

import (
	"concord-backend/internal/fileHandlers"
	"errors"
	"net/http"
)

type uploadResult struct {
	URL string `json:"url"`
}

func writeUploadError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, fileHandlers.ErrMissingFile):
		sugar.Debug(err)
		http.Error(w, "", http.StatusBadRequest)
	case errors.Is(err, fileHandlers.ErrTooLarge):
		http.Error(w, "", http.StatusRequestEntityTooLarge)
	case errors.Is(err, fileHandlers.ErrUnsupportedType):
		http.Error(w, "", http.StatusUnsupportedMediaType)
	default:
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
	}
}

func UploadAttachment(userID int64, w http.ResponseWriter, r *http.Request) {
	url, err := fileHandlers.HandleAttachment(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	sugar.Debugf("User ID %d uploaded attachment %s", userID, url)
	writeJSON(w, uploadResult{URL: url})
}

// UploadPicture stores a server or profile picture, the url is then sent with
// the update of whatever uses it.
func UploadPicture(userID int64, w http.ResponseWriter, r *http.Request) {
	url, err := fileHandlers.HandleAvatarPicture(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}

	sugar.Debugf("User ID %d uploaded picture %s", userID, url)
	writeJSON(w, uploadResult{URL: url})
}
