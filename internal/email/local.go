package email

import (
	"concord-backend/internal/keyValue"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

type ConfirmLink struct {
	Email string
	Link  string
}

const emailConfirmations string = "email_confirmations"

func pendingLinks() ([]ConfirmLink, error) {
	result, err := keyValue.Get(emailConfirmations)
	if err != nil {
		return nil, err
	}

	var confirmLinks []ConfirmLink
	if result != "" {
		err = json.Unmarshal([]byte(result), &confirmLinks)
		if err != nil {
			return nil, err
		}
	}
	return confirmLinks, nil
}

func confirmationsPage(w http.ResponseWriter, r *http.Request) {
	confirmLinks, err := pendingLinks()
	if err != nil {
		sugar.Error(err)
		http.Error(w, "", http.StatusInternalServerError)
		return
	}

	var htmlString []byte
	if len(confirmLinks) > 0 {
		htmlString = fmt.Append(htmlString, "<h1>Emails waiting to be confirmed:</h1>\n")
		for _, link := range confirmLinks {
			htmlString = fmt.Appendf(htmlString, "<p><a href=\"%s\">%s</a></p>\n", html.EscapeString(link.Link), html.EscapeString(link.Email))
		}
	} else {
		htmlString = fmt.Append(htmlString, "<h1>No emails to confirm</h1>\n")
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = w.Write(htmlString)
	if err != nil {
		sugar.Debug(err)
	}
}

func localhostListener(address string) {
	r := chi.NewRouter()
	r.Get("/emails_to_confirm", confirmationsPage)

	sugar.Infof("View email confirmation links on http://%s/emails_to_confirm", address)
	err := http.ListenAndServe(address, r)
	if err != nil {
		sugar.Warnf("Email confirmation page stopped: %v", err)
	}
}

func storeManual(email string, link string) error {
	confirmLinks, err := pendingLinks()
	if err != nil {
		return err
	}

	confirmLinks = append(confirmLinks, ConfirmLink{email, link})

	jsonBytes, err := json.Marshal(confirmLinks)
	if err != nil {
		return err
	}

	return keyValue.Set(emailConfirmations, string(jsonBytes), time.Hour*1)
}
