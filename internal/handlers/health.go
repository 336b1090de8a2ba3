package handlers

import (
	"concord-backend/internal/keyValue"
	"net/http"
)

func Health(w http.ResponseWriter, r *http.Request) {
	type Status struct {
		Database string `json:"database"`
		KeyValue string `json:"keyValue"`
	}

	status := Status{Database: "ok", KeyValue: "ok"}
	code := http.StatusOK

	err := store.Ping(r.Context())
	if err != nil {
		sugar.Error(err)
		status.Database = "unavailable"
		code = http.StatusServiceUnavailable
	}

	err = keyValue.Ping(r.Context())
	if err != nil {
		sugar.Error(err)
		status.KeyValue = "unavailable"
		code = http.StatusServiceUnavailable
	}

	writeJSONStatus(w, code, status)
}
