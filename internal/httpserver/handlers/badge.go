package handlers

import (
	"net/http"
	"strconv"

	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
)

type badgeResponse struct {
	Count int    `json:"count"`
	Text  string `json:"text"`
}

// Badge returns the number of active links. Text is empty when there are
// none, matching what the toolbar badge shows.
func Badge(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := d.Badge.Count()
		text := ""
		if n > 0 {
			text = strconv.Itoa(n)
		}
		writeJSON(w, http.StatusOK, badgeResponse{Count: n, Text: text})
	}
}
