package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

const (
	ActionExtractLinks = "extractLinks"
	ActionPing         = "ping"
)

type messageRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type extractResponse struct {
	Success bool     `json:"success"`
	Links   []string `json:"links"`
	Total   int      `json:"total"`
	Error   string   `json:"error,omitempty"`
}

type pingResponse struct {
	Success bool            `json:"success"`
	Pong    bool            `json:"pong"`
	Echo    json.RawMessage `json:"echo"`
}

// Message answers the requests the extension UI sends to the content side.
// Every outcome, including failures, is a structured 200 response; only an
// unreadable body is rejected.
func Message(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		switch req.Action {
		case ActionExtractLinks:
			extractLinks(w, r, d)
		case ActionPing:
			echo := req.Payload
			if len(echo) == 0 {
				echo = json.RawMessage("null")
			}
			writeJSON(w, http.StatusOK, pingResponse{Success: true, Pong: true, Echo: echo})
		default:
			d.Logger.Debug("unknown message action", logger.String("action", req.Action))
			writeError(w, http.StatusOK, "Unknown action")
		}
	}
}

func extractLinks(w http.ResponseWriter, r *http.Request, d deps.Deps) {
	res, err := d.Extractor.ExtractNow(r.Context())
	if err != nil {
		d.Logger.Warn("on-demand extraction failed", logger.Error(err))
		writeJSON(w, http.StatusOK, extractResponse{
			Success: false,
			Links:   []string{},
			Total:   d.Links.Total(),
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, extractResponse{
		Success: true,
		Links:   res.URLs(),
		Total:   res.Total,
	})
}
