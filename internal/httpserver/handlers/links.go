package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/streamlinks/internal/domain"
	"github.com/MrSnakeDoc/streamlinks/internal/httpserver/deps"
	"github.com/MrSnakeDoc/streamlinks/internal/logger"
)

type linksResponse struct {
	Links []domain.Link `json:"links"`
	Count int           `json:"count"`
}

type addLinkRequest struct {
	URL         string `json:"url"`
	Sport       string `json:"sport"`
	Description string `json:"description"`
}

type addLinkResponse struct {
	Success bool        `json:"success"`
	Link    domain.Link `json:"link"`
}

type removeResponse struct {
	Success bool `json:"success"`
	Removed bool `json:"removed"`
}

type okResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
}

// ListLinks returns the stored collection, optionally filtered with ?q=.
func ListLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := d.Links.Links(r.Context())
		if err != nil {
			d.Logger.Error("failed to read links", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}

		if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
			links = domain.Filter(links, q)
		}
		writeLinks(w, links)
	}
}

// ActiveLinks returns the links younger than the freshness window, newest first.
func ActiveLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := d.Links.Active(r.Context())
		if err != nil {
			d.Logger.Error("failed to read active links", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		writeLinks(w, links)
	}
}

// AddLink stores a link entered by hand.
func AddLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addLinkRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}

		sport, err := domain.ParseSport(req.Sport)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		link, err := d.Links.AddManual(r.Context(), req.URL, sport, req.Description)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidURL):
			writeError(w, http.StatusBadRequest, "Please enter a valid URL")
			return
		case errors.Is(err, domain.ErrLinkExists):
			writeError(w, http.StatusConflict, "This link already exists")
			return
		default:
			d.Logger.Error("failed to add link", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}

		writeJSON(w, http.StatusCreated, addLinkResponse{Success: true, Link: link})
	}
}

// RemoveLink deletes the link whose URL is given by ?url=.
func RemoveLink(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		url := strings.TrimSpace(r.URL.Query().Get("url"))
		if url == "" {
			writeError(w, http.StatusBadRequest, "missing url")
			return
		}

		removed, err := d.Links.Remove(r.Context(), url)
		if err != nil {
			d.Logger.Error("failed to remove link",
				logger.String("url", url),
				logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		if removed {
			triggerBadge(d)
		}
		writeJSON(w, http.StatusOK, removeResponse{Success: true, Removed: removed})
	}
}

// ClearLinks deletes every stored link.
func ClearLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := d.Links.Clear(r.Context()); err != nil {
			d.Logger.Error("failed to clear links", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		d.Logger.Info("all links cleared", logger.String("remote_ip", r.RemoteAddr))
		triggerBadge(d)
		writeJSON(w, http.StatusOK, okResponse{Success: true, Count: 0})
	}
}

// ReplaceLinks overwrites the collection with the posted array.
func ReplaceLinks(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var links []domain.Link
		if err := decodeBody(w, r, &links); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request")
			return
		}
		for _, l := range links {
			if l.URL == "" {
				writeError(w, http.StatusBadRequest, "every link needs a url")
				return
			}
		}

		stored, err := d.Links.ReplaceAll(r.Context(), links)
		switch {
		case err == nil:
		case errors.Is(err, domain.ErrInvalidURL),
			errors.Is(err, domain.ErrUnknownSport),
			errors.Is(err, domain.ErrUnknownSource):
			writeError(w, http.StatusBadRequest, err.Error())
			return
		default:
			d.Logger.Error("failed to replace links", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
		triggerBadge(d)
		writeJSON(w, http.StatusOK, okResponse{Success: true, Count: len(stored)})
	}
}

func writeLinks(w http.ResponseWriter, links []domain.Link) {
	if links == nil {
		links = []domain.Link{}
	}
	writeJSON(w, http.StatusOK, linksResponse{Links: links, Count: len(links)})
}

func triggerBadge(d deps.Deps) {
	if d.Badge != nil {
		d.Badge.Trigger()
	}
}
