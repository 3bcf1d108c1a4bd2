package backend

import (
	"net/http"
	"time"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func (s *Server) upsertVideo(w http.ResponseWriter, r *http.Request) {
	var body model.UpsertVideoBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.URL == "" || body.Title == "" {
		writeError(w, http.StatusBadRequest, "url and title required")
		return
	}
	v, err := s.repo.UpsertVideo(r.Context(), model.Video{
		ID:          r.PathValue("videoID"),
		URL:         body.URL,
		Title:       body.Title,
		DurationSec: body.DurationSec,
		Thumbnail:   body.Thumbnail,
	})
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	v, err := s.repo.GetVideo(r.Context(), r.PathValue("videoID"))
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) createRequest(w http.ResponseWriter, r *http.Request) {
	var body model.CreateRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.GuildID == "" || body.UserID == "" || body.VideoID == "" {
		writeError(w, http.StatusBadRequest, "guildId, userId and videoId required")
		return
	}
	req, err := s.repo.CreateRequest(r.Context(), body)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

func (s *Server) getRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.repo.GetRequest(r.Context(), r.PathValue("requestID"))
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// markPlayed stamps the request. A zero playedAt means now.
func (s *Server) markPlayed(w http.ResponseWriter, r *http.Request) {
	var body model.MarkPlayedBody
	if !decodeBody(w, r, &body) {
		return
	}
	at := body.PlayedAt
	if at.IsZero() {
		at = time.Now()
	}
	id := r.PathValue("requestID")
	if err := s.repo.MarkPlayed(r.Context(), id, at); err != nil {
		writeRepoError(w, r, err)
		return
	}
	req, err := s.repo.GetRequest(r.Context(), id)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
