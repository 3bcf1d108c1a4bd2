package backend

import (
	"net/http"
	"strings"

	"github.com/sonroyaalmerol/kumaqueue/internal/locale"
	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

const (
	defaultHistory = 25
	maxHistory     = 100
)

func (s *Server) upsertGuild(w http.ResponseWriter, r *http.Request) {
	var body model.UpsertGuildBody
	if !decodeBody(w, r, &body) {
		return
	}
	g, err := s.repo.UpsertGuild(r.Context(), r.PathValue("guildID"), body.Name)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	if _, err := s.repo.UpsertSettings(r.Context(), g.ID); err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// getSettings returns the guild's settings, creating the defaults on first
// read.
func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := s.repo.UpsertSettings(r.Context(), r.PathValue("guildID"))
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var body model.UpdateSettingBody
	if !decodeBody(w, r, &body) {
		return
	}
	lang, ok := locale.Supported(strings.TrimSpace(body.Language))
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported language")
		return
	}
	st, err := s.repo.UpdateLanguage(r.Context(), r.PathValue("guildID"), lang)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", defaultHistory)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit <= 0 || limit > maxHistory {
		limit = maxHistory
	}
	out, err := s.repo.ListHistory(r.Context(), r.PathValue("guildID"), limit)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) upsertChannel(w http.ResponseWriter, r *http.Request) {
	var body model.UpsertChannelBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.GuildID == "" {
		writeError(w, http.StatusBadRequest, "guildId required")
		return
	}
	c, err := s.repo.UpsertChannel(r.Context(), model.Channel{
		ID:      r.PathValue("channelID"),
		GuildID: body.GuildID,
		Name:    body.Name,
	})
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) upsertUser(w http.ResponseWriter, r *http.Request) {
	var body model.UpsertUserBody
	if !decodeBody(w, r, &body) {
		return
	}
	u, err := s.repo.UpsertUser(r.Context(), model.User{ID: r.PathValue("userID"), Name: body.Name})
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
