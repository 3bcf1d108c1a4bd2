package backend

import (
	"net/http"
	"strconv"

	"github.com/sonroyaalmerol/kumaqueue/internal/model"
)

func (s *Server) peekQueue(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", model.MaxPeek)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := s.repo.PeekFront(r.Context(), r.PathValue("guildID"), limit)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) pushQueue(w http.ResponseWriter, r *http.Request) {
	var body model.PushBody
	if !decodeBody(w, r, &body) {
		return
	}
	if body.RequestID == "" {
		writeError(w, http.StatusBadRequest, "requestId required")
		return
	}
	entry, err := s.repo.PushBack(r.Context(), r.PathValue("guildID"), body.RequestID, body.Interrupt)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) advanceQueue(w http.ResponseWriter, r *http.Request) {
	n, err := s.repo.Advance(r.Context(), r.PathValue("guildID"))
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.AdvanceResult{Shifted: n})
}

func (s *Server) clearQueue(w http.ResponseWriter, r *http.Request) {
	keepFront, err := queryBool(r, "keepFront")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := s.repo.Clear(r.Context(), r.PathValue("guildID"), keepFront)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.ClearResult{Removed: n})
}

// removeFromQueue drops one upcoming entry. Order 0 belongs to the playback
// cycle and cannot be removed here.
func (s *Server) removeFromQueue(w http.ResponseWriter, r *http.Request) {
	ord, err := strconv.Atoi(r.PathValue("order"))
	if err != nil || ord < 1 {
		writeError(w, http.StatusBadRequest, "order must be a positive integer")
		return
	}
	entry, err := s.repo.RemoveAt(r.Context(), r.PathValue("guildID"), ord)
	if err != nil {
		writeRepoError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
