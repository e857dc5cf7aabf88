package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/keepstreak/internal/date"
	"github.com/lazypower/keepstreak/internal/tracker"
)

func idParam(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad %s", tracker.ErrInvalid, key)
	}
	return id, nil
}

// parseDay parses an optional YYYY-MM-DD value; empty yields the zero Date.
func parseDay(s string) (date.Date, error) {
	if s == "" {
		return date.Date{}, nil
	}
	d, err := date.Parse(s)
	if err != nil {
		return date.Date{}, fmt.Errorf("%w: %v", tracker.ErrInvalid, err)
	}
	return d, nil
}

func queryRange(r *http.Request) (from, to date.Date, err error) {
	if from, err = parseDay(r.URL.Query().Get("from")); err != nil {
		return
	}
	to, err = parseDay(r.URL.Query().Get("to"))
	return
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid json", tracker.ErrInvalid)
	}
	return nil
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := s.repo.ListHabits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"habits": habits})
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var in tracker.HabitInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.tracker.CreateHabit(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h)
}

func (s *Server) handleGetHabit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.repo.GetHabit(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var in tracker.HabitInput
	if err := decode(r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.tracker.UpdateHabit(r.Context(), id, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.tracker.DeleteHabit(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.repo.GetHabit(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	logs, err := s.repo.ListLogsBetween(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	from, to, err := queryRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	st, err := s.tracker.Stats(r.Context(), id, from, to)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

type dayRequest struct {
	Date  string `json:"date"`
	Value int    `json:"value"`
}

// readDay decodes an optional body; a missing date means today.
func (s *Server) readDay(r *http.Request) (dayRequest, date.Date, error) {
	var req dayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, date.Date{}, fmt.Errorf("%w: invalid json", tracker.ErrInvalid)
	}
	day, err := parseDay(req.Date)
	if err != nil {
		return req, date.Date{}, err
	}
	if day.IsZero() {
		day = s.today()
	}
	return req, day, nil
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	req, day, err := s.readDay(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.tracker.Complete(r.Context(), id, day, s.today(), req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if res.AlreadyLogged {
		status = http.StatusConflict
	}
	writeJSON(w, status, res)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "habitID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, day, err := s.readDay(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	h, err := s.tracker.Undo(r.Context(), id, day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h)
}
