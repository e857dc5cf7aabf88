package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/lazypower/keepstreak/internal/tracker"
)

const defaultNotificationLimit = 50

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.writeError(w, r, fmt.Errorf("%w: bad limit", tracker.ErrInvalid))
			return
		}
		limit = n
	}

	list, err := s.repo.ListNotifications(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	unread, err := s.repo.UnreadCount(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": list,
		"unread":        unread,
	})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "notificationID")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.repo.MarkRead(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := s.repo.MarkAllRead(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"marked": n})
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if s.scanner == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "scanner not configured"})
		return
	}
	_, day, err := s.readDay(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := s.scanner.Run(r.Context(), day)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
