package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/retext/retext/internal/search"
	"golang.org/x/crypto/bcrypt"
)

// ErrorResponse represents an API error. The message is always a coarse
// category; internal detail stays in the logs.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchResultJSON is one search hit in the wire format.
type SearchResultJSON struct {
	ID            int64   `json:"id"`
	Address       string  `json:"address"`
	ContactName   *string `json:"contact_name"`
	Body          string  `json:"body"`
	Timestamp     int64   `json:"timestamp"`
	MessageType   int     `json:"message_type"`
	FormattedDate string  `json:"formatted_date"`
}

// SearchResponse is the /api/search payload.
type SearchResponse struct {
	Results []SearchResultJSON `json:"results"`
	Total   int64              `json:"total"`
	Page    int                `json:"page"`
	PerPage int                `json:"per_page"`
	HasMore bool               `json:"has_more"`
}

// StatsResponse is the /api/stats payload.
type StatsResponse struct {
	MessageCount int64 `json:"message_count"`
	HasMessages  bool  `json:"has_messages"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// handleLogin verifies the submitted password against the configured bcrypt
// hash and issues a session cookie. Outcomes are logged with the client IP;
// credential material never is.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Bad request")
		return
	}
	password := r.PostFormValue("password")

	err := bcrypt.CompareHashAndPassword([]byte(s.cfg.Server.PasswordHash), []byte(password))
	if err != nil {
		s.logger.Warn("auth failure", "ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	token, err := s.sessions.Create()
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	s.logger.Info("auth success", "ip", r.RemoteAddr)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleLogout revokes the session and clears the cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		s.sessions.Revoke(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSearch runs a phrase search and returns one page of highlighted
// results.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	// Any non-numeric or non-positive page means page 1, never an error.
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	result, err := s.engine.Search(query, page)
	if err != nil {
		switch {
		case errors.Is(err, search.ErrEmptyQuery):
			writeError(w, http.StatusBadRequest, "Missing search query")
		default:
			writeError(w, http.StatusInternalServerError, "Search failed")
		}
		return
	}

	results := make([]SearchResultJSON, len(result.Results))
	for i, res := range result.Results {
		results[i] = SearchResultJSON{
			ID:            res.ID,
			Address:       res.Address,
			ContactName:   res.ContactName,
			Body:          res.Body,
			Timestamp:     res.Timestamp,
			MessageType:   res.MessageType,
			FormattedDate: res.FormattedDate,
		}
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Results: results,
		Total:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
		HasMore: result.HasMore,
	})
}

// handleStats returns archive statistics.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.store.CountMessages()
	if err != nil {
		s.logger.Error("failed to count messages", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		MessageCount: count,
		HasMessages:  count > 0,
	})
}
