// Package search implements sanitized phrase search with highlighting over
// the message archive.
package search

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/retext/retext/internal/store"
)

var (
	// ErrEmptyQuery marks an empty or whitespace-only query. The caller maps
	// this to a client error.
	ErrEmptyQuery = errors.New("empty search query")

	// ErrSearchFailed is the opaque failure surfaced when the store errors.
	// Internal detail is logged, never attached to this error.
	ErrSearchFailed = errors.New("search failed")
)

const defaultPerPage = 50

// Searcher is the store surface the engine needs. *store.Store satisfies it.
type Searcher interface {
	Search(matchExpr string, limit, offset int) ([]store.Message, int64, error)
}

// Result is one search hit, post-processed for display.
type Result struct {
	ID            int64
	Address       string
	ContactName   *string
	Body          string // HTML-escaped with <mark> highlights
	Timestamp     int64  // Epoch milliseconds
	MessageType   int
	FormattedDate string
}

// Page is one page of ranked search results.
type Page struct {
	Results []Result
	Total   int64
	Page    int
	PerPage int
	HasMore bool
}

// Engine executes sanitized full-text queries against a Searcher.
type Engine struct {
	st      Searcher
	perPage int
	log     *slog.Logger
}

// NewEngine creates an Engine. perPage <= 0 selects the default of 50.
func NewEngine(st Searcher, perPage int, log *slog.Logger) *Engine {
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{st: st, perPage: perPage, log: log}
}

// Search runs a phrase search for rawQuery and returns the requested page.
// An empty query returns ErrEmptyQuery without touching the store. A page
// below 1 is coerced to 1. Store failures are logged and surfaced as
// ErrSearchFailed with no internal detail.
func (e *Engine) Search(rawQuery string, page int) (*Page, error) {
	query := strings.TrimSpace(rawQuery)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if page < 1 {
		page = 1
	}

	offset := (page - 1) * e.perPage
	messages, total, err := e.st.Search(sanitizeQuery(query), e.perPage, offset)
	if err != nil {
		e.log.Error("search query failed", "error", err)
		return nil, ErrSearchFailed
	}

	results := make([]Result, 0, len(messages))
	for _, m := range messages {
		r := Result{
			ID:            m.ID,
			Address:       m.Address,
			Body:          Highlight(m.Body, query),
			Timestamp:     m.Timestamp,
			MessageType:   m.MessageType,
			FormattedDate: FormatTimestamp(m.Timestamp),
		}
		if m.ContactName.Valid {
			name := m.ContactName.String
			r.ContactName = &name
		}
		results = append(results, r)
	}

	return &Page{
		Results: results,
		Total:   total,
		Page:    page,
		PerPage: e.perPage,
		HasMore: int64(page)*int64(e.perPage) < total,
	}, nil
}

// sanitizeQuery narrows user input to the safe subset of the FTS5 query
// language: double any embedded quotes, then wrap the whole thing as one
// quoted phrase. Users never reach boolean, NEAR, or prefix operators, and
// natural sentences match as contiguous token sequences.
func sanitizeQuery(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}
