package api

import (
	"net/http"
	"strconv"

	"github.com/jmensah/fieldcheck/querylog"
)

// The query log grows by one row per field check, so the listing is always
// windowed. 200 entries is comfortably one retention review screen.
const (
	defaultListLimit = 100
	maxListLimit     = 200
)

// ListMeta describes the window a query-log listing response covers.
type ListMeta struct {
	TotalCount int  `json:"total_count"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasMore    bool `json:"has_more"`
}

// listWindow reads the "limit" and "offset" parameters of the query-log
// listing. Missing or invalid values fall back to offset=0 and
// limit=defaultListLimit; limit is capped at maxListLimit.
func listWindow(r *http.Request) (limit, offset int) {
	q := r.URL.Query()

	limit = defaultListLimit
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	offset = 0
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			offset = n
		}
	}

	return limit, offset
}

// entryPage cuts one window out of the filtered, newest-first entries. An
// offset past the end yields an empty page, never an error, and the page
// is always non-nil so the response encodes as [] rather than null.
func entryPage(entries []querylog.Entry, limit, offset int) ([]querylog.Entry, ListMeta) {
	total := len(entries)
	start := offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	page := entries[start:end]
	if page == nil {
		page = []querylog.Entry{}
	}
	meta := ListMeta{
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
		HasMore:    end < total,
	}
	return page, meta
}
