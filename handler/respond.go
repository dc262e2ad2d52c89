// Package handler implements HiveBoard's REST and WebSocket surface: event
// ingestion, the read-time query API over derived agent/task state, cost
// reporting, and CRUD for projects and alert rules.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hiveboard/hiveboard/apierr"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError sends err using HiveBoard's single error envelope (spec §7).
func writeError(w http.ResponseWriter, err *apierr.Error) {
	apierr.Write(w, err)
}

// Page is the envelope every paginated list endpoint returns (spec §6.3).
type Page struct {
	Data       any            `json:"data"`
	Pagination PageInfo       `json:"pagination"`
}

// PageInfo carries the opaque cursor for the next page.
type PageInfo struct {
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

func writePage(w http.ResponseWriter, data any, cursor string) {
	writeJSON(w, http.StatusOK, Page{Data: data, Pagination: PageInfo{Cursor: cursor, HasMore: cursor != ""}})
}
