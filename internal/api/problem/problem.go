// Package problem writes RFC 7807 error documents for the economy API.
package problem

import (
	"encoding/json"
	"net/http"
)

const (
	contentType = "application/problem+json"
	baseTypeURL = "https://errors.shop-treasury.dev/"

	// ResultHeader carries the bus result of an economy request.
	ResultHeader = "X-Economy-Result"
	// TraceHeader carries the request trace id.
	TraceHeader = "X-Trace-ID"

	notHandled = "not_handled"
)

// Details represents RFC 7807 Problem Details. Result repeats the economy
// result so bus adapters can branch on the body alone.
type Details struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail"`
	Instance  string `json:"instance"`
	RequestID string `json:"request_id"`
	Result    string `json:"result"`
}

func Type(slug string) string {
	return baseTypeURL + slug
}

// Write sends an RFC 7807 document. A request that reaches an error without
// a result of its own is reported as not handled.
func Write(w http.ResponseWriter, r *http.Request, status int, problemType, title, detail string) {
	if title == "" {
		title = http.StatusText(status)
	}
	if problemType == "" {
		problemType = "about:blank"
	}

	d := Details{
		Type:      problemType,
		Title:     title,
		Status:    status,
		Detail:    detail,
		RequestID: w.Header().Get(TraceHeader),
		Result:    w.Header().Get(ResultHeader),
	}
	if r != nil {
		d.Instance = r.URL.Path
		if d.RequestID == "" {
			d.RequestID = r.Header.Get(TraceHeader)
		}
	}
	if d.Result == "" {
		d.Result = notHandled
		w.Header().Set(ResultHeader, notHandled)
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(d)
}
