// Package http serves the journey JSON API and the server-rendered HTMX UI.
package http

import (
	"encoding/json"
	"html/template"
	"net/http"
)

// Client-side events raised through HX-Trigger.
const (
	EventLedgerChanged   = "ledger:changed"
	EventDepositRecorded = "deposit:recorded"
	EventFormReset       = "form:reset"
	EventNotification    = "show-notification"
)

// NotificationLevel selects the toast style in app.js.
type NotificationLevel string

const (
	LevelSuccess NotificationLevel = "success"
	LevelError   NotificationLevel = "error"
	LevelWarning NotificationLevel = "warning"
	LevelInfo    NotificationLevel = "info"
)

// toast durations in milliseconds
var toastDuration = map[NotificationLevel]int{
	LevelSuccess: 3000,
	LevelInfo:    4000,
	LevelWarning: 5000,
	LevelError:   5000,
}

type notification struct {
	Type     NotificationLevel `json:"type"`
	Message  string            `json:"message"`
	Duration int               `json:"duration"`
}

type depositEvent struct {
	ID          int64  `json:"id"`
	ObjectiveID string `json:"objectiveId,omitempty"`
}

// hxResponse accumulates HX-Trigger events, headers and an HTML fragment,
// then writes them in one go.
type hxResponse struct {
	status int
	header http.Header
	events map[string]any
	body   []byte
}

func newHXResponse() *hxResponse {
	return &hxResponse{
		status: http.StatusOK,
		header: make(http.Header),
		events: make(map[string]any),
	}
}

func (r *hxResponse) Status(code int) *hxResponse {
	r.status = code
	return r
}

// Event raises name on the client. A later call with the same name wins.
func (r *hxResponse) Event(name string, detail any) *hxResponse {
	if detail == nil {
		detail = struct{}{}
	}
	r.events[name] = detail
	return r
}

func (r *hxResponse) LedgerChanged() *hxResponse { return r.Event(EventLedgerChanged, nil) }

func (r *hxResponse) ResetForm() *hxResponse { return r.Event(EventFormReset, nil) }

// DepositRecorded carries the transaction id and the objective it credited.
func (r *hxResponse) DepositRecorded(txID int64, objectiveID string) *hxResponse {
	return r.Event(EventDepositRecorded, depositEvent{ID: txID, ObjectiveID: objectiveID})
}

func (r *hxResponse) Notify(level NotificationLevel, message string) *hxResponse {
	return r.Event(EventNotification, notification{
		Type:     level,
		Message:  message,
		Duration: toastDuration[level],
	})
}

func (r *hxResponse) Header(name, value string) *hxResponse {
	r.header.Set(name, value)
	return r
}

// Notice sets the body to an escaped <div> with the given class.
func (r *hxResponse) Notice(class, message string) *hxResponse {
	r.header.Set("Content-Type", "text/html; charset=utf-8")
	r.body = []byte(`<div class="` + class + `">` + template.HTMLEscapeString(message) + `</div>`)
	return r
}

func (r *hxResponse) Write(w http.ResponseWriter) {
	h := w.Header()
	for name, values := range r.header {
		h[name] = values
	}
	if len(r.events) > 0 {
		if b, err := json.Marshal(r.events); err == nil {
			h.Set("HX-Trigger", string(b))
		}
	}
	w.WriteHeader(r.status)
	if len(r.body) > 0 {
		_, _ = w.Write(r.body)
	}
}

// errorFragment answers with an error notice and the matching toast.
func errorFragment(status int, message string) *hxResponse {
	return newHXResponse().
		Status(status).
		Notify(LevelError, message).
		Notice("error", message)
}
