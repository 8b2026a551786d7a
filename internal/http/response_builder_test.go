package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func events(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	raw := w.Header().Get("HX-Trigger")
	if raw == "" {
		return nil
	}
	var out map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		t.Fatalf("HX-Trigger %q is not JSON: %v", raw, err)
	}
	return out
}

func TestHXResponse_NoticeOnly(t *testing.T) {
	w := httptest.NewRecorder()
	newHXResponse().Status(http.StatusCreated).Notice("success", "ok").Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if events(t, w) != nil {
		t.Error("HX-Trigger should be absent without events")
	}
	if w.Body.String() != `<div class="success">ok</div>` {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestHXResponse_DepositEvents(t *testing.T) {
	w := httptest.NewRecorder()
	newHXResponse().
		LedgerChanged().
		DepositRecorded(7, "iphone").
		ResetForm().
		Notify(LevelSuccess, "Depósito registrado").
		Write(w)

	ev := events(t, w)
	for _, name := range []string{EventLedgerChanged, EventDepositRecorded, EventFormReset, EventNotification} {
		if _, ok := ev[name]; !ok {
			t.Errorf("missing event %q", name)
		}
	}

	var dep depositEvent
	if err := json.Unmarshal(ev[EventDepositRecorded], &dep); err != nil {
		t.Fatal(err)
	}
	if dep.ID != 7 || dep.ObjectiveID != "iphone" {
		t.Errorf("deposit event = %+v", dep)
	}

	var n notification
	if err := json.Unmarshal(ev[EventNotification], &n); err != nil {
		t.Fatal(err)
	}
	if n.Type != LevelSuccess || n.Message != "Depósito registrado" || n.Duration != 3000 {
		t.Errorf("notification = %+v", n)
	}
}

func TestHXResponse_UntaggedDeposit(t *testing.T) {
	w := httptest.NewRecorder()
	newHXResponse().DepositRecorded(3, "").Write(w)

	if strings.Contains(w.Header().Get("HX-Trigger"), "objectiveId") {
		t.Errorf("untagged deposit carries objectiveId: %s", w.Header().Get("HX-Trigger"))
	}
}

func TestHXResponse_LastEventWins(t *testing.T) {
	w := httptest.NewRecorder()
	newHXResponse().
		Notify(LevelInfo, "first").
		Notify(LevelWarning, "second").
		Write(w)

	var n notification
	if err := json.Unmarshal(events(t, w)[EventNotification], &n); err != nil {
		t.Fatal(err)
	}
	if n.Message != "second" || n.Duration != 5000 {
		t.Errorf("notification = %+v", n)
	}
}

func TestHXResponse_Header(t *testing.T) {
	w := httptest.NewRecorder()
	newHXResponse().Header("HX-Redirect", "/login").Status(http.StatusUnauthorized).Write(w)

	if w.Header().Get("HX-Redirect") != "/login" || w.Code != http.StatusUnauthorized {
		t.Errorf("redirect = %q status = %d", w.Header().Get("HX-Redirect"), w.Code)
	}
	if w.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", w.Body.String())
	}
}

func TestErrorFragment(t *testing.T) {
	tests := []struct {
		status  int
		message string
	}{
		{http.StatusBadGateway, "Cotação indisponível"},
		{http.StatusUnprocessableEntity, "Informe o banco"},
		{http.StatusNotFound, "Objetivo não encontrado"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			w := httptest.NewRecorder()
			errorFragment(tt.status, tt.message).Write(w)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if want := `<div class="error">` + tt.message + `</div>`; w.Body.String() != want {
				t.Errorf("body = %q, want %q", w.Body.String(), want)
			}
			var n notification
			if err := json.Unmarshal(events(t, w)[EventNotification], &n); err != nil {
				t.Fatal(err)
			}
			if n.Type != LevelError || n.Message != tt.message {
				t.Errorf("notification = %+v", n)
			}
		})
	}
}

func TestErrorFragment_EscapesHTML(t *testing.T) {
	w := httptest.NewRecorder()
	errorFragment(http.StatusUnprocessableEntity, "<script>alert('xss')</script>").Write(w)

	body := w.Body.String()
	if strings.Contains(body, "<script>") || !strings.Contains(body, "&lt;script&gt;") {
		t.Errorf("body not escaped: %q", body)
	}
}
