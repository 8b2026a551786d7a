package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"journey/internal/auth"
	"journey/internal/core"
	"journey/internal/services"
	"journey/internal/storage/memory"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

func newTestServer(t *testing.T, opts Options) (*Server, *services.LedgerService) {
	t.Helper()
	ledger := services.NewLedgerService(memory.New(), services.WithClock(func() time.Time { return fixedNow }))
	opts.Ledger = ledger
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, ledger
}

func do(t *testing.T, srv *Server, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if strings.HasPrefix(body, "{") {
		req.Header.Set("Content-Type", "application/json")
	} else if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func seedCatalog(t *testing.T, ledger *services.LedgerService) {
	t.Helper()
	for _, o := range core.DefaultCatalog() {
		if _, _, err := ledger.UpsertObjective(context.Background(), o); err != nil {
			t.Fatalf("seed %s: %v", o.ID, err)
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status = %d", path, rr.Code)
		}
	}

	ready := decode[map[string]any](t, do(t, srv, http.MethodGet, "/readyz", ""))
	if ready["status"] != "ready" {
		t.Errorf("readyz = %v", ready)
	}

	rr := do(t, srv, http.MethodGet, "/metrics", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "journey_http_requests_total") {
		t.Errorf("metrics status = %d", rr.Code)
	}
}

func TestUpsertObjective_CreatedThenUpdated(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	body := `{"id":"iphone","icon":"📱","name":"iPhone","targetBRL":10000,"targetUSD":2000,"accumulatedBRL":0,"completed":false,"category":"USA"}`
	rr := do(t, srv, http.MethodPost, "/api/objectives", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("first upsert status = %d, body = %s", rr.Code, rr.Body)
	}

	// An existing id only takes accumulatedBRL and completed from the body.
	body = `{"id":"iphone","icon":"x","name":"Renamed","targetBRL":1,"targetUSD":1,"accumulatedBRL":500,"completed":true,"category":"USA"}`
	rr = do(t, srv, http.MethodPost, "/api/objectives", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("second upsert status = %d", rr.Code)
	}
	got := decode[core.Objective](t, rr)
	if got.Name != "iPhone" || !got.TargetBRL.Equal(decimal.NewFromInt(10000)) {
		t.Errorf("descriptive fields changed: %+v", got)
	}
	if !got.AccumulatedBRL.Equal(decimal.NewFromInt(500)) || !got.Completed {
		t.Errorf("progress not applied: %+v", got)
	}

	list := decode[[]core.Objective](t, do(t, srv, http.MethodGet, "/api/objectives", ""))
	if len(list) != 1 {
		t.Errorf("len(objectives) = %d, want 1", len(list))
	}
}

func TestUpsertObjective_ProgressOnlyBody(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	rr := do(t, srv, http.MethodPost, "/api/objectives", `{"id":"iphone","accumulatedBRL":1000,"completed":true}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	got := decode[core.Objective](t, rr)
	if got.Category != core.CategoryBR || got.Name == "" {
		t.Errorf("stored fields changed: %+v", got)
	}
	if !got.AccumulatedBRL.Equal(decimal.NewFromInt(1000)) || !got.Completed {
		t.Errorf("progress not applied: %+v", got)
	}
}

func TestUpsertObjective_Rejects(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"id":`},
		{"unknown category", `{"id":"x","category":"MARS"}`},
		{"missing id", `{"category":"BR"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/objectives", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rr.Code)
			}
			if decode[errorResponse](t, rr).Error == "" {
				t.Error("error body is empty")
			}
		})
	}
}

func TestReplaceObjective(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"id mismatch", "/api/objectives/visa", `{"id":"passport","category":"USA"}`, http.StatusBadRequest},
		{"absent", "/api/objectives/boat", `{"id":"boat","category":"BR"}`, http.StatusNotFound},
		{"replaced", "/api/objectives/visa", `{"id":"visa","icon":"🛂","name":"Visto","targetBRL":900,"targetUSD":180,"accumulatedBRL":100,"completed":true,"category":"USA"}`, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPut, tt.path, tt.body)
			if rr.Code != tt.status {
				t.Errorf("status = %d, want %d (%s)", rr.Code, tt.status, rr.Body)
			}
		})
	}

	for _, o := range decode[[]core.Objective](t, do(t, srv, http.MethodGet, "/api/objectives", "")) {
		if o.ID == "visa" && (o.Name != "Visto" || !o.Completed) {
			t.Errorf("visa = %+v", o)
		}
	}
}

func TestSettings(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	got := decode[core.Settings](t, do(t, srv, http.MethodGet, "/api/settings", ""))
	if !got.ExchangeRate.Equal(decimal.NewFromInt(5)) {
		t.Errorf("default rate = %s", got.ExchangeRate)
	}

	rr := do(t, srv, http.MethodPost, "/api/settings", `{"exchangeRate": 5.42}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("save status = %d", rr.Code)
	}
	saved := decode[core.Settings](t, rr)
	if saved.ExchangeRate.String() != "5.42" || !saved.LastUpdated.Equal(fixedNow) {
		t.Errorf("saved = %+v", saved)
	}

	if rr := do(t, srv, http.MethodPost, "/api/settings", `{}`); rr.Code != http.StatusBadRequest {
		t.Errorf("missing rate status = %d, want 400", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/settings", `{"exchangeRate": -1}`); rr.Code != http.StatusBadRequest {
		t.Errorf("negative rate status = %d, want 400", rr.Code)
	}

	// No quote source configured.
	if rr := do(t, srv, http.MethodPost, "/api/settings/refresh", ""); rr.Code != http.StatusBadGateway {
		t.Errorf("refresh status = %d, want 502", rr.Code)
	}
}

func TestTransactionsCRUD(t *testing.T) {
	srv, _ := newTestServer(t, Options{})

	body := `{"amountBRL":250,"amountUSD":50,"date":"2024-03-10","time":"14:30","bank":"Nubank","objectiveId":"ghost"}`
	rr := do(t, srv, http.MethodPost, "/api/transactions", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rr.Code, rr.Body)
	}
	created := decode[core.Transaction](t, rr)
	if created.ID != 1 || created.ObjectiveID == nil || *created.ObjectiveID != "ghost" {
		t.Errorf("created = %+v", created)
	}

	list := decode[[]core.Transaction](t, do(t, srv, http.MethodGet, "/api/transactions", ""))
	if len(list) != 1 {
		t.Fatalf("len(transactions) = %d", len(list))
	}

	tests := []struct {
		path   string
		status int
	}{
		{"/api/transactions/1", http.StatusNoContent},
		{"/api/transactions/1", http.StatusNotFound},
		{"/api/transactions/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if rr := do(t, srv, http.MethodDelete, tt.path, ""); rr.Code != tt.status {
			t.Errorf("DELETE %s status = %d, want %d", tt.path, rr.Code, tt.status)
		}
	}
}

func TestDepositAndSummary(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	// Warm the snapshot cache so the deposit has to invalidate it.
	before := decode[core.Summary](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if !before.AccumulatedBRL.IsZero() {
		t.Fatalf("initial summary = %+v", before)
	}

	rr := do(t, srv, http.MethodPost, "/api/deposits",
		`{"amountBRL":1000,"date":"2024-05-01","time":"09:00","bank":"Inter","objectiveId":"iphone"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("deposit status = %d, body = %s", rr.Code, rr.Body)
	}
	result := decode[services.DepositResult](t, rr)
	if result.Objective == nil || !result.Objective.AccumulatedBRL.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("objective = %+v", result.Objective)
	}
	if !result.Transaction.AmountUSD.Equal(decimal.NewFromInt(200)) {
		t.Errorf("derived USD = %s, want 200", result.Transaction.AmountUSD)
	}

	sum := decode[core.Summary](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if !sum.AccumulatedBRL.Equal(decimal.NewFromInt(1000)) || !sum.AllocatedBRL.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("summary = %+v", sum)
	}
	if sum.PlanProgress.String() != "0.5" {
		t.Errorf("PlanProgress = %s, want 0.5", sum.PlanProgress)
	}

	rr = do(t, srv, http.MethodPost, "/api/deposits",
		`{"amountBRL":10,"date":"2024-05-01","time":"09:00","bank":"Inter","objectiveId":"boat"}`)
	if rr.Code != http.StatusNotFound {
		t.Errorf("unknown objective status = %d, want 404", rr.Code)
	}

	rr = do(t, srv, http.MethodDelete, "/api/deposits/"+"1", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reverse status = %d", rr.Code)
	}
	sum = decode[core.Summary](t, do(t, srv, http.MethodGet, "/api/summary", ""))
	if !sum.AccumulatedBRL.IsZero() || !sum.AllocatedBRL.IsZero() || sum.TransactionCount != 0 {
		t.Errorf("summary after reversal = %+v", sum)
	}
}

func TestUIPages(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	tests := []struct {
		path   string
		status int
		want   string
	}{
		{"/", http.StatusOK, "Novo Depósito"},
		{"/?s=report", http.StatusOK, "Relatório de Alocação"},
		{"/?s=nope", http.StatusOK, "Visão Geral"},
		{"/ui/sections/usa_goals", http.StatusOK, "Objetivos USA"},
		{"/ui/sections/meta?month=3", http.StatusOK, "Mês 3 de 100"},
		{"/ui/sections/statement", http.StatusOK, "Nenhuma transação registrada"},
		{"/ui/sections/unknown", http.StatusNotFound, "Seção desconhecida"},
		{"/ui/clock", http.StatusOK, "sexta-feira, 16 de outubro de 2026"},
		{"/ui/rate", http.StatusOK, "R$ 5.0000"},
		{"/ui/crossfill?from=brl&amountBRL=1000", http.StatusOK, `value="200.00"`},
		{"/ui/crossfill?from=usd&amountUSD=abc", http.StatusOK, `id="amountBRL"`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.path, "")
			if rr.Code != tt.status {
				t.Fatalf("status = %d, want %d", rr.Code, tt.status)
			}
			if !strings.Contains(rr.Body.String(), tt.want) {
				t.Errorf("body missing %q", tt.want)
			}
		})
	}
}

func TestUIDeposit(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	form := url.Values{
		"amountBRL":   {"1.000,00"},
		"date":        {"2026-10-16"},
		"time":        {"12:30"},
		"bank":        {"Nubank"},
		"objectiveId": {"iphone"},
	}
	rr := do(t, srv, http.MethodPost, "/ui/deposits", form.Encode(), "HX-Request", "true")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body)
	}
	trigger := rr.Header().Get("HX-Trigger")
	for _, want := range []string{`"ledger:changed"`, `"form:reset"`, `"deposit:recorded"`, `"objectiveId":"iphone"`} {
		if !strings.Contains(trigger, want) {
			t.Errorf("HX-Trigger missing %s: %s", want, trigger)
		}
	}
	if !strings.Contains(rr.Body.String(), "R$ 1.000,00") {
		t.Errorf("body = %s", rr.Body)
	}

	page := do(t, srv, http.MethodGet, "/?s=report", "")
	if !strings.Contains(page.Body.String(), "10.00%") {
		t.Error("report should show 10.00% for the iphone row")
	}

	form.Del("bank")
	rr = do(t, srv, http.MethodPost, "/ui/deposits", form.Encode(), "HX-Request", "true")
	if rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("missing bank status = %d, want 422", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), `"type":"error"`) {
		t.Errorf("missing error notification: %s", rr.Header().Get("HX-Trigger"))
	}
}

func TestUIToggleAndDelete(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})
	seedCatalog(t, ledger)

	rr := do(t, srv, http.MethodPost, "/ui/objectives/passport/toggle", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("toggle status = %d", rr.Code)
	}
	objs, _ := ledger.ListObjectives(context.Background())
	for _, o := range objs {
		if o.ID == "passport" && !o.Completed {
			t.Error("passport should be completed")
		}
	}
	if rr := do(t, srv, http.MethodPost, "/ui/objectives/boat/toggle", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown objective status = %d", rr.Code)
	}

	res, err := ledger.Deposit(context.Background(), core.Transaction{
		AmountBRL:   decimal.NewFromInt(300),
		Date:        core.NewDate(2026, 10, 1),
		Time:        "10:00",
		Bank:        "Inter",
		ObjectiveID: core.StringPtr("visa"),
	})
	if err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	rr = do(t, srv, http.MethodDelete, "/ui/transactions/1", "")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("HX-Trigger"), "ledger:changed") {
		t.Fatalf("delete status = %d, trigger = %s", rr.Code, rr.Header().Get("HX-Trigger"))
	}
	objs, _ = ledger.ListObjectives(context.Background())
	for _, o := range objs {
		if o.ID == *res.Transaction.ObjectiveID && !o.AccumulatedBRL.IsZero() {
			t.Errorf("visa accumulated = %s, want 0", o.AccumulatedBRL)
		}
	}
}

func TestUISetRate(t *testing.T) {
	srv, ledger := newTestServer(t, Options{})

	rr := do(t, srv, http.MethodPost, "/ui/settings/rate", "exchangeRate=5,75")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	settings, _ := ledger.GetSettings(context.Background())
	if settings.ExchangeRate.String() != "5.75" {
		t.Errorf("rate = %s", settings.ExchangeRate)
	}

	if rr := do(t, srv, http.MethodPost, "/ui/settings/rate", "exchangeRate=0"); rr.Code != http.StatusUnprocessableEntity {
		t.Errorf("zero rate status = %d, want 422", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/ui/settings/refresh", ""); rr.Code != http.StatusBadGateway {
		t.Errorf("refresh status = %d, want 502", rr.Code)
	}
}

func TestAuthWall(t *testing.T) {
	hash, err := auth.HashPassword("s3cret")
	if err != nil {
		t.Fatal(err)
	}
	authn, err := auth.New("admin", hash, "0123456789abcdef0123", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, Options{Auth: authn})

	if rr := do(t, srv, http.MethodGet, "/api/objectives", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("no token status = %d, want 401", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/", "")
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/login" {
		t.Errorf("index without session = %d %s", rr.Code, rr.Header().Get("Location"))
	}
	if rr := do(t, srv, http.MethodGet, "/ui/clock", "", "HX-Request", "true"); rr.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("htmx request without session should redirect, got %d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/login", ""); rr.Code != http.StatusOK {
		t.Errorf("login page status = %d", rr.Code)
	}

	if rr := do(t, srv, http.MethodPost, "/api/login", `{"username":"admin","password":"nope"}`); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad password status = %d", rr.Code)
	}
	rr = do(t, srv, http.MethodPost, "/api/login", `{"username":"admin","password":"s3cret"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("login status = %d", rr.Code)
	}
	token := decode[loginResponse](t, rr).Token
	if rr := do(t, srv, http.MethodGet, "/api/objectives", "", "Authorization", "Bearer "+token); rr.Code != http.StatusOK {
		t.Errorf("with token status = %d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/login", "username=admin&password=s3cret")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("form login status = %d", rr.Code)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookie || !cookies[0].HttpOnly {
		t.Fatalf("cookies = %+v", cookies)
	}
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	page := httptest.NewRecorder()
	srv.Handler.ServeHTTP(page, req)
	if page.Code != http.StatusOK || !strings.Contains(page.Body.String(), "Sair") {
		t.Errorf("index with cookie = %d", page.Code)
	}
}

func TestLoginDisabled(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	if rr := do(t, srv, http.MethodPost, "/api/login", `{}`); rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestRateLimitOnWrites(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateLimitRPM: 2})

	for i := 0; i < 2; i++ {
		if rr := do(t, srv, http.MethodPost, "/api/settings", `{"exchangeRate":5}`); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/api/settings", `{"exchangeRate":5}`)
	if rr.Code != http.StatusTooManyRequests || rr.Header().Get("Retry-After") == "" {
		t.Errorf("third write = %d, Retry-After %q", rr.Code, rr.Header().Get("Retry-After"))
	}
	// Reads are never limited.
	if rr := do(t, srv, http.MethodGet, "/api/settings", ""); rr.Code != http.StatusOK {
		t.Errorf("read status = %d", rr.Code)
	}
}
