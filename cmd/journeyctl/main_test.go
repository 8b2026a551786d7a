package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apphttp "journey/internal/http"
	"journey/internal/services"
	"journey/internal/storage/memory"
)

func startServer(t *testing.T) string {
	t.Helper()
	url, ledger := startBareServer(t)
	if _, err := ledger.SeedCatalog(context.Background()); err != nil {
		t.Fatalf("SeedCatalog() error = %v", err)
	}
	return url
}

// startBareServer serves an empty store, as cmd/journey does with SEED_CATALOG=false.
func startBareServer(t *testing.T) (string, *services.LedgerService) {
	t.Helper()
	ledger := services.NewLedgerService(memory.New())
	srv, err := apphttp.NewServer(apphttp.Options{Ledger: ledger})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts.URL, ledger
}

func run(t *testing.T, url, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := (&app{}).rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--api-url", url, "--manual-rate"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestFirstLoadSeedsEmptyServer(t *testing.T) {
	url, ledger := startBareServer(t)

	out, err := run(t, url, "", "objectives", "br")
	if err != nil {
		t.Fatalf("objectives error = %v", err)
	}
	if !strings.Contains(out, "iPhone 15 Pro") {
		t.Errorf("objectives output:\n%s", out)
	}

	list, err := ledger.ListObjectives(context.Background())
	if err != nil || len(list) != 12 {
		t.Errorf("server objectives = %d, %v, want 12", len(list), err)
	}
}

func TestDepositThenViews(t *testing.T) {
	url := startServer(t)

	out, err := run(t, url, "", "deposit", "--brl", "1000", "--usd", "200", "--bank", "Nubank",
		"--date", "2026-10-16", "--time", "09:15", "--objective", "iphone")
	if err != nil {
		t.Fatalf("deposit error = %v", err)
	}
	if !strings.Contains(out, "Depósito #1 registrado: R$ 1.000,00 ($200.00)") {
		t.Errorf("deposit output = %q", out)
	}

	out, err = run(t, url, "", "statement")
	if err != nil {
		t.Fatalf("statement error = %v", err)
	}
	for _, want := range []string{"16/10/2026", "09:15", "Nubank", "R$ 1.000,00"} {
		if !strings.Contains(out, want) {
			t.Errorf("statement missing %q:\n%s", want, out)
		}
	}

	out, err = run(t, url, "", "report")
	if err != nil {
		t.Fatalf("report error = %v", err)
	}
	if !strings.Contains(out, "Relatório de Alocação") || !strings.Contains(out, "10.00%") {
		t.Errorf("report output:\n%s", out)
	}

	out, err = run(t, url, "", "summary")
	if err != nil {
		t.Fatalf("summary error = %v", err)
	}
	if !strings.Contains(out, "R$ 1.000,00") || !strings.Contains(out, "0.50%") {
		t.Errorf("summary output:\n%s", out)
	}
}

func TestDeleteAsksForConfirmation(t *testing.T) {
	url := startServer(t)
	if _, err := run(t, url, "", "deposit", "--brl", "50", "--bank", "Inter"); err != nil {
		t.Fatalf("deposit error = %v", err)
	}

	out, err := run(t, url, "n\n", "delete", "1")
	if err != nil || !strings.Contains(out, "Cancelado.") {
		t.Fatalf("declined delete: out=%q err=%v", out, err)
	}

	out, err = run(t, url, "", "delete", "1", "--yes")
	if err != nil || !strings.Contains(out, "Transação #1 excluída.") {
		t.Fatalf("confirmed delete: out=%q err=%v", out, err)
	}

	out, _ = run(t, url, "", "statement")
	if !strings.Contains(out, "Nenhuma transação registrada.") {
		t.Errorf("statement after delete:\n%s", out)
	}
}

func TestRateAndToggle(t *testing.T) {
	url := startServer(t)

	out, err := run(t, url, "", "rate", "5,42")
	if err != nil {
		t.Fatalf("rate error = %v", err)
	}
	if !strings.Contains(out, "R$ 5.4200 (manual") {
		t.Errorf("rate output = %q", out)
	}
	if _, err := run(t, url, "", "rate", "0"); err == nil {
		t.Error("expected error for zero rate")
	}

	out, err = run(t, url, "", "toggle", "passport")
	if err != nil || !strings.Contains(out, "concluído") {
		t.Fatalf("toggle: out=%q err=%v", out, err)
	}
	out, _ = run(t, url, "", "objectives", "usa")
	if !strings.Contains(out, "Objetivos USA") || !strings.Contains(out, "Concluído") {
		t.Errorf("objectives output:\n%s", out)
	}
	if _, err := run(t, url, "", "objectives", "MARS"); err == nil {
		t.Error("expected error for unknown category")
	}
}

func TestBuildDeposit(t *testing.T) {
	now := time.Date(2026, 10, 16, 15, 30, 0, 0, time.UTC)

	in, err := buildDeposit("R$ 1.234,56", "", "", "", " Itaú ", "", "", now)
	if err != nil {
		t.Fatalf("buildDeposit() error = %v", err)
	}
	if in.AmountBRL.String() != "1234.56" || in.AmountUSD != nil {
		t.Errorf("amounts = %s / %v", in.AmountBRL, in.AmountUSD)
	}
	if in.Date.String() != "2026-10-16" || in.Time != "12:30" || in.Bank != "Itaú" {
		t.Errorf("defaults = %s %s %q", in.Date, in.Time, in.Bank)
	}
	if in.Description != nil || in.ObjectiveID != nil {
		t.Error("optional fields should stay nil")
	}

	tests := []struct {
		name                             string
		brl, usd, date, clock, bank, obj string
	}{
		{"zero amount", "0", "", "", "", "Inter", ""},
		{"garbage amount", "abc", "", "", "", "Inter", ""},
		{"negative usd", "10", "-1", "", "", "Inter", ""},
		{"bad date", "10", "", "16/10/2026", "", "Inter", ""},
		{"bad time", "10", "", "", "25:00", "Inter", ""},
		{"missing bank", "10", "", "", "", "  ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := buildDeposit(tt.brl, tt.usd, tt.date, tt.clock, tt.bank, "", tt.obj, now); err == nil {
				t.Error("expected error")
			}
		})
	}
}
