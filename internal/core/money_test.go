package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1234.56", "1234.56", true},
		{"1234,56", "1234.56", true},
		{"1.234,56", "1234.56", true},
		{"1,234.56", "1234.56", true},
		{"R$ 50,00", "50", true},
		{" 2.50 ", "2.5", true},
		{"-10", "-10", true},
		{"abc", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(dec(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDisplayTargets(t *testing.T) {
	usa := Objective{ID: "x", TargetBRL: dec("1"), TargetUSD: dec("100"), Category: CategoryUSA}
	br := Objective{ID: "y", TargetBRL: dec("10000"), TargetUSD: dec("1"), Category: CategoryBR}

	cases := []struct {
		name    string
		o       Objective
		rate    string
		wantBRL string
		wantUSD string
	}{
		{"usa at 5.0", usa, "5.0", "500", "100"},
		{"usa at 5.5", usa, "5.5", "550", "100"},
		{"br at 5.0", br, "5.0", "10000", "2000"},
		{"br at 4.0", br, "4", "10000", "2500"},
		{"zero rate keeps stored values", usa, "0", "1", "100"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			brl, usd := DisplayTargets(tc.o, dec(tc.rate))
			if !brl.Equal(dec(tc.wantBRL)) || !usd.Equal(dec(tc.wantUSD)) {
				t.Errorf("got (%s, %s), want (%s, %s)", brl, usd, tc.wantBRL, tc.wantUSD)
			}
		})
	}

	if !usa.TargetBRL.Equal(dec("1")) {
		t.Error("DisplayTargets must not mutate the objective")
	}
}

func TestConversions(t *testing.T) {
	if got := ConvertBRLToUSD(dec("1000"), dec("5.2")); !got.Equal(dec("192.31")) {
		t.Errorf("ConvertBRLToUSD = %s", got)
	}
	if got := ConvertUSDToBRL(dec("100"), dec("5.25")); !got.Equal(dec("525")) {
		t.Errorf("ConvertUSDToBRL = %s", got)
	}
	if got := ConvertBRLToUSD(dec("10"), decimal.Zero); !got.IsZero() {
		t.Errorf("zero rate should give zero, got %s", got)
	}
	o := Objective{AccumulatedBRL: dec("1000")}
	if got := AccumulatedUSD(o, dec("5")); !got.Equal(dec("200")) {
		t.Errorf("AccumulatedUSD = %s", got)
	}
}

func TestPlan(t *testing.T) {
	if !MonthlyGoal().Equal(dec("2000")) {
		t.Errorf("MonthlyGoal = %s", MonthlyGoal())
	}
	if got := DailyGoal().Round(2); !got.Equal(dec("66.67")) {
		t.Errorf("DailyGoal = %s", got)
	}
	if got := PlanProgress(dec("50000")); !got.Equal(dec("25")) {
		t.Errorf("PlanProgress = %s", got)
	}
	if got := Percent(dec("1000"), dec("10000")); !got.Equal(dec("10")) {
		t.Errorf("Percent = %s", got)
	}
	if got := Percent(dec("1000"), decimal.Zero); !got.IsZero() {
		t.Errorf("Percent with zero target = %s", got)
	}
}

func TestSummarize(t *testing.T) {
	objs := DefaultCatalog()
	objs[1].AccumulatedBRL = dec("1500")
	objs[1].Completed = true
	txs := []Transaction{
		{ID: 1, AmountBRL: dec("1000")},
		{ID: 2, AmountBRL: dec("250.50")},
	}
	settings := Settings{ID: 1, ExchangeRate: dec("5"), LastUpdated: time.Now()}

	s := Summarize(objs, txs, settings)
	if !s.AccumulatedBRL.Equal(dec("1250.50")) {
		t.Errorf("AccumulatedBRL = %s", s.AccumulatedBRL)
	}
	if !s.UnallocatedBRL.Equal(dec("-249.50")) {
		t.Errorf("UnallocatedBRL = %s", s.UnallocatedBRL)
	}
	if !s.OverAllocatedBRL.Equal(dec("249.50")) {
		t.Errorf("OverAllocatedBRL = %s", s.OverAllocatedBRL)
	}
	if !s.AccumulatedUSD.Equal(dec("250.1")) {
		t.Errorf("AccumulatedUSD = %s", s.AccumulatedUSD)
	}
	if s.TransactionCount != 2 || s.ObjectiveCount != 12 || s.CompletedCount != 1 {
		t.Errorf("counts = %d/%d/%d", s.TransactionCount, s.ObjectiveCount, s.CompletedCount)
	}
	if !s.SurplusBRL.IsZero() {
		t.Errorf("SurplusBRL = %s", s.SurplusBRL)
	}
}
