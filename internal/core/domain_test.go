package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseCategory(t *testing.T) {
	cases := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"BR", CategoryBR, true},
		{"usa", CategoryUSA, true},
		{" Emergency ", CategoryEmergency, true},
		{"EU", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseCategory(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
			continue
		}
		var verr *ErrValidation
		if !errors.As(err, &verr) {
			t.Fatalf("%q expected validation error, got %v", tc.in, err)
		}
	}
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"2024-03-01", "2024-03-01", true},
		{"2024-03-01T14:30:00", "2024-03-01", true},
		{"2024-03-01T23:30:00Z", "2024-03-01", true},
		{"01/03/2024", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || got.String() != tc.want {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestTransactionJSON(t *testing.T) {
	in := `{"amountBRL":1000.5,"amountUSD":200.1,"date":"2024-05-10","time":"09:15","bank":"Nubank","objectiveId":"iphone"}`

	var tx Transaction
	if err := json.Unmarshal([]byte(in), &tx); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !tx.AmountBRL.Equal(decimal.RequireFromString("1000.5")) {
		t.Errorf("AmountBRL = %s", tx.AmountBRL)
	}
	if !tx.IsTagged() || *tx.ObjectiveID != "iphone" {
		t.Errorf("ObjectiveID = %v", tx.ObjectiveID)
	}
	if tx.Description != nil {
		t.Errorf("Description = %v, want nil", *tx.Description)
	}

	tx.ID = 7
	out, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(out)
	for _, want := range []string{`"id":7`, `"amountBRL":1000.5`, `"date":"2024-05-10"`, `"objectiveId":"iphone"`} {
		if !strings.Contains(s, want) {
			t.Errorf("marshalled %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "description") {
		t.Errorf("nil description should be omitted: %s", s)
	}
}

func TestObjectiveJSONHidesVersion(t *testing.T) {
	o := DefaultCatalog()[0]
	o.Version = 9
	out, err := json.Marshal(o)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(strings.ToLower(string(out)), "version") {
		t.Errorf("version leaked: %s", out)
	}
	if !strings.Contains(string(out), `"targetBRL":44500`) {
		t.Errorf("targetBRL not a JSON number: %s", out)
	}
}

func TestObjectiveValidate(t *testing.T) {
	good := DefaultCatalog()[1]
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []Objective{
		{ID: "", Category: CategoryBR},
		{ID: "x", Category: "MARS"},
	}
	for i, o := range bads {
		if err := o.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{Bank: "Itaú", Date: NewDate(2025, 1, 1)}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Transaction{Date: NewDate(2025, 1, 1)}).Validate(); err == nil {
		t.Fatal("expected error for missing bank")
	}
	if err := (Transaction{Bank: "Itaú", Date: Date{Time: time.Time{}}}).Validate(); err == nil {
		t.Fatal("expected error for zero date")
	}
}

func TestDefaultCatalog(t *testing.T) {
	cat := DefaultCatalog()
	if len(cat) != 12 {
		t.Fatalf("len = %d, want 12", len(cat))
	}
	seen := map[string]bool{}
	counts := map[Category]int{}
	for _, o := range cat {
		if seen[o.ID] {
			t.Fatalf("duplicate id %s", o.ID)
		}
		seen[o.ID] = true
		counts[o.Category]++
		if !o.AccumulatedBRL.IsZero() || o.Completed {
			t.Errorf("%s should start empty and open", o.ID)
		}
	}
	if counts[CategoryBR] != 2 || counts[CategoryUSA] != 8 || counts[CategoryEmergency] != 2 {
		t.Errorf("category counts = %v", counts)
	}

	// mutating the copy must not leak into the next call
	cat[0].Name = "changed"
	if DefaultCatalog()[0].Name != "Peugeot 308" {
		t.Error("DefaultCatalog returned shared state")
	}
}

func TestErrorTypes(t *testing.T) {
	wrapped := &ErrExternalService{Service: "quotes", Err: errors.New("boom")}
	if !strings.Contains(wrapped.Error(), "boom") || errors.Unwrap(wrapped) == nil {
		t.Errorf("unexpected external service error: %v", wrapped)
	}
	nf := &ErrNotFound{Resource: "objective", ID: "iphone"}
	if nf.Error() != "objective iphone not found" {
		t.Errorf("ErrNotFound = %q", nf.Error())
	}
}
