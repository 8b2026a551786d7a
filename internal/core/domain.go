package core

import (
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

const (
	CategoryBR        Category = "BR"
	CategoryUSA       Category = "USA"
	CategoryEmergency Category = "EMERGENCY"
)

type (
	// Category groups objectives and decides which currency is authoritative for the target.
	Category string

	Date struct {
		time.Time
	}

	// Objective is a named savings target. Version is the optimistic
	// concurrency token used by full replacements and never leaves the server.
	Objective struct {
		ID             string          `json:"id"`
		Icon           string          `json:"icon"`
		Name           string          `json:"name"`
		TargetBRL      decimal.Decimal `json:"targetBRL"`
		TargetUSD      decimal.Decimal `json:"targetUSD"`
		AccumulatedBRL decimal.Decimal `json:"accumulatedBRL"`
		Completed      bool            `json:"completed"`
		Category       Category        `json:"category"`
		Version        int64           `json:"-"`
	}

	// Transaction is a deposit. ObjectiveID is a weak reference: the objective
	// may not exist.
	Transaction struct {
		ID          int64           `json:"id"`
		AmountBRL   decimal.Decimal `json:"amountBRL"`
		AmountUSD   decimal.Decimal `json:"amountUSD"`
		Date        Date            `json:"date"`
		Time        string          `json:"time"`
		Bank        string          `json:"bank"`
		Description *string         `json:"description,omitempty"`
		ObjectiveID *string         `json:"objectiveId,omitempty"`
	}

	// Settings is the singleton holding the USD/BRL rate.
	Settings struct {
		ID           int64           `json:"id"`
		ExchangeRate decimal.Decimal `json:"exchangeRate"`
		LastUpdated  time.Time       `json:"lastUpdated"`
	}
)

var Categories = []Category{CategoryBR, CategoryUSA, CategoryEmergency}

// ParseCategory accepts any casing of BR, USA or EMERGENCY.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", &ErrValidation{Field: "category", Message: fmt.Sprintf("unknown category %q", s)}
	}
	return c, nil
}

func (c Category) IsValid() bool {
	switch c {
	case CategoryBR, CategoryUSA, CategoryEmergency:
		return true
	}
	return false
}

func (c Category) String() string {
	return string(c)
}

// USDAuthoritative reports whether the USD target is the source of truth.
func (c Category) USDAuthoritative() bool {
	return c == CategoryUSA
}

// Validate checks the fields the API refuses to store.
func (o Objective) Validate() error {
	if strings.TrimSpace(o.ID) == "" {
		return &ErrValidation{Field: "id", Message: "objective id is required"}
	}
	if !o.Category.IsValid() {
		return &ErrValidation{Field: "category", Message: fmt.Sprintf("unknown category %q", o.Category)}
	}
	return nil
}

// IsTagged reports whether the deposit is attributed to an objective.
func (t Transaction) IsTagged() bool {
	return t.ObjectiveID != nil && *t.ObjectiveID != ""
}

// Validate checks the fields a deposit cannot be recorded without.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Bank) == "" {
		return &ErrValidation{Field: "bank", Message: "bank is required"}
	}
	if t.Date.IsZero() {
		return &ErrValidation{Field: "date", Message: "date is required"}
	}
	return nil
}

const (
	dateLayout      = "2006-01-02"
	localTimeLayout = "2006-01-02T15:04:05"
)

// ParseDate accepts a plain date, a local timestamp or RFC 3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{dateLayout, localTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, &ErrValidation{Field: "date", Message: fmt.Sprintf("invalid date %q", s)}
}

// NewDate builds a calendar date in UTC.
func NewDate(year, month, day int) Date {
	return Date{time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day, keeping the wall date of t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// StringPtr returns nil for blank strings, otherwise a pointer to the trimmed value.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// SortNewestFirst orders txs by date, then time of day, then id, newest first.
func SortNewestFirst(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date.Time); c != 0 {
			return c
		}
		if c := strings.Compare(b.Time, a.Time); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}
