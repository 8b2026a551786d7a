package view

import (
	"fmt"
	"time"
	_ "time/tzdata"
)

// ClockView is the header strip with Brasília and New York wall clocks.
type ClockView struct {
	Brazil   string
	USA      string
	LongDate string
}

var (
	brazilLoc = mustLoad("America/Sao_Paulo", -3*60*60)
	usaLoc    = mustLoad("America/New_York", -5*60*60)
)

func mustLoad(name string, offset int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offset)
	}
	return loc
}

// BrazilLocation is the zone deposit dates and times are entered in.
func BrazilLocation() *time.Location { return brazilLoc }

var weekdaysPT = [...]string{
	"domingo", "segunda-feira", "terça-feira", "quarta-feira",
	"quinta-feira", "sexta-feira", "sábado",
}

var monthsPT = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

func Clock(now time.Time) ClockView {
	br := now.In(brazilLoc)
	return ClockView{
		Brazil:   br.Format("15:04"),
		USA:      now.In(usaLoc).Format("15:04"),
		LongDate: LongDateBR(br),
	}
}

// LongDateBR renders "sexta-feira, 17 de outubro de 2026".
func LongDateBR(t time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d",
		weekdaysPT[t.Weekday()], t.Day(), monthsPT[t.Month()-1], t.Year())
}

// DepositDefaults is the date and time a new deposit form starts with.
func DepositDefaults(now time.Time) (date, clock string) {
	br := now.In(brazilLoc)
	return br.Format("2006-01-02"), br.Format("15:04")
}
