package holidays

import (
	"fmt"
	"sort"
	"time"
)

type Kind string

const (
	KindFixed   Kind = "fixed"
	KindMovable Kind = "movable"
)

// Holiday is derived per year on demand and never persisted. Dates carry
// no clock component and are in UTC regardless of the clinic timezone.
type Holiday struct {
	Date time.Time
	Name string
	Kind Kind
}

// The Gregorian computus below is only defined for these years.
const (
	minYear = 1583
	maxYear = 4099
)

type fixedHoliday struct {
	month time.Month
	day   int
	name  string
}

var fixedHolidays = []fixedHoliday{
	{time.January, 1, "Confraternização Universal"},
	{time.April, 21, "Tiradentes"},
	{time.May, 1, "Dia do Trabalho"},
	{time.September, 7, "Independência do Brasil"},
	{time.October, 12, "Nossa Senhora Aparecida"},
	{time.November, 2, "Finados"},
	{time.November, 15, "Proclamação da República"},
	{time.December, 25, "Natal"},
}

type movableHoliday struct {
	offsetDays int
	name       string
}

var movableHolidays = []movableHoliday{
	{-47, "Carnaval"},
	{-2, "Sexta-feira Santa"},
	{0, "Páscoa"},
	{60, "Corpus Christi"},
}

// Easter returns Easter Sunday for the given year using the
// Meeus/Jones/Butcher algorithm.
func Easter(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// ForYear returns the national holidays for year, ordered by date.
// Calling it twice with the same year yields identical results.
func ForYear(year int) ([]Holiday, error) {
	if year < minYear || year > maxYear {
		return nil, fmt.Errorf("year must be between %d and %d, got %d", minYear, maxYear, year)
	}

	out := make([]Holiday, 0, len(fixedHolidays)+len(movableHolidays))
	for _, f := range fixedHolidays {
		out = append(out, Holiday{
			Date: time.Date(year, f.month, f.day, 0, 0, 0, 0, time.UTC),
			Name: f.name,
			Kind: KindFixed,
		})
	}

	easter := Easter(year)
	for _, m := range movableHolidays {
		out = append(out, Holiday{
			Date: easter.AddDate(0, 0, m.offsetDays),
			Name: m.name,
			Kind: KindMovable,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
