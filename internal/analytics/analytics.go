// Package analytics aggregates a user's expenses into the series behind the
// visual reports: daily totals, category shares, weeks, months and hours.
package analytics

import (
	"math"
	"sort"
	"time"

	"pisoheroes/internal/core"
)

type DailyPoint struct {
	Date   string     `json:"date"`
	Label  string     `json:"label"`
	Amount float64    `json:"amount"`
	Total  core.Money `json:"-"`
}

type CategoryPoint struct {
	Category   string     `json:"category"`
	Amount     float64    `json:"amount"`
	Percentage float64    `json:"percentage"`
	Count      int        `json:"count"`
	Total      core.Money `json:"-"`
}

type WeekPoint struct {
	WeekStart string     `json:"week_start"`
	WeekLabel string     `json:"week_label"`
	Amount    float64    `json:"amount"`
	Total     core.Money `json:"-"`
}

type MonthPoint struct {
	Key    string     `json:"key"`
	Month  string     `json:"month"`
	Amount float64    `json:"amount"`
	Total  core.Money `json:"-"`
}

type HourPoint struct {
	Hour      int        `json:"hour"`
	TimeLabel string     `json:"time_label"`
	Count     int        `json:"count"`
	Amount    float64    `json:"amount"`
	Total     core.Money `json:"-"`
}

// Summary is the headline block of the analytics page.
type Summary struct {
	Total        core.Money
	Count        int
	Days         int
	DailyAverage core.Money
	// BudgetAdherence is how much of the summed active alert limits is
	// left, as a percentage floored at zero. Zero without limits.
	BudgetAdherence float64
	TopCategory     string
}

const dayLabel = "Jan 02"

// Daily totals each day of [from, to], including days without spending.
func Daily(expenses []core.Expense, from, to core.Date) []DailyPoint {
	byDay := make(map[string]core.Money)
	for _, e := range expenses {
		k := e.Date.String()
		byDay[k] = byDay[k].Add(e.Amount)
	}
	var out []DailyPoint
	for d := from; !d.After(to); d = d.AddDays(1) {
		total := byDay[d.String()]
		out = append(out, DailyPoint{Date: d.String(), Label: d.Format(dayLabel), Amount: total.Pesos(), Total: total})
	}
	return out
}

// Categories totals spending per category, largest first. Percentages are
// rounded to one decimal.
func Categories(expenses []core.Expense) []CategoryPoint {
	total, by := core.SumExpenses(expenses)
	counts := make(map[string]int)
	for _, e := range expenses {
		counts[e.Category]++
	}
	out := make([]CategoryPoint, 0, len(by))
	for _, c := range by {
		out = append(out, CategoryPoint{
			Category:   c.Name,
			Amount:     c.Amount.Pesos(),
			Percentage: round1(core.Percent(c.Amount, total)),
			Count:      counts[c.Name],
			Total:      c.Amount,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Total.Cents != out[j].Total.Cents {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// WeekStart returns the Monday on or before d.
func WeekStart(d core.Date) core.Date {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// Weekly totals spending per Monday-to-Sunday week, oldest first. Weeks
// without spending are omitted.
func Weekly(expenses []core.Expense) []WeekPoint {
	byWeek := make(map[string]core.Money)
	starts := make(map[string]core.Date)
	for _, e := range expenses {
		ws := WeekStart(e.Date)
		k := ws.String()
		byWeek[k] = byWeek[k].Add(e.Amount)
		starts[k] = ws
	}
	keys := make([]string, 0, len(byWeek))
	for k := range byWeek {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]WeekPoint, 0, len(keys))
	for _, k := range keys {
		ws := starts[k]
		out = append(out, WeekPoint{
			WeekStart: k,
			WeekLabel: ws.Format(dayLabel) + " - " + ws.AddDays(6).Format(dayLabel),
			Amount:    byWeek[k].Pesos(),
			Total:     byWeek[k],
		})
	}
	return out
}

func monthKey(year, month int) string {
	return core.NewDate(year, month, 1).Format("2006-01")
}

func monthPoint(start core.Date, total core.Money) MonthPoint {
	return MonthPoint{
		Key:    start.Format("2006-01"),
		Month:  start.Format("January 2006"),
		Amount: total.Pesos(),
		Total:  total,
	}
}

// Monthly totals the n calendar months ending with the month of end,
// oldest first, including months without spending.
func Monthly(expenses []core.Expense, end core.Date, n int) []MonthPoint {
	byMonth := make(map[string]core.Money)
	for _, e := range expenses {
		k := monthKey(e.Date.Year(), e.Date.Month())
		byMonth[k] = byMonth[k].Add(e.Amount)
	}
	out := make([]MonthPoint, 0, n)
	for i := n - 1; i >= 0; i-- {
		start := core.NewDate(end.Year(), end.Month()-i, 1)
		out = append(out, monthPoint(start, byMonth[start.Format("2006-01")]))
	}
	return out
}

// ByMonth totals the months that have spending, oldest first.
func ByMonth(expenses []core.Expense) []MonthPoint {
	byMonth := make(map[string]core.Money)
	starts := make(map[string]core.Date)
	for _, e := range expenses {
		start := e.Date.MonthStart()
		k := start.Format("2006-01")
		byMonth[k] = byMonth[k].Add(e.Amount)
		starts[k] = start
	}
	keys := make([]string, 0, len(byMonth))
	for k := range byMonth {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]MonthPoint, 0, len(keys))
	for _, k := range keys {
		out = append(out, monthPoint(starts[k], byMonth[k]))
	}
	return out
}

// Hourly buckets spending by the local hour it was recorded. Rows without
// a creation time are skipped.
func Hourly(expenses []core.Expense, loc *time.Location) []HourPoint {
	if loc == nil {
		loc = time.Local
	}
	out := make([]HourPoint, 24)
	for h := range out {
		out[h] = HourPoint{Hour: h, TimeLabel: time.Date(2000, 1, 1, h, 0, 0, 0, time.UTC).Format("15:04")}
	}
	for _, e := range expenses {
		if e.CreatedAt.IsZero() {
			continue
		}
		p := &out[e.CreatedAt.In(loc).Hour()]
		p.Count++
		p.Total = p.Total.Add(e.Amount)
	}
	for h := range out {
		out[h].Amount = out[h].Total.Pesos()
	}
	return out
}

// Summarize computes the headline numbers for [from, to] against the sum
// of the user's active alert limits.
func Summarize(expenses []core.Expense, from, to core.Date, limits core.Money) Summary {
	total, _ := core.SumExpenses(expenses)
	s := Summary{Total: total, Count: len(expenses), Days: to.DaysSince(from) + 1}
	if s.Days > 0 {
		s.DailyAverage = core.Money{Cents: int64(math.Round(float64(total.Cents) / float64(s.Days)))}
	}
	if limits.Cents > 0 {
		s.BudgetAdherence = round1(math.Max(0, (1-float64(total.Cents)/float64(limits.Cents))*100))
	}
	if cats := Categories(expenses); len(cats) > 0 {
		s.TopCategory = cats[0].Category
	}
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
